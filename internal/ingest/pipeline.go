// Package ingest turns uploaded study material into searchable knowledge:
// extracted text, overlapping chunks, embeddings, keyword index entries,
// and inferred relationships to existing content.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindpalace/sensei/internal/extract"
	"github.com/mindpalace/sensei/internal/graph"
	"github.com/mindpalace/sensei/internal/keyword"
	"github.com/mindpalace/sensei/internal/models"
	"github.com/mindpalace/sensei/internal/storage"
	"github.com/mindpalace/sensei/internal/vectorstore"
)

// ErrFileTooLarge is returned before any content is read when an upload
// exceeds the configured ceiling.
var ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

// ErrEmptyContent is returned when extraction yields no usable text.
var ErrEmptyContent = errors.New("no text content extracted")

// Embedder is the subset of embedding used by the pipeline.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Options bounds and tunes the pipeline.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	MaxFileBytes int64
	// RelatedTopK caps similar_to edges created per ingested item.
	RelatedTopK int
	// MinSimilarity drops relationship candidates scoring below it; zero
	// disables the threshold.
	MinSimilarity float64
}

// Result summarizes one ingestion.
type Result struct {
	Item       *models.ContentItem
	ChunkCount int
	EdgeCount  int
}

// Pipeline runs document, note, and URL ingestion end to end.
type Pipeline struct {
	store     storage.Storage
	vectors   vectorstore.Store
	edges     graph.EdgeStore
	keywords  *keyword.BleveIndex
	embedder  Embedder
	extractor *extract.Extractor
	opts      Options
	logger    *zap.Logger
}

// NewPipeline wires an ingestion pipeline. keywords may be nil to skip
// keyword indexing.
func NewPipeline(store storage.Storage, vectors vectorstore.Store, edges graph.EdgeStore, keywords *keyword.BleveIndex, embedder Embedder, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.RelatedTopK <= 0 {
		opts.RelatedTopK = 5
	}
	return &Pipeline{
		store:     store,
		vectors:   vectors,
		edges:     edges,
		keywords:  keywords,
		embedder:  embedder,
		extractor: extract.NewExtractor(),
		opts:      opts,
		logger:    logger,
	}
}

// IngestDocument validates, extracts, chunks, embeds, and persists an
// uploaded file. Re-uploading a document with the same title for the same
// user bumps its version and replaces its vectors and relationships.
func (p *Pipeline) IngestDocument(ctx context.Context, userID, title, mimeType string, data []byte) (*Result, error) {
	if p.opts.MaxFileBytes > 0 && int64(len(data)) > p.opts.MaxFileBytes {
		return nil, ErrFileTooLarge
	}
	if !p.extractor.Supported(mimeType) {
		return nil, &extract.UnsupportedTypeError{MimeType: mimeType}
	}

	text, err := p.extractor.ExtractBytes(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("text extraction failed for %s: %w", mimeType, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyContent
	}

	chunks := ChunkText(text, p.opts.ChunkSize, p.opts.ChunkOverlap)
	chunkEmbs, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	docEmb, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document: %w", err)
	}

	item, err := p.persistItem(ctx, userID, models.ContentKindDocument, title, text, mimeType)
	if err != nil {
		return nil, err
	}

	for i, emb := range chunkEmbs {
		rec := &models.VectorRecord{
			UserID:      userID,
			ContentType: models.VectorTypeDocumentChunk,
			ContentID:   fmt.Sprintf("%s_%d", item.ID, i),
			Embedding:   emb,
			Metadata: map[string]interface{}{
				"title":       item.Title,
				"chunk_index": i,
				"chunk_text":  chunks[i],
				"version":     item.Version,
			},
		}
		if err := p.vectors.Insert(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to store chunk %d: %w", i, err)
		}
	}
	if err := p.vectors.Insert(ctx, &models.VectorRecord{
		UserID:      userID,
		ContentType: models.VectorTypeDocument,
		ContentID:   item.ID,
		Embedding:   docEmb,
		Metadata:    map[string]interface{}{"title": item.Title, "version": item.Version},
	}); err != nil {
		return nil, fmt.Errorf("failed to store document vector: %w", err)
	}

	p.indexKeywords(ctx, item)
	edgeCount := p.inferRelationships(ctx, item, docEmb)

	return &Result{Item: item, ChunkCount: len(chunks), EdgeCount: edgeCount}, nil
}

// IngestNote stores a note as a single un-chunked vector.
func (p *Pipeline) IngestNote(ctx context.Context, userID, title, content string) (*Result, error) {
	return p.ingestSingle(ctx, userID, models.ContentKindNote, models.VectorTypeNote, title, content, "")
}

// IngestURL stores a saved URL with its captured text. The title defaults
// to the URL itself when empty.
func (p *Pipeline) IngestURL(ctx context.Context, userID, url, title, content string) (*Result, error) {
	if strings.TrimSpace(title) == "" {
		title = url
	}
	return p.ingestSingle(ctx, userID, models.ContentKindURL, models.VectorTypeURL, title, content, "")
}

func (p *Pipeline) ingestSingle(ctx context.Context, userID string, kind models.ContentKind, vectorType, title, content, fileType string) (*Result, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	emb, err := p.embedder.Embed(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	item, err := p.persistItem(ctx, userID, kind, title, content, fileType)
	if err != nil {
		return nil, err
	}
	if err := p.vectors.Insert(ctx, &models.VectorRecord{
		UserID:      userID,
		ContentType: vectorType,
		ContentID:   item.ID,
		Embedding:   emb,
		Metadata:    map[string]interface{}{"title": item.Title, "version": item.Version},
	}); err != nil {
		return nil, fmt.Errorf("failed to store vector: %w", err)
	}
	p.indexKeywords(ctx, item)
	edgeCount := p.inferRelationships(ctx, item, emb)
	return &Result{Item: item, ChunkCount: 1, EdgeCount: edgeCount}, nil
}

// persistItem creates the content item, or bumps the version of an existing
// same-title item of the same kind and clears its derived state.
func (p *Pipeline) persistItem(ctx context.Context, userID string, kind models.ContentKind, title, content, fileType string) (*models.ContentItem, error) {
	existing, err := p.store.FindContentItemByTitle(ctx, userID, kind, title)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up existing item: %w", err)
	}
	if existing != nil {
		existing.Content = content
		existing.FileType = fileType
		existing.Version++
		if err := p.store.UpdateContentItem(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update item: %w", err)
		}
		if err := p.cleanupDerived(ctx, userID, existing.ID); err != nil {
			return nil, err
		}
		p.logger.Info("content re-ingested",
			zap.String("item_id", existing.ID),
			zap.Int("version", existing.Version))
		return existing, nil
	}

	item := &models.ContentItem{
		ID:       uuid.New().String(),
		UserID:   userID,
		Kind:     kind,
		Title:    title,
		Content:  content,
		FileType: fileType,
		Version:  1,
	}
	if err := p.store.CreateContentItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

// cleanupDerived drops vectors, edges, and keyword entries belonging to an
// item being replaced or deleted.
func (p *Pipeline) cleanupDerived(ctx context.Context, userID, itemID string) error {
	if err := p.vectors.DeleteByContentID(ctx, userID, itemID); err != nil {
		return fmt.Errorf("failed to delete item vector: %w", err)
	}
	if err := p.vectors.DeleteByContentPrefix(ctx, userID, itemID+"_"); err != nil {
		return fmt.Errorf("failed to delete chunk vectors: %w", err)
	}
	if err := p.edges.DeleteForContent(ctx, userID, itemID); err != nil {
		return fmt.Errorf("failed to delete edges: %w", err)
	}
	if p.keywords != nil {
		if err := p.keywords.Delete(ctx, itemID); err != nil {
			p.logger.Warn("failed to delete keyword entry", zap.String("item_id", itemID), zap.Error(err))
		}
	}
	return nil
}

// DeleteContent removes an item and all of its derived state.
func (p *Pipeline) DeleteContent(ctx context.Context, userID, itemID string) error {
	if err := p.store.DeleteContentItem(ctx, userID, itemID); err != nil {
		return err
	}
	return p.cleanupDerived(ctx, userID, itemID)
}

func (p *Pipeline) indexKeywords(ctx context.Context, item *models.ContentItem) {
	if p.keywords == nil {
		return
	}
	err := p.keywords.Index(ctx, item.ID, &keyword.IndexDoc{
		UserID:  item.UserID,
		Kind:    string(item.Kind),
		Title:   item.Title,
		Content: item.Content,
	})
	if err != nil {
		p.logger.Warn("keyword indexing failed", zap.String("item_id", item.ID), zap.Error(err))
	}
}

// inferRelationships links the new item to its nearest existing neighbors
// with similar_to edges carrying the similarity score. Failures here are
// logged, not fatal; the item itself is already ingested.
func (p *Pipeline) inferRelationships(ctx context.Context, item *models.ContentItem, emb []float32) int {
	types := []string{models.VectorTypeDocument, models.VectorTypeNote, models.VectorTypeURL}
	// One extra so the item itself, which is already stored, can be dropped.
	results, err := p.vectors.Search(ctx, item.UserID, emb, p.opts.RelatedTopK+1, types)
	if err != nil {
		p.logger.Warn("relationship search failed", zap.String("item_id", item.ID), zap.Error(err))
		return 0
	}
	created := 0
	for _, r := range results {
		if r.ContentID == item.ID {
			continue
		}
		if p.opts.MinSimilarity > 0 && r.Score < p.opts.MinSimilarity {
			continue
		}
		if created >= p.opts.RelatedTopK {
			break
		}
		edge := &models.RelationshipEdge{
			UserID:           item.UserID,
			SourceID:         item.ID,
			TargetID:         r.ContentID,
			RelationshipType: models.RelationshipSimilarTo,
			Metadata:         map[string]interface{}{"similarity": r.Score},
		}
		if err := p.edges.CreateEdge(ctx, edge); err != nil {
			p.logger.Warn("failed to create edge",
				zap.String("source", item.ID),
				zap.String("target", r.ContentID),
				zap.Error(err))
			continue
		}
		created++
	}
	return created
}

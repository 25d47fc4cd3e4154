package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mindpalace/sensei/internal/keyword"
	"github.com/mindpalace/sensei/internal/models"
	"github.com/mindpalace/sensei/internal/storage"
	"github.com/mindpalace/sensei/internal/vectorstore"
)

// Default fusion weights. Keyword hits are precise, semantic hits recall
// paraphrases; the blend favors semantic slightly for tutoring queries.
const (
	DefaultKeywordWeight  = 0.4
	DefaultSemanticWeight = 0.6
)

// Embedder is the subset of embedding the engine needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Hit is one search result with its content item resolved.
type Hit struct {
	Item          *models.ContentItem `json:"item"`
	Score         float64             `json:"score"`
	KeywordScore  float64             `json:"keyword_score"`
	SemanticScore float64             `json:"semantic_score"`
}

// Engine fuses keyword and vector retrieval over a user's knowledge base.
type Engine struct {
	store          storage.Storage
	vectors        vectorstore.Store
	keywords       *keyword.BleveIndex
	embedder       Embedder
	keywordWeight  float64
	semanticWeight float64
	logger         *zap.Logger
}

// NewEngine wires a search engine with default weights.
func NewEngine(store storage.Storage, vectors vectorstore.Store, keywords *keyword.BleveIndex, embedder Embedder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:          store,
		vectors:        vectors,
		keywords:       keywords,
		embedder:       embedder,
		keywordWeight:  DefaultKeywordWeight,
		semanticWeight: DefaultSemanticWeight,
		logger:         logger,
	}
}

// Search returns up to limit fused hits for query within userID's content.
// Items that vanished between index and lookup are skipped.
func (e *Engine) Search(ctx context.Context, userID, query string, limit int) ([]*Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	keywordResults, err := e.keywords.Search(ctx, userID, query, limit*2)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	emb, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	semanticResults, err := e.vectors.Search(ctx, userID, emb, limit*2, []string{
		models.VectorTypeDocument,
		models.VectorTypeDocumentChunk,
		models.VectorTypeNote,
		models.VectorTypeURL,
	})
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	fused := fuse(
		normalizeKeywordScores(keywordResults),
		aggregateSemanticByItem(semanticResults),
		e.keywordWeight, e.semanticWeight,
	)

	hits := make([]*Hit, 0, limit)
	for _, f := range fused {
		if len(hits) >= limit {
			break
		}
		item, err := e.store.GetContentItem(ctx, userID, f.ItemID)
		if err != nil {
			e.logger.Debug("skipping stale search hit",
				zap.String("item_id", f.ItemID),
				zap.Error(err))
			continue
		}
		hits = append(hits, &Hit{
			Item:          item,
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
		})
	}
	return hits, nil
}

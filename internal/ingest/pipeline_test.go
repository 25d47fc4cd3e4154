package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mindpalace/sensei/internal/embedding"
	"github.com/mindpalace/sensei/internal/extract"
	"github.com/mindpalace/sensei/internal/graph"
	"github.com/mindpalace/sensei/internal/keyword"
	"github.com/mindpalace/sensei/internal/models"
	"github.com/mindpalace/sensei/internal/storage"
	"github.com/mindpalace/sensei/internal/vectorstore"
)

const testDims = 64

type testEnv struct {
	pipeline *Pipeline
	store    storage.Storage
	vectors  vectorstore.Store
	edges    graph.EdgeStore
	keywords *keyword.BleveIndex
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "app.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	vectors, err := vectorstore.NewSQLiteStore(filepath.Join(dir, "vectors.db"), testDims)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { vectors.Close() })

	edges, err := graph.NewSQLiteEdgeStore(filepath.Join(dir, "edges.db"))
	if err != nil {
		t.Fatalf("NewSQLiteEdgeStore failed: %v", err)
	}
	t.Cleanup(func() { edges.Close() })

	keywords, err := keyword.NewBleveIndex(filepath.Join(dir, "keyword.bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex failed: %v", err)
	}
	t.Cleanup(func() { keywords.Close() })

	if opts.ChunkSize == 0 {
		opts.ChunkSize = 100
		opts.ChunkOverlap = 20
	}
	p := NewPipeline(store, vectors, edges, keywords, embedding.NewMockEmbedder(testDims), opts, zap.NewNop())
	return &testEnv{pipeline: p, store: store, vectors: vectors, edges: edges, keywords: keywords}
}

func TestIngestDocumentChunksAndVectors(t *testing.T) {
	env := newTestEnv(t, Options{ChunkSize: 100, ChunkOverlap: 20})
	ctx := context.Background()

	text := strings.Repeat("machine learning fundamentals ", 10) // ~300 chars
	res, err := env.pipeline.IngestDocument(ctx, "u1", "ml-notes.txt", extract.MimePlain, []byte(text))
	if err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}
	if res.Item.Version != 1 {
		t.Errorf("version = %d, want 1", res.Item.Version)
	}
	if res.ChunkCount < 2 {
		t.Fatalf("expected multiple chunks, got %d", res.ChunkCount)
	}

	// Chunk vectors are addressable by docID_index, plus one document vector.
	count, err := env.vectors.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != int64(res.ChunkCount+1) {
		t.Errorf("vector count = %d, want %d", count, res.ChunkCount+1)
	}

	emb, _ := embedding.NewMockEmbedder(testDims).Embed(ctx, text)
	hits, err := env.vectors.Search(ctx, "u1", emb, 20, []string{models.VectorTypeDocumentChunk})
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, h := range hits {
		seen[h.ContentID] = true
	}
	for i := 0; i < res.ChunkCount; i++ {
		id := fmt.Sprintf("%s_%d", res.Item.ID, i)
		if !seen[id] {
			t.Errorf("missing chunk vector %s", id)
		}
	}
}

func TestIngestDocumentRejectsOversized(t *testing.T) {
	env := newTestEnv(t, Options{ChunkSize: 100, MaxFileBytes: 10})
	_, err := env.pipeline.IngestDocument(context.Background(), "u1", "big.txt", extract.MimePlain, []byte("this is more than ten bytes"))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestIngestDocumentRejectsUnsupportedType(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, err := env.pipeline.IngestDocument(context.Background(), "u1", "page.html", "text/html", []byte("<html>"))
	var unsupported *extract.UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedTypeError, got %v", err)
	}
}

func TestIngestDocumentRejectsEmptyText(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, err := env.pipeline.IngestDocument(context.Background(), "u1", "blank.txt", extract.MimePlain, []byte("   \n  "))
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestReingestBumpsVersionAndReplacesVectors(t *testing.T) {
	env := newTestEnv(t, Options{ChunkSize: 100, ChunkOverlap: 20})
	ctx := context.Background()

	first, err := env.pipeline.IngestDocument(ctx, "u1", "physics.txt", extract.MimePlain, []byte(strings.Repeat("wave mechanics ", 20)))
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.pipeline.IngestDocument(ctx, "u1", "physics.txt", extract.MimePlain, []byte("short replacement text"))
	if err != nil {
		t.Fatal(err)
	}
	if second.Item.ID != first.Item.ID {
		t.Error("re-ingest should reuse the content item")
	}
	if second.Item.Version != 2 {
		t.Errorf("version = %d, want 2", second.Item.Version)
	}

	// Old chunk vectors are gone; only the new chunk set plus doc vector remain.
	count, err := env.vectors.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != int64(second.ChunkCount+1) {
		t.Errorf("vector count after re-ingest = %d, want %d", count, second.ChunkCount+1)
	}
}

func TestIngestInfersRelationships(t *testing.T) {
	env := newTestEnv(t, Options{ChunkSize: 1000, RelatedTopK: 5})
	ctx := context.Background()

	a, err := env.pipeline.IngestNote(ctx, "u1", "note a", "neural networks and backpropagation")
	if err != nil {
		t.Fatal(err)
	}
	if a.EdgeCount != 0 {
		t.Errorf("first item should have no neighbors, got %d edges", a.EdgeCount)
	}

	b, err := env.pipeline.IngestNote(ctx, "u1", "note b", "gradient descent optimization")
	if err != nil {
		t.Fatal(err)
	}
	if b.EdgeCount != 1 {
		t.Fatalf("expected 1 similar_to edge, got %d", b.EdgeCount)
	}
	edges, err := env.edges.FindRelated(ctx, "u1", b.Item.ID, 1, []string{models.RelationshipSimilarTo})
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 || edges[0].TargetID != a.Item.ID {
		t.Errorf("expected edge to note a, got %+v", edges)
	}
	if edges[0].SourceID == edges[0].TargetID {
		t.Error("self edge created")
	}
	if _, ok := edges[0].Metadata["similarity"]; !ok {
		t.Error("edge missing similarity score")
	}
}

func TestMinSimilarityThresholdSuppressesWeakEdges(t *testing.T) {
	env := newTestEnv(t, Options{ChunkSize: 1000, RelatedTopK: 5, MinSimilarity: 0.999})
	ctx := context.Background()

	if _, err := env.pipeline.IngestNote(ctx, "u1", "note a", "topic one"); err != nil {
		t.Fatal(err)
	}
	b, err := env.pipeline.IngestNote(ctx, "u1", "note b", "completely different subject")
	if err != nil {
		t.Fatal(err)
	}
	if b.EdgeCount != 0 {
		t.Errorf("expected threshold to suppress edges, got %d", b.EdgeCount)
	}
}

func TestIngestIndexesKeywords(t *testing.T) {
	env := newTestEnv(t, Options{ChunkSize: 1000})
	ctx := context.Background()

	res, err := env.pipeline.IngestNote(ctx, "u1", "thermodynamics", "entropy always increases in closed systems")
	if err != nil {
		t.Fatal(err)
	}
	hits, err := env.keywords.Search(ctx, "u1", "entropy", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != res.Item.ID {
		t.Errorf("expected keyword hit for the note, got %+v", hits)
	}
}

func TestDeleteContentRemovesDerivedState(t *testing.T) {
	env := newTestEnv(t, Options{ChunkSize: 100, ChunkOverlap: 20})
	ctx := context.Background()

	res, err := env.pipeline.IngestDocument(ctx, "u1", "doc.txt", extract.MimePlain, []byte(strings.Repeat("delete me ", 30)))
	if err != nil {
		t.Fatal(err)
	}
	if err := env.pipeline.DeleteContent(ctx, "u1", res.Item.ID); err != nil {
		t.Fatalf("DeleteContent failed: %v", err)
	}

	if _, err := env.store.GetContentItem(ctx, "u1", res.Item.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected item gone, got %v", err)
	}
	count, err := env.vectors.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected 0 vectors after delete, got %d", count)
	}
	hits, err := env.keywords.Search(ctx, "u1", "delete", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("expected keyword entry gone, got %+v", hits)
	}
}

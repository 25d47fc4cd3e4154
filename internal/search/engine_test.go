package search

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mindpalace/sensei/internal/embedding"
	"github.com/mindpalace/sensei/internal/graph"
	"github.com/mindpalace/sensei/internal/ingest"
	"github.com/mindpalace/sensei/internal/keyword"
	"github.com/mindpalace/sensei/internal/models"
	"github.com/mindpalace/sensei/internal/storage"
	"github.com/mindpalace/sensei/internal/vectorstore"
)

const testDims = 64

func newTestEngine(t *testing.T) (*Engine, *ingest.Pipeline) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	vectors, err := vectorstore.NewSQLiteStore(filepath.Join(dir, "vectors.db"), testDims)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { vectors.Close() })
	edges, err := graph.NewSQLiteEdgeStore(filepath.Join(dir, "edges.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { edges.Close() })
	keywords, err := keyword.NewBleveIndex(filepath.Join(dir, "keyword.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { keywords.Close() })

	embedder := embedding.NewMockEmbedder(testDims)
	pipeline := ingest.NewPipeline(store, vectors, edges, keywords, embedder, ingest.Options{ChunkSize: 100, ChunkOverlap: 20}, zap.NewNop())
	engine := NewEngine(store, vectors, keywords, embedder, zap.NewNop())
	return engine, pipeline
}

func TestSearchFindsKeywordMatch(t *testing.T) {
	engine, pipeline := newTestEngine(t)
	ctx := context.Background()

	res, err := pipeline.IngestNote(ctx, "u1", "quantum notes", "superposition and entanglement basics")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pipeline.IngestNote(ctx, "u1", "cooking", "how to bake bread"); err != nil {
		t.Fatal(err)
	}

	hits, err := engine.Search(ctx, "u1", "entanglement", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected hits")
	}
	if hits[0].Item.ID != res.Item.ID {
		t.Errorf("top hit = %s, want the quantum note", hits[0].Item.Title)
	}
	if hits[0].KeywordScore == 0 {
		t.Error("expected a keyword score contribution")
	}
}

func TestSearchAggregatesChunksToDocument(t *testing.T) {
	engine, pipeline := newTestEngine(t)
	ctx := context.Background()

	text := strings.Repeat("linear algebra vectors and matrices ", 10)
	res, err := pipeline.IngestDocument(ctx, "u1", "algebra.txt", "text/plain", []byte(text))
	if err != nil {
		t.Fatal(err)
	}
	if res.ChunkCount < 2 {
		t.Fatalf("test needs a chunked document, got %d chunks", res.ChunkCount)
	}

	hits, err := engine.Search(ctx, "u1", "matrices", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	// Chunk hits collapse to one item hit.
	count := 0
	for _, h := range hits {
		if h.Item.ID == res.Item.ID {
			count++
		}
	}
	if count != 1 {
		t.Errorf("document appeared %d times, want once", count)
	}
}

func TestSearchIsolatesUsers(t *testing.T) {
	engine, pipeline := newTestEngine(t)
	ctx := context.Background()

	if _, err := pipeline.IngestNote(ctx, "u1", "private", "confidential exam answers"); err != nil {
		t.Fatal(err)
	}
	hits, err := engine.Search(ctx, "u2", "confidential exam answers", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no cross-user hits, got %d", len(hits))
	}
}

func TestSearchLimit(t *testing.T) {
	engine, pipeline := newTestEngine(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c", "d", "e"} {
		if _, err := pipeline.IngestNote(ctx, "u1", title, "study topic "+title); err != nil {
			t.Fatal(err)
		}
	}
	hits, err := engine.Search(ctx, "u1", "study topic", 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) > 3 {
		t.Errorf("limit not honored: %d hits", len(hits))
	}
}

func TestFuseOrdersByWeightedScore(t *testing.T) {
	keywordScores := map[string]float64{"a": 1.0}
	semanticScores := map[string]float64{"b": 1.0}
	fused := fuse(keywordScores, semanticScores, 0.4, 0.6)
	if len(fused) != 2 {
		t.Fatalf("expected 2 results, got %d", len(fused))
	}
	if fused[0].ItemID != "b" {
		t.Errorf("semantic-weighted result should rank first, got %s", fused[0].ItemID)
	}
}

func TestAggregateSemanticByItemKeepsBestChunk(t *testing.T) {
	results := []*models.VectorResult{
		{ContentID: "doc1_0", ContentType: models.VectorTypeDocumentChunk, Score: 0.5},
		{ContentID: "doc1_1", ContentType: models.VectorTypeDocumentChunk, Score: 0.9},
		{ContentID: "note1", ContentType: models.VectorTypeNote, Score: 0.7},
	}
	byItem := aggregateSemanticByItem(results)
	if byItem["doc1"] != 0.9 {
		t.Errorf("doc1 = %f, want best chunk score 0.9", byItem["doc1"])
	}
	if byItem["note1"] != 0.7 {
		t.Errorf("note1 = %f", byItem["note1"])
	}
}

package vectorstore

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/mindpalace/sensei/internal/models"
)

func newTestStore(t *testing.T, dims int) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "vectors.db"), dims)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func unitVector(dims, axis int) []float32 {
	v := make([]float32, dims)
	v[axis] = 1
	return v
}

func TestSQLiteStore_InsertAndSearch(t *testing.T) {
	store := newTestStore(t, 4)
	ctx := context.Background()

	recs := []*models.VectorRecord{
		{UserID: "u1", ContentType: models.VectorTypeNote, ContentID: "n1", Embedding: unitVector(4, 0)},
		{UserID: "u1", ContentType: models.VectorTypeNote, ContentID: "n2", Embedding: unitVector(4, 1)},
		{UserID: "u1", ContentType: models.VectorTypeDocument, ContentID: "d1", Embedding: unitVector(4, 2)},
	}
	for _, r := range recs {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatal(err)
		}
		if r.ID == "" {
			t.Error("insert should assign an ID")
		}
	}

	results, err := store.Search(ctx, "u1", unitVector(4, 0), 10, []string{models.VectorTypeNote})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 note results, got %d", len(results))
	}
	if results[0].ContentID != "n1" {
		t.Errorf("best match = %s, want n1", results[0].ContentID)
	}
	if math.Abs(results[0].Score-1.0) > 1e-5 {
		t.Errorf("score = %f, want 1.0", results[0].Score)
	}
}

func TestSQLiteStore_DimensionMismatch(t *testing.T) {
	store := newTestStore(t, 4)
	ctx := context.Background()

	err := store.Insert(ctx, &models.VectorRecord{
		UserID: "u1", ContentType: models.VectorTypeNote, ContentID: "n1",
		Embedding: []float32{1, 2, 3},
	})
	if !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension, got %v", err)
	}
	count, _ := store.Count(ctx)
	if count != 0 {
		t.Errorf("nothing should be persisted on dimension failure, count = %d", count)
	}

	if _, err := store.Search(ctx, "u1", []float32{1, 2}, 5, nil); !errors.Is(err, ErrDimension) {
		t.Errorf("expected ErrDimension from search, got %v", err)
	}
}

func TestSQLiteStore_UserIsolation(t *testing.T) {
	store := newTestStore(t, 4)
	ctx := context.Background()

	_ = store.Insert(ctx, &models.VectorRecord{UserID: "u1", ContentType: models.VectorTypeNote, ContentID: "n1", Embedding: unitVector(4, 0)})
	_ = store.Insert(ctx, &models.VectorRecord{UserID: "u2", ContentType: models.VectorTypeNote, ContentID: "n2", Embedding: unitVector(4, 0)})

	results, err := store.Search(ctx, "u1", unitVector(4, 0), 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.UserID != "u1" {
			t.Errorf("search returned record for user %s", r.UserID)
		}
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
}

func TestSQLiteStore_EmptyResult(t *testing.T) {
	store := newTestStore(t, 4)
	results, err := store.Search(context.Background(), "nobody", unitVector(4, 0), 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result, got %d", len(results))
	}
}

func TestSQLiteStore_DeleteByPrefix(t *testing.T) {
	store := newTestStore(t, 4)
	ctx := context.Background()

	for _, id := range []string{"doc1_0", "doc1_1", "doc2_0"} {
		_ = store.Insert(ctx, &models.VectorRecord{UserID: "u1", ContentType: models.VectorTypeDocumentChunk, ContentID: id, Embedding: unitVector(4, 0)})
	}
	if err := store.DeleteByContentPrefix(ctx, "u1", "doc1"); err != nil {
		t.Fatal(err)
	}
	results, _ := store.Search(ctx, "u1", unitVector(4, 0), 10, nil)
	if len(results) != 1 || results[0].ContentID != "doc2_0" {
		t.Errorf("expected only doc2_0 to remain, got %d results", len(results))
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-5 || math.Abs(float64(v[1])-0.8) > 1e-5 {
		t.Errorf("normalize = %v", v)
	}
	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector should stay zero, got %v", zero)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3.25}
	out := decodeVector(encodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("length = %d", len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("component %d: %f != %f", i, in[i], out[i])
		}
	}
}

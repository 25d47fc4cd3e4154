package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mindpalace/sensei/internal/models"
)

func newTestStore(t *testing.T) *SQLiteEdgeStore {
	t.Helper()
	store, err := NewSQLiteEdgeStore(filepath.Join(t.TempDir(), "edges.db"))
	if err != nil {
		t.Fatalf("NewSQLiteEdgeStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustEdge(t *testing.T, store *SQLiteEdgeStore, userID, src, dst, typ string) {
	t.Helper()
	err := store.CreateEdge(context.Background(), &models.RelationshipEdge{
		UserID: userID, SourceID: src, TargetID: dst, RelationshipType: typ,
	})
	if err != nil {
		t.Fatalf("CreateEdge(%s->%s) failed: %v", src, dst, err)
	}
}

func TestCreateEdgeAssignsID(t *testing.T) {
	store := newTestStore(t)
	edge := &models.RelationshipEdge{
		UserID:           "u1",
		SourceID:         "a",
		TargetID:         "b",
		RelationshipType: models.RelationshipSimilarTo,
		Metadata:         map[string]interface{}{"similarity": 0.9},
	}
	if err := store.CreateEdge(context.Background(), edge); err != nil {
		t.Fatalf("CreateEdge failed: %v", err)
	}
	if edge.ID == "" {
		t.Error("expected an ID to be assigned")
	}
	if edge.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestCreateEdgeRejectsMissingEndpoints(t *testing.T) {
	store := newTestStore(t)
	err := store.CreateEdge(context.Background(), &models.RelationshipEdge{
		UserID: "u1", SourceID: "a", RelationshipType: models.RelationshipRelated,
	})
	if err == nil {
		t.Fatal("expected error for missing target")
	}
}

func TestCreateEdgeAllowsDuplicates(t *testing.T) {
	store := newTestStore(t)
	mustEdge(t, store, "u1", "a", "b", models.RelationshipSimilarTo)
	mustEdge(t, store, "u1", "a", "b", models.RelationshipSimilarTo)

	edges, err := store.ListEdges(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListEdges failed: %v", err)
	}
	if len(edges) != 2 {
		t.Errorf("expected 2 edges, got %d", len(edges))
	}
}

func TestFindRelatedSingleHop(t *testing.T) {
	store := newTestStore(t)
	mustEdge(t, store, "u1", "a", "b", models.RelationshipSimilarTo)
	mustEdge(t, store, "u1", "a", "c", models.RelationshipRelated)
	mustEdge(t, store, "u1", "b", "d", models.RelationshipSimilarTo)

	edges, err := store.FindRelated(context.Background(), "u1", "a", 1, nil)
	if err != nil {
		t.Fatalf("FindRelated failed: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges at depth 1, got %d", len(edges))
	}
	for _, e := range edges {
		if e.SourceID != "a" {
			t.Errorf("depth 1 should only cross edges from a, got %s->%s", e.SourceID, e.TargetID)
		}
	}
}

func TestFindRelatedMultiHop(t *testing.T) {
	store := newTestStore(t)
	mustEdge(t, store, "u1", "a", "b", models.RelationshipSimilarTo)
	mustEdge(t, store, "u1", "b", "c", models.RelationshipSimilarTo)
	mustEdge(t, store, "u1", "c", "d", models.RelationshipSimilarTo)

	edges, err := store.FindRelated(context.Background(), "u1", "a", 2, nil)
	if err != nil {
		t.Fatalf("FindRelated failed: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges at depth 2, got %d", len(edges))
	}
}

func TestFindRelatedHandlesCycles(t *testing.T) {
	store := newTestStore(t)
	mustEdge(t, store, "u1", "a", "b", models.RelationshipSimilarTo)
	mustEdge(t, store, "u1", "b", "a", models.RelationshipSimilarTo)

	edges, err := store.FindRelated(context.Background(), "u1", "a", 10, nil)
	if err != nil {
		t.Fatalf("FindRelated failed: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges in a 2-cycle, got %d", len(edges))
	}
}

func TestFindRelatedFiltersByType(t *testing.T) {
	store := newTestStore(t)
	mustEdge(t, store, "u1", "a", "b", models.RelationshipSimilarTo)
	mustEdge(t, store, "u1", "a", "c", models.RelationshipReferences)

	edges, err := store.FindRelated(context.Background(), "u1", "a", 1, []string{models.RelationshipReferences})
	if err != nil {
		t.Fatalf("FindRelated failed: %v", err)
	}
	if len(edges) != 1 || edges[0].TargetID != "c" {
		t.Errorf("expected only the references edge, got %+v", edges)
	}
}

func TestFindRelatedIsolatesUsers(t *testing.T) {
	store := newTestStore(t)
	mustEdge(t, store, "u1", "a", "b", models.RelationshipSimilarTo)
	mustEdge(t, store, "u2", "a", "c", models.RelationshipSimilarTo)

	edges, err := store.FindRelated(context.Background(), "u2", "a", 1, nil)
	if err != nil {
		t.Fatalf("FindRelated failed: %v", err)
	}
	if len(edges) != 1 || edges[0].TargetID != "c" {
		t.Errorf("expected only u2's edge, got %+v", edges)
	}
}

func TestDeleteForContent(t *testing.T) {
	store := newTestStore(t)
	mustEdge(t, store, "u1", "a", "b", models.RelationshipSimilarTo)
	mustEdge(t, store, "u1", "c", "a", models.RelationshipRelated)
	mustEdge(t, store, "u1", "b", "c", models.RelationshipRelated)

	if err := store.DeleteForContent(context.Background(), "u1", "a"); err != nil {
		t.Fatalf("DeleteForContent failed: %v", err)
	}
	edges, err := store.ListEdges(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListEdges failed: %v", err)
	}
	if len(edges) != 1 || edges[0].SourceID != "b" {
		t.Errorf("expected only b->c to survive, got %+v", edges)
	}
}

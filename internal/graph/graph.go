// Package graph records directed, typed relationships between content items
// and answers shallow traversal queries over them.
package graph

import (
	"context"

	"github.com/mindpalace/sensei/internal/models"
)

// EdgeStore defines relationship persistence and traversal.
//
// CreateEdge is not idempotent: creating the same edge twice stores two rows.
// FindRelated walks the edge set breadth-first up to maxDepth hops from
// contentID; maxDepth 1 reproduces a plain single-hop lookup.
type EdgeStore interface {
	CreateEdge(ctx context.Context, edge *models.RelationshipEdge) error
	FindRelated(ctx context.Context, userID, contentID string, maxDepth int, types []string) ([]*models.RelationshipEdge, error)
	ListEdges(ctx context.Context, userID string) ([]*models.RelationshipEdge, error)
	DeleteForContent(ctx context.Context, userID, contentID string) error
	Close() error
}

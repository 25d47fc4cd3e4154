// Package vectorstore provides per-user vector persistence and similarity search.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/mindpalace/sensei/internal/models"
)

// ErrDimension is returned when an inserted or queried vector does not match
// the store's fixed dimension. Nothing is persisted on failure.
var ErrDimension = errors.New("vector dimension mismatch")

// DimensionError wraps ErrDimension with the observed and expected lengths.
func DimensionError(got, want int) error {
	return fmt.Errorf("%w: got %d, expected %d", ErrDimension, got, want)
}

// Store defines vector persistence and nearest-neighbor search. All
// operations are scoped to a single user; a search can never return another
// user's records. Similarity metric: cosine (vectors are normalized on write,
// so the stored inner product equals cosine similarity).
type Store interface {
	Insert(ctx context.Context, rec *models.VectorRecord) error
	Search(ctx context.Context, userID string, query []float32, limit int, contentTypes []string) ([]*models.VectorResult, error)
	DeleteByContentID(ctx context.Context, userID, contentID string) error
	DeleteByContentPrefix(ctx context.Context, userID, prefix string) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

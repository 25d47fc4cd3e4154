// Package embedding provides text embedding via a hosted provider, with caching.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when the text to embed is empty or whitespace.
var ErrEmptyInput = errors.New("text must be a non-empty string")

// ErrDimension is returned when the provider produces a vector whose length
// does not match the configured dimension.
var ErrDimension = errors.New("embedding dimension mismatch")

// DimensionError wraps ErrDimension with the observed and expected lengths.
func DimensionError(got, want int) error {
	return fmt.Errorf("%w: got %d, expected %d", ErrDimension, got, want)
}

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

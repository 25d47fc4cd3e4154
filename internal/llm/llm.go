// Package llm wraps chat completion calls used for reasoning, response
// generation, and emotional analysis.
package llm

import (
	"context"

	"github.com/mindpalace/sensei/internal/models"
)

// Generator produces chat completions. Generate returns the full response;
// GenerateStream delivers the response incrementally through onDelta and
// returns the accumulated text. Both honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, system string, messages []models.ChatMessage) (string, error)
	GenerateStream(ctx context.Context, system string, messages []models.ChatMessage, onDelta func(string)) (string, error)
}

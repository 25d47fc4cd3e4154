package embedding

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder generates embeddings through the OpenAI embeddings API.
// Every call is bounded by the configured timeout; no retries are attempted,
// callers decide whether transient failures are worth retrying.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
	cache      *EmbeddingCache
}

// NewOpenAIEmbedder creates an embedder for the given model and dimension.
// The API key is read from the OPENAI_API_KEY environment variable.
func NewOpenAIEmbedder(model string, dimensions, cacheSize int, timeout time.Duration) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	e := &OpenAIEmbedder{
		client:     openai.NewClient(apiKey),
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,
		timeout:    timeout,
	}
	if cacheSize > 0 {
		e.cache = NewEmbeddingCache(cacheSize)
	}
	return e, nil
}

// Embed returns the embedding for text. Fails with ErrEmptyInput for blank
// input and ErrDimension when the provider returns the wrong vector length.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}
	if e.cache != nil {
		if emb, ok := e.cache.Get(trimmed); ok {
			return emb, nil
		}
	}
	embs, err := e.request(ctx, []string{trimmed})
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(trimmed, embs[0])
	}
	return embs[0], nil
}

// EmbedBatch embeds each text with a single provider call. Any blank text in
// the batch fails the whole call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	trimmed := make([]string, len(texts))
	for i, t := range texts {
		trimmed[i] = strings.TrimSpace(t)
		if trimmed[i] == "" {
			return nil, ErrEmptyInput
		}
	}
	return e.request(ctx, trimmed)
}

func (e *OpenAIEmbedder) request(ctx context.Context, input []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      input,
		Model:      e.model,
		Dimensions: e.dimensions,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("embedding call timed out after %s: %w", e.timeout, err)
		}
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("embedding response has %d entries, expected %d", len(resp.Data), len(input))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != e.dimensions {
			return nil, DimensionError(len(d.Embedding), e.dimensions)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

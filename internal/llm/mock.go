package llm

import (
	"context"
	"strings"

	"github.com/mindpalace/sensei/internal/models"
)

// MockGenerator returns scripted responses, for tests and offline runs.
// Responses are consumed in order; when exhausted, the last one repeats.
type MockGenerator struct {
	Responses []string
	Err       error

	calls int
	// Requests records every (system, messages) pair for assertions.
	Requests []MockRequest
}

// MockRequest captures one Generate call.
type MockRequest struct {
	System   string
	Messages []models.ChatMessage
}

func (m *MockGenerator) next(system string, messages []models.ChatMessage) (string, error) {
	m.Requests = append(m.Requests, MockRequest{System: system, Messages: messages})
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	i := m.calls
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	m.calls++
	return m.Responses[i], nil
}

// Generate returns the next scripted response.
func (m *MockGenerator) Generate(ctx context.Context, system string, messages []models.ChatMessage) (string, error) {
	return m.next(system, messages)
}

// GenerateStream delivers the next scripted response word by word.
func (m *MockGenerator) GenerateStream(ctx context.Context, system string, messages []models.ChatMessage, onDelta func(string)) (string, error) {
	resp, err := m.next(system, messages)
	if err != nil {
		return "", err
	}
	if onDelta != nil {
		words := strings.SplitAfter(resp, " ")
		for _, w := range words {
			if w != "" {
				onDelta(w)
			}
		}
	}
	return resp, nil
}

package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mindpalace/sensei/internal/models"
)

func TestMockGeneratorSequence(t *testing.T) {
	m := &MockGenerator{Responses: []string{"first", "second"}}
	ctx := context.Background()
	msgs := []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}}

	got, err := m.Generate(ctx, "sys", msgs)
	if err != nil || got != "first" {
		t.Fatalf("got %q, %v", got, err)
	}
	got, _ = m.Generate(ctx, "sys", msgs)
	if got != "second" {
		t.Errorf("got %q", got)
	}
	// Exhausted responses repeat the last one.
	got, _ = m.Generate(ctx, "sys", msgs)
	if got != "second" {
		t.Errorf("got %q", got)
	}
	if len(m.Requests) != 3 {
		t.Errorf("expected 3 recorded requests, got %d", len(m.Requests))
	}
}

func TestMockGeneratorStreamAccumulates(t *testing.T) {
	m := &MockGenerator{Responses: []string{"hello streaming world"}}
	var deltas []string
	got, err := m.GenerateStream(context.Background(), "", nil, func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if got != "hello streaming world" {
		t.Errorf("got %q", got)
	}
	if strings.Join(deltas, "") != got {
		t.Errorf("deltas %q do not reassemble to %q", deltas, got)
	}
	if len(deltas) < 2 {
		t.Errorf("expected multiple deltas, got %d", len(deltas))
	}
}

func TestMockGeneratorError(t *testing.T) {
	wantErr := errors.New("provider down")
	m := &MockGenerator{Err: wantErr}
	_, err := m.Generate(context.Background(), "", nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestNewOpenAIGeneratorRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewOpenAIGenerator("gpt-4o-mini", 0.7, 2048, 0); err == nil {
		t.Fatal("expected error without API key")
	}
}

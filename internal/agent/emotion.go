package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindpalace/sensei/internal/llm"
	"github.com/mindpalace/sensei/internal/models"
)

// Classifier determines the emotional tone of a conversation.
type Classifier interface {
	Analyze(ctx context.Context, messages []models.ChatMessage) (models.EmotionalState, error)
}

const emotionPrompt = `Analyze the emotional state of the student in this conversation.
Respond with the mood (positive, negative, or neutral) and your confidence (high, medium, or low).`

// LLMClassifier asks the chat model to judge mood and confidence, then
// reads the answer with a substring heuristic. The heuristic is crude but
// tolerant of free-form model output; swap the Classifier to change it.
type LLMClassifier struct {
	generator llm.Generator
}

// NewLLMClassifier returns a classifier backed by the given generator.
func NewLLMClassifier(generator llm.Generator) *LLMClassifier {
	return &LLMClassifier{generator: generator}
}

// Analyze runs one completion over the conversation and classifies the
// response text.
func (c *LLMClassifier) Analyze(ctx context.Context, messages []models.ChatMessage) (models.EmotionalState, error) {
	resp, err := c.generator.Generate(ctx, emotionPrompt, messages)
	if err != nil {
		return models.EmotionalState{}, fmt.Errorf("emotion analysis failed: %w", err)
	}
	return classifyText(resp), nil
}

// classifyText maps free-form classifier output to an EmotionalState.
// Case-insensitive substring checks: "positive"/"negative" set the mood
// (neutral otherwise), "high"/"low" set the confidence (medium otherwise).
func classifyText(text string) models.EmotionalState {
	lower := strings.ToLower(text)
	state := models.EmotionalState{Mood: models.MoodNeutral, Confidence: models.ConfidenceMedium}
	if strings.Contains(lower, "positive") {
		state.Mood = models.MoodPositive
	} else if strings.Contains(lower, "negative") {
		state.Mood = models.MoodNegative
	}
	if strings.Contains(lower, "high") {
		state.Confidence = models.ConfidenceHigh
	} else if strings.Contains(lower, "low") {
		state.Confidence = models.ConfidenceLow
	}
	return state
}

// StaticClassifier returns a fixed state, for tests and offline runs.
type StaticClassifier struct {
	State models.EmotionalState
	Err   error
}

// Analyze returns the configured state.
func (c *StaticClassifier) Analyze(ctx context.Context, messages []models.ChatMessage) (models.EmotionalState, error) {
	if c.Err != nil {
		return models.EmotionalState{}, c.Err
	}
	return c.State, nil
}

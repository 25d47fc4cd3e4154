package models

import "time"

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one message in a conversation, append-only.
type ChatMessage struct {
	ID        string    `json:"id,omitempty"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Mood classifies the emotional tone of a conversation.
type Mood string

const (
	MoodPositive Mood = "positive"
	MoodNegative Mood = "negative"
	MoodNeutral  Mood = "neutral"
)

// Confidence grades how certain the emotion classification is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// EmotionalState is recomputed per turn and embedded in memory metadata;
// it is never persisted on its own.
type EmotionalState struct {
	Mood       Mood       `json:"mood"`
	Confidence Confidence `json:"confidence"`
}

// ReActStep is one thought/action/observation reasoning pass.
type ReActStep struct {
	Thought     string `json:"thought"`
	Action      string `json:"action"`
	Observation string `json:"observation"`
}

// MemoryEntry is a recorded chat exchange, embedded from its last message.
type MemoryEntry struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Messages  []ChatMessage          `json:"messages"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp time.Time              `json:"timestamp"`
}

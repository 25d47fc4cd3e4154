// Package models defines core data structures for content items, vectors,
// relationships, memories, and chat messages.
package models

import "time"

// ContentKind identifies what a content item is.
type ContentKind string

const (
	ContentKindDocument ContentKind = "document"
	ContentKindNote     ContentKind = "note"
	ContentKindURL      ContentKind = "url"
)

// ContentItem represents a stored knowledge-base item owned by one user.
// Re-uploading a document with the same title increments Version.
type ContentItem struct {
	ID        string                 `json:"id" db:"id"`
	UserID    string                 `json:"user_id" db:"user_id"`
	Kind      ContentKind            `json:"kind" db:"kind"`
	Title     string                 `json:"title" db:"title"`
	Content   string                 `json:"content" db:"content"`
	FileType  string                 `json:"file_type,omitempty" db:"file_type"`
	Version   int                    `json:"version" db:"version"`
	Metadata  map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// User is a registered account.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserProfile holds personalization attributes used by the tutor agent.
// Missing profiles are not an error; fields fall back to the defaults.
type UserProfile struct {
	UserID        string   `json:"user_id" db:"user_id"`
	LearningStyle string   `json:"learning_style" db:"learning_style"`
	Difficulty    string   `json:"difficulty" db:"difficulty"`
	Interests     []string `json:"interests" db:"interests"`
}

const (
	DefaultLearningStyle = "general"
	DefaultDifficulty    = "moderate"
)

// ApplyDefaults fills empty personalization fields.
func (p *UserProfile) ApplyDefaults() {
	if p.LearningStyle == "" {
		p.LearningStyle = DefaultLearningStyle
	}
	if p.Difficulty == "" {
		p.Difficulty = DefaultDifficulty
	}
}

// Package storage defines the relational persistence interface for users,
// profiles, content items, and chat history.
package storage

import (
	"context"

	"github.com/mindpalace/sensei/internal/models"
)

// Storage defines relational persistence operations.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)

	// Profile operations; GetProfile returns ErrNotFound when no profile
	// exists (callers treat that as defaults, not a failure).
	UpsertProfile(ctx context.Context, profile *models.UserProfile) error
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)

	// Content item operations
	CreateContentItem(ctx context.Context, item *models.ContentItem) error
	GetContentItem(ctx context.Context, userID, id string) (*models.ContentItem, error)
	FindContentItemByTitle(ctx context.Context, userID string, kind models.ContentKind, title string) (*models.ContentItem, error)
	UpdateContentItem(ctx context.Context, item *models.ContentItem) error
	DeleteContentItem(ctx context.Context, userID, id string) error
	ListContentItems(ctx context.Context, userID string) ([]*models.ContentItem, error)

	// Chat history
	AppendChatMessages(ctx context.Context, userID string, messages []models.ChatMessage) error
	ListChatMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error)

	// Stats
	CountContentItems(ctx context.Context) (int64, error)

	Close() error
}

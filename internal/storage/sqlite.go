// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mindpalace/sensei/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE,
		name TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_profiles (
		user_id TEXT PRIMARY KEY,
		learning_style TEXT,
		difficulty TEXT,
		interests TEXT,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS content_items (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT,
		content TEXT NOT NULL,
		file_type TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_content_user ON content_items(user_id);
	CREATE INDEX IF NOT EXISTS idx_content_user_kind_title ON content_items(user_id, kind, title);

	CREATE TABLE IF NOT EXISTS chats (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chats_user_created ON chats(user_id, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateUser inserts a user.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.CreatedAt,
	)
	return err
}

// GetUser returns a user by ID.
func (s *SQLiteStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertProfile creates or replaces a user's personalization profile.
func (s *SQLiteStorage) UpsertProfile(ctx context.Context, profile *models.UserProfile) error {
	interestsJSON, err := json.Marshal(profile.Interests)
	if err != nil {
		return fmt.Errorf("failed to marshal interests: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, learning_style, difficulty, interests)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   learning_style = excluded.learning_style,
		   difficulty = excluded.difficulty,
		   interests = excluded.interests`,
		profile.UserID, profile.LearningStyle, profile.Difficulty, string(interestsJSON),
	)
	return err
}

// GetProfile returns a user's profile, or ErrNotFound when none exists.
func (s *SQLiteStorage) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	var interestsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, learning_style, difficulty, interests FROM user_profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &p.LearningStyle, &p.Difficulty, &interestsJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if interestsJSON != "" {
		_ = json.Unmarshal([]byte(interestsJSON), &p.Interests)
	}
	return &p, nil
}

// CreateContentItem inserts a content item.
func (s *SQLiteStorage) CreateContentItem(ctx context.Context, item *models.ContentItem) error {
	metadataJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Version == 0 {
		item.Version = 1
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO content_items (id, user_id, kind, title, content, file_type, version, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, string(item.Kind), item.Title, item.Content,
		item.FileType, item.Version, string(metadataJSON), item.CreatedAt, item.UpdatedAt,
	)
	return err
}

func scanContentItem(scan func(...interface{}) error) (*models.ContentItem, error) {
	var item models.ContentItem
	var kind, metadataJSON string
	if err := scan(&item.ID, &item.UserID, &kind, &item.Title, &item.Content,
		&item.FileType, &item.Version, &metadataJSON, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Kind = models.ContentKind(kind)
	if metadataJSON != "" {
		_ = json.Unmarshal([]byte(metadataJSON), &item.Metadata)
	}
	return &item, nil
}

const contentItemColumns = `id, user_id, kind, title, content, file_type, version, metadata, created_at, updated_at`

// GetContentItem returns one of a user's content items by ID.
func (s *SQLiteStorage) GetContentItem(ctx context.Context, userID, id string) (*models.ContentItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contentItemColumns+` FROM content_items WHERE user_id = ? AND id = ?`, userID, id)
	item, err := scanContentItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("content item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// FindContentItemByTitle returns a user's item matching kind and title, used
// to detect re-uploads. Returns ErrNotFound when absent.
func (s *SQLiteStorage) FindContentItemByTitle(ctx context.Context, userID string, kind models.ContentKind, title string) (*models.ContentItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contentItemColumns+` FROM content_items WHERE user_id = ? AND kind = ? AND title = ?`,
		userID, string(kind), title)
	item, err := scanContentItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("content item %q: %w", title, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateContentItem updates an existing item (content, version, metadata).
func (s *SQLiteStorage) UpdateContentItem(ctx context.Context, item *models.ContentItem) error {
	metadataJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	item.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx,
		`UPDATE content_items SET title = ?, content = ?, file_type = ?, version = ?, metadata = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		item.Title, item.Content, item.FileType, item.Version, string(metadataJSON),
		item.UpdatedAt, item.UserID, item.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("content item %s: %w", item.ID, ErrNotFound)
	}
	return nil
}

// DeleteContentItem removes one of a user's content items. Returns
// ErrNotFound when the item does not exist.
func (s *SQLiteStorage) DeleteContentItem(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM content_items WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("content item %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListContentItems returns all of a user's content items, newest first.
func (s *SQLiteStorage) ListContentItems(ctx context.Context, userID string) ([]*models.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentItemColumns+` FROM content_items WHERE user_id = ? ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// AppendChatMessages records chat turns in a transaction.
func (s *SQLiteStorage) AppendChatMessages(ctx context.Context, userID string, messages []models.ChatMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chats (id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, m := range messages {
		id := m.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx, id, userID, string(m.Role), m.Content, createdAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListChatMessages returns a user's most recent chat messages in
// chronological order.
func (s *SQLiteStorage) ListChatMessages(ctx context.Context, userID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM (
		   SELECT id, role, content, created_at FROM chats WHERE user_id = ? ORDER BY created_at DESC LIMIT ?
		 ) ORDER BY created_at ASC`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var role string
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = models.ChatRole(role)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CountContentItems returns the total number of content items.
func (s *SQLiteStorage) CountContentItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_items`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

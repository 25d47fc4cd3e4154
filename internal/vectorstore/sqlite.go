package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mindpalace/sensei/internal/models"
)

// SQLiteStore implements Store using SQLite. Candidate rows are filtered by
// user and content type in SQL; similarity is computed in-process by
// brute-force inner product over the filtered set.
type SQLiteStore struct {
	db         *sql.DB
	dimensions int
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the vectors schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string, dimensions int) (*SQLiteStore, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
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
	schema := `
	CREATE TABLE IF NOT EXISTS vectors (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		content_type TEXT NOT NULL,
		content_id TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_vectors_user_type ON vectors(user_id, content_type);
	CREATE INDEX IF NOT EXISTS idx_vectors_user_content ON vectors(user_id, content_id);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, dimensions: dimensions}, nil
}

// Insert stores a vector record. The embedding is normalized before writing
// so searches can rank by inner product. Fails with ErrDimension before any
// write when the embedding length is wrong.
func (s *SQLiteStore) Insert(ctx context.Context, rec *models.VectorRecord) error {
	if len(rec.Embedding) != s.dimensions {
		return DimensionError(len(rec.Embedding), s.dimensions)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vectors (id, user_id, content_type, content_id, embedding, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.ContentType, rec.ContentID,
		encodeVector(Normalize(rec.Embedding)), string(metadataJSON), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert vector: %w", err)
	}
	return nil
}

// Search returns up to limit records nearest to query, restricted to userID
// and contentTypes (all types when empty). An empty result is valid, not an
// error.
func (s *SQLiteStore) Search(ctx context.Context, userID string, query []float32, limit int, contentTypes []string) ([]*models.VectorResult, error) {
	if len(query) != s.dimensions {
		return nil, DimensionError(len(query), s.dimensions)
	}
	if limit <= 0 {
		limit = 5
	}
	q := `SELECT id, user_id, content_type, content_id, embedding, metadata FROM vectors WHERE user_id = ?`
	args := []interface{}{userID}
	if len(contentTypes) > 0 {
		q += ` AND content_type IN (?` + strings.Repeat(",?", len(contentTypes)-1) + `)`
		for _, ct := range contentTypes {
			args = append(args, ct)
		}
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	normalized := Normalize(query)
	var results []*models.VectorResult
	for rows.Next() {
		var r models.VectorResult
		var blob []byte
		var metadataJSON string
		if err := rows.Scan(&r.ID, &r.UserID, &r.ContentType, &r.ContentID, &blob, &metadataJSON); err != nil {
			return nil, err
		}
		vec := decodeVector(blob)
		if len(vec) != s.dimensions {
			continue
		}
		r.Score = InnerProduct(normalized, vec)
		if metadataJSON != "" {
			_ = json.Unmarshal([]byte(metadataJSON), &r.Metadata)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteByContentID removes all vectors for one content item of one user.
func (s *SQLiteStore) DeleteByContentID(ctx context.Context, userID, contentID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM vectors WHERE user_id = ? AND content_id = ?`, userID, contentID)
	return err
}

// DeleteByContentPrefix removes vectors whose content_id starts with prefix,
// used to drop all chunk vectors of a deleted document in one pass.
func (s *SQLiteStore) DeleteByContentPrefix(ctx context.Context, userID, prefix string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM vectors WHERE user_id = ? AND content_id LIKE ?`, userID, prefix+"%")
	return err
}

// Count returns the total number of stored vectors.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

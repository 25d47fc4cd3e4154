package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mindpalace/sensei/internal/models"
)

// SQLiteEdgeStore implements EdgeStore on a SQLite edges table. Traversal
// runs one SQL query per BFS frontier, so the number of round trips is
// bounded by maxDepth rather than the edge count.
type SQLiteEdgeStore struct {
	db *sql.DB
}

// NewSQLiteEdgeStore opens or creates a SQLite database at dbPath and
// initializes the edges schema.
func NewSQLiteEdgeStore(dbPath string) (*SQLiteEdgeStore, error) {
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
	CREATE TABLE IF NOT EXISTS edges (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		relationship_type TEXT NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_edges_user_source ON edges(user_id, source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_user_target ON edges(user_id, target_id);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteEdgeStore{db: db}, nil
}

// CreateEdge stores a relationship. An ID is assigned when missing. No
// uniqueness is enforced across (source, target, type).
func (s *SQLiteEdgeStore) CreateEdge(ctx context.Context, edge *models.RelationshipEdge) error {
	if edge.SourceID == "" || edge.TargetID == "" {
		return fmt.Errorf("edge requires source and target")
	}
	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now()
	}
	metadataJSON, err := json.Marshal(edge.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO edges (id, user_id, source_id, target_id, relationship_type, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		edge.ID, edge.UserID, edge.SourceID, edge.TargetID, edge.RelationshipType,
		string(metadataJSON), edge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert edge: %w", err)
	}
	return nil
}

// FindRelated walks outgoing edges breadth-first from contentID, up to
// maxDepth hops, and returns every edge crossed. Edges back into already
// visited nodes are included once; the walk never revisits a node. An
// empty or negative maxDepth is treated as 1.
func (s *SQLiteEdgeStore) FindRelated(ctx context.Context, userID, contentID string, maxDepth int, types []string) ([]*models.RelationshipEdge, error) {
	if maxDepth <= 0 {
		maxDepth = 1
	}
	visited := map[string]bool{contentID: true}
	frontier := []string{contentID}
	seen := make(map[string]bool)
	var out []*models.RelationshipEdge

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		edges, err := s.edgesFrom(ctx, userID, frontier, types)
		if err != nil {
			return nil, err
		}
		var next []string
		for _, e := range edges {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
			if !visited[e.TargetID] {
				visited[e.TargetID] = true
				next = append(next, e.TargetID)
			}
		}
		frontier = next
	}
	return out, nil
}

func (s *SQLiteEdgeStore) edgesFrom(ctx context.Context, userID string, sources, types []string) ([]*models.RelationshipEdge, error) {
	q := `SELECT id, user_id, source_id, target_id, relationship_type, metadata, created_at
	      FROM edges WHERE user_id = ? AND source_id IN (?` + strings.Repeat(",?", len(sources)-1) + `)`
	args := []interface{}{userID}
	for _, src := range sources {
		args = append(args, src)
	}
	if len(types) > 0 {
		q += ` AND relationship_type IN (?` + strings.Repeat(",?", len(types)-1) + `)`
		for _, t := range types {
			args = append(args, t)
		}
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// ListEdges returns every edge belonging to userID, oldest first.
func (s *SQLiteEdgeStore) ListEdges(ctx context.Context, userID string) ([]*models.RelationshipEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, source_id, target_id, relationship_type, metadata, created_at
		 FROM edges WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// DeleteForContent removes every edge touching contentID as source or target.
func (s *SQLiteEdgeStore) DeleteForContent(ctx context.Context, userID, contentID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM edges WHERE user_id = ? AND (source_id = ? OR target_id = ?)`,
		userID, contentID, contentID)
	return err
}

// Close closes the database connection.
func (s *SQLiteEdgeStore) Close() error {
	return s.db.Close()
}

func scanEdges(rows *sql.Rows) ([]*models.RelationshipEdge, error) {
	var out []*models.RelationshipEdge
	for rows.Next() {
		var e models.RelationshipEdge
		var metadataJSON string
		if err := rows.Scan(&e.ID, &e.UserID, &e.SourceID, &e.TargetID, &e.RelationshipType, &metadataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		if metadataJSON != "" {
			_ = json.Unmarshal([]byte(metadataJSON), &e.Metadata)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Package memory stores and recalls chat exchanges as embedded vectors so
// past conversations can be surfaced by semantic similarity.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindpalace/sensei/internal/embedding"
	"github.com/mindpalace/sensei/internal/models"
	"github.com/mindpalace/sensei/internal/vectorstore"
)

// ErrNoMessages is returned when a memory has nothing to embed.
var ErrNoMessages = errors.New("memory requires at least one message")

// Service persists memories in the vector store. A memory is an embedded
// record of the last message of an exchange, with the full message list and
// caller metadata serialized into the vector metadata.
type Service struct {
	embedder embedding.Embedder
	vectors  vectorstore.Store
	logger   *zap.Logger
}

// NewService returns a memory service over the given embedder and store.
func NewService(embedder embedding.Embedder, vectors vectorstore.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embedder: embedder, vectors: vectors, logger: logger}
}

// Add records an exchange. The last message's content is embedded as the
// retrieval key. Returns the stored memory ID.
func (s *Service) Add(ctx context.Context, userID string, messages []models.ChatMessage, metadata map[string]interface{}) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}
	last := messages[len(messages)-1]
	emb, err := s.embedder.Embed(ctx, last.Content)
	if err != nil {
		return "", fmt.Errorf("failed to embed memory: %w", err)
	}

	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("failed to marshal messages: %w", err)
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	id := uuid.New().String()
	rec := &models.VectorRecord{
		UserID:      userID,
		ContentType: models.VectorTypeMemory,
		ContentID:   id,
		Embedding:   emb,
		Metadata: map[string]interface{}{
			"messages":  string(messagesJSON),
			"metadata":  string(metadataJSON),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	if err := s.vectors.Insert(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to store memory: %w", err)
	}
	return id, nil
}

// Search returns up to limit memories semantically closest to query, newest
// parseable first by similarity. Records whose serialized payload cannot be
// decoded are skipped with a warning rather than failing the search.
func (s *Service) Search(ctx context.Context, userID, query string, limit int) ([]*models.MemoryEntry, error) {
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := s.vectors.Search(ctx, userID, emb, limit, []string{models.VectorTypeMemory})
	if err != nil {
		return nil, fmt.Errorf("memory search failed: %w", err)
	}

	entries := make([]*models.MemoryEntry, 0, len(results))
	for _, r := range results {
		entry, err := decodeEntry(r)
		if err != nil {
			s.logger.Warn("skipping unparseable memory",
				zap.String("memory_id", r.ContentID),
				zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes a stored memory. Deleting an absent ID is a no-op.
func (s *Service) Delete(ctx context.Context, userID, memoryID string) error {
	return s.vectors.DeleteByContentID(ctx, userID, memoryID)
}

func decodeEntry(r *models.VectorResult) (*models.MemoryEntry, error) {
	entry := &models.MemoryEntry{ID: r.ContentID, UserID: r.UserID}

	messagesRaw, ok := r.Metadata["messages"].(string)
	if !ok {
		return nil, fmt.Errorf("messages payload missing")
	}
	if err := json.Unmarshal([]byte(messagesRaw), &entry.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	if metadataRaw, ok := r.Metadata["metadata"].(string); ok && metadataRaw != "" {
		if err := json.Unmarshal([]byte(metadataRaw), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	if ts, ok := r.Metadata["timestamp"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			entry.Timestamp = parsed
		}
	}
	return entry, nil
}

// Package keyword provides a Bleve-backed keyword index over ingested
// content, used alongside vector similarity for hybrid knowledge search.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// IndexDoc is the shape stored in the keyword index. One entry per content
// item, keyed by the item ID.
type IndexDoc struct {
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Result is a keyword search hit.
type Result struct {
	ID    string
	Score float64
}

// BleveIndex wraps a Bleve index scoped per user at query time.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// reused; remove the directory to force a rebuild after a mapping change.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so a query like
	// "bayes" matches the exact word; the English analyzer stems "Bayesian"
	// to "bayesi" and "bayes" to "bay", so they never meet.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("user_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("kind", keywordFieldMapping)
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index adds or replaces the entry for id.
func (b *BleveIndex) Index(ctx context.Context, id string, doc *IndexDoc) error {
	return b.index.Index(id, doc)
}

// Delete removes the entry for id. Deleting an absent id is a no-op.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Search runs a match query restricted to userID and returns up to limit
// hits ordered by relevance.
func (b *BleveIndex) Search(ctx context.Context, userID, query string, limit int) ([]*Result, error) {
	match := bleve.NewMatchQuery(query)
	userQuery := bleve.NewTermQuery(userID)
	userQuery.SetField("user_id")
	conj := bleve.NewConjunctionQuery(match, userQuery)

	req := bleve.NewSearchRequest(conj)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Count returns the number of indexed entries.
func (b *BleveIndex) Count() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

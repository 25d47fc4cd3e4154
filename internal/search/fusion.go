// Package search runs hybrid knowledge search: keyword and semantic
// retrieval fused into one ranked result list.
package search

import (
	"sort"
	"strings"

	"github.com/mindpalace/sensei/internal/keyword"
	"github.com/mindpalace/sensei/internal/models"
)

// FusedResult holds an item ID and its fused keyword/semantic scores.
type FusedResult struct {
	ItemID        string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// normalizeKeywordScores normalizes keyword scores to [0,1] by max.
func normalizeKeywordScores(results []*keyword.Result) map[string]float64 {
	normalized := make(map[string]float64)
	if len(results) == 0 {
		return normalized
	}
	maxScore := results[0].Score
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		}
	}
	return normalized
}

// aggregateSemanticByItem collapses chunk-level hits to their owning item,
// keeping the best chunk score. Chunk content IDs carry the item ID before
// the final underscore; item-level vectors map to themselves.
func aggregateSemanticByItem(results []*models.VectorResult) map[string]float64 {
	byItem := make(map[string]float64)
	for _, r := range results {
		itemID := r.ContentID
		if r.ContentType == models.VectorTypeDocumentChunk {
			if idx := strings.LastIndex(itemID, "_"); idx > 0 {
				itemID = itemID[:idx]
			}
		}
		if s, ok := byItem[itemID]; !ok || r.Score > s {
			byItem[itemID] = r.Score
		}
	}
	return byItem
}

// fuse merges keyword and semantic score maps with weights and returns
// results sorted by fused score.
func fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	scoreMap := make(map[string]*FusedResult)
	for id, score := range keywordScores {
		scoreMap[id] = &FusedResult{ItemID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if r, ok := scoreMap[id]; ok {
			r.SemanticScore = score
		} else {
			scoreMap[id] = &FusedResult{ItemID: id, SemanticScore: score}
		}
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, r := range scoreMap {
		r.Score = keywordWeight*r.KeywordScore + semanticWeight*r.SemanticScore
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

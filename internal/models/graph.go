package models

import "time"

// Vector content types partition the vector store.
const (
	VectorTypeDocument      = "document"
	VectorTypeDocumentChunk = "document_chunk"
	VectorTypeNote          = "note"
	VectorTypeURL           = "url"
	VectorTypeMemory        = "memory"
)

// VectorRecord is one stored embedding, immutable after insert.
type VectorRecord struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	ContentType string                 `json:"content_type"`
	ContentID   string                 `json:"content_id"`
	Embedding   []float32              `json:"-"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// VectorResult is a similarity search hit.
type VectorResult struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	ContentType string                 `json:"content_type"`
	ContentID   string                 `json:"content_id"`
	Score       float64                `json:"score"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// Relationship types created by the system.
const (
	RelationshipSimilarTo  = "similar_to"
	RelationshipRelated    = "related"
	RelationshipReferences = "references"
)

// RelationshipEdge is a directed, typed link between two content items.
// Duplicate edges between the same pair with the same type are allowed.
type RelationshipEdge struct {
	ID               string                 `json:"id"`
	UserID           string                 `json:"user_id"`
	SourceID         string                 `json:"source_id"`
	TargetID         string                 `json:"target_id"`
	RelationshipType string                 `json:"relationship_type"`
	Metadata         map[string]interface{} `json:"metadata"`
	CreatedAt        time.Time              `json:"created_at"`
}

// GraphNode is a content item shaped for the graph endpoint.
type GraphNode struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Label    string                 `json:"label"`
	Metadata map[string]interface{} `json:"metadata"`
}

// GraphEdge is a relationship shaped for the graph endpoint.
type GraphEdge struct {
	Source   string                 `json:"source"`
	Target   string                 `json:"target"`
	Type     string                 `json:"type"`
	Metadata map[string]interface{} `json:"metadata"`
}

// GraphData is the full per-user graph view.
type GraphData struct {
	Nodes         []GraphNode `json:"nodes"`
	Relationships []GraphEdge `json:"relationships"`
}

package model

import (
	"time"
)

// Document represents a document in the knowledge base.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"` // Upload name or URL
	Hash      string    `json:"hash"`   // Content hash for deduplication
	ChunkNum  int       `json:"chunk_num"`
	CreatedAt time.Time `json:"created_at"`
}

// QueryResult represents a knowledge base query result.
type QueryResult struct {
	Answer  string        `json:"answer"`
	Sources []ChunkSource `json:"sources"`
	Cached  bool          `json:"cached,omitempty"`
	// Degraded is true when answer generation was unavailable.
	Degraded bool `json:"degraded,omitempty"`
}

// ChunkSource represents source information for a retrieved chunk.
type ChunkSource struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Content      string  `json:"content"`
	Score        float32 `json:"score"`
}

// Package models defines core data structures for session-scoped document chunks.
package models

import "time"

// Provenance records where a chunk's source document came from.
type Provenance struct {
	SourceURL  string `json:"source_url,omitempty"`
	SourceType string `json:"source_type,omitempty"`
	PDFURL     string `json:"pdf_url,omitempty"`
}

// Chunk represents one stored fragment of an ingested document. The ID is
// shared with the chunk's entry in the namespace's vector index.
type Chunk struct {
	ID          int64      `json:"id"`
	SessionID   string     `json:"session_id"`
	DocKey      string     `json:"doc_key"`
	ContentHash string     `json:"content_hash"`
	ChunkIndex  int        `json:"chunk_index"`
	TotalChunks int        `json:"total_chunks"`
	Content     string     `json:"content"`
	Provenance  Provenance `json:"provenance"`
	Embedding   []float32  `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
}

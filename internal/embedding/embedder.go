// Package embedding defines the embedding-computation boundary: the store
// never computes embeddings itself, it only consumes fixed-width vectors
// produced by an Embedder.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations must return
// vectors of exactly Dimensions() width.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Package ingest coordinates chunking, embedding, and session-scoped storage
// of ingested documents, and resolves retrieval matches back to chunk content.
// Superseding a changed document is handled here, at the caller layer: the
// store itself never auto-deletes a prior chunk set.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/policyradar/policyradar/internal/chunker"
	"github.com/policyradar/policyradar/internal/embedding"
	"github.com/policyradar/policyradar/internal/models"
	"github.com/policyradar/policyradar/internal/ragstore"
	"github.com/policyradar/policyradar/pkg/utils"
)

const defaultBatchSize = 32

// Ingestor writes documents into one embedding namespace and retrieves
// session-scoped supporting chunks for questions.
type Ingestor struct {
	store     *ragstore.Store
	embedder  embedding.Embedder
	chunker   *chunker.Chunker
	namespace string
	batchSize int
	logger    *zap.Logger // optional; when set, logs debug events
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(g *Ingestor) { g.logger = l }
}

// WithBatchSize sets how many chunks are embedded per provider call.
func WithBatchSize(n int) Option {
	return func(g *Ingestor) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// New creates an Ingestor bound to one namespace. The namespace is provisioned
// on first insert with the embedder's width.
func New(store *ragstore.Store, embedder embedding.Embedder, namespace string, ck *chunker.Chunker, opts ...Option) *Ingestor {
	g := &Ingestor{
		store:     store,
		embedder:  embedder,
		chunker:   ck,
		namespace: namespace,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddDocument chunks, embeds, and stores a document for a session, returning
// the number of chunks written. If this exact document version is already
// indexed for the session it is a no-op returning 0. A changed version
// supersedes the prior chunk set: the old set is deleted before the new one
// is inserted. Blank input is ignored.
func (g *Ingestor) AddDocument(ctx context.Context, sessionID, docKey, text string, prov models.Provenance) (int, error) {
	if sessionID == "" || docKey == "" {
		return 0, nil
	}
	chunks := g.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, nil
	}
	if max := g.chunker.MaxChunks(); max > 0 && len(chunks) >= max && g.logger != nil {
		g.logger.Warn("chunk limit reached, remaining text not indexed",
			zap.String("doc_key", docKey), zap.Int("max_chunks", max))
	}

	hash := chunker.ContentHash(text)
	exists, err := g.store.Exists(ctx, g.namespace, sessionID, docKey, hash)
	if err != nil {
		return 0, err
	}
	if exists {
		if g.logger != nil {
			g.logger.Debug("document version already indexed",
				zap.String("session_id", sessionID), zap.String("doc_key", docKey))
		}
		return 0, nil
	}

	embeddings := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += g.batchSize {
		end := start + g.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := g.embedder.EmbedBatch(ctx, chunks[start:end])
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunks: %w", err)
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	// Remove any prior version's chunk set before inserting the new one.
	if _, err := g.store.DeleteDocument(ctx, g.namespace, sessionID, docKey); err != nil {
		return 0, err
	}

	for i, content := range chunks {
		_, err := g.store.Insert(ctx, g.namespace, &models.Chunk{
			SessionID:   sessionID,
			DocKey:      docKey,
			ContentHash: hash,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			Content:     content,
			Provenance:  prov,
			Embedding:   embeddings[i],
		})
		if err != nil {
			return 0, fmt.Errorf("failed to store chunk %d of %q: %w", i, docKey, err)
		}
	}

	if g.logger != nil {
		g.logger.Debug("document indexed",
			zap.String("session_id", sessionID), zap.String("doc_key", docKey),
			zap.Int("chunks", len(chunks)))
	}
	return len(chunks), nil
}

// RetrievedChunk is a retrieval hit resolved to its stored content and
// provenance. Score is 1 - cosine distance; higher is more similar.
type RetrievedChunk struct {
	Chunk    *models.Chunk `json:"chunk"`
	Distance float64       `json:"distance"`
	Score    float64       `json:"score"`
}

// Retrieve embeds the question and returns up to topK of the session's
// chunks ranked by ascending distance. Blank input yields no results.
func (g *Ingestor) Retrieve(ctx context.Context, sessionID, question string, topK int) ([]RetrievedChunk, error) {
	if sessionID == "" || question == "" {
		return nil, nil
	}
	query, err := g.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	matches, err := g.store.Search(ctx, g.namespace, sessionID, query, topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ChunkID
	}
	chunks, err := g.store.ReadByIDs(ctx, g.namespace, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	results := make([]RetrievedChunk, 0, len(matches))
	for _, m := range matches {
		c, ok := byID[m.ChunkID]
		if !ok {
			continue
		}
		results = append(results, RetrievedChunk{Chunk: c, Distance: m.Distance, Score: 1 - m.Distance})
	}
	if g.logger != nil {
		g.logger.Debug("retrieval complete",
			zap.String("session_id", sessionID),
			zap.String("question", utils.Truncate(question, 120)),
			zap.Int("hits", len(results)))
	}
	return results, nil
}

// ClearSession removes every chunk the session owns in this namespace.
// Sessions are owned by the chat subsystem; teardown must call this explicitly.
func (g *Ingestor) ClearSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	n, err := g.store.DeleteSession(ctx, g.namespace, sessionID)
	if err != nil {
		return err
	}
	if g.logger != nil {
		g.logger.Debug("session memory cleared",
			zap.String("session_id", sessionID), zap.Int64("chunks", n))
	}
	return nil
}

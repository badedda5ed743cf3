// Package policyradar assembles the research memory backend from
// configuration: the shared SQLite handle, the chunk/vector store, the
// chunker, and the ingestion pipeline around a caller-supplied embedder.
// Transport and chat orchestration live outside this module and consume
// the assembled Backend.
package policyradar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/policyradar/policyradar/internal/chunker"
	"github.com/policyradar/policyradar/internal/config"
	"github.com/policyradar/policyradar/internal/embedding"
	"github.com/policyradar/policyradar/internal/ingest"
	"github.com/policyradar/policyradar/internal/models"
	"github.com/policyradar/policyradar/internal/ragstore"
	"github.com/policyradar/policyradar/internal/storage"
	"github.com/policyradar/policyradar/pkg/utils"
)

// Backend holds the initialized services.
type Backend struct {
	Logger *zap.Logger
	DB     *sql.DB
	Store  *ragstore.Store
	Memory *ingest.Ingestor

	cfg      *config.Config
	embedder embedding.Embedder
}

// New wires a Backend from cfg and an embedder. cfg may be partially filled;
// defaults are applied. The embedder's width must agree with the configured
// embedding dimensions, since the namespace's dimension is fixed at first use.
func New(cfg *config.Config, embedder embedding.Embedder) (*Backend, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	config.ApplyDefaults(cfg)
	if embedder.Dimensions() != cfg.Embedding.Dimensions {
		return nil, fmt.Errorf("embedder width %d does not match configured dimensions %d for namespace %q",
			embedder.Dimensions(), cfg.Embedding.Dimensions, cfg.Embedding.Namespace)
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	store, err := ragstore.New(db,
		ragstore.WithLogger(logger),
		ragstore.WithOverfetch(cfg.RAG.OverfetchFactor, cfg.RAG.OverfetchLimit),
	)
	if err != nil {
		db.Close()
		return nil, err
	}

	cached := embedding.WithCache(embedder, cfg.Embedding.CacheSize)
	ck := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.MaxChunks)
	memory := ingest.New(store, cached, cfg.Embedding.Namespace, ck,
		ingest.WithLogger(logger),
		ingest.WithBatchSize(cfg.Embedding.BatchSize),
	)

	logger.Info("memory backend initialized",
		zap.String("database_path", cfg.Storage.DatabasePath),
		zap.String("namespace", cfg.Embedding.Namespace),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	return &Backend{
		Logger:   logger,
		DB:       db,
		Store:    store,
		Memory:   memory,
		cfg:      cfg,
		embedder: embedder,
	}, nil
}

// AddDocument indexes a document into the session's memory. See
// ingest.Ingestor.AddDocument.
func (b *Backend) AddDocument(ctx context.Context, sessionID, docKey, text string, prov models.Provenance) (int, error) {
	return b.Memory.AddDocument(ctx, sessionID, docKey, text, prov)
}

// Retrieve returns the session's most relevant chunks for a question. A
// non-positive topK uses the configured default.
func (b *Backend) Retrieve(ctx context.Context, sessionID, question string, topK int) ([]ingest.RetrievedChunk, error) {
	if topK <= 0 {
		topK = b.cfg.RAG.TopK
	}
	return b.Memory.Retrieve(ctx, sessionID, question, topK)
}

// ClearSession drops all memory a session owns. Called by the chat subsystem
// when a session is deleted.
func (b *Backend) ClearSession(ctx context.Context, sessionID string) error {
	return b.Memory.ClearSession(ctx, sessionID)
}

// Close releases the embedder and the database handle.
func (b *Backend) Close() error {
	_ = b.Logger.Sync()
	var errs []error
	if err := b.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.DB.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

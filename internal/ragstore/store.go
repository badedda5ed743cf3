// Package ragstore persists document chunks and their embeddings for a single
// conversation session, pairing a relational metadata table with a
// tenant-blind vector index under a shared integer identity. The metadata
// table is authoritative; the vector index is a derived structure keyed by
// the metadata table's generated identities.
package ragstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/policyradar/policyradar/internal/models"
)

const (
	defaultOverfetchFactor = 10
	defaultOverfetchLimit  = 500
)

// Store manages per-namespace chunk metadata and vector entries over a shared
// SQLite handle. Namespace provisioning is memoized for the lifetime of the
// Store; the memo is guarded for concurrent first use.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     *sql.DB
	logger *zap.Logger // optional; when set, logs debug events

	// Over-fetch window for session-filtered search: the vector index has no
	// tenant predicate, so Search requests min(topK*overfetchFactor,
	// overfetchLimit) global neighbors and filters. This is a bounded-recall
	// approximation; session chunks outside the window are missed.
	overfetchFactor int
	overfetchLimit  int

	mu         sync.Mutex
	namespaces map[string]*namespace
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a logger for debug output (namespace provisioned, chunk
// inserted, document deleted, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithOverfetch tunes the search over-fetch window. factor multiplies topK;
// limit caps the window. Non-positive values keep the defaults (10 and 500).
func WithOverfetch(factor, limit int) Option {
	return func(s *Store) {
		if factor > 0 {
			s.overfetchFactor = factor
		}
		if limit > 0 {
			s.overfetchLimit = limit
		}
	}
}

// New creates a Store over the given database handle and initializes the
// namespace registry table.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:              db,
		overfetchFactor: defaultOverfetchFactor,
		overfetchLimit:  defaultOverfetchLimit,
		namespaces:      make(map[string]*namespace),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := db.Exec(registrySchema); err != nil {
		return nil, fmt.Errorf("failed to initialize namespace registry: %w", err)
	}
	return s, nil
}

// Insert writes a chunk and its embedding as one unit under a shared integer
// identity and returns that identity. The namespace is provisioned on first
// use with the embedding's width. Both writes happen in a single transaction,
// so a failed vector write cannot leave an orphaned metadata row.
//
// A chunk that duplicates an existing (session, document key, chunk index)
// fails with ErrDuplicateChunk and writes nothing. An embedding whose width
// differs from the namespace's fixed dimension fails with ErrDimensionMismatch.
func (s *Store) Insert(ctx context.Context, key string, chunk *models.Chunk) (int64, error) {
	if err := s.EnsureNamespace(ctx, key, len(chunk.Embedding)); err != nil {
		if errors.Is(err, ErrInvalidDimension) {
			// The namespace exists with a different width, or the embedding is empty.
			return 0, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
		}
		return 0, err
	}
	ns, ok, err := s.lookupNamespace(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("namespace %q vanished after provisioning", key)
	}
	if len(chunk.Embedding) != ns.dimension {
		return 0, fmt.Errorf("%w: got %d, namespace %q expects %d",
			ErrDimensionMismatch, len(chunk.Embedding), key, ns.dimension)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin insert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (session_id, doc_key, content_hash, chunk_index, total_chunks,
			content, source_url, source_type, pdf_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, ns.chunkTable),
		chunk.SessionID, chunk.DocKey, chunk.ContentHash, chunk.ChunkIndex, chunk.TotalChunks,
		chunk.Content, chunk.Provenance.SourceURL, chunk.Provenance.SourceType,
		chunk.Provenance.PDFURL, now)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: session %q doc %q index %d",
				ErrDuplicateChunk, chunk.SessionID, chunk.DocKey, chunk.ChunkIndex)
		}
		return 0, fmt.Errorf("failed to insert chunk: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read generated identity: %w", err)
	}
	// The identity becomes the vector index's primary key; reject anything the
	// engine should never have produced rather than corrupting the correlation.
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrUnsafeIdentity, id)
	}

	if err := ns.index.Add(ctx, tx, id, chunk.Embedding); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit insert: %w", err)
	}

	chunk.ID = id
	chunk.CreatedAt = now
	if s.logger != nil {
		s.logger.Debug("chunk inserted",
			zap.String("namespace", key), zap.String("session_id", chunk.SessionID),
			zap.String("doc_key", chunk.DocKey), zap.Int64("id", id))
	}
	return id, nil
}

// Exists reports whether a chunk set for that exact document version is
// already stored for the session. An unknown namespace yields false.
func (s *Store) Exists(ctx context.Context, key, sessionID, docKey, contentHash string) (bool, error) {
	ns, ok, err := s.lookupNamespace(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	var one int
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT 1 FROM %s WHERE session_id = ? AND doc_key = ? AND content_hash = ? LIMIT 1`,
		ns.chunkTable), sessionID, docKey, contentHash).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check document version: %w", err)
	}
	return true, nil
}

// ReadByIDs returns the chunks matching the given identities, in unspecified
// order. Unknown identities are skipped. An empty ids input returns nil
// without issuing a query.
func (s *Store) ReadByIDs(ctx context.Context, key string, ids []int64) ([]*models.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ns, ok, err := s.lookupNamespace(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, session_id, doc_key, content_hash, chunk_index, total_chunks,
			content, source_url, source_type, pdf_url, created_at
		 FROM %s WHERE id IN (%s)`, ns.chunkTable, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.SessionID, &c.DocKey, &c.ContentHash, &c.ChunkIndex,
			&c.TotalChunks, &c.Content, &c.Provenance.SourceURL, &c.Provenance.SourceType,
			&c.Provenance.PDFURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

package ragstore

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/policyradar/policyradar/internal/vector"
)

// A namespace isolates one embedding model configuration: one metadata table
// and one vector index table, both deterministically named from the key, with
// a vector width fixed at first creation.
type namespace struct {
	key        string
	dimension  int
	chunkTable string
	index      *vector.TableIndex
}

var namespaceKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func chunkTableName(key string) string  { return "rag_chunks_" + key }
func vectorTableName(key string) string { return "rag_vectors_" + key }

const registrySchema = `
CREATE TABLE IF NOT EXISTS rag_namespaces (
	key TEXT PRIMARY KEY,
	dimension INTEGER NOT NULL,
	metric TEXT NOT NULL DEFAULT 'cosine',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// EnsureNamespace validates key and dimension and provisions the namespace's
// metadata table and vector index table if they do not exist. Provisioning is
// idempotent under concurrent first use: the registry row is inserted with
// INSERT OR IGNORE and all DDL is create-if-not-exists. The dimension is fixed
// at first creation; re-requesting an existing key with a different dimension
// fails with ErrInvalidDimension.
func (s *Store) EnsureNamespace(ctx context.Context, key string, dimension int) error {
	if !namespaceKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidNamespaceKey, key)
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDimension, dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ns, ok := s.namespaces[key]; ok {
		if ns.dimension != dimension {
			return fmt.Errorf("%w: namespace %q has dimension %d, requested %d",
				ErrInvalidDimension, key, ns.dimension, dimension)
		}
		return nil
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO rag_namespaces (key, dimension) VALUES (?, ?)`,
		key, dimension); err != nil {
		return fmt.Errorf("failed to register namespace %q: %w", key, err)
	}

	// Another process (or a previous run) may have created the namespace with
	// a different dimension; the registry row is authoritative.
	var existing int
	if err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM rag_namespaces WHERE key = ?`, key).Scan(&existing); err != nil {
		return fmt.Errorf("failed to read namespace %q: %w", key, err)
	}
	if existing != dimension {
		return fmt.Errorf("%w: namespace %q has dimension %d, requested %d",
			ErrInvalidDimension, key, existing, dimension)
	}

	ns, err := s.provisionLocked(ctx, key, existing)
	if err != nil {
		return err
	}
	s.namespaces[key] = ns

	if s.logger != nil {
		s.logger.Debug("namespace provisioned",
			zap.String("key", key), zap.Int("dimension", existing))
	}
	return nil
}

// provisionLocked creates the namespace's tables and indexes. Caller holds s.mu.
// key has been validated against namespaceKeyPattern, so it is safe to embed
// in table and index names.
func (s *Store) provisionLocked(ctx context.Context, key string, dimension int) (*namespace, error) {
	chunkTable := chunkTableName(key)
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		doc_key TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		total_chunks INTEGER NOT NULL,
		content TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		source_type TEXT NOT NULL DEFAULT '',
		pdf_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (session_id, doc_key, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_%[1]s_session ON %[1]s(session_id);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_doc_hash ON %[1]s(session_id, doc_key, content_hash);
	`, chunkTable)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create chunk table for %q: %w", key, err)
	}

	index, err := vector.NewTableIndex(vectorTableName(key), dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to build vector index for %q: %w", key, err)
	}
	if err := index.CreateTable(ctx, s.db); err != nil {
		return nil, err
	}

	return &namespace{
		key:        key,
		dimension:  dimension,
		chunkTable: chunkTable,
		index:      index,
	}, nil
}

// lookupNamespace returns the namespace for key if it has been provisioned,
// consulting the registry table when the in-process cache misses (the store
// may be reopened over an existing database file). A missing namespace is a
// soft miss: ok is false and err is nil.
func (s *Store) lookupNamespace(ctx context.Context, key string) (*namespace, bool, error) {
	if !namespaceKeyPattern.MatchString(key) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidNamespaceKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ns, ok := s.namespaces[key]; ok {
		return ns, true, nil
	}

	var dimension int
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM rag_namespaces WHERE key = ?`, key).Scan(&dimension)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read namespace %q: %w", key, err)
	}

	ns, err := s.provisionLocked(ctx, key, dimension)
	if err != nil {
		return nil, false, err
	}
	s.namespaces[key] = ns
	return ns, true, nil
}

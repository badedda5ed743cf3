package vector

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// DBTX is the subset of *sql.DB and *sql.Tx the index needs, so callers can
// run index writes inside the same transaction as their metadata writes.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Neighbor is a single nearest-neighbor hit, ordered by ascending cosine distance.
type Neighbor struct {
	ID       int64
	Distance float64
}

// TableIndex is a vector index stored as a plain SQLite table of
// (id INTEGER PRIMARY KEY, embedding BLOB). Entries are keyed by an explicit
// integer identity supplied by the caller. Search is a global brute-force scan:
// the table has no notion of tenants, so callers that need tenant isolation
// must over-fetch and filter the results themselves.
type TableIndex struct {
	table      string
	dimensions int
}

// NewTableIndex returns an index bound to the given table name and dimension.
// The table name must already be validated by the caller; it is interpolated
// into SQL verbatim.
func NewTableIndex(table string, dimensions int) (*TableIndex, error) {
	if table == "" {
		return nil, fmt.Errorf("table name must not be empty")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &TableIndex{table: table, dimensions: dimensions}, nil
}

// Dimensions returns the fixed vector width of the index.
func (ix *TableIndex) Dimensions() int { return ix.dimensions }

// CreateTable creates the backing table if it does not exist. Safe to call
// concurrently; creation is idempotent DDL.
func (ix *TableIndex) CreateTable(ctx context.Context, db DBTX) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			embedding BLOB NOT NULL
		)`, ix.table))
	if err != nil {
		return fmt.Errorf("failed to create vector table %s: %w", ix.table, err)
	}
	return nil
}

// Add inserts a vector under the given explicit identity.
func (ix *TableIndex) Add(ctx context.Context, db DBTX, id int64, embedding []float32) error {
	if len(embedding) != ix.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(embedding), ix.dimensions)
	}
	_, err := db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, embedding) VALUES (?, ?)`, ix.table),
		id, EncodeVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to insert vector %d: %w", id, err)
	}
	return nil
}

// Nearest returns up to k entries ordered by ascending cosine distance to query.
// The scan is global over the whole table.
func (ix *TableIndex) Nearest(ctx context.Context, db DBTX, query []float32, k int) ([]Neighbor, error) {
	if len(query) != ix.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), ix.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT id, embedding FROM %s`, ix.table))
	if err != nil {
		return nil, fmt.Errorf("failed to scan vector table: %w", err)
	}
	defer rows.Close()

	var neighbors []Neighbor
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}
		vec, err := DecodeVector(blob, ix.dimensions)
		if err != nil {
			return nil, fmt.Errorf("corrupt vector %d: %w", id, err)
		}
		neighbors = append(neighbors, Neighbor{ID: id, Distance: CosineDistance(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Distance < neighbors[j].Distance })
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Remove deletes vectors by identity. Unknown identities are ignored.
func (ix *TableIndex) Remove(ctx context.Context, db DBTX, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, ix.table, placeholders), args...)
	if err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

// Size returns the number of vectors in the index.
func (ix *TableIndex) Size(ctx context.Context, db DBTX) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, ix.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

package ragstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DeleteDocument removes all chunks for (sessionID, docKey) from both the
// vector index and the metadata table, in one transaction, and returns the
// number of chunks removed. Deleting a nonexistent document is a no-op.
func (s *Store) DeleteDocument(ctx context.Context, key, sessionID, docKey string) (int64, error) {
	return s.deleteWhere(ctx, key, "document deleted",
		`session_id = ? AND doc_key = ?`, sessionID, docKey)
}

// DeleteSession removes every chunk owned by sessionID from both structures,
// in one transaction, and returns the number of chunks removed. Deleting a
// nonexistent session is a no-op. Sessions are owned by the chat subsystem
// and only weakly referenced here, so session teardown must call this
// explicitly; nothing cascades.
func (s *Store) DeleteSession(ctx context.Context, key, sessionID string) (int64, error) {
	return s.deleteWhere(ctx, key, "session deleted", `session_id = ?`, sessionID)
}

func (s *Store) deleteWhere(ctx context.Context, key, event, where string, args ...any) (int64, error) {
	ns, ok, err := s.lookupNamespace(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		`SELECT id FROM %s WHERE %s`, ns.chunkTable, where), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to load chunk ids: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()
	if len(ids) == 0 {
		return 0, nil
	}

	if err := ns.index.Remove(ctx, tx, ids); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE %s`, ns.chunkTable, where), args...); err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug(event, zap.String("namespace", key), zap.Int("chunks", len(ids)))
	}
	return int64(len(ids)), nil
}

// ReconcileReport summarizes a Reconcile run.
type ReconcileReport struct {
	// OrphanVectorsRemoved counts vector entries deleted because no metadata
	// row shared their identity.
	OrphanVectorsRemoved int64
	// ChunksMissingVectors counts metadata rows with no vector entry. These
	// cannot be repaired here (the store does not compute embeddings); callers
	// recover by deleting and re-ingesting the affected documents.
	ChunksMissingVectors int64
}

// Reconcile repairs divergence between the metadata table and the vector
// index for a namespace. The metadata table is the source of truth: vector
// entries without a metadata row are removed, and metadata rows without a
// vector entry are counted and reported.
func (s *Store) Reconcile(ctx context.Context, key string) (ReconcileReport, error) {
	var report ReconcileReport
	ns, ok, err := s.lookupNamespace(ctx, key)
	if err != nil {
		return report, err
	}
	if !ok {
		return report, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return report, fmt.Errorf("failed to begin reconcile: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE id NOT IN (SELECT id FROM %s)`,
		vectorTableName(key), ns.chunkTable))
	if err != nil {
		return report, fmt.Errorf("failed to remove orphan vectors: %w", err)
	}
	report.OrphanVectorsRemoved, _ = res.RowsAffected()

	err = tx.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE id NOT IN (SELECT id FROM %s)`,
		ns.chunkTable, vectorTableName(key))).Scan(&report.ChunksMissingVectors)
	if err != nil {
		return report, fmt.Errorf("failed to count missing vectors: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("failed to commit reconcile: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("namespace reconciled", zap.String("namespace", key),
			zap.Int64("orphan_vectors_removed", report.OrphanVectorsRemoved),
			zap.Int64("chunks_missing_vectors", report.ChunksMissingVectors))
	}
	return report, nil
}

package ragstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Match is a single retrieval hit: a chunk identity and its cosine distance
// to the query embedding. Smaller distance means more similar.
type Match struct {
	ChunkID  int64   `json:"chunk_id"`
	Distance float64 `json:"distance"`
}

// Search returns up to topK matches owned by sessionID, ascending by distance.
//
// The vector index cannot filter by session, so Search over-fetches
// min(topK*factor, limit) global neighbors and intersects them with the
// session's chunk identities. This is a bounded-recall approximation: session
// chunks whose global rank falls outside the window are missed. The factor and
// limit are set with WithOverfetch. When the namespace holds no more vectors
// than the limit, the window covers the whole index and results are exact.
//
// A session with no chunks returns an empty result without querying the index.
// An unknown namespace is a soft miss and also returns an empty result.
func (s *Store) Search(ctx context.Context, key, sessionID string, query []float32, topK int) ([]Match, error) {
	ns, ok, err := s.lookupNamespace(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || topK <= 0 {
		return nil, nil
	}
	if len(query) != ns.dimension {
		return nil, fmt.Errorf("%w: got %d, namespace %q expects %d",
			ErrDimensionMismatch, len(query), key, ns.dimension)
	}

	owned, err := s.sessionChunkIDs(ctx, ns, sessionID)
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return nil, nil
	}

	window := topK * s.overfetchFactor
	if window > s.overfetchLimit {
		window = s.overfetchLimit
	}
	neighbors, err := ns.index.Nearest(ctx, s.db, query, window)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, topK)
	for _, n := range neighbors {
		if _, ok := owned[n.ID]; !ok {
			continue
		}
		matches = append(matches, Match{ChunkID: n.ID, Distance: n.Distance})
		if len(matches) == topK {
			break
		}
	}
	if s.logger != nil {
		s.logger.Debug("session search",
			zap.String("namespace", key), zap.String("session_id", sessionID),
			zap.Int("window", window), zap.Int("matches", len(matches)))
	}
	return matches, nil
}

// sessionChunkIDs loads the set of chunk identities owned by sessionID.
func (s *Store) sessionChunkIDs(ctx context.Context, ns *namespace, sessionID string) (map[int64]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id FROM %s WHERE session_id = ?`, ns.chunkTable), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session chunk ids: %w", err)
	}
	defer rows.Close()

	owned := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk id: %w", err)
		}
		owned[id] = struct{}{}
	}
	return owned, rows.Err()
}

package data

import (
	"context"
	"time"

	"tibber-insights/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RecorderStore queries the Home Assistant recorder database for historical
// sensor states. It implements baseline.HistorySource.
type RecorderStore struct {
	pool *pgxpool.Pool
}

// NewRecorderStore creates a store backed by a pgx pool.
func NewRecorderStore(ctx context.Context, databaseURL string) (*RecorderStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &RecorderStore{pool: pool}, nil
}

// Close releases the pool resources.
func (s *RecorderStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Sentinel states are filtered in SQL; anything that survives is still
// re-checked by the baseline merger before numeric parsing.
const samplesSQL = `
    SELECT s.state, s.last_updated
    FROM states s
    JOIN states_meta m ON s.metadata_id = m.metadata_id
    WHERE m.entity_id = $1
      AND s.last_updated >= $2
      AND s.last_updated <= $3
      AND s.state NOT IN ('unknown', 'unavailable', 'None')
    ORDER BY s.last_updated
`

// Samples returns the recorded states for an entity within [from, to].
func (s *RecorderStore) Samples(ctx context.Context, entityID string, from, to time.Time) ([]model.HistorySample, error) {
	rows, err := s.pool.Query(ctx, samplesSQL, entityID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make([]model.HistorySample, 0)
	for rows.Next() {
		var sample model.HistorySample
		if err := rows.Scan(&sample.State, &sample.Timestamp); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/epfl-river/river-backend/pkg/schema"
)

// RefreshRollup asks TimescaleDB to recompute resolution's continuous
// aggregate for [windowStart, windowEnd). A nil windowStart/windowEnd pair
// requests a full refresh (TimescaleDB accepts NULL bounds to mean "all
// time").
func (s *Store) RefreshRollup(ctx context.Context, resolution schema.RollupResolution, windowStart, windowEnd *time.Time) error {
	view, ok := resolution.ViewName()
	if !ok {
		return fmt.Errorf("store: unknown rollup resolution %q", resolution)
	}

	var start, end interface{}
	if windowStart != nil {
		start = *windowStart
	}
	if windowEnd != nil {
		end = *windowEnd
	}

	if _, err := s.DB.ExecContext(ctx, `CALL refresh_continuous_aggregate($1, $2, $3)`, view, start, end); err != nil {
		return fmt.Errorf("refreshing rollup %s: %w", view, err)
	}
	return nil
}

// RollupRows returns the bucketed rows of resolution for sensorIDs over
// [start, end), ordered by (sensor_id, bucket) for column-oriented
// reshaping, the same way ReadingsForSensors orders raw readings.
func (s *Store) RollupRows(ctx context.Context, resolution schema.RollupResolution, sensorIDs []string, start, end time.Time) ([]schema.RollupRow, error) {
	view, ok := resolution.ViewName()
	if !ok {
		return nil, fmt.Errorf("store: unknown rollup resolution %q", resolution)
	}
	if len(sensorIDs) == 0 {
		return nil, nil
	}

	query, args, err := s.psql.Select("bucket", "sensor_id", "avg_value", "min_value", "max_value", "count", "stddev_value").
		From(view).
		Where(sq.Eq{"sensor_id": sensorIDs}).
		Where(sq.GtOrEq{"bucket": start}).
		Where(sq.Lt{"bucket": end}).
		OrderBy("sensor_id ASC", "bucket ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building rollup query: %w", err)
	}

	var rows []schema.RollupRow
	if err := s.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying rollup %s: %w", view, err)
	}
	return rows, nil
}

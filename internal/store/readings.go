package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/epfl-river/river-backend/pkg/schema"
)

// readingsBatchSize bounds a single multi-row insert statement; callers
// chunk larger buffers themselves.
const readingsBatchSize = 1000

// BulkInsertReadings inserts rows in chunks of readingsBatchSize,
// silently skipping duplicates on (sensor_id, time).
func (s *Store) BulkInsertReadings(ctx context.Context, rows []schema.Reading) error {
	for start := 0; start < len(rows); start += readingsBatchSize {
		end := start + readingsBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.insertReadingsChunk(ctx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertReadingsChunk(ctx context.Context, rows []schema.Reading) error {
	if len(rows) == 0 {
		return nil
	}

	b := s.psql.Insert("readings").Columns("sensor_id", "time", "value", "logged")
	for _, r := range rows {
		b = b.Values(r.SensorID, r.Time, r.Value, r.Logged)
	}
	query, args, err := b.Suffix("ON CONFLICT (sensor_id, time) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("building readings insert: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %d readings: %w", len(rows), err)
	}
	return nil
}

// MaxReadingTime returns the latest reading time across sensorIDs, or the
// zero time if none has data yet. This is the hot path behind every
// unbounded-query cache freshness check, so it relies on the
// (sensor_id, time) composite index and must stay under ~2ms.
func (s *Store) MaxReadingTime(ctx context.Context, sensorIDs []string) (time.Time, error) {
	if len(sensorIDs) == 0 {
		return time.Time{}, nil
	}

	query, args, err := s.psql.Select("MAX(time)").From("readings").
		Where(sq.Eq{"sensor_id": sensorIDs}).ToSql()
	if err != nil {
		return time.Time{}, fmt.Errorf("building max reading time query: %w", err)
	}

	var max sql.NullTime
	if err := s.DB.GetContext(ctx, &max, query, args...); err != nil {
		return time.Time{}, fmt.Errorf("querying max reading time: %w", err)
	}
	if !max.Valid {
		return time.Time{}, nil
	}
	return max.Time, nil
}

// StationRange is the (min, max, count) summary StationDataRange returns.
type StationRange struct {
	MinTime sql.NullTime `db:"min_time"`
	MaxTime sql.NullTime `db:"max_time"`
	Count   int64        `db:"count"`
}

// StationDataRange reports the reading bounds across every sensor that
// belongs to stationID, used to expose data bounds on the detail endpoint.
func (s *Store) StationDataRange(ctx context.Context, stationID string) (StationRange, error) {
	query, args, err := s.psql.Select("MIN(r.time) AS min_time", "MAX(r.time) AS max_time", "COUNT(*) AS count").
		From("readings r").
		Join("sensors sn ON sn.id = r.sensor_id").
		Where(sq.Eq{"sn.station_id": stationID}).
		ToSql()
	if err != nil {
		return StationRange{}, fmt.Errorf("building station data range query: %w", err)
	}

	var rng StationRange
	if err := s.DB.GetContext(ctx, &rng, query, args...); err != nil {
		return StationRange{}, fmt.Errorf("querying station data range: %w", err)
	}
	return rng, nil
}

// ReadingsForSensors returns every reading for sensorIDs with
// start <= time < end, ordered by (sensor_id, time) to support the
// column-oriented reshaping the query surface performs.
func (s *Store) ReadingsForSensors(ctx context.Context, sensorIDs []string, start, end time.Time) ([]schema.Reading, error) {
	if len(sensorIDs) == 0 {
		return nil, nil
	}

	query, args, err := s.psql.Select("sensor_id", "time", "value", "logged").
		From("readings").
		Where(sq.Eq{"sensor_id": sensorIDs}).
		Where(sq.GtOrEq{"time": start}).
		Where(sq.Lt{"time": end}).
		OrderBy("sensor_id ASC", "time ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building readings query: %w", err)
	}

	var rows []schema.Reading
	if err := s.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	return rows, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/epfl-river/river-backend/pkg/schema"
)

// eventsFallbackWindow is the sentinel cursor the events scheduler resumes
// from on an empty table, matching the upstream API's own "last 7 days"
// default.
const eventsFallbackWindow = "7d"

// LastEventTime returns MAX(events.time) as the string form of an epoch,
// used to resume the events scheduler's pagination loop. It returns the
// "7d" sentinel when no event has ever been stored.
func (s *Store) LastEventTime(ctx context.Context) (string, error) {
	query, args, err := s.psql.Select("MAX(time)").From("events").ToSql()
	if err != nil {
		return "", fmt.Errorf("building last event time query: %w", err)
	}

	var max sql.NullTime
	if err := s.DB.GetContext(ctx, &max, query, args...); err != nil {
		return "", fmt.Errorf("querying last event time: %w", err)
	}
	if !max.Valid {
		return eventsFallbackWindow, nil
	}
	return strconv.FormatInt(max.Time.Unix(), 10), nil
}

// eventsBatchSize bounds a single multi-row insert statement.
const eventsBatchSize = 1000

// BulkInsertEvents inserts rows in chunks of eventsBatchSize, silently
// skipping duplicates on (vaisala_event_num, time).
func (s *Store) BulkInsertEvents(ctx context.Context, rows []schema.Event) error {
	for start := 0; start < len(rows); start += eventsBatchSize {
		end := start + eventsBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.insertEventsChunk(ctx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertEventsChunk(ctx context.Context, rows []schema.Event) error {
	if len(rows) == 0 {
		return nil
	}

	b := s.psql.Insert("events").Columns("vaisala_event_num", "time", "category", "message",
		"user_name", "entity", "entity_id", "sensor_id", "station_id", "device_id", "channel_id", "host_id")
	for _, r := range rows {
		b = b.Values(r.VaisalaEventNum, r.Time, r.Category, r.Message,
			r.UserName, r.Entity, r.EntityID, r.SensorID, r.StationID, r.DeviceID, r.ChannelID, r.HostID)
	}
	query, args, err := b.Suffix("ON CONFLICT (vaisala_event_num, time) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("building events insert: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %d events: %w", len(rows), err)
	}
	return nil
}

// RecentEvents lists up to limit of the most recent events, newest first,
// restricted to stationID when it is non-empty.
func (s *Store) RecentEvents(ctx context.Context, stationID string, limit int) ([]schema.Event, error) {
	b := s.psql.Select("vaisala_event_num", "time", "category", "message", "user_name",
		"entity", "entity_id", "sensor_id", "station_id", "device_id", "channel_id", "host_id").
		From("events").OrderBy("time DESC").Limit(uint64(limit))
	if stationID != "" {
		b = b.Where(sq.Eq{"station_id": stationID})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building recent events query: %w", err)
	}

	var rows []schema.Event
	if err := s.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying recent events: %w", err)
	}
	return rows, nil
}

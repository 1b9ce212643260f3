package store

import (
	"context"
	"fmt"

	"github.com/epfl-river/river-backend/pkg/schema"
)

// BulkInsertDeviceStatus inserts rows in chunks of readingsBatchSize,
// silently skipping duplicates on (sensor_id, time).
func (s *Store) BulkInsertDeviceStatus(ctx context.Context, rows []schema.DeviceStatus) error {
	for start := 0; start < len(rows); start += readingsBatchSize {
		end := start + readingsBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.insertDeviceStatusChunk(ctx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertDeviceStatusChunk(ctx context.Context, rows []schema.DeviceStatus) error {
	if len(rows) == 0 {
		return nil
	}

	b := s.psql.Insert("device_status").
		Columns("sensor_id", "time", "battery_level", "battery_state", "signal_quality", "status", "unreachable")
	for _, r := range rows {
		b = b.Values(r.SensorID, r.Time, r.BatteryLevel, r.BatteryState, r.SignalQuality, r.Status, r.Unreachable)
	}
	query, args, err := b.Suffix("ON CONFLICT (sensor_id, time) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("building device status insert: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %d device status rows: %w", len(rows), err)
	}
	return nil
}

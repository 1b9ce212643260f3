package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/epfl-river/river-backend/pkg/schema"
)

// UpsertSyncState applies patch to sensorID's sync-state row, creating it
// (as pending, retry 0) first if it does not yet exist. A nil field in
// patch leaves the stored value untouched; RetryCountDelta is applied as
// retry_count = retry_count + delta unless RetryCountReset asks for a
// hard reset to zero instead.
func (s *Store) UpsertSyncState(ctx context.Context, sensorID string, patch schema.SyncStatePatch) error {
	insert, args, err := s.psql.Insert("sync_state").
		Columns("sensor_id", "status", "retry_count").
		Values(sensorID, schema.SyncStatusPending, 0).
		Suffix("ON CONFLICT (sensor_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("building sync_state seed insert: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, insert, args...); err != nil {
		return fmt.Errorf("seeding sync_state for sensor %s: %w", sensorID, err)
	}

	update := s.psql.Update("sync_state")
	touched := false

	if patch.LastDataTime != nil {
		update = update.Set("last_data_time", *patch.LastDataTime)
		touched = true
	}
	if patch.LastSyncAttempt != nil {
		update = update.Set("last_sync_attempt", *patch.LastSyncAttempt)
		touched = true
	}
	if patch.Status != nil {
		update = update.Set("status", *patch.Status)
		touched = true
	}
	if patch.LastError != nil {
		update = update.Set("last_error", *patch.LastError)
		touched = true
	}
	if patch.LastFullSync != nil {
		update = update.Set("last_full_sync", *patch.LastFullSync)
		touched = true
	}
	if patch.RetryCountReset {
		update = update.Set("retry_count", 0)
		touched = true
	} else if patch.RetryCountDelta != nil {
		update = update.Set("retry_count", sq.Expr("retry_count + ?", *patch.RetryCountDelta))
		touched = true
	}

	if !touched {
		return nil
	}

	query, uargs, err := update.Where(sq.Eq{"sensor_id": sensorID}).ToSql()
	if err != nil {
		return fmt.Errorf("building sync_state update: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, query, uargs...); err != nil {
		return fmt.Errorf("updating sync_state for sensor %s: %w", sensorID, err)
	}
	return nil
}

// SyncStateFor returns the sync-state row of every sensor in sensorIDs,
// keyed by sensor id. A sensor absent from the map has no row yet.
func (s *Store) SyncStateFor(ctx context.Context, sensorIDs []string) (map[string]schema.SyncState, error) {
	if len(sensorIDs) == 0 {
		return map[string]schema.SyncState{}, nil
	}

	query, args, err := s.psql.Select("sensor_id", "last_data_time", "last_sync_attempt",
		"status", "last_error", "retry_count", "last_full_sync").
		From("sync_state").Where(sq.Eq{"sensor_id": sensorIDs}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building sync_state query: %w", err)
	}

	var rows []schema.SyncState
	if err := s.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying sync_state: %w", err)
	}

	out := make(map[string]schema.SyncState, len(rows))
	for _, r := range rows {
		out[r.SensorID] = r
	}
	return out, nil
}

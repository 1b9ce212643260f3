package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/epfl-river/river-backend/internal/apierr"
	"github.com/epfl-river/river-backend/internal/store"
	"github.com/epfl-river/river-backend/internal/upstream"
	"github.com/epfl-river/river-backend/pkg/log"
	"github.com/epfl-river/river-backend/pkg/schema"
)

// fullSyncAge is how stale last_full_sync must be before a sensor forces
// the whole tick into a full sync.
const fullSyncAge = 24 * time.Hour

// roundingWindow is the bucket readings are snapped to: 10 minutes.
const roundingWindow = 600

// roundToWindow rounds epoch seconds to the nearest roundingWindow
// boundary, matching the upstream logger's own sampling grid.
func roundToWindow(epoch int64) int64 {
	return ((epoch + roundingWindow/2) / roundingWindow) * roundingWindow
}

// syncReadings is one tick of the readings scheduler: the central state
// machine deciding full-vs-incremental sync, fetching one batched history
// call for every active sensor, and reconciling sync-state afterwards. It
// returns the number of reading rows handed to BulkInsertReadings, which
// includes any duplicates the store skips.
func (e *Engine) syncReadings(ctx context.Context) (int, error) {
	sensors, err := e.store.ActiveSensors(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: listing active sensors: %w", err)
	}
	if len(sensors) == 0 {
		return 0, nil
	}

	sensorIDs := make([]string, len(sensors))
	for i, sn := range sensors {
		sensorIDs[i] = sn.ID
	}
	states, err := e.store.SyncStateFor(ctx, sensorIDs)
	if err != nil {
		return 0, fmt.Errorf("sync: loading sync state: %w", err)
	}

	fullSync := false
	now := time.Now()
	maxHistory := time.Duration(e.cfg.VaisalaMaxHistoryDays) * 24 * time.Hour
	fallbackFrom := now.Add(-maxHistory)

	from := now
	for _, sn := range sensors {
		st, ok := states[sn.ID]
		if !ok || st.LastFullSync == nil || now.Sub(*st.LastFullSync) > fullSyncAge {
			fullSync = true
		}
		sensorFrom := fallbackFrom
		if ok && st.LastDataTime != nil {
			sensorFrom = *st.LastDataTime
		}
		if sensorFrom.Before(from) {
			from = sensorFrom
		}
	}
	if fullSync {
		from = fallbackFrom
	}

	locationIDs := make([]int, len(sensors))
	bySensorID := make(map[string]store.ActiveSensor, len(sensors))
	byLocationID := make(map[int]store.ActiveSensor, len(sensors))
	for i, sn := range sensors {
		locationIDs[i] = sn.VaisalaLocationID
		bySensorID[sn.ID] = sn
		byLocationID[sn.VaisalaLocationID] = sn
	}

	histories, err := e.fetchHistoryWithRetry(ctx, sensorIDs, locationIDs, from.Unix(), now.Unix())
	if err != nil {
		return 0, err
	}

	insertedRows := 0
	var maxSeen time.Time
	for _, hist := range histories {
		sn, ok := byLocationID[hist.ID]
		if !ok {
			continue
		}
		st := states[sn.ID]

		var lastKnown time.Time
		if !fullSync && st.LastDataTime != nil {
			lastKnown = *st.LastDataTime
		}

		rows := make([]schema.Reading, 0, len(hist.DataPoints))
		var sensorMax int64
		for _, pt := range hist.DataPoints {
			if !lastKnown.IsZero() && pt.Timestamp <= lastKnown.Unix() {
				continue
			}
			if pt.Timestamp > sensorMax {
				sensorMax = pt.Timestamp
			}
			rows = append(rows, schema.Reading{
				SensorID: sn.ID,
				Time:     time.Unix(roundToWindow(pt.Timestamp), 0).UTC(),
				Value:    pt.Value,
				Logged:   pt.Logged,
			})
		}
		if len(rows) == 0 {
			continue
		}
		if err := e.store.BulkInsertReadings(ctx, rows); err != nil {
			log.Errorf("sync: inserting readings for sensor %s: %v", sn.ID, err)
			continue
		}
		insertedRows += len(rows)

		sensorMaxTime := time.Unix(sensorMax, 0).UTC()
		if sensorMaxTime.After(maxSeen) {
			maxSeen = sensorMaxTime
		}

		status := schema.SyncStatusSuccess
		patch := schema.SyncStatePatch{
			LastDataTime:    &sensorMaxTime,
			LastSyncAttempt: &now,
			Status:          &status,
			RetryCountReset: true,
		}
		if fullSync {
			patch.LastFullSync = &now
		}
		if err := e.store.UpsertSyncState(ctx, sn.ID, patch); err != nil {
			log.Errorf("sync: updating sync state for sensor %s: %v", sn.ID, err)
		}
	}

	if err := e.refreshRollupsAfterTick(ctx, fullSync, now); err != nil {
		log.Errorf("sync: refreshing rollups: %v", err)
	}

	return insertedRows, nil
}

// fetchHistoryWithRetry calls FetchHistory, retrying after
// SyncRetryDelaySeconds up to SyncRetryMax times on failure. A "Rate
// limited" message is retried exactly like any other failure; it does not
// get its own budget. Every attempt, including the final one that gives
// up, patches every sensor's sync-state with the failure.
func (e *Engine) fetchHistoryWithRetry(ctx context.Context, sensorIDs []string, locationIDs []int, start, end int64) ([]upstream.LocationHistory, error) {
	delay := time.Duration(e.cfg.SyncRetryDelaySeconds) * time.Second

	var lastErr error
	for attempt := uint32(0); attempt <= e.cfg.SyncRetryMax; attempt++ {
		histories, err := e.upstream.FetchHistory(ctx, locationIDs, start, end)
		if err == nil {
			return histories, nil
		}
		lastErr = err
		e.recordSyncFailure(ctx, sensorIDs, err)

		if attempt == e.cfg.SyncRetryMax {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// recordSyncFailure patches every sensor's sync-state with the failure,
// incrementing retry_count.
func (e *Engine) recordSyncFailure(ctx context.Context, sensorIDs []string, cause error) {
	msg := cause.Error()
	now := time.Now()
	status := schema.SyncStatusError
	delta := 1

	for _, id := range sensorIDs {
		patch := schema.SyncStatePatch{
			LastSyncAttempt: &now,
			Status:          &status,
			LastError:       &msg,
			RetryCountDelta: &delta,
		}
		if err := e.store.UpsertSyncState(ctx, id, patch); err != nil {
			log.Errorf("sync: recording failure for sensor %s: %v", id, err)
		}
	}

	if apierr.IsTransient(cause) || strings.Contains(msg, "Rate limited") || strings.Contains(msg, "rate limited") {
		log.Warnf("sync: readings fetch failed transiently, retrying: %v", cause)
	}
}

func (e *Engine) refreshRollupsAfterTick(ctx context.Context, fullSync bool, now time.Time) error {
	if fullSync {
		for _, res := range []schema.RollupResolution{schema.RollupHourly, schema.RollupDaily, schema.RollupWeekly, schema.RollupMonthly} {
			if err := e.store.RefreshRollup(ctx, res, nil, nil); err != nil {
				return err
			}
		}
		return nil
	}

	hourlyStart := now.Add(-24 * time.Hour)
	if err := e.store.RefreshRollup(ctx, schema.RollupHourly, &hourlyStart, &now); err != nil {
		return err
	}
	dailyStart := now.Add(-7 * 24 * time.Hour)
	if err := e.store.RefreshRollup(ctx, schema.RollupDaily, &dailyStart, &now); err != nil {
		return err
	}
	return nil
}

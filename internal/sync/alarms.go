package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/epfl-river/river-backend/internal/upstream"
	"github.com/epfl-river/river-backend/pkg/log"
	"github.com/epfl-river/river-backend/pkg/schema"
)

// syncAlarms is one tick of the alarms scheduler: fetch the remote's
// active-alarm list (no include-system option is sent), update or create a local row
// for each, then deactivate any locally-active alarm whose upstream id
// has fallen out of the fetched set. This is the only place an alarm
// transitions to inactive. It returns the number of alarm rows created
// or transitioned to inactive (updates to an already-active alarm are
// not counted as newly ingested rows).
func (e *Engine) syncAlarms(ctx context.Context) (int, error) {
	fetched, err := e.upstream.FetchActiveAlarms(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: fetching active alarms: %w", err)
	}

	existing, err := e.store.AlarmIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: loading known alarm ids: %w", err)
	}

	rowCount := 0
	seen := make(map[int]struct{}, len(fetched))
	for _, alarm := range fetched {
		seen[alarm.ID] = struct{}{}

		row, sensorIDs := e.alarmToRow(ctx, alarm)

		if localID, ok := existing[alarm.ID]; ok {
			if err := e.store.UpdateAlarm(ctx, localID, row); err != nil {
				log.Errorf("sync: updating alarm %d: %v", alarm.ID, err)
			}
			continue
		}

		if _, err := e.store.InsertAlarm(ctx, row, sensorIDs); err != nil {
			log.Errorf("sync: inserting alarm %d: %v", alarm.ID, err)
			continue
		}
		rowCount++
	}

	activeIDs, err := e.store.ActiveAlarmVaisalaIDs(ctx)
	if err != nil {
		return rowCount, fmt.Errorf("sync: loading locally active alarm ids: %w", err)
	}
	now := time.Now().UTC()
	for _, vaisalaID := range activeIDs {
		if _, stillActive := seen[vaisalaID]; stillActive {
			continue
		}
		localID, ok := existing[vaisalaID]
		if !ok {
			continue
		}
		if err := e.store.DeactivateAlarm(ctx, localID, now); err != nil {
			log.Errorf("sync: deactivating alarm %d: %v", vaisalaID, err)
			continue
		}
		rowCount++
	}

	return rowCount, nil
}

// alarmToRow translates an upstream active alarm into the store row shape,
// resolving station_id from the first location id whose sensor is known.
// sensorIDs lists every location id that did resolve, for alarm_locations
// linking on insert.
func (e *Engine) alarmToRow(ctx context.Context, alarm upstream.ActiveAlarm) (schema.Alarm, []string) {
	var stationID *string
	var sensorIDs []string

	for _, locationID := range alarm.LocationIDs {
		sensorID, sID, err := e.store.SensorByLocationID(ctx, locationID)
		if err != nil {
			log.Warnf("sync: resolving location %d for alarm %d: %v", locationID, alarm.ID, err)
			continue
		}
		if sensorID == "" {
			continue
		}
		sensorIDs = append(sensorIDs, sensorID)
		if stationID == nil {
			stationID = &sID
		}
	}

	row := schema.Alarm{
		VaisalaAlarmID: alarm.ID,
		Severity:       alarm.Severity,
		Description:    alarm.Description,
		ErrorText:      alarm.ErrorText,
		WhenOn:         epochToTime(alarm.WhenOn),
		WhenOff:        epochPtrToTimePtr(alarm.WhenOff),
		WhenAck:        epochPtrToTimePtr(alarm.WhenAck),
		WhenCondition:  epochPtrToTimePtr(alarm.WhenCondition),
		DurationSec:    alarm.DurationSec,
		Status:         alarm.Status,
		IsSystem:       alarm.IsSystem,
		SerialNumber:   alarm.SerialNumber,
		LocationText:   alarm.Location,
		ZoneText:       alarm.Zone,
		StationID:      stationID,
		AckRequired:    alarm.AckRequired,
		AckComments:    alarm.AckComments,
		AckActionTaken: alarm.AckActionTaken,
	}
	return row, sensorIDs
}

func epochToTime(epoch float64) time.Time {
	return time.Unix(int64(epoch), 0).UTC()
}

func epochPtrToTimePtr(epoch *float64) *time.Time {
	if epoch == nil {
		return nil
	}
	t := epochToTime(*epoch)
	return &t
}

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/epfl-river/river-backend/pkg/log"
	"github.com/epfl-river/river-backend/pkg/schema"
)

// syncDeviceStatus is one tick of the device-status scheduler: fetch the
// current enriched snapshot for every active sensor and append one
// DeviceStatus row stamped with the current wall-clock. It returns the
// number of rows inserted.
func (e *Engine) syncDeviceStatus(ctx context.Context) (int, error) {
	sensors, err := e.store.ActiveSensors(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: listing active sensors: %w", err)
	}
	if len(sensors) == 0 {
		return 0, nil
	}

	locationIDs := make([]int, len(sensors))
	byLocationID := make(map[int]string, len(sensors))
	for i, sn := range sensors {
		locationIDs[i] = sn.VaisalaLocationID
		byLocationID[sn.VaisalaLocationID] = sn.ID
	}

	details, err := e.upstream.FetchLocationsData(ctx, locationIDs)
	if err != nil {
		return 0, fmt.Errorf("sync: fetching device status snapshot: %w", err)
	}

	now := time.Now().UTC()
	rows := make([]schema.DeviceStatus, 0, len(details))
	for _, d := range details {
		sensorID, ok := byLocationID[d.ID]
		if !ok {
			continue
		}
		rows = append(rows, schema.DeviceStatus{
			SensorID:      sensorID,
			Time:          now,
			BatteryLevel:  d.BatteryLevel,
			BatteryState:  d.BatteryState,
			SignalQuality: d.SignalQuality,
			Status:        d.DeviceStatus,
			Unreachable:   d.Unreachable,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := e.store.BulkInsertDeviceStatus(ctx, rows); err != nil {
		return 0, fmt.Errorf("sync: inserting device status rows: %w", err)
	}
	log.Debugf("sync: recorded device status for %d sensors", len(rows))
	return len(rows), nil
}

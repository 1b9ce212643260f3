package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/epfl-river/river-backend/pkg/log"
	"github.com/epfl-river/river-backend/pkg/schema"
)

// eventsPageSize is the page size the events scheduler fetches with on
// every request.
const eventsPageSize = 1000

// syncEvents is one tick of the events scheduler: resume from MAX(time)
// (the "7d" sentinel on an empty table), page through the upstream event
// log until the reported total has been seen or a short page arrives,
// and resolve sensor_id/station_id for any event whose location_id maps
// to a known sensor.
func (e *Engine) syncEvents(ctx context.Context) (int, error) {
	from, err := e.store.LastEventTime(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: loading last event time: %w", err)
	}

	var rows []schema.Event
	fetchedTotal := 0
	for page := 1; ; page++ {
		events, total, err := e.upstream.FetchEvents(ctx, from, page, eventsPageSize)
		if err != nil {
			return 0, fmt.Errorf("sync: fetching events from %s (page %d): %w", from, page, err)
		}

		for _, ev := range events {
			var sensorID, stationID *string
			if locationID, ok := ev.LocationID.AsInt(); ok {
				sid, stid, err := e.store.SensorByLocationID(ctx, locationID)
				if err != nil {
					log.Warnf("sync: resolving location %d for event %d: %v", locationID, ev.Num, err)
				} else if sid != "" {
					sensorID, stationID = &sid, &stid
				}
			}

			rows = append(rows, schema.Event{
				VaisalaEventNum: ev.Num,
				Time:            time.Unix(int64(ev.Timestamp), 0).UTC(),
				Category:        ev.Category,
				Message:         ev.Message,
				UserName:        ev.UserName,
				Entity:          ev.Entity,
				EntityID:        ev.EntityID,
				SensorID:        sensorID,
				StationID:       stationID,
				DeviceID:        ev.DeviceID,
				ChannelID:       ev.ChannelID,
				HostID:          ev.HostID,
			})
		}

		fetchedTotal += len(events)
		if len(events) == 0 || len(events) < eventsPageSize || fetchedTotal >= total {
			break
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
	}

	if len(rows) == 0 {
		return 0, nil
	}
	if err := e.store.BulkInsertEvents(ctx, rows); err != nil {
		return 0, fmt.Errorf("sync: inserting events: %w", err)
	}
	return len(rows), nil
}

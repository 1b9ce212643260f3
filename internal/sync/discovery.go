package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/epfl-river/river-backend/internal/store"
	"github.com/epfl-river/river-backend/internal/upstream"
	"github.com/epfl-river/river-backend/pkg/log"
)

// sensorTypeRules is the ordered keyword → sensor type table; the first
// matching keyword wins, matching the upstream naming convention where a
// channel's type is embedded in its display name rather than carried as a
// separate field.
var sensorTypeRules = []struct {
	keywords []string
	typ      string
}{
	{[]string{"depth", "Depth"}, "Depth"},
	{[]string{"cdom", "CDOM"}, "CDOM"},
	{[]string{"turb", "Turb"}, "Turbidity"},
	{[]string{"batt", "Batt"}, "Battery"},
	{[]string{"DOdegC", "DOTdegC"}, "DO_Temperature"},
	{[]string{"DOuM"}, "Dissolved_O2"},
	{[]string{"condu", "Condu"}, "Conductivity"},
	{[]string{"CondT"}, "Cond_Temperature"},
}

// deriveSensorType scans name for the ordered keyword table and returns
// the matching type, or name itself if nothing matches.
func deriveSensorType(name string) string {
	for _, rule := range sensorTypeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				return rule.typ
			}
		}
	}
	return name
}

// Discover runs the hierarchy discovery pass: fetch the full flattened
// location tree, create zones and stations not already known (so sensor
// foreign keys resolve), then fetch details and create sensors only for
// leaves not already known, seeding a pending sync-state row for each.
// Already-known zones/stations/sensors are left untouched — discovery
// never overwrites an entity's recorded attributes, it only fills in
// what is missing, mirroring the upstream hierarchy sync's
// contains-key-then-skip guard.
func (e *Engine) Discover(ctx context.Context) error {
	locations, err := e.upstream.FetchHierarchy(ctx)
	if err != nil {
		return err
	}

	zoneIDs, err := e.store.ExistingZoneIDs(ctx)
	if err != nil {
		return fmt.Errorf("sync: loading existing zones: %w", err)
	}
	stationIDs, err := e.store.ExistingStationIDs(ctx)
	if err != nil {
		return fmt.Errorf("sync: loading existing stations: %w", err)
	}
	existingSensors, err := e.store.ExistingSensorLocationIDs(ctx)
	if err != nil {
		return fmt.Errorf("sync: loading existing sensors: %w", err)
	}

	stationByPrefix := map[string]string{} // 3-segment path prefix -> station id
	var newSensors []upstream.Location

	for _, loc := range locations {
		if loc.Deleted {
			continue
		}
		segments := strings.Split(strings.Trim(loc.Path, "/"), "/")

		switch {
		case len(segments) == 2 && !loc.Leaf:
			zoneName := segments[1]
			if _, ok := zoneIDs[zoneName]; ok {
				continue
			}
			zoneID, err := e.store.UpsertZone(ctx, zoneName, loc.Path)
			if err != nil {
				log.Errorf("sync: creating zone %q: %v", zoneName, err)
				continue
			}
			zoneIDs[zoneName] = zoneID

		case len(segments) == 3 && !loc.Leaf:
			zoneName := segments[1]
			stationName := segments[2]

			zoneID, ok := zoneIDs[zoneName]
			if !ok {
				var err error
				zoneID, err = e.store.UpsertZone(ctx, zoneName, "/"+zoneName)
				if err != nil {
					log.Errorf("sync: resolving zone %q for station %q: %v", zoneName, stationName, err)
					continue
				}
				zoneIDs[zoneName] = zoneID
			}

			stationID, ok := stationIDs[loc.NodeID]
			if !ok {
				var err error
				stationID, err = e.store.UpsertStation(ctx, zoneID, stationName, loc.NodeID, loc.Path)
				if err != nil {
					log.Errorf("sync: creating station %q: %v", stationName, err)
					continue
				}
				stationIDs[loc.NodeID] = stationID
			}
			stationByPrefix[strings.Join(segments[:3], "/")] = stationID

		case len(segments) >= 4 && loc.Leaf:
			if _, ok := existingSensors[loc.NodeID]; ok {
				continue
			}
			newSensors = append(newSensors, loc)
		}
	}

	for _, sensor := range newSensors {
		segments := strings.Split(strings.Trim(sensor.Path, "/"), "/")
		prefix := strings.Join(segments[:3], "/")

		stationID, ok := stationByPrefix[prefix]
		if !ok {
			var err error
			stationID, err = e.store.StationByPathPrefix(ctx, "/"+prefix)
			if err != nil || stationID == "" {
				log.Warnf("sync: no station found for sensor %q at path %q, skipping", sensor.Text, sensor.Path)
				continue
			}
		}

		sensorID, err := e.upsertSensorLeaf(ctx, stationID, sensor)
		if err != nil {
			log.Errorf("sync: creating sensor %q: %v", sensor.Text, err)
			continue
		}

		if err := e.store.UpsertSyncState(ctx, sensorID, noOpPatch()); err != nil {
			log.Errorf("sync: seeding sync-state for sensor %s: %v", sensorID, err)
		}
	}

	return nil
}

func (e *Engine) upsertSensorLeaf(ctx context.Context, stationID string, loc upstream.Location) (string, error) {
	details, err := e.upstream.FetchLocationsData(ctx, []int{loc.NodeID})
	attrs := store.SensorAttrs{SensorType: deriveSensorType(loc.Text)}
	if err == nil && len(details) > 0 {
		d := details[0]
		attrs.DisplayUnits = d.DisplayUnits
		attrs.DecimalPlaces = d.DecimalPlaces
		attrs.DeviceSerialNumber = d.LoggerSerialNumber
		attrs.ProbeSerialNumber = d.ProbeSerialNumber
		attrs.ChannelID = d.ChannelID
		attrs.SampleIntervalSeconds = d.SampleIntervalSec
	} else if err != nil {
		log.Warnf("sync: fetching location details for %q: %v", loc.Text, err)
	}

	return e.store.UpsertSensor(ctx, stationID, loc.NodeID, loc.Text, attrs)
}

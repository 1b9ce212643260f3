package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/epfl-river/river-backend/pkg/log"
)

// maxPathLength is the column width of vaisala_path on zones/stations. A
// path longer than this is truncated rather than rejected, so discovery
// stays total over a single oddly-deep upstream tree.
const maxPathLength = 256

func truncatePath(path string) string {
	if len(path) <= maxPathLength {
		return path
	}
	log.Warnf("store: truncating path %q to %d bytes", path, maxPathLength)
	return path[:maxPathLength]
}

// UpsertZone inserts a zone keyed on its stable upstream name, a no-op if
// one by that name already exists: discovery never overwrites attributes
// of an already-known zone, only creates missing ones.
func (s *Store) UpsertZone(ctx context.Context, name, path string) (string, error) {
	id := uuid.New().String()
	path = truncatePath(path)

	query, args, err := s.psql.Insert("zones").
		Columns("id", "name", "vaisala_path", "discovered_at").
		Values(id, name, path, sq.Expr("now()")).
		Suffix(`ON CONFLICT (name) DO NOTHING RETURNING id`).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building zone insert: %w", err)
	}

	var gotID string
	if err := s.DB.GetContext(ctx, &gotID, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return s.zoneIDByName(ctx, name)
		}
		return "", fmt.Errorf("inserting zone %q: %w", name, err)
	}
	return gotID, nil
}

func (s *Store) zoneIDByName(ctx context.Context, name string) (string, error) {
	query, args, err := s.psql.Select("id").From("zones").Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return "", fmt.Errorf("building zone lookup: %w", err)
	}
	var id string
	if err := s.DB.GetContext(ctx, &id, query, args...); err != nil {
		return "", fmt.Errorf("looking up zone %q: %w", name, err)
	}
	return id, nil
}

// UpsertStation inserts a station keyed on its stable upstream node id, a
// no-op if one with that node id already exists.
func (s *Store) UpsertStation(ctx context.Context, zoneID, name string, nodeID int, path string) (string, error) {
	id := uuid.New().String()
	path = truncatePath(path)

	query, args, err := s.psql.Insert("stations").
		Columns("id", "zone_id", "name", "vaisala_node_id", "vaisala_path", "discovered_at", "updated_at").
		Values(id, zoneID, name, nodeID, path, sq.Expr("now()"), sq.Expr("now()")).
		Suffix(`ON CONFLICT (vaisala_node_id) DO NOTHING RETURNING id`).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building station insert: %w", err)
	}

	var gotID string
	if err := s.DB.GetContext(ctx, &gotID, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return s.stationIDByNodeID(ctx, nodeID)
		}
		return "", fmt.Errorf("inserting station %q: %w", name, err)
	}
	return gotID, nil
}

func (s *Store) stationIDByNodeID(ctx context.Context, nodeID int) (string, error) {
	query, args, err := s.psql.Select("id").From("stations").Where(sq.Eq{"vaisala_node_id": nodeID}).ToSql()
	if err != nil {
		return "", fmt.Errorf("building station lookup: %w", err)
	}
	var id string
	if err := s.DB.GetContext(ctx, &id, query, args...); err != nil {
		return "", fmt.Errorf("looking up station with node id %d: %w", nodeID, err)
	}
	return id, nil
}

// ExistingZoneIDs returns every known zone's id keyed by name, used by
// discovery to skip re-creating zones it has already seen.
func (s *Store) ExistingZoneIDs(ctx context.Context) (map[string]string, error) {
	query, args, err := s.psql.Select("name", "id").From("zones").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building existing zones query: %w", err)
	}
	var rows []struct {
		Name string `db:"name"`
		ID   string `db:"id"`
	}
	if err := s.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying existing zones: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Name] = r.ID
	}
	return out, nil
}

// ExistingStationIDs returns every known station's id keyed by
// vaisala_node_id, used by discovery to skip re-creating stations it has
// already seen.
func (s *Store) ExistingStationIDs(ctx context.Context) (map[int]string, error) {
	query, args, err := s.psql.Select("vaisala_node_id", "id").From("stations").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building existing stations query: %w", err)
	}
	var rows []struct {
		NodeID int    `db:"vaisala_node_id"`
		ID     string `db:"id"`
	}
	if err := s.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying existing stations: %w", err)
	}
	out := make(map[int]string, len(rows))
	for _, r := range rows {
		out[r.NodeID] = r.ID
	}
	return out, nil
}

// ExistingSensorLocationIDs returns the set of vaisala_location_id values
// already recorded as sensors, used by discovery to filter each pass down
// to genuinely new leaves before paying for a location-details fetch.
func (s *Store) ExistingSensorLocationIDs(ctx context.Context) (map[int]struct{}, error) {
	query, args, err := s.psql.Select("vaisala_location_id").From("sensors").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building existing sensors query: %w", err)
	}
	var locationIDs []int
	if err := s.DB.SelectContext(ctx, &locationIDs, query, args...); err != nil {
		return nil, fmt.Errorf("querying existing sensors: %w", err)
	}
	out := make(map[int]struct{}, len(locationIDs))
	for _, id := range locationIDs {
		out[id] = struct{}{}
	}
	return out, nil
}

// SensorAttrs carries the fields derived from a single upstream location
// details entry at discovery time.
type SensorAttrs struct {
	SensorType            string
	DisplayUnits          string
	DecimalPlaces         int16
	DeviceSerialNumber    string
	ProbeSerialNumber     string
	ChannelID             int
	SampleIntervalSeconds int
}

// UpsertSensor inserts a sensor keyed on its stable upstream location id,
// a no-op if one with that location id already exists: a sensor's
// attributes are fixed at discovery time, not refreshed on rediscovery.
func (s *Store) UpsertSensor(ctx context.Context, stationID string, locationID int, name string, attrs SensorAttrs) (string, error) {
	id := uuid.New().String()

	query, args, err := s.psql.Insert("sensors").
		Columns("id", "station_id", "vaisala_location_id", "name", "sensor_type",
			"display_units", "decimal_places", "device_serial_number", "probe_serial_number",
			"channel_id", "sample_interval_seconds", "updated_at").
		Values(id, stationID, locationID, name, attrs.SensorType,
			attrs.DisplayUnits, attrs.DecimalPlaces, attrs.DeviceSerialNumber, attrs.ProbeSerialNumber,
			attrs.ChannelID, attrs.SampleIntervalSeconds, sq.Expr("now()")).
		Suffix(`ON CONFLICT (vaisala_location_id) DO NOTHING RETURNING id`).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building sensor insert: %w", err)
	}

	var gotID string
	if err := s.DB.GetContext(ctx, &gotID, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return s.sensorIDByLocationID(ctx, locationID)
		}
		return "", fmt.Errorf("inserting sensor %q: %w", name, err)
	}
	return gotID, nil
}

func (s *Store) sensorIDByLocationID(ctx context.Context, locationID int) (string, error) {
	query, args, err := s.psql.Select("id").From("sensors").Where(sq.Eq{"vaisala_location_id": locationID}).ToSql()
	if err != nil {
		return "", fmt.Errorf("building sensor lookup: %w", err)
	}
	var id string
	if err := s.DB.GetContext(ctx, &id, query, args...); err != nil {
		return "", fmt.Errorf("looking up sensor with location id %d: %w", locationID, err)
	}
	return id, nil
}

// ActiveSensor is the row shape ActiveSensors returns: enough to drive a
// FetchHistory call and to key a sync-state upsert afterwards.
type ActiveSensor struct {
	ID                string `db:"id"`
	StationID         string `db:"station_id"`
	VaisalaLocationID int    `db:"vaisala_location_id"`
	Name              string `db:"name"`
}

// ActiveSensors lists every sensor flagged is_active.
func (s *Store) ActiveSensors(ctx context.Context) ([]ActiveSensor, error) {
	query, args, err := s.psql.Select("id", "station_id", "vaisala_location_id", "name").
		From("sensors").Where(sq.Eq{"is_active": true}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building active sensors query: %w", err)
	}

	var sensors []ActiveSensor
	if err := s.DB.SelectContext(ctx, &sensors, query, args...); err != nil {
		return nil, fmt.Errorf("querying active sensors: %w", err)
	}
	return sensors, nil
}

// SensorByLocationID resolves an upstream location id to the sensor's
// internal id and station, for linking alarms/events/device-status rows.
// Both return values are empty, with a nil error, if no sensor matches.
func (s *Store) SensorByLocationID(ctx context.Context, locationID int) (sensorID, stationID string, err error) {
	query, args, buildErr := s.psql.Select("id", "station_id").From("sensors").
		Where(sq.Eq{"vaisala_location_id": locationID}).ToSql()
	if buildErr != nil {
		return "", "", fmt.Errorf("building sensor lookup: %w", buildErr)
	}

	var row struct {
		ID        string `db:"id"`
		StationID string `db:"station_id"`
	}
	if err := s.DB.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return "", "", nil
		}
		return "", "", fmt.Errorf("looking up sensor by location id %d: %w", locationID, err)
	}
	return row.ID, row.StationID, nil
}

// StationByPathPrefix finds a station whose vaisala_path matches the given
// 3-segment zone/station prefix, used by discovery to home a newly found
// sensor leaf without re-deriving ids from scratch. Returns "" with a nil
// error if nothing matches.
func (s *Store) StationByPathPrefix(ctx context.Context, prefix string) (string, error) {
	query, args, err := s.psql.Select("id").From("stations").
		Where(sq.Eq{"vaisala_path": truncatePath(prefix)}).ToSql()
	if err != nil {
		return "", fmt.Errorf("building station lookup: %w", err)
	}

	var id string
	if err := s.DB.GetContext(ctx, &id, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("looking up station by path %q: %w", prefix, err)
	}
	return id, nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/epfl-river/river-backend/pkg/schema"
)

// looksLikeUUID reports whether s parses as a UUID, used to decide
// whether a path parameter names a resource by id or by display name.
func looksLikeUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ResolveZone resolves ref (a UUID or a case-insensitive name) to a zone.
// Returns (schema.Zone{}, false, nil) if nothing matches.
func (s *Store) ResolveZone(ctx context.Context, ref string) (schema.Zone, bool, error) {
	b := s.psql.Select("id", "name", "vaisala_path", "description", "created_at", "discovered_at").From("zones")
	if looksLikeUUID(ref) {
		b = b.Where(sq.Eq{"id": ref})
	} else {
		b = b.Where("LOWER(name) = LOWER(?)", ref)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return schema.Zone{}, false, fmt.Errorf("building zone resolve query: %w", err)
	}

	var z schema.Zone
	if err := s.DB.GetContext(ctx, &z, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return schema.Zone{}, false, nil
		}
		return schema.Zone{}, false, fmt.Errorf("resolving zone %q: %w", ref, err)
	}
	return z, true, nil
}

// ResolveStation resolves ref to a station, scoped to zoneID when given.
// Returns (schema.Station{}, false, nil) if nothing matches.
func (s *Store) ResolveStation(ctx context.Context, zoneID, ref string) (schema.Station, bool, error) {
	b := s.psql.Select("id", "zone_id", "name", "vaisala_node_id", "vaisala_path",
		"latitude", "longitude", "altitude", "created_at", "discovered_at", "updated_at").From("stations")
	if looksLikeUUID(ref) {
		b = b.Where(sq.Eq{"id": ref})
	} else {
		b = b.Where("LOWER(name) = LOWER(?)", ref)
	}
	if zoneID != "" {
		b = b.Where(sq.Eq{"zone_id": zoneID})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return schema.Station{}, false, fmt.Errorf("building station resolve query: %w", err)
	}

	var st schema.Station
	if err := s.DB.GetContext(ctx, &st, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return schema.Station{}, false, nil
		}
		return schema.Station{}, false, fmt.Errorf("resolving station %q: %w", ref, err)
	}
	return st, true, nil
}

// SensorFilter narrows StationSensors by the optional query parameters the
// query surface exposes on every station-scoped endpoint.
type SensorFilter struct {
	SensorTypes []string // empty means no filter
	ActiveOnly  bool
}

// StationSensors lists the sensors belonging to stationID that pass
// filter, ordered by name for deterministic response column order.
func (s *Store) StationSensors(ctx context.Context, stationID string, filter SensorFilter) ([]schema.Sensor, error) {
	b := s.psql.Select("id", "station_id", "vaisala_location_id", "name", "sensor_type",
		"display_units", "min_value", "max_value", "decimal_places", "device_serial_number",
		"probe_serial_number", "channel_id", "sample_interval_seconds", "is_active",
		"created_at", "updated_at").
		From("sensors").
		Where(sq.Eq{"station_id": stationID}).
		OrderBy("name ASC")

	if len(filter.SensorTypes) > 0 {
		b = b.Where(sq.Eq{"sensor_type": filter.SensorTypes})
	}
	if filter.ActiveOnly {
		b = b.Where(sq.Eq{"is_active": true})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building station sensors query: %w", err)
	}

	var sensors []schema.Sensor
	if err := s.DB.SelectContext(ctx, &sensors, query, args...); err != nil {
		return nil, fmt.Errorf("querying station sensors: %w", err)
	}
	return sensors, nil
}

// ListZones returns every zone, ordered by name.
func (s *Store) ListZones(ctx context.Context) ([]schema.Zone, error) {
	query, args, err := s.psql.Select("id", "name", "vaisala_path", "description", "created_at", "discovered_at").
		From("zones").OrderBy("name ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building zones query: %w", err)
	}

	var zones []schema.Zone
	if err := s.DB.SelectContext(ctx, &zones, query, args...); err != nil {
		return nil, fmt.Errorf("querying zones: %w", err)
	}
	return zones, nil
}

// ListStations returns every station under zoneID (or every station, if
// zoneID is empty), ordered by name.
func (s *Store) ListStations(ctx context.Context, zoneID string) ([]schema.Station, error) {
	b := s.psql.Select("id", "zone_id", "name", "vaisala_node_id", "vaisala_path",
		"latitude", "longitude", "altitude", "created_at", "discovered_at", "updated_at").
		From("stations").OrderBy("name ASC")
	if zoneID != "" {
		b = b.Where(sq.Eq{"zone_id": zoneID})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building stations query: %w", err)
	}

	var stations []schema.Station
	if err := s.DB.SelectContext(ctx, &stations, query, args...); err != nil {
		return nil, fmt.Errorf("querying stations: %w", err)
	}
	return stations, nil
}

// AlarmsForStation lists alarms whose station_id is stationID, newest
// when_on first. When activeOnly is set, only alarms with status=true and
// no when_off are returned.
func (s *Store) AlarmsForStation(ctx context.Context, stationID string, activeOnly bool) ([]schema.Alarm, error) {
	b := s.psql.Select("a.id", "a.vaisala_alarm_id", "a.severity", "a.description", "a.error_text",
		"a.when_on", "a.when_off", "a.when_ack", "a.when_condition", "a.duration_sec", "a.status",
		"a.is_system", "a.serial_number", "a.location_text", "a.zone_text", "a.station_id",
		"a.ack_required", "a.ack_comments", "a.ack_action_taken", "a.created_at", "a.updated_at").
		From("alarms a").
		Where(sq.Eq{"a.station_id": stationID}).
		OrderBy("a.when_on DESC")
	if activeOnly {
		b = b.Where(sq.Eq{"a.status": true}).Where("a.when_off IS NULL")
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building station alarms query: %w", err)
	}

	var alarms []schema.Alarm
	if err := s.DB.SelectContext(ctx, &alarms, query, args...); err != nil {
		return nil, fmt.Errorf("querying station alarms: %w", err)
	}
	for i := range alarms {
		if err := alarms[i].DecodeAckComments(); err != nil {
			return nil, fmt.Errorf("decoding ack comments for alarm %s: %w", alarms[i].ID, err)
		}
	}
	return alarms, nil
}

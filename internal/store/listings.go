package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/epfl-river/river-backend/pkg/schema"
)

// SensorListFilter narrows ListSensors by the query-surface's global
// sensor listing parameters.
type SensorListFilter struct {
	StationID      string
	SensorType     string
	IncludeInactive bool
}

// ListSensors lists sensors across all stations, filtered by filter and
// ordered by name.
func (s *Store) ListSensors(ctx context.Context, filter SensorListFilter) ([]schema.Sensor, error) {
	b := s.psql.Select("id", "station_id", "vaisala_location_id", "name", "sensor_type",
		"display_units", "min_value", "max_value", "decimal_places", "device_serial_number",
		"probe_serial_number", "channel_id", "sample_interval_seconds", "is_active",
		"created_at", "updated_at").
		From("sensors").OrderBy("name ASC")

	if filter.StationID != "" {
		b = b.Where(sq.Eq{"station_id": filter.StationID})
	}
	if filter.SensorType != "" {
		b = b.Where(sq.Eq{"sensor_type": filter.SensorType})
	}
	if !filter.IncludeInactive {
		b = b.Where(sq.Eq{"is_active": true})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building sensors query: %w", err)
	}

	var sensors []schema.Sensor
	if err := s.DB.SelectContext(ctx, &sensors, query, args...); err != nil {
		return nil, fmt.Errorf("querying sensors: %w", err)
	}
	return sensors, nil
}

// AlarmListFilter narrows ListAlarms by the query-surface's global alarm
// listing parameters.
type AlarmListFilter struct {
	ActiveOnly bool
	StationID  string
	Severity   *int16
	Start      time.Time // zero means unbounded
	End        time.Time // zero means unbounded
}

var alarmColumns = []string{"id", "vaisala_alarm_id", "severity", "description", "error_text",
	"when_on", "when_off", "when_ack", "when_condition", "duration_sec", "status",
	"is_system", "serial_number", "location_text", "zone_text", "station_id",
	"ack_required", "ack_comments", "ack_action_taken", "created_at", "updated_at"}

// ListAlarms lists alarms across all stations, filtered by filter, newest
// first.
func (s *Store) ListAlarms(ctx context.Context, filter AlarmListFilter) ([]schema.Alarm, error) {
	b := s.psql.Select(alarmColumns...).From("alarms").OrderBy("when_on DESC")

	if filter.ActiveOnly {
		b = b.Where(sq.Eq{"status": true}).Where("when_off IS NULL")
	}
	if filter.StationID != "" {
		b = b.Where(sq.Eq{"station_id": filter.StationID})
	}
	if filter.Severity != nil {
		b = b.Where(sq.Eq{"severity": *filter.Severity})
	}
	if !filter.Start.IsZero() {
		b = b.Where(sq.GtOrEq{"when_on": filter.Start})
	}
	if !filter.End.IsZero() {
		b = b.Where(sq.Lt{"when_on": filter.End})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building alarms query: %w", err)
	}

	var alarms []schema.Alarm
	if err := s.DB.SelectContext(ctx, &alarms, query, args...); err != nil {
		return nil, fmt.Errorf("querying alarms: %w", err)
	}
	for i := range alarms {
		if err := alarms[i].DecodeAckComments(); err != nil {
			return nil, fmt.Errorf("decoding ack comments for alarm %s: %w", alarms[i].ID, err)
		}
	}
	return alarms, nil
}

// AlarmByID fetches a single alarm together with the sensor ids it is
// linked to via alarm_locations. Returns (schema.Alarm{}, false, nil) if
// id does not resolve.
func (s *Store) AlarmByID(ctx context.Context, id string) (schema.Alarm, bool, error) {
	query, args, err := s.psql.Select(alarmColumns...).From("alarms").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return schema.Alarm{}, false, fmt.Errorf("building alarm query: %w", err)
	}

	var a schema.Alarm
	if err := s.DB.GetContext(ctx, &a, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return schema.Alarm{}, false, nil
		}
		return schema.Alarm{}, false, fmt.Errorf("fetching alarm %s: %w", id, err)
	}
	if err := a.DecodeAckComments(); err != nil {
		return schema.Alarm{}, false, fmt.Errorf("decoding ack comments for alarm %s: %w", id, err)
	}

	linksQuery, linksArgs, err := s.psql.Select("sensor_id").From("alarm_locations").
		Where(sq.Eq{"alarm_id": id}).ToSql()
	if err != nil {
		return schema.Alarm{}, false, fmt.Errorf("building alarm locations query: %w", err)
	}
	if err := s.DB.SelectContext(ctx, &a.SensorIDs, linksQuery, linksArgs...); err != nil {
		return schema.Alarm{}, false, fmt.Errorf("fetching sensor ids for alarm %s: %w", id, err)
	}

	return a, true, nil
}

// EventListFilter narrows ListEvents by the query-surface's paginated
// events listing parameters. Start and End are required by the handler
// layer; the store treats a zero value as unbounded on that side.
type EventListFilter struct {
	Start      time.Time
	End        time.Time
	Category   string
	StationID  string
	Page       int // 1-based
	PageSize   int
}

// ListEvents returns one page of events matching filter, newest first,
// plus the total count matching the same filter (ignoring pagination) for
// the response's page metadata.
func (s *Store) ListEvents(ctx context.Context, filter EventListFilter) ([]schema.Event, int, error) {
	where := sq.And{}
	if !filter.Start.IsZero() {
		where = append(where, sq.GtOrEq{"time": filter.Start})
	}
	if !filter.End.IsZero() {
		where = append(where, sq.Lt{"time": filter.End})
	}
	if filter.Category != "" {
		where = append(where, sq.Eq{"category": filter.Category})
	}
	if filter.StationID != "" {
		where = append(where, sq.Eq{"station_id": filter.StationID})
	}

	countQuery, countArgs, err := s.psql.Select("COUNT(*)").From("events").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building events count query: %w", err)
	}
	var total int
	if err := s.DB.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}

	query, args, err := s.psql.Select("vaisala_event_num", "time", "category", "message", "user_name",
		"entity", "entity_id", "sensor_id", "station_id", "device_id", "channel_id", "host_id").
		From("events").Where(where).OrderBy("time DESC").
		Limit(uint64(pageSize)).Offset(uint64((page - 1) * pageSize)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building events query: %w", err)
	}

	var events []schema.Event
	if err := s.DB.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("querying events: %w", err)
	}
	return events, total, nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/epfl-river/river-backend/pkg/log"
	"github.com/epfl-river/river-backend/pkg/schema"
)

// AlarmIDs maps every known upstream alarm id to its internal id, used by
// the alarms scheduler to decide insert vs. update without one query per
// alarm.
func (s *Store) AlarmIDs(ctx context.Context) (map[int]string, error) {
	query, args, err := s.psql.Select("vaisala_alarm_id", "id").From("alarms").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building alarm id query: %w", err)
	}

	rows, err := s.DB.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alarm ids: %w", err)
	}
	defer rows.Close()

	out := map[int]string{}
	for rows.Next() {
		var vaisalaID int
		var id string
		if err := rows.Scan(&vaisalaID, &id); err != nil {
			return nil, fmt.Errorf("scanning alarm id row: %w", err)
		}
		out[vaisalaID] = id
	}
	return out, rows.Err()
}

// ActiveAlarmVaisalaIDs lists the upstream alarm ids of every alarm this
// store currently considers active (status=true, when_off null).
func (s *Store) ActiveAlarmVaisalaIDs(ctx context.Context) ([]int, error) {
	query, args, err := s.psql.Select("vaisala_alarm_id").From("alarms").
		Where(sq.Eq{"status": true}).Where("when_off IS NULL").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building active alarm id query: %w", err)
	}

	var ids []int
	if err := s.DB.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("querying active alarm ids: %w", err)
	}
	return ids, nil
}

// InsertAlarm creates a new alarm row and links it to every known sensor
// location id, ignoring ids that do not resolve to a sensor.
func (s *Store) InsertAlarm(ctx context.Context, a schema.Alarm, sensorIDs []string) (string, error) {
	id := uuid.New().String()

	query, args, err := s.psql.Insert("alarms").
		Columns("id", "vaisala_alarm_id", "severity", "description", "error_text",
			"when_on", "when_off", "when_ack", "when_condition", "duration_sec", "status",
			"is_system", "serial_number", "location_text", "zone_text", "station_id",
			"ack_required", "ack_comments", "ack_action_taken", "updated_at").
		Values(id, a.VaisalaAlarmID, a.Severity, a.Description, a.ErrorText,
			a.WhenOn, a.WhenOff, a.WhenAck, a.WhenCondition, a.DurationSec, a.Status,
			a.IsSystem, a.SerialNumber, a.LocationText, a.ZoneText, a.StationID,
			a.AckRequired, ackCommentsJSON(a.AckComments), a.AckActionTaken, sq.Expr("now()")).

		ToSql()
	if err != nil {
		return "", fmt.Errorf("building alarm insert: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("inserting alarm %d: %w", a.VaisalaAlarmID, err)
	}

	for _, sensorID := range sensorIDs {
		linkQuery, linkArgs, err := s.psql.Insert("alarm_locations").
			Columns("alarm_id", "sensor_id").Values(id, sensorID).
			Suffix("ON CONFLICT DO NOTHING").ToSql()
		if err != nil {
			return "", fmt.Errorf("building alarm location insert: %w", err)
		}
		if _, err := s.DB.ExecContext(ctx, linkQuery, linkArgs...); err != nil {
			return "", fmt.Errorf("linking alarm %d to sensor %s: %w", a.VaisalaAlarmID, sensorID, err)
		}
	}

	return id, nil
}

// UpdateAlarm refreshes the mutable fields of an already-known alarm. The
// station reference is deliberately not part of this update: it is set
// once, at creation.
func (s *Store) UpdateAlarm(ctx context.Context, id string, a schema.Alarm) error {
	query, args, err := s.psql.Update("alarms").
		Set("severity", a.Severity).
		Set("description", a.Description).
		Set("error_text", a.ErrorText).
		Set("when_off", a.WhenOff).
		Set("when_ack", a.WhenAck).
		Set("duration_sec", a.DurationSec).
		Set("status", a.Status).
		Set("ack_comments", ackCommentsJSON(a.AckComments)).
		Set("ack_action_taken", a.AckActionTaken).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building alarm update: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating alarm %s: %w", id, err)
	}
	return nil
}

// DeactivateAlarm marks an alarm inactive: the only place status
// transitions to false and when_off is set without a fresh upstream
// payload driving the other fields.
func (s *Store) DeactivateAlarm(ctx context.Context, id string, now time.Time) error {
	query, args, err := s.psql.Update("alarms").
		Set("status", false).
		Set("when_off", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building alarm deactivation: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deactivating alarm %s: %w", id, err)
	}
	return nil
}

// ackCommentsJSON renders comments as a jsonb-compatible value; a nil/empty
// slice stores SQL NULL rather than an empty JSON array.
func ackCommentsJSON(comments []string) interface{} {
	if len(comments) == 0 {
		return nil
	}
	raw, err := json.Marshal(comments)
	if err != nil {
		log.Warnf("store: marshaling ack comments: %v", err)
		return nil
	}
	return raw
}

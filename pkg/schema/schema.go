// Package schema defines the plain record types shared by the store façade,
// the sync engine and the query surface. Relations are expressed as plain
// foreign-key fields, not inheritance: callers join explicitly where needed.
package schema

import (
	"encoding/json"
	"time"
)

// Zone is a logical grouping of stations, matched case-insensitively by name.
type Zone struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	VaisalaPath string    `db:"vaisala_path" json:"vaisala_path"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	DiscoveredAt time.Time `db:"discovered_at" json:"discovered_at"`
}

// Station is a physical site under at most one zone.
type Station struct {
	ID           string    `db:"id" json:"id"`
	ZoneID       *string   `db:"zone_id" json:"zone_id,omitempty"`
	Name         string    `db:"name" json:"name"`
	VaisalaNodeID int      `db:"vaisala_node_id" json:"vaisala_node_id"`
	VaisalaPath  string    `db:"vaisala_path" json:"vaisala_path"`
	Latitude     *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude    *float64  `db:"longitude" json:"longitude,omitempty"`
	Altitude     *float64  `db:"altitude" json:"altitude,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	DiscoveredAt time.Time `db:"discovered_at" json:"discovered_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Sensor is a single measurement channel belonging to exactly one station.
type Sensor struct {
	ID                 string    `db:"id" json:"id"`
	StationID          string    `db:"station_id" json:"station_id"`
	VaisalaLocationID  int       `db:"vaisala_location_id" json:"vaisala_location_id"`
	Name               string    `db:"name" json:"name"`
	SensorType         string    `db:"sensor_type" json:"sensor_type"`
	DisplayUnits       *string   `db:"display_units" json:"display_units,omitempty"`
	MinValue           *float64  `db:"min_value" json:"min_value,omitempty"`
	MaxValue           *float64  `db:"max_value" json:"max_value,omitempty"`
	DecimalPlaces      *int16    `db:"decimal_places" json:"decimal_places,omitempty"`
	DeviceSerialNumber string    `db:"device_serial_number" json:"device_serial_number"`
	ProbeSerialNumber  string    `db:"probe_serial_number" json:"probe_serial_number"`
	ChannelID          int       `db:"channel_id" json:"channel_id"`
	SampleIntervalSec  int       `db:"sample_interval_seconds" json:"sample_interval_seconds"`
	IsActive           bool      `db:"is_active" json:"is_active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Reading is a single (sensor, time) measurement. Timestamps are always
// rounded to the nearest 600-second boundary before insertion.
type Reading struct {
	SensorID string    `db:"sensor_id" json:"sensor_id"`
	Time     time.Time `db:"time" json:"time"`
	Value    float64   `db:"value" json:"value"`
	Logged   bool      `db:"logged" json:"logged"`
}

// DeviceStatus is a device-health sample keyed by (sensor, time).
type DeviceStatus struct {
	SensorID      string    `db:"sensor_id" json:"sensor_id"`
	Time          time.Time `db:"time" json:"time"`
	BatteryLevel  int16     `db:"battery_level" json:"battery_level"`
	BatteryState  int16     `db:"battery_state" json:"battery_state"`
	SignalQuality int16     `db:"signal_quality" json:"signal_quality"`
	Status        string    `db:"status" json:"status"`
	Unreachable   bool      `db:"unreachable" json:"unreachable"`
}

// SyncStateStatus is the tri-state status of a sensor's ingestion bookkeeping.
type SyncStateStatus string

const (
	SyncStatusPending SyncStateStatus = "pending"
	SyncStatusSuccess SyncStateStatus = "success"
	SyncStatusError   SyncStateStatus = "error"
)

// SyncState is per-sensor ingestion bookkeeping.
type SyncState struct {
	SensorID         string          `db:"sensor_id" json:"sensor_id"`
	LastDataTime     *time.Time      `db:"last_data_time" json:"last_data_time,omitempty"`
	LastSyncAttempt  *time.Time      `db:"last_sync_attempt" json:"last_sync_attempt,omitempty"`
	Status           SyncStateStatus `db:"status" json:"status"`
	LastError        *string         `db:"last_error" json:"last_error,omitempty"`
	RetryCount       int             `db:"retry_count" json:"retry_count"`
	LastFullSync     *time.Time      `db:"last_full_sync" json:"last_full_sync,omitempty"`
}

// SyncStatePatch applies partial updates: a nil field leaves the stored
// value untouched. LastFullSync is written only when non-nil, so a patch
// cannot clear it back to NULL; the core never clears it once set.
type SyncStatePatch struct {
	LastDataTime    *time.Time
	LastSyncAttempt *time.Time
	Status          *SyncStateStatus
	LastError       *string
	RetryCountDelta *int // applied as retry_count = retry_count + delta; nil leaves retry_count untouched
	RetryCountReset bool // when true, retry_count is reset to zero instead of being incremented
	LastFullSync    *time.Time
}

// Alarm is a current or historical alarm event.
type Alarm struct {
	ID              string     `db:"id" json:"id"`
	VaisalaAlarmID  int        `db:"vaisala_alarm_id" json:"vaisala_alarm_id"`
	Severity        int16      `db:"severity" json:"severity"`
	Description     string     `db:"description" json:"description"`
	ErrorText       string     `db:"error_text" json:"error_text"`
	WhenOn          time.Time  `db:"when_on" json:"when_on"`
	WhenOff         *time.Time `db:"when_off" json:"when_off,omitempty"`
	WhenAck         *time.Time `db:"when_ack" json:"when_ack,omitempty"`
	WhenCondition   *time.Time `db:"when_condition" json:"when_condition,omitempty"`
	DurationSec     float64    `db:"duration_sec" json:"duration_sec"`
	Status          bool       `db:"status" json:"status"`
	IsSystem        bool       `db:"is_system" json:"is_system"`
	SerialNumber    string     `db:"serial_number" json:"serial_number"`
	LocationText    string     `db:"location_text" json:"location_text"`
	ZoneText        string     `db:"zone_text" json:"zone_text"`
	StationID       *string    `db:"station_id" json:"station_id,omitempty"`
	AckRequired     bool       `db:"ack_required" json:"ack_required"`
	AckActionTaken  *string    `db:"ack_action_taken" json:"ack_action_taken,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	// AckCommentsRaw is the jsonb column as sqlx scans it; AckComments is the
	// decoded view, populated by DecodeAckComments the same way the house
	// node repository keeps RawMetaData separate from its decoded MetaData.
	AckCommentsRaw []byte   `db:"ack_comments" json:"-"`
	AckComments    []string `db:"-" json:"ack_comments,omitempty"`

	// SensorIDs is populated from alarm_locations by the query surface; not
	// a stored column.
	SensorIDs []string `db:"-" json:"sensor_ids,omitempty"`
}

// IsActive reports whether the alarm is currently active (status=true and
// when_off absent).
func (a *Alarm) IsActive() bool {
	return a.Status && a.WhenOff == nil
}

// DecodeAckComments populates AckComments from AckCommentsRaw. A nil/empty
// raw value decodes to a nil slice rather than an error.
func (a *Alarm) DecodeAckComments() error {
	if len(a.AckCommentsRaw) == 0 {
		a.AckComments = nil
		return nil
	}
	return json.Unmarshal(a.AckCommentsRaw, &a.AckComments)
}

// Event is an upstream audit record keyed by (upstream event number, time).
type Event struct {
	VaisalaEventNum int        `db:"vaisala_event_num" json:"vaisala_event_num"`
	Time            time.Time  `db:"time" json:"time"`
	Category        string     `db:"category" json:"category"`
	Message         string     `db:"message" json:"message"`
	UserName        string     `db:"user_name" json:"user_name"`
	Entity          string     `db:"entity" json:"entity"`
	EntityID        int        `db:"entity_id" json:"entity_id"`
	SensorID        *string    `db:"sensor_id" json:"sensor_id,omitempty"`
	StationID       *string    `db:"station_id" json:"station_id,omitempty"`
	DeviceID        *int       `db:"device_id" json:"device_id,omitempty"`
	ChannelID       *int       `db:"channel_id" json:"channel_id,omitempty"`
	HostID          *int       `db:"host_id" json:"host_id,omitempty"`
}

// Calibration is persisted but never populated by the core; the table
// exists for an external writer (see DESIGN.md open questions).
type Calibration struct {
	ID          string    `db:"id" json:"id"`
	SensorID    string    `db:"sensor_id" json:"sensor_id"`
	PerformedAt time.Time `db:"performed_at" json:"performed_at"`
	PerformedBy string    `db:"performed_by" json:"performed_by"`
	Notes       string    `db:"notes" json:"notes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// RollupResolution names one of the four continuous-aggregate views.
type RollupResolution string

const (
	RollupHourly  RollupResolution = "hourly"
	RollupDaily   RollupResolution = "daily"
	RollupWeekly  RollupResolution = "weekly"
	RollupMonthly RollupResolution = "monthly"
)

// ViewName returns the backing continuous-aggregate view name, or ("", false)
// for an unknown resolution.
func (r RollupResolution) ViewName() (string, bool) {
	switch r {
	case RollupHourly:
		return "readings_hourly", true
	case RollupDaily:
		return "readings_daily", true
	case RollupWeekly:
		return "readings_weekly", true
	case RollupMonthly:
		return "readings_monthly", true
	default:
		return "", false
	}
}

// RollupRow is one bucket of a continuous-aggregate view.
type RollupRow struct {
	Bucket   time.Time `db:"bucket"`
	SensorID string    `db:"sensor_id"`
	Avg      *float64  `db:"avg_value"`
	Min      *float64  `db:"min_value"`
	Max      *float64  `db:"max_value"`
	Count    int64     `db:"count"`
	StdDev   *float64  `db:"stddev_value"`
}

// Package upstream is the typed, read-only façade over the remote
// viewLinc-style data-logger API: locations, histories, current data,
// active alarms and events. Every response is wrapped in the remote's
// JSON:API envelope; unknown fields are ignored throughout.
package upstream

import (
	"encoding/json"

	"github.com/epfl-river/river-backend/pkg/schema"
)

// Envelope is the generic JSON:API wrapper every endpoint responds with.
type Envelope[T any] struct {
	JSONAPI struct {
		Version string `json:"version"`
	} `json:"jsonapi"`
	Data []Resource[T]   `json:"data"`
	Meta *PaginationMeta `json:"meta,omitempty"`
}

// Resource is one JSON:API resource object.
type Resource[T any] struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes T      `json:"attributes"`
}

// PaginationMeta carries the total record count used to drive the events
// pagination loop.
type PaginationMeta struct {
	TotalRecordCount int `json:"total_record_count"`
	PageRecordCount  int `json:"page_record_count"`
	PageSize         int `json:"page_size"`
	PageNumber       int `json:"page_number"`
}

// Location is one entry of fetch_hierarchy's flattened listing: either a
// zone, a station, or (if Leaf) a sensor.
type Location struct {
	TypeName    string `json:"type_name"`
	Description string `json:"description"`
	Path        string `json:"path"`
	Text        string `json:"text"`
	Pos         int    `json:"pos"`
	NodeID      int    `json:"node_id"`
	Pause       bool   `json:"pause"`
	Leaf        bool   `json:"leaf"`
	TypeID      int    `json:"type_id"`
	NodeType    int    `json:"node_type"`
	Deleted     bool   `json:"deleted"`
}

// DataPoint is one history sample: [timestamp_epoch(float), value|null, logged].
// Timestamps arrive as floats and are truncated; null values default to 0.0.
type DataPoint struct {
	Timestamp int64
	Value     float64
	Logged    bool
}

func (d *DataPoint) UnmarshalJSON(data []byte) error {
	var raw [3]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var ts float64
	if err := json.Unmarshal(raw[0], &ts); err != nil {
		return err
	}

	var value float64
	if len(raw[1]) > 0 && string(raw[1]) != "null" {
		if err := json.Unmarshal(raw[1], &value); err != nil {
			return err
		}
	}

	var logged bool
	if err := json.Unmarshal(raw[2], &logged); err != nil {
		return err
	}

	d.Timestamp = int64(ts)
	d.Value = value
	d.Logged = logged
	return nil
}

// LocationHistory is the attributes payload of one fetch_history stream.
type LocationHistory struct {
	ID            int         `json:"id"`
	Name          string      `json:"name"`
	Zone          string      `json:"zone"`
	Timestamp     *int64      `json:"timestamp,omitempty"`
	Value         *float64    `json:"value,omitempty"`
	CurrentUnits  *string     `json:"current_units,omitempty"`
	DisplayUnits  *string     `json:"display_units,omitempty"`
	Max           *float64    `json:"max,omitempty"`
	MaxTime       *int64      `json:"max_time,omitempty"`
	Avg           *float64    `json:"avg,omitempty"`
	Min           *float64    `json:"min,omitempty"`
	MinTime       *int64      `json:"min_time,omitempty"`
	Seconds       *int64      `json:"seconds,omitempty"`
	DecimalPlaces *int16      `json:"decimal_places,omitempty"`
	StdDev        *float64    `json:"std,omitempty"`
	MKT           json.RawMessage `json:"mkt,omitempty"`
	Samples       *int        `json:"samples,omitempty"`
	DataPoints    []DataPoint `json:"data_points"`
}

// LocationDetails is the attributes payload of one fetch_location_details
// (locations_data) entry: the enriched current snapshot for a single leaf.
type LocationDetails struct {
	ID                  int     `json:"id"`
	Zone                string  `json:"zone"`
	LocationName        string  `json:"location_name"`
	LocationDescription string  `json:"location_description"`
	LocationPath        string  `json:"location_path"`
	LocationType        string  `json:"location_type"`
	Value               float64 `json:"value"`
	DecimalPlaces       int16   `json:"decimal_places"`
	DisplayUnits        string  `json:"display_units"`
	ChannelID           int     `json:"channel_id"`
	LoggerID            int     `json:"logger_id"`
	LoggerDescription   string  `json:"logger_description"`
	LoggerSerialNumber  string  `json:"logger_serial_number"`
	ProbeSerialNumber   string  `json:"probe_serial_number"`
	SampleIntervalSec   int     `json:"sample_interval_sec"`
	Timestamp           int64   `json:"timestamp"`
	DeviceStatus        string  `json:"device_status"`
	Deleted             int     `json:"deleted"`
	BatteryLevel        int16   `json:"battery_level"`
	BatteryState        int16   `json:"battery_state"`
	LinePowered         int16   `json:"line_powered"`
	SignalQuality       int16   `json:"signal_quality"`
	Unreachable         bool    `json:"unreachable"`
}

// ActiveAlarm is the attributes payload of one fetch_active_alarms entry.
type ActiveAlarm struct {
	ID               int      `json:"id"`
	Severity         int16    `json:"severity"`
	Description      string   `json:"description"`
	ErrorText        string   `json:"err"`
	WhenOn           float64  `json:"when_on"`
	WhenOff          *float64 `json:"when_off,omitempty"`
	WhenAck          *float64 `json:"when_ack,omitempty"`
	WhenCondition    *float64 `json:"when_condition,omitempty"`
	DurationSec      float64  `json:"duration_sec"`
	Status           bool     `json:"status"`
	IsSystem         bool     `json:"is_system"`
	SerialNumber     string   `json:"serial_number"`
	Location         string   `json:"location"`
	Zone             string   `json:"zone"`
	LocationIDs      []int    `json:"location_ids"`
	AckRequired      bool     `json:"ack_required"`
	AckComments      []string `json:"ack_comments,omitempty"`
	AckActionTaken   *string  `json:"ack_action_taken,omitempty"`
	LoggerDescription string  `json:"logger_description"`
}

// EventComment is a single comment thread entry on an event.
type EventComment struct {
	Text      string  `json:"text"`
	User      string  `json:"user"`
	Timestamp float64 `json:"timestamp"`
}

// Event is the attributes payload of one fetch_events entry.
type Event struct {
	Num                  int                  `json:"num"`
	Category             string               `json:"category"`
	Timestamp            float64              `json:"timestamp"`
	Message              string               `json:"msg"`
	UserName             string               `json:"user"`
	Entity               string               `json:"entity"`
	EntityID             int                  `json:"entity_id"`
	LocationID           schema.IntOrString   `json:"location_id"`
	DeviceID             *int                 `json:"device_id,omitempty"`
	ChannelID            *int                 `json:"channel_id,omitempty"`
	HostID               *int                 `json:"host_id,omitempty"`
	AffectedLocationIDs  *string              `json:"affected_location_ids,omitempty"`
	Comments             []EventComment       `json:"comments,omitempty"`
}

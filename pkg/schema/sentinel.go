package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// IntOrString models an upstream field documented as numeric but observed to
// occasionally carry a sentinel string ("N/A") or be absent entirely. It
// never rejects a payload; AsInt projects to the numeric value when one was
// present, and Raw preserves exactly what arrived for logging.
type IntOrString struct {
	present bool
	isInt   bool
	intVal  int
	strVal  string
}

// AsInt returns the decoded integer and true if the field carried a number;
// otherwise it returns (0, false) without guessing at the string's intent.
func (v IntOrString) AsInt() (int, bool) {
	if v.present && v.isInt {
		return v.intVal, true
	}
	return 0, false
}

// Present reports whether the field was present in the payload at all.
func (v IntOrString) Present() bool {
	return v.present
}

// Raw returns the original value as received, for diagnostic logging.
func (v IntOrString) Raw() string {
	if !v.present {
		return ""
	}
	if v.isInt {
		return fmt.Sprintf("%d", v.intVal)
	}
	return v.strVal
}

func (v *IntOrString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*v = IntOrString{}
		return nil
	}

	var asInt int
	if err := json.Unmarshal(data, &asInt); err == nil {
		*v = IntOrString{present: true, isInt: true, intVal: asInt}
		return nil
	}

	var asStr string
	if err := json.Unmarshal(data, &asStr); err == nil {
		*v = IntOrString{present: true, isInt: false, strVal: asStr}
		return nil
	}

	// Neither shape matched; treat as absent rather than rejecting the
	// whole payload, per the decoding policy for sentinel fields.
	*v = IntOrString{}
	return nil
}

func (v IntOrString) MarshalJSON() ([]byte, error) {
	if !v.present {
		return []byte("null"), nil
	}
	if v.isInt {
		return json.Marshal(v.intVal)
	}
	return json.Marshal(v.strVal)
}

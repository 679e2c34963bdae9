package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Tristate is a yes/no answer that may also be left unanswered.  It maps to
// a nullable BOOLEAN column and to true/false/null in JSON.
type Tristate uint8

const (
	Unspecified Tristate = iota
	Yes
	No
)

// TristateOf converts a plain bool.
func TristateOf(b bool) Tristate {
	if b {
		return Yes
	}
	return No
}

// Known reports whether an answer was given.
func (t Tristate) Known() bool { return t == Yes || t == No }

func (t Tristate) String() string {
	switch t {
	case Yes:
		return "true"
	case No:
		return "false"
	default:
		return "unspecified"
	}
}

// MarshalJSON renders Unspecified as null.
func (t Tristate) MarshalJSON() ([]byte, error) {
	switch t {
	case Yes:
		return []byte("true"), nil
	case No:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false and null.  0/1 are tolerated since
// older mobile clients send integers.
func (t *Tristate) UnmarshalJSON(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "null", "":
		*t = Unspecified
	case "true", "1":
		*t = Yes
	case "false", "0":
		*t = No
	default:
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("wheelchair_required: invalid value %s", b)
		}
		switch s {
		case "true", "yes":
			*t = Yes
		case "false", "no":
			*t = No
		case "":
			*t = Unspecified
		default:
			return fmt.Errorf("wheelchair_required: invalid value %q", s)
		}
	}
	return nil
}

// Value implements driver.Valuer; Unspecified is stored as NULL.
func (t Tristate) Value() (driver.Value, error) {
	switch t {
	case Yes:
		return true, nil
	case No:
		return false, nil
	default:
		return nil, nil
	}
}

// Scan implements sql.Scanner for nullable BOOLEAN (TINYINT) columns.
func (t *Tristate) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = Unspecified
	case bool:
		*t = TristateOf(v)
	case int64:
		*t = TristateOf(v != 0)
	case []byte:
		*t = TristateOf(len(v) > 0 && v[0] != '0')
	case string:
		*t = TristateOf(v != "" && v != "0")
	default:
		return fmt.Errorf("tristate: unsupported scan type %T", src)
	}
	return nil
}

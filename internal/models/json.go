package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON is a raw JSON column value
type JSON json.RawMessage

// Value implements driver.Valuer
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner
func (j *JSON) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("unsupported JSON source %T", src)
	}
	return nil
}

// MarshalJSON emits the raw value or null
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON keeps a copy of the raw value
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}

// MustJSON marshals v, returning nil when v cannot be encoded
func MustJSON(v interface{}) JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return JSON(b)
}

// Manifest maps an upstream product id to the packed quantity
type Manifest map[string]int

// Value implements driver.Valuer
func (m Manifest) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *Manifest) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Manifest{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported manifest source %T", src)
	}
	return json.Unmarshal(raw, m)
}

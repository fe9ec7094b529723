package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// AdditionalHeaderList stores the additional-header records of a quote item
// as a single jsonb column. The list is resized as a whole when the header
// count changes; it is never appended to independently.
type AdditionalHeaderList []AdditionalHeaderRecord

// Value implements driver.Valuer
func (l AdditionalHeaderList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *AdditionalHeaderList) Scan(src interface{}) error {
	return scanJSON(src, l, "additional header list")
}

// Metadata is the structured payload of an activity log entry, stored as
// jsonb. Payloads are built through the typed constructors in
// activity_metadata.go so each activity type keeps a fixed schema.
type Metadata json.RawMessage

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return []byte(m), nil
}

// Scan implements sql.Scanner
func (m *Metadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		*m = append((*m)[:0], v...)
		return nil
	case string:
		*m = Metadata(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into metadata", src)
	}
}

// MarshalJSON implements json.Marshaler
func (m Metadata) MarshalJSON() ([]byte, error) {
	if len(m) == 0 {
		return []byte("null"), nil
	}
	return m, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Metadata) UnmarshalJSON(data []byte) error {
	*m = append((*m)[:0], data...)
	return nil
}

// RawDetails is the stored jsonb payload of a payment method. Use
// PaymentMethod decoding helpers in payment_details.go for typed access.
type RawDetails json.RawMessage

// Value implements driver.Valuer
func (d RawDetails) Value() (driver.Value, error) {
	if len(d) == 0 {
		return []byte("{}"), nil
	}
	return []byte(d), nil
}

// Scan implements sql.Scanner
func (d *RawDetails) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		*d = append((*d)[:0], v...)
		return nil
	case string:
		*d = RawDetails(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into payment details", src)
	}
}

// MarshalJSON implements json.Marshaler
func (d RawDetails) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

// UnmarshalJSON implements json.Unmarshaler
func (d *RawDetails) UnmarshalJSON(data []byte) error {
	*d = append((*d)[:0], data...)
	return nil
}

func scanJSON(src, dest interface{}, what string) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %s", src, what)
	}
}

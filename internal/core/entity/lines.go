package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Lines is an order's line list stored as a JSONB column.
// Implements sql.Scanner and driver.Valuer.
type Lines[T any] []T

// Scan implements sql.Scanner for reading from PostgreSQL JSONB.
func (l *Lines[T]) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}

	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Lines: %T", src)
	}

	if len(source) == 0 {
		*l = nil
		return nil
	}

	var out []T
	if err := json.Unmarshal(source, &out); err != nil {
		return fmt.Errorf("failed to decode Lines: %w", err)
	}
	*l = out
	return nil
}

// Value implements driver.Valuer for writing to PostgreSQL JSONB.
func (l Lines[T]) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]T(l))
}

// Clone returns a copy that shares no backing array with l.
func (l Lines[T]) Clone() Lines[T] {
	if l == nil {
		return nil
	}
	out := make(Lines[T], len(l))
	copy(out, l)
	return out
}

package types

import (
	"database/sql/driver"

	jsoniter "github.com/json-iterator/go"
	ierr "github.com/rumahku/billing/internal/errors"
)

// Metadata is a flat string map persisted as JSONB
type Metadata map[string]string

// Scan implements sql.Scanner
func (m *Metadata) Scan(value interface{}) error {
	result := make(Metadata)
	if value == nil {
		*m = result
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ierr.NewErrorf("unsupported metadata column type %T", value).
			Mark(ierr.ErrDatabase)
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &result); err != nil {
		return ierr.WithError(err).
			WithHint("Stored metadata is not valid JSON").
			Mark(ierr.ErrDatabase)
	}
	*m = result
	return nil
}

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(map[string]string(m))
}

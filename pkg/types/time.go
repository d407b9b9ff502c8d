package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TimestampLayout is the wire format for dates: an explicit numeric
// timezone, no sub-second precision. Round-trips must be bit-exact.
const TimestampLayout = "2006-01-02 15:04:05 -0700"

// Timestamp wraps time.Time with the fixed JSON encoding used for all
// persisted dates.
type Timestamp struct {
	time.Time
}

// NewTimestamp parses a literal in TimestampLayout.
func NewTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return Timestamp{t}, nil
}

// MarshalJSON encodes the timestamp as a quoted TimestampLayout literal.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format(TimestampLayout) + `"`), nil
}

// UnmarshalJSON decodes a quoted TimestampLayout literal.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// String returns the wire representation.
func (t Timestamp) String() string {
	return t.Format(TimestampLayout)
}

// Cents converts a money amount to integer cents. Equality and hashing of
// money-like floats go through this so that 1.6 saved and 1.6 reloaded
// compare equal.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

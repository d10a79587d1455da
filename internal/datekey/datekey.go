package datekey

import (
	"fmt"
	"time"
)

// Layout is the canonical key format: an ISO calendar date in UTC.
const Layout = "2006-01-02"

// DateKey identifies one calendar day in UTC. All slot and session lookups
// key on this value, never on a raw timestamp.
type DateKey string

// FromTime truncates a timestamp to its UTC civil day.
func FromTime(t time.Time) DateKey {
	return DateKey(t.UTC().Format(Layout))
}

// Parse accepts a date-only string, an RFC3339 timestamp, or an RFC3339
// timestamp with an explicit offset. Inputs denoting the same civil day in
// UTC produce an identical key.
func Parse(s string) (DateKey, error) {
	if s == "" {
		return "", fmt.Errorf("parse date key: empty input")
	}

	for _, layout := range []string{Layout, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), nil
		}
	}

	return "", fmt.Errorf("parse date key: unrecognized timestamp %q", s)
}

// Today returns the key of the current UTC day.
func Today(now func() time.Time) DateKey {
	return FromTime(now())
}

// Time returns midnight UTC of the key's day.
func (k DateKey) Time() time.Time {
	t, err := time.Parse(Layout, string(k))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the key n days after k.
func (k DateKey) AddDays(n int) DateKey {
	return FromTime(k.Time().AddDate(0, 0, n))
}

// Valid reports whether k is a well-formed key.
func (k DateKey) Valid() bool {
	_, err := time.Parse(Layout, string(k))
	return err == nil
}

func (k DateKey) String() string {
	return string(k)
}

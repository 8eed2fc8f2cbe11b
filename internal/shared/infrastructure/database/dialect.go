package database

import (
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the storage layout for timestamps. It is fixed width so that
// text ordering matches chronological ordering on both drivers.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Rebind rewrites '?' placeholders into the form the driver expects.
// Repositories write queries once with '?' and rebind per connection.
func Rebind(driver Driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ForUpdate returns the row-locking suffix for a SELECT on the given driver.
// SQLite serializes writers on its single connection and needs none.
func ForUpdate(driver Driver) string {
	if driver == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// FormatNullableTime renders t or returns nil for a NULL column.
func FormatNullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return FormatTime(*t)
}

// ParseTime parses a stored timestamp. RFC3339 values written by other tools
// are accepted as well.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// ParseNullableTime parses a nullable stored timestamp.
func ParseNullableTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := ParseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

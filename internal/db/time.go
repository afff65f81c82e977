package db

import (
	"fmt"
	"time"
)

// TimeLayout is the fixed-width UTC layout used for every stored timestamp so
// that text ordering matches chronological ordering.
const TimeLayout = "2006-01-02 15:04:05.000"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// timeLayouts lists the shapes a timestamp column can come back in: our own
// layout, SQLite's datetime('now'), and RFC 3339 when the driver hands back a
// time.Time that database/sql formats for a string destination.
var timeLayouts = []string{
	TimeLayout,
	time.DateTime,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
}

// ParseTime parses a stored timestamp.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

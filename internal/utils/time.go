package utils

import (
	"time"
)

// FormatISO renders t as RFC 3339 in UTC with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

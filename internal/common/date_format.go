package common

import (
	"fmt"
	"strings"
	"time"
)

// Timestamp format constants
const (
	// ISOTimestamp is the format of the "date" field in the metadata document
	// and the format used in log output
	ISOTimestamp = "2006-01-02 15:04:05"

	// URLTimestamp is the path segment format used in tile addresses
	URLTimestamp = "2006/01/02/150405"
)

// ParseISO parses a metadata timestamp (YYYY-MM-DD HH:MM:SS) as UTC
func ParseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	return time.ParseInLocation(ISOTimestamp, s, time.UTC)
}

// FormatISO formats a timestamp for display (YYYY-MM-DD HH:MM:SS)
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOTimestamp)
}

// FormatURL formats a timestamp as a tile address segment (YYYY/MM/DD/HHMMSS)
func FormatURL(t time.Time) string {
	return t.UTC().Format(URLTimestamp)
}

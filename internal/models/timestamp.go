package models

import (
	"strconv"
	"time"
)

// NewTimestamp returns the current time as a string-encoded epoch-millisecond
// value, the wire encoding used for all entity timestamps.
func NewTimestamp() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// TimestampValue parses a string-encoded epoch-millisecond timestamp.
// Comparison must be numeric, not lexicographic: string comparison would
// misorder values with differing digit counts. Unparseable values sort
// as zero (oldest).
func TimestampValue(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

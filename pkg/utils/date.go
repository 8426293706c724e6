package utils

import "time"

// TruncateToBucket floors t to the start of its bucket of the given size in UTC.
func TruncateToBucket(t time.Time, bucket time.Duration) time.Time {
	return t.UTC().Truncate(bucket)
}

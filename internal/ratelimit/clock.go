package ratelimit

import "time"

// Bucket arithmetic is done in UTC so every server instance agrees on
// window boundaries regardless of its local zone.

// DailyBucketStart returns the most recent UTC midnight at or before now.
func DailyBucketStart(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MinuteBucketStart returns the most recent UTC minute boundary at or before now.
func MinuteBucketStart(now time.Time) time.Time {
	return now.UTC().Truncate(time.Minute)
}

// NextDailyReset returns the next UTC midnight after now.
func NextDailyReset(now time.Time) time.Time {
	return DailyBucketStart(now).Add(24 * time.Hour)
}

// NextMinuteReset returns the next UTC minute boundary after now.
func NextMinuteReset(now time.Time) time.Time {
	return MinuteBucketStart(now).Add(time.Minute)
}

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyBucketStart(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 42, 17, 500, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), DailyBucketStart(now))

	// Local zones must not shift the boundary.
	loc := time.FixedZone("UTC+9", 9*3600)
	early := time.Date(2026, 8, 31, 3, 0, 0, 0, loc) // 2026-08-30 18:00 UTC
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), DailyBucketStart(early))
}

func TestMinuteBucketStart(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 42, 17, 500, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 30, 15, 42, 0, 0, time.UTC), MinuteBucketStart(now))
}

func TestNextResets(t *testing.T) {
	now := time.Date(2026, 8, 30, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), NextDailyReset(now))
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), NextMinuteReset(now))

	midday := time.Date(2026, 8, 30, 12, 30, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), NextDailyReset(midday))
	assert.Equal(t, time.Date(2026, 8, 30, 12, 31, 0, 0, time.UTC), NextMinuteReset(midday))
}

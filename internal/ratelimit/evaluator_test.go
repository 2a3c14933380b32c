package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var evalNow = time.Date(2026, 8, 30, 12, 30, 30, 0, time.UTC)

func freshRecord(daily, minute string) *Record {
	return &Record{
		AccountID:       "acct-1",
		ModelID:         "lite-model",
		DailyCount:      daily,
		MinuteCount:     minute,
		LastDailyReset:  evalNow,
		LastMinuteReset: evalNow,
	}
}

func TestEvaluate_NilRecord(t *testing.T) {
	ev := evaluate(nil, Limits{PerDay: 20, PerMinute: 5}, evalNow)

	assert.Equal(t, 0, ev.dailyUsed)
	assert.Equal(t, 0, ev.minuteUsed)
	assert.Equal(t, 20, ev.remainingDaily)
	assert.Equal(t, 5, ev.remainingMinute)
	assert.False(t, ev.coerced)
}

func TestEvaluate_CurrentBuckets(t *testing.T) {
	ev := evaluate(freshRecord("7", "3"), Limits{PerDay: 20, PerMinute: 5}, evalNow)

	assert.Equal(t, 7, ev.dailyUsed)
	assert.Equal(t, 3, ev.minuteUsed)
	assert.Equal(t, 13, ev.remainingDaily)
	assert.Equal(t, 2, ev.remainingMinute)
}

func TestEvaluate_StaleDailyBucketCountsAsZero(t *testing.T) {
	rec := freshRecord("20", "3")
	rec.LastDailyReset = evalNow.Add(-25 * time.Hour)

	ev := evaluate(rec, Limits{PerDay: 20, PerMinute: 5}, evalNow)

	assert.Equal(t, 0, ev.dailyUsed)
	assert.Equal(t, 20, ev.remainingDaily)
	// Minute bucket is still current.
	assert.Equal(t, 3, ev.minuteUsed)
}

func TestEvaluate_StaleMinuteBucketCountsAsZero(t *testing.T) {
	rec := freshRecord("7", "5")
	rec.LastMinuteReset = evalNow.Add(-2 * time.Minute)

	ev := evaluate(rec, Limits{PerDay: 20, PerMinute: 5}, evalNow)

	assert.Equal(t, 7, ev.dailyUsed)
	assert.Equal(t, 0, ev.minuteUsed)
	assert.Equal(t, 5, ev.remainingMinute)
}

func TestEvaluate_RemainingClampedAtZero(t *testing.T) {
	ev := evaluate(freshRecord("25", "9"), Limits{PerDay: 20, PerMinute: 5}, evalNow)

	assert.Equal(t, 0, ev.remainingDaily)
	assert.Equal(t, 0, ev.remainingMinute)
}

func TestEvaluate_CorruptedCountersCoerceToZero(t *testing.T) {
	for _, raw := range []string{"invalid", "-3", "1.5", "NaN"} {
		ev := evaluate(freshRecord(raw, raw), Limits{PerDay: 20, PerMinute: 5}, evalNow)

		assert.Equal(t, 0, ev.dailyUsed, "raw %q", raw)
		assert.Equal(t, 20, ev.remainingDaily, "raw %q", raw)
		assert.True(t, ev.coerced, "raw %q", raw)
	}
}

func TestEvaluate_EmptyAndWhitespaceCounters(t *testing.T) {
	ev := evaluate(freshRecord("", " 0 "), Limits{PerDay: 20, PerMinute: 5}, evalNow)

	assert.Equal(t, 0, ev.dailyUsed)
	assert.Equal(t, 0, ev.minuteUsed)
	assert.False(t, ev.coerced)
}

func TestResetTimes(t *testing.T) {
	rt := resetTimes(evalNow)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), rt.Daily)
	assert.Equal(t, time.Date(2026, 8, 30, 12, 31, 0, 0, time.UTC), rt.Minute)
}

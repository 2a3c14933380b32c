package ratelimit

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/vtchat-platform/quotagate/internal/metrics"
)

// evaluation is the result of applying one limit pair to one record at a
// given instant, after lazy resets.
type evaluation struct {
	dailyUsed       int
	minuteUsed      int
	remainingDaily  int
	remainingMinute int
	limits          Limits
	coerced         bool
}

// evaluate applies the lazy-reset rule to rec and computes remaining counts
// against lim. A nil rec is a virgin account with zero usage. The stored
// counters are never mutated here; stale buckets are only rewritten by the
// next RecordRequest.
func evaluate(rec *Record, lim Limits, now time.Time) evaluation {
	ev := evaluation{limits: lim}
	if rec != nil {
		daily, minute, coerced := usedCounts(rec, now)
		ev.dailyUsed = daily
		ev.minuteUsed = minute
		ev.coerced = coerced
	}
	ev.remainingDaily = lim.PerDay - ev.dailyUsed
	if ev.remainingDaily < 0 {
		ev.remainingDaily = 0
	}
	ev.remainingMinute = lim.PerMinute - ev.minuteUsed
	if ev.remainingMinute < 0 {
		ev.remainingMinute = 0
	}
	return ev
}

// usedCounts returns the record's counters with lazy resets applied: a
// counter whose bucket predates the current one counts as zero regardless of
// the stored value. The third return reports whether any stored counter was
// coerced because it was corrupted.
func usedCounts(rec *Record, now time.Time) (daily, minute int, coerced bool) {
	if !rec.LastDailyReset.Before(DailyBucketStart(now)) {
		var c bool
		daily, c = parseCount(rec.DailyCount, rec.AccountID, rec.ModelID, "daily")
		coerced = coerced || c
	}
	if !rec.LastMinuteReset.Before(MinuteBucketStart(now)) {
		var c bool
		minute, c = parseCount(rec.MinuteCount, rec.AccountID, rec.ModelID, "minute")
		coerced = coerced || c
	}
	return daily, minute, coerced
}

// parseCount coerces a corrupted stored counter to zero rather than failing:
// a metering glitch must never permanently lock out (or unlock) an account.
// Coercions are logged and counted so the upstream data problem stays visible.
func parseCount(raw, accountID, modelID, window string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		slog.Warn("coercing corrupted request counter to zero",
			"account_id", accountID,
			"model_id", modelID,
			"window", window,
			"stored_value", raw,
		)
		metrics.CounterCoercionsTotal.WithLabelValues(window).Inc()
		return 0, true
	}
	return n, false
}

// resetTimes returns the next window boundaries relative to now.
func resetTimes(now time.Time) ResetTime {
	return ResetTime{
		Daily:  NextDailyReset(now),
		Minute: NextMinuteReset(now),
	}
}

package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vtchat-platform/quotagate/internal/metrics"
	inats "github.com/vtchat-platform/quotagate/internal/nats"
)

// Service is the admission controller: it combines per-model and shared lite
// quotas into a single allow/deny verdict and records usage after the fact.
// Counts are never cached across calls; every decision re-reads the store so
// instances sharing one database stay consistent.
type Service struct {
	store  Store
	table  Table
	events *inats.Publisher

	// now is swapped out by tests to cross window boundaries.
	now func() time.Time
}

// NewService creates a new rate limit Service. events may be nil when no
// event plane is configured.
func NewService(store Store, table Table, events *inats.Publisher) *Service {
	return &Service{
		store:  store,
		table:  table,
		events: events,
		now:    time.Now,
	}
}

// quotaRef names one quota to evaluate or record against.
type quotaRef struct {
	modelID string
	limits  Limits
}

// quotasFor resolves which quotas apply. Premium usage of a metered model
// other than the lite one drains both that model's premium quota and the
// shared lite premium quota; every other case is a single quota.
func (s *Service) quotasFor(modelID string, premium bool) []quotaRef {
	if premium && modelID != s.table.LiteModelID {
		return []quotaRef{
			{modelID: modelID, limits: s.table.Models[modelID].Plus},
			{modelID: s.table.LiteModelID, limits: s.table.Models[s.table.LiteModelID].Plus},
		}
	}
	lim, _ := s.table.LimitsFor(modelID, premium)
	return []quotaRef{{modelID: modelID, limits: lim}}
}

// CheckRateLimit decides whether the account may call the model right now.
// It is a pure read: no record is created or mutated. A denied verdict is a
// normal return value; only store failures surface as errors, unmodified.
//
// There is an inherent TOCTOU window between CheckRateLimit and
// RecordRequest: two concurrent requests can both read "allowed" before
// either records usage, permitting bounded over-admission. The store upsert
// is row-atomic but the check-then-record sequence is not.
func (s *Service) CheckRateLimit(ctx context.Context, accountID, modelID string, premium bool) (*Verdict, error) {
	now := s.now()

	if !s.table.Metered(modelID) {
		metrics.RateLimitChecksTotal.WithLabelValues("unmetered", "").Inc()
		v := unlimitedVerdict(now)
		return &v, nil
	}

	// Premium accounts get unlimited use of the lite model itself.
	if premium && modelID == s.table.LiteModelID {
		metrics.RateLimitChecksTotal.WithLabelValues("unlimited", "").Inc()
		v := unlimitedVerdict(now)
		return &v, nil
	}

	evs, err := s.evaluateQuotas(ctx, accountID, modelID, premium, now)
	if err != nil {
		return nil, err
	}

	v := composeQuotas(evs, now)
	if v.Allowed {
		metrics.RateLimitChecksTotal.WithLabelValues("allowed", "").Inc()
	} else {
		metrics.RateLimitChecksTotal.WithLabelValues("denied", v.Reason).Inc()
		s.publish(ctx, accountID, modelID, inats.EventLimitDenied, "warn", v.Reason)
	}
	return &v, nil
}

// RecordRequest durably counts one served request against every quota the
// admission check evaluated. Callers invoke it only after the gated action
// actually completed. The dual-quota premium case performs two independent
// upserts; if the second fails after the first succeeded the error is
// surfaced rather than compensated, and an event flags the inconsistency.
func (s *Service) RecordRequest(ctx context.Context, accountID, modelID string, premium bool) error {
	now := s.now()

	if !s.table.Metered(modelID) {
		return nil
	}
	if premium && modelID == s.table.LiteModelID {
		// Unlimited for this account, nothing to meter.
		return nil
	}

	refs := s.quotasFor(modelID, premium)
	for i, ref := range refs {
		if err := s.incrementQuota(ctx, accountID, ref.modelID, now); err != nil {
			if i > 0 {
				s.publish(ctx, accountID, ref.modelID, inats.EventPartialRecordFailure, "error", err.Error())
				return fmt.Errorf("recording quota for %s after %d of %d quotas written: %w", ref.modelID, i, len(refs), err)
			}
			return err
		}
	}

	mode := "single"
	if len(refs) > 1 {
		mode = "dual"
	}
	metrics.UsageRecordingsTotal.WithLabelValues(mode).Inc()
	s.publish(ctx, accountID, modelID, inats.EventUsageRecorded, "info", "")
	return nil
}

// Status returns the current usage projection for UI display, or nil for
// unmetered models and for the premium-lite unlimited case. Read-only.
func (s *Service) Status(ctx context.Context, accountID, modelID string, premium bool) (*Status, error) {
	now := s.now()

	if !s.table.Metered(modelID) {
		return nil, nil
	}
	if premium && modelID == s.table.LiteModelID {
		return nil, nil
	}

	evs, err := s.evaluateQuotas(ctx, accountID, modelID, premium, now)
	if err != nil {
		return nil, err
	}

	// Limits shown are the model-specific quota's own ceilings; remaining is
	// the minimum across quotas and used is the binding (highest) usage.
	st := Status{
		DailyLimit:  evs[0].limits.PerDay,
		MinuteLimit: evs[0].limits.PerMinute,
		ResetTime:   resetTimes(now),
	}
	for i, ev := range evs {
		if i == 0 || ev.remainingDaily < st.RemainingDaily {
			st.RemainingDaily = ev.remainingDaily
		}
		if i == 0 || ev.remainingMinute < st.RemainingMinute {
			st.RemainingMinute = ev.remainingMinute
		}
		if ev.dailyUsed > st.DailyUsed {
			st.DailyUsed = ev.dailyUsed
		}
		if ev.minuteUsed > st.MinuteUsed {
			st.MinuteUsed = ev.minuteUsed
		}
	}
	return &st, nil
}

// evaluateQuotas reads and evaluates every applicable quota. Store errors
// propagate unchanged; the check must fail loudly rather than silently fail
// open or closed.
func (s *Service) evaluateQuotas(ctx context.Context, accountID, modelID string, premium bool, now time.Time) ([]evaluation, error) {
	refs := s.quotasFor(modelID, premium)
	evs := make([]evaluation, 0, len(refs))
	for _, ref := range refs {
		rec, err := s.store.Get(ctx, accountID, ref.modelID)
		if err != nil {
			return nil, err
		}
		ev := evaluate(rec, ref.limits, now)
		if ev.coerced {
			s.publish(ctx, accountID, ref.modelID, inats.EventCounterCoerced, "warn", "stored counter was not a non-negative integer")
		}
		evs = append(evs, ev)
	}
	return evs, nil
}

// incrementQuota is the idempotent upsert of one quota: create at 1/1 for a
// never-seen pair, otherwise lazy-reset stale buckets and add one.
func (s *Service) incrementQuota(ctx context.Context, accountID, modelID string, now time.Time) error {
	rec, err := s.store.Get(ctx, accountID, modelID)
	if err != nil {
		return err
	}

	if rec == nil {
		fresh := &Record{
			ID:              uuid.New(),
			AccountID:       accountID,
			ModelID:         modelID,
			DailyCount:      "1",
			MinuteCount:     "1",
			LastDailyReset:  now,
			LastMinuteReset: now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		inserted, err := s.store.Insert(ctx, fresh)
		if err != nil {
			return err
		}
		if inserted {
			return nil
		}
		// Lost the creation race; fall through to read-and-update.
		rec, err = s.store.Get(ctx, accountID, modelID)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("rate limit record for %s/%s missing after insert conflict", accountID, modelID)
		}
	}

	daily, minute, coerced := usedCounts(rec, now)
	if coerced {
		s.publish(ctx, accountID, modelID, inats.EventCounterCoerced, "warn", "stored counter was not a non-negative integer")
	}
	if rec.LastDailyReset.Before(DailyBucketStart(now)) {
		rec.LastDailyReset = DailyBucketStart(now)
	}
	if rec.LastMinuteReset.Before(MinuteBucketStart(now)) {
		rec.LastMinuteReset = MinuteBucketStart(now)
	}
	rec.DailyCount = strconv.Itoa(daily + 1)
	rec.MinuteCount = strconv.Itoa(minute + 1)
	rec.UpdatedAt = now

	return s.store.Update(ctx, rec)
}

// composeQuotas folds N evaluated quotas into one verdict: effective
// remaining counts are the minimum across quotas, and admission requires
// every quota to have headroom in both windows. Written generically so a
// third quota tier composes without touching the denial logic.
func composeQuotas(quotas []evaluation, now time.Time) Verdict {
	v := Verdict{
		Allowed:         true,
		RemainingDaily:  Unlimited,
		RemainingMinute: Unlimited,
		ResetTime:       resetTimes(now),
	}
	for _, q := range quotas {
		if v.RemainingDaily == Unlimited || q.remainingDaily < v.RemainingDaily {
			v.RemainingDaily = q.remainingDaily
		}
		if v.RemainingMinute == Unlimited || q.remainingMinute < v.RemainingMinute {
			v.RemainingMinute = q.remainingMinute
		}
	}
	if v.RemainingDaily == 0 {
		v.Allowed = false
		v.Reason = ReasonDailyLimitExceeded
	} else if v.RemainingMinute == 0 {
		v.Allowed = false
		v.Reason = ReasonMinuteLimitExceeded
	}
	return v
}

func unlimitedVerdict(now time.Time) Verdict {
	return Verdict{
		Allowed:         true,
		RemainingDaily:  Unlimited,
		RemainingMinute: Unlimited,
		ResetTime:       resetTimes(now),
	}
}

// publish sends an audit event to the event plane. Event-plane trouble must
// never affect an admission decision, so failures are logged and dropped.
func (s *Service) publish(ctx context.Context, accountID, modelID, eventType, severity, details string) {
	if s.events == nil {
		return
	}
	ev := inats.RateLimitEvent{
		AccountID: accountID,
		ModelID:   modelID,
		EventType: eventType,
		Severity:  severity,
		Details:   details,
		Timestamp: s.now().UTC(),
	}
	if err := s.events.PublishRateLimitEvent(ctx, ev); err != nil {
		slog.Warn("publishing rate limit event", "error", err, "event_type", eventType, "account_id", accountID)
	}
}

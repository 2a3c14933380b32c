package nats

import "time"

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "QUOTAGATE_EVENTS"
)

// Subject constants.
const (
	SubjectRateLimitEvent = "quotagate.events.ratelimit"
)

// Rate limit event types.
const (
	EventLimitDenied          = "limit_denied"
	EventUsageRecorded        = "usage_recorded"
	EventCounterCoerced       = "counter_coerced"
	EventPartialRecordFailure = "partial_record_failure"
)

// RateLimitEvent is published for every admission denial, recorded usage,
// counter coercion, and partial dual-quota recording failure. The audit
// consumer persists these for the account-facing audit trail.
type RateLimitEvent struct {
	AccountID string    `json:"account_id"`
	ModelID   string    `json:"model_id"`
	EventType string    `json:"event_type"`
	Severity  string    `json:"severity"` // info, warn, error
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

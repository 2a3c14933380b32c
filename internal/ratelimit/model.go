package ratelimit

import (
	"time"

	"github.com/google/uuid"
)

// Deny reasons returned on an exhausted quota.
const (
	ReasonDailyLimitExceeded  = "daily_limit_exceeded"
	ReasonMinuteLimitExceeded = "minute_limit_exceeded"
)

// Unlimited marks a remaining count that has no ceiling (unmetered model or
// premium access to the lite model). Kept as an integer sentinel so verdicts
// stay integer-typed in JSON.
const Unlimited = -1

// Record matches the rate_limit_records table schema. One row per
// (account, model) pair, enforced by the unique_account_model constraint.
// Request counts are stored as text - the schema is inherited from the
// platform's original usage tables - so parsing and the coerce-to-zero
// policy for corrupted values live in the evaluator.
type Record struct {
	ID              uuid.UUID `json:"id"`
	AccountID       string    `json:"account_id"`
	ModelID         string    `json:"model_id"`
	DailyCount      string    `json:"daily_request_count"`
	MinuteCount     string    `json:"minute_request_count"`
	LastDailyReset  time.Time `json:"last_daily_reset"`
	LastMinuteReset time.Time `json:"last_minute_reset"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ResetTime carries the next window boundaries for client display.
type ResetTime struct {
	Daily  time.Time `json:"daily"`
	Minute time.Time `json:"minute"`
}

// Verdict is the admission decision returned by CheckRateLimit.
// Reason is set only when Allowed is false.
type Verdict struct {
	Allowed         bool      `json:"allowed"`
	Reason          string    `json:"reason,omitempty"`
	RemainingDaily  int       `json:"remaining_daily"`
	RemainingMinute int       `json:"remaining_minute"`
	ResetTime       ResetTime `json:"reset_time"`
}

// Status is the read-only usage projection for UI display.
// For dual-quota accounts, remaining counts are the minimum across both
// quotas while used counts reflect the quota with the higher usage.
type Status struct {
	DailyUsed       int       `json:"daily_used"`
	MinuteUsed      int       `json:"minute_used"`
	DailyLimit      int       `json:"daily_limit"`
	MinuteLimit     int       `json:"minute_limit"`
	RemainingDaily  int       `json:"remaining_daily"`
	RemainingMinute int       `json:"remaining_minute"`
	ResetTime       ResetTime `json:"reset_time"`
}

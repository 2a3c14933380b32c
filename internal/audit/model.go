package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Log matches the audit_logs table schema. One row per rate limit event
// (denial, recorded usage, counter coercion, partial recording failure).
type Log struct {
	ID        uuid.UUID       `json:"id"`
	AccountID string          `json:"account_id"`
	EventType string          `json:"event_type"`
	Severity  string          `json:"severity"`
	ModelID   string          `json:"model_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListParams holds pagination and filtering parameters for audit log queries.
type ListParams struct {
	EventType string
	Severity  string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// DefaultListParams returns sensible defaults.
func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}

package ratelimit

import "github.com/vtchat-platform/quotagate/internal/config"

// Limits is one daily/minute ceiling pair.
type Limits struct {
	PerDay    int
	PerMinute int
}

// ModelLimits holds the free-tier and premium-tier limits for one model.
type ModelLimits struct {
	Free Limits
	Plus Limits
}

// Table is the static RATE_LIMITS mapping. Models absent from the table are
// not metered at all; the lite model additionally acts as the shared quota
// that premium usage of other metered models drains.
type Table struct {
	LiteModelID string
	Models      map[string]ModelLimits
}

// TableFromConfig builds the limits table from the loaded configuration.
func TableFromConfig(cfg config.RateLimitConfig) Table {
	pair := func(p config.LimitPair) Limits {
		return Limits{PerDay: p.PerDay, PerMinute: p.PerMinute}
	}
	return Table{
		LiteModelID: cfg.LiteModelID,
		Models: map[string]ModelLimits{
			cfg.LiteModelID:  {Free: pair(cfg.LiteFree), Plus: pair(cfg.LitePlus)},
			cfg.FlashModelID: {Free: pair(cfg.FlashFree), Plus: pair(cfg.FlashPlus)},
			cfg.ProModelID:   {Free: pair(cfg.ProFree), Plus: pair(cfg.ProPlus)},
		},
	}
}

// Metered reports whether the model is subject to rate limiting.
// BYOK and paid provider models are not in the table and pass through freely.
func (t Table) Metered(modelID string) bool {
	_, ok := t.Models[modelID]
	return ok
}

// LimitsFor returns the applicable ceiling pair for a model and tier.
// The second return is false for unmetered models.
func (t Table) LimitsFor(modelID string, premium bool) (Limits, bool) {
	ml, ok := t.Models[modelID]
	if !ok {
		return Limits{}, false
	}
	if premium {
		return ml.Plus, true
	}
	return ml.Free, true
}

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secret
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// Rate limit table sanity
	rl := c.RateLimit
	if rl.LiteModelID == "" {
		errs = append(errs, "RATELIMIT_LITE_MODEL is required")
	}
	if rl.LiteModelID != "" && (rl.LiteModelID == rl.FlashModelID || rl.LiteModelID == rl.ProModelID) {
		errs = append(errs, "RATELIMIT_LITE_MODEL must differ from the other metered models")
	}
	for name, pair := range map[string]LimitPair{
		"lite free":  rl.LiteFree,
		"lite plus":  rl.LitePlus,
		"flash plus": rl.FlashPlus,
		"pro plus":   rl.ProPlus,
	} {
		if pair.PerDay < 1 || pair.PerMinute < 1 {
			errs = append(errs, fmt.Sprintf("rate limits for %s tier must be positive, got %d/day %d/min", name, pair.PerDay, pair.PerMinute))
		}
		if pair.PerMinute > pair.PerDay {
			errs = append(errs, fmt.Sprintf("per-minute limit for %s tier exceeds its daily limit", name))
		}
	}
	if rl.EdgeMaxRequests < 1 || rl.EdgeWindowSec < 1 {
		errs = append(errs, "edge limiter requires positive max requests and window")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}

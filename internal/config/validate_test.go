package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB:     DBConfig{Host: "localhost", Port: 5432, Password: "secret", MaxConns: 25},
		Redis:  RedisConfig{Host: "localhost", Port: 6379},
		JWT:    JWTConfig{AccessSecret: "a-secret-that-is-at-least-32-chars!!"},
	}
	applyRateLimitDefaults(&cfg.RateLimit)
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_ShortJWTSecret(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = "too-short"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ACCESS_SECRET")
}

func TestValidate_MissingDBPassword(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Password = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PASSWORD")
}

func TestValidate_BadPorts(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Redis.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "REDIS_PORT")
}

func TestValidate_LiteModelMustDiffer(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.FlashModelID = cfg.RateLimit.LiteModelID

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestValidate_MinuteLimitCannotExceedDaily(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.LiteFree = LimitPair{PerDay: 5, PerMinute: 50}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds its daily limit")
}

func TestValidate_NonPositiveLimits(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.ProPlus = LimitPair{PerDay: 0, PerMinute: 0}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pro plus")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.AccessSecret = ""
	cfg.DB.Password = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ACCESS_SECRET")
	assert.Contains(t, err.Error(), "DB_PASSWORD")
}

func TestApplyRateLimitDefaults(t *testing.T) {
	var rl RateLimitConfig
	applyRateLimitDefaults(&rl)

	assert.Equal(t, "gemini-flash-lite-latest", rl.LiteModelID)
	assert.Equal(t, LimitPair{PerDay: 20, PerMinute: 5}, rl.LiteFree)
	assert.Equal(t, "/pricing", rl.UpgradeURL)
	assert.Equal(t, 120, rl.EdgeMaxRequests)
}

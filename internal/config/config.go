package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
	JWT       JWTConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32

	// MigrationsPath is the directory holding golang-migrate SQL files.
	// Empty disables startup migrations.
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// LimitPair is one daily/minute ceiling pair.
type LimitPair struct {
	PerDay    int
	PerMinute int
}

// RateLimitConfig drives the static RATE_LIMITS table. The lite model is the
// free-tier model whose quota premium accounts also drain when using the
// other metered models.
type RateLimitConfig struct {
	LiteModelID  string
	FlashModelID string
	ProModelID   string

	LiteFree  LimitPair
	LitePlus  LimitPair
	FlashFree LimitPair
	FlashPlus LimitPair
	ProFree   LimitPair
	ProPlus   LimitPair

	UpgradeURL string

	// Edge limiter for the public HTTP surface (per IP, before auth).
	EdgeMaxRequests int
	EdgeWindowSec   int
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               k.String("server.host"),
			Port:               k.Int("server.port"),
			CORSAllowedOrigins: k.Strings("server.cors.origins"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),

			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret: k.String("jwt.access.secret"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
		RateLimit: RateLimitConfig{
			LiteModelID:  k.String("ratelimit.lite.model"),
			FlashModelID: k.String("ratelimit.flash.model"),
			ProModelID:   k.String("ratelimit.pro.model"),
			LiteFree: LimitPair{
				PerDay:    k.Int("ratelimit.lite.free.day"),
				PerMinute: k.Int("ratelimit.lite.free.minute"),
			},
			LitePlus: LimitPair{
				PerDay:    k.Int("ratelimit.lite.plus.day"),
				PerMinute: k.Int("ratelimit.lite.plus.minute"),
			},
			FlashFree: LimitPair{
				PerDay:    k.Int("ratelimit.flash.free.day"),
				PerMinute: k.Int("ratelimit.flash.free.minute"),
			},
			FlashPlus: LimitPair{
				PerDay:    k.Int("ratelimit.flash.plus.day"),
				PerMinute: k.Int("ratelimit.flash.plus.minute"),
			},
			ProFree: LimitPair{
				PerDay:    k.Int("ratelimit.pro.free.day"),
				PerMinute: k.Int("ratelimit.pro.free.minute"),
			},
			ProPlus: LimitPair{
				PerDay:    k.Int("ratelimit.pro.plus.day"),
				PerMinute: k.Int("ratelimit.pro.plus.minute"),
			},
			UpgradeURL:      k.String("ratelimit.upgrade.url"),
			EdgeMaxRequests: k.Int("ratelimit.edge.max.requests"),
			EdgeWindowSec:   k.Int("ratelimit.edge.window.seconds"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "quotagate"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "quotagate"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	applyRateLimitDefaults(&cfg.RateLimit)

	// Parse durations
	accessExpStr := k.String("jwt.access.expiry")
	if accessExpStr == "" {
		accessExpStr = "15m"
	}
	cfg.JWT.AccessExpiry, err = time.ParseDuration(accessExpStr)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt access expiry: %w", err)
	}

	return cfg, nil
}

func applyRateLimitDefaults(rl *RateLimitConfig) {
	if rl.LiteModelID == "" {
		rl.LiteModelID = "gemini-flash-lite-latest"
	}
	if rl.FlashModelID == "" {
		rl.FlashModelID = "gemini-flash-latest"
	}
	if rl.ProModelID == "" {
		rl.ProModelID = "gemini-2.5-pro"
	}
	if rl.LiteFree == (LimitPair{}) {
		rl.LiteFree = LimitPair{PerDay: 20, PerMinute: 5}
	}
	if rl.LitePlus == (LimitPair{}) {
		rl.LitePlus = LimitPair{PerDay: 1000, PerMinute: 100}
	}
	if rl.FlashFree == (LimitPair{}) {
		rl.FlashFree = LimitPair{PerDay: 5, PerMinute: 2}
	}
	if rl.FlashPlus == (LimitPair{}) {
		rl.FlashPlus = LimitPair{PerDay: 500, PerMinute: 10}
	}
	if rl.ProFree == (LimitPair{}) {
		rl.ProFree = LimitPair{PerDay: 2, PerMinute: 1}
	}
	if rl.ProPlus == (LimitPair{}) {
		rl.ProPlus = LimitPair{PerDay: 200, PerMinute: 5}
	}
	if rl.UpgradeURL == "" {
		rl.UpgradeURL = "/pricing"
	}
	if rl.EdgeMaxRequests == 0 {
		rl.EdgeMaxRequests = 120
	}
	if rl.EdgeWindowSec == 0 {
		rl.EdgeWindowSec = 60
	}
}

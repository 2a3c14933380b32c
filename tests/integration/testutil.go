//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vtchat-platform/quotagate/internal/api"
	"github.com/vtchat-platform/quotagate/internal/audit"
	"github.com/vtchat-platform/quotagate/internal/auth"
	"github.com/vtchat-platform/quotagate/internal/config"
	"github.com/vtchat-platform/quotagate/internal/middleware"
	"github.com/vtchat-platform/quotagate/internal/ratelimit"
)

// Model IDs used by the integration suite; they match the config defaults.
const (
	liteModel = "gemini-flash-lite-latest"
	proModel  = "gemini-2.5-pro"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	Verifier    *auth.Verifier
	AuditRepo   *audit.Repository
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "quotagate_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/quotagate_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	m, err := migrate.New(
		fmt.Sprintf("file://%s", getMigrationsPath()),
		dsn,
	)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Setup services; no NATS so audit events are discarded.
	var rlCfg config.RateLimitConfig
	rlCfg.UpgradeURL = "/pricing"
	rlCfg.LiteModelID = liteModel
	rlCfg.FlashModelID = "gemini-flash-latest"
	rlCfg.ProModelID = proModel
	rlCfg.LiteFree = config.LimitPair{PerDay: 20, PerMinute: 5}
	rlCfg.LitePlus = config.LimitPair{PerDay: 1000, PerMinute: 100}
	rlCfg.FlashFree = config.LimitPair{PerDay: 5, PerMinute: 2}
	rlCfg.FlashPlus = config.LimitPair{PerDay: 500, PerMinute: 10}
	rlCfg.ProFree = config.LimitPair{PerDay: 2, PerMinute: 1}
	rlCfg.ProPlus = config.LimitPair{PerDay: 200, PerMinute: 5}

	verifier := auth.NewVerifier("test-access-secret-32-chars-long!!", 15*time.Minute)

	rlStore := ratelimit.NewRepository(pool)
	rlService := ratelimit.NewService(rlStore, ratelimit.TableFromConfig(rlCfg), nil)
	rlHandler := ratelimit.NewHandler(rlService, rlCfg.UpgradeURL)

	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo)

	// Generous edge limit so the per-IP throttle never interferes here.
	edgeLimiter := middleware.NewEdgeLimiter(redisClient, 10000, 60)

	router := api.NewRouter(pool, nil, api.RouterConfig{
		EdgeLimiter: edgeLimiter.Middleware,
	}, api.HandlerSet{
		CheckRateLimit:  rlHandler.Check,
		RecordRequest:   rlHandler.Record,
		RateLimitStatus: rlHandler.Status,

		ListAuditLogs: auditHandler.List,

		AuthMiddleware: auth.Middleware(verifier),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		Verifier:    verifier,
		AuditRepo:   auditRepo,
	}

	return testEnv
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

func TokenFor(t *testing.T, env *TestEnv, accountID, plan string) string {
	t.Helper()
	token, err := env.Verifier.Issue(accountID, plan)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return token
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}

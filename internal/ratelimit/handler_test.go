package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtchat-platform/quotagate/internal/auth"
)

// Handler tests run against the real clock so Retry-After values are
// meaningful; records are seeded with time.Now().
func newTestHandler(store *memStore) *Handler {
	svc := NewService(store, testTable(), nil)
	return NewHandler(svc, "/pricing")
}

func doRequest(h http.HandlerFunc, method, target, body string, claims *auth.Claims) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if claims != nil {
		req = req.WithContext(auth.ContextWithClaims(req.Context(), claims))
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestHandlerCheck_Allowed(t *testing.T) {
	h := newTestHandler(newMemStore())
	claims := &auth.Claims{AccountID: "acct-1"}

	rr := doRequest(h.Check, http.MethodPost, "/api/v1/ratelimit/check", `{"model_id":"lite-model"}`, claims)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data Verdict `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Allowed)
	assert.Equal(t, 20, resp.Data.RemainingDaily)
}

func TestHandlerCheck_MinuteDenied(t *testing.T) {
	store := newMemStore()
	now := time.Now().UTC()
	store.seed("acct-1", "lite-model", "10", "5", now, now)
	h := newTestHandler(store)
	claims := &auth.Claims{AccountID: "acct-1"}

	rr := doRequest(h.Check, http.MethodPost, "/api/v1/ratelimit/check", `{"model_id":"lite-model"}`, claims)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	retryAfter, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 1)
	assert.LessOrEqual(t, retryAfter, 60, "minute denial retries within the next minute window")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded", body["error"])
	assert.Equal(t, "minute_limit_exceeded", body["limitType"])
	assert.Equal(t, float64(10), body["remainingDaily"])
	assert.Equal(t, float64(0), body["remainingMinute"])
	assert.Equal(t, "/pricing", body["upgradeUrl"])
	assert.Contains(t, body["message"], "wait a moment")

	resetTime, err := time.Parse(time.RFC3339, body["resetTime"].(string))
	require.NoError(t, err)
	assert.True(t, resetTime.After(time.Now().Add(-time.Second)))
}

func TestHandlerCheck_DailyDenied(t *testing.T) {
	store := newMemStore()
	now := time.Now().UTC()
	store.seed("acct-1", "lite-model", "20", "0", now, now)
	h := newTestHandler(store)
	claims := &auth.Claims{AccountID: "acct-1"}

	rr := doRequest(h.Check, http.MethodPost, "/api/v1/ratelimit/check", `{"model_id":"lite-model"}`, claims)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "daily_limit_exceeded", body["limitType"])
	assert.Contains(t, body["message"], "daily limit")
}

func TestHandlerCheck_Unauthorized(t *testing.T) {
	h := newTestHandler(newMemStore())

	rr := doRequest(h.Check, http.MethodPost, "/api/v1/ratelimit/check", `{"model_id":"lite-model"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandlerCheck_MissingModelID(t *testing.T) {
	h := newTestHandler(newMemStore())
	claims := &auth.Claims{AccountID: "acct-1"}

	rr := doRequest(h.Check, http.MethodPost, "/api/v1/ratelimit/check", `{}`, claims)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerRecord_NoContent(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store)
	claims := &auth.Claims{AccountID: "acct-1"}

	rr := doRequest(h.Record, http.MethodPost, "/api/v1/ratelimit/record", `{"model_id":"lite-model"}`, claims)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, store.record("acct-1", "lite-model"))
	assert.Equal(t, "1", store.record("acct-1", "lite-model").DailyCount)
}

func TestHandlerStatus_OK(t *testing.T) {
	store := newMemStore()
	now := time.Now().UTC()
	store.seed("acct-1", "lite-model", "7", "3", now, now)
	h := newTestHandler(store)
	claims := &auth.Claims{AccountID: "acct-1"}

	rr := doRequest(h.Status, http.MethodGet, "/api/v1/ratelimit/status?model_id=lite-model", "", claims)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data Status `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Data.DailyUsed)
	assert.Equal(t, 13, resp.Data.RemainingDaily)
}

func TestHandlerStatus_UnmeteredNoContent(t *testing.T) {
	h := newTestHandler(newMemStore())
	claims := &auth.Claims{AccountID: "acct-1"}

	rr := doRequest(h.Status, http.MethodGet, "/api/v1/ratelimit/status?model_id=byok-model", "", claims)

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHandlerStatus_MissingModelID(t *testing.T) {
	h := newTestHandler(newMemStore())
	claims := &auth.Claims{AccountID: "acct-1"}

	rr := doRequest(h.Status, http.MethodGet, "/api/v1/ratelimit/status", "", claims)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

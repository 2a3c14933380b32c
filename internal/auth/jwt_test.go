package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-123"

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier(testSecret, 15*time.Minute)

	token, err := v.Issue("acct-1", "")
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.AccountID)
	assert.False(t, claims.Premium())
}

func TestVerifier_PremiumPlan(t *testing.T) {
	v := NewVerifier(testSecret, 15*time.Minute)

	token, err := v.Issue("acct-1", PlanPlus)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.True(t, claims.Premium())
}

func TestVerifier_WrongSecret(t *testing.T) {
	v := NewVerifier(testSecret, 15*time.Minute)
	other := NewVerifier("another-secret-that-is-long-enough", 15*time.Minute)

	token, err := v.Issue("acct-1", "")
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestVerifier_ExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret, -time.Minute)

	token, err := v.Issue("acct-1", "")
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.Error(t, err)
}

func TestVerifier_MissingAccountID(t *testing.T) {
	v := NewVerifier(testSecret, 15*time.Minute)

	token, err := v.Issue("", "")
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.Error(t, err)
}

func TestMiddleware_ValidToken(t *testing.T) {
	v := NewVerifier(testSecret, 15*time.Minute)
	token, err := v.Issue("acct-1", PlanPlus)
	require.NoError(t, err)

	var got *Claims
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClaims(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, "acct-1", got.AccountID)
	assert.True(t, got.Premium())
}

func TestMiddleware_MissingHeader(t *testing.T) {
	v := NewVerifier(testSecret, 15*time.Minute)
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	v := NewVerifier(testSecret, 15*time.Minute)
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	for _, header := range []string{"Bearer", "Basic abc123", "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "header %q", header)
	}
}

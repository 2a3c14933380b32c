package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PlanPlus is the subscription plan claim value that grants premium limits.
const PlanPlus = "plus"

// Claims is the access token payload quotagate cares about. Tokens are
// issued by the platform's auth service; quotagate only verifies them and
// reads the account identity and plan. Entitlement is never computed here.
type Claims struct {
	AccountID string `json:"aid"`
	Plan      string `json:"plan,omitempty"`
	jwt.RegisteredClaims
}

// Premium reports whether the token's plan grants premium-tier limits.
func (c *Claims) Premium() bool {
	return c.Plan == PlanPlus
}

// Verifier validates platform-issued access tokens.
type Verifier struct {
	secret []byte
	expiry time.Duration
}

// NewVerifier creates a token Verifier sharing the platform's signing secret.
func NewVerifier(secret string, expiry time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), expiry: expiry}
}

// Verify parses and validates an access token.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}
	if claims.AccountID == "" {
		return nil, fmt.Errorf("access token missing account id")
	}

	return claims, nil
}

// Issue signs a token for the given account and plan. Used by tests and
// local tooling; production tokens come from the platform auth service.
func (v *Verifier) Issue(accountID, plan string) (string, error) {
	now := time.Now()
	claims := Claims{
		AccountID: accountID,
		Plan:      plan,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(v.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "quotagate",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

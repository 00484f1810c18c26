// Package identity implements the Atelier session layer.
//
// It provides:
//   - TokenIssuer     — issues and verifies HS256 session JWTs
//   - RequireAccount  — Gin middleware enforcing the account approval gate
//   - RequireAdmin    — Gin middleware further restricting a route to admins
package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionTTL is the validity window of a standard session token.
const SessionTTL = 30 * 24 * time.Hour

// AdminSessionTTL is the deliberately shorter validity window of an admin
// session token.
const AdminSessionTTL = 24 * time.Hour

// Claims are the JWT claims carried by an Atelier session token.
type Claims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
	Username  string `json:"username,omitempty"`
}

// TokenIssuer issues and verifies session JWTs signed with a process-wide
// secret. The secret is injected at construction — there is no package-level
// signing state.
type TokenIssuer struct {
	secret []byte
	issuer string
}

// NewTokenIssuer creates a TokenIssuer.
//
//	secret — the HMAC signing secret shared by every instance of the process.
//	issuer — the "iss" claim value; matches the API's base URL.
func NewTokenIssuer(secret []byte, issuer string) *TokenIssuer {
	return &TokenIssuer{secret: secret, issuer: issuer}
}

// Issue creates a signed 30-day session token for a regular login or
// registration.
func (t *TokenIssuer) Issue(accountID uuid.UUID, role, username string) (string, error) {
	return t.sign(accountID, role, username, SessionTTL)
}

// IssueAdmin creates a signed 1-day session token for an admin console login.
func (t *TokenIssuer) IssueAdmin(accountID uuid.UUID, username string) (string, error) {
	return t.sign(accountID, "admin", username, AdminSessionTTL)
}

func (t *TokenIssuer) sign(accountID uuid.UUID, role, username string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.New().String(),
		},
		AccountID: accountID.String(),
		Role:      role,
		Username:  username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// oauthStateTTL bounds how long an OAuth round-trip may take.
const oauthStateTTL = 10 * time.Minute

// IssueOAuthState creates a short-lived signed state value for the Google
// sign-in round-trip. Signing it means no server-side state store is needed.
func (t *TokenIssuer) IssueOAuthState() (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   "oauth-state",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(oauthStateTTL)),
		ID:        uuid.New().String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return signed, nil
}

// VerifyOAuthState validates a state value produced by IssueOAuthState.
func (t *TokenIssuer) VerifyOAuthState(state string) error {
	token, err := jwt.ParseWithClaims(
		state,
		&jwt.RegisteredClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithSubject("oauth-state"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("verify oauth state: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid oauth state")
	}
	return nil
}

// Verify parses and validates a session token, returning its claims.
func (t *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify session token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session token claims")
	}
	if claims.AccountID == "" {
		return nil, fmt.Errorf("session token missing account id")
	}
	return claims, nil
}

// Bearer credential extraction and token verification.
//
// This file defines the Verifier contract consumed by the identity resolver
// and an HMAC (HS256) JWT implementation of it. The verifier is the only
// component that inspects token cryptography; callers observe just
// (*Claims, error).
package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// bearerPrefix is the credential scheme stripped from Authorization headers.
const bearerPrefix = "Bearer "

// ExtractBearer pulls a bearer token out of an Authorization header value.
//
// It strips a literal "Bearer " prefix (case-insensitively) when present and
// trims surrounding whitespace. The second return value reports presence:
// absence of a credential is a normal, expected state — many routes are
// legitimately accessible anonymously — so this function never errors.
func ExtractBearer(header string) (string, bool) {
	h := strings.TrimSpace(header)
	if h == "" {
		return "", false
	}
	if len(h) >= len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		h = strings.TrimSpace(h[len(bearerPrefix):])
	}
	if h == "" {
		return "", false
	}
	return h, true
}

// Claims is the verified claim set of an access token. Permissions carries
// the capability names granted to the subject (Auth0-style "permissions"
// claim); Email links the token to an application user row.
type Claims struct {
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Verifier validates a raw token string and yields its claims. Verification
// failure is reported as an error; the resolver decides how failures are
// consumed (soft, fail-open-to-anonymous).
type Verifier interface {
	Verify(tokenStr string) (*Claims, error)
}

// HMACVerifier verifies HS256-signed JWTs against a shared secret and
// optionally enforces issuer and audience.
type HMACVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

// NewHMACVerifier constructs a verifier for the given secret. Issuer and
// audience checks are enforced only when non-empty.
func NewHMACVerifier(secret []byte, issuer, audience string) *HMACVerifier {
	return &HMACVerifier{secret: secret, issuer: issuer, audience: audience}
}

// Verify implements the Verifier interface. It enforces the HMAC signing
// method (rejecting alg-substitution tokens), signature validity, and expiry;
// issuer/audience are checked when configured.
func (v *HMACVerifier) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}
	return claims, nil
}

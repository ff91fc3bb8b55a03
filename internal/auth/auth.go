// Package auth verifies access tokens issued by the marketplace identity
// service. Tokens are HS256 JWTs carrying the user id, session id and role;
// this service never issues tokens in production, Sign exists for tooling and
// tests.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-marketplace-chat/internal/domain"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the access token claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
	Role      string `json:"role"`
}

// Verifier validates access tokens with a shared secret.
type Verifier struct {
	secret   []byte
	audience string
}

// NewVerifier returns a Verifier. An empty audience disables the aud check.
func NewVerifier(secret, audience string) *Verifier {
	return &Verifier{secret: []byte(secret), audience: audience}
}

// Verify parses and validates a token and returns the caller's identity.
func (v *Verifier) Verify(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrExpiredToken
		}
		return domain.Identity{}, ErrInvalidToken
	}
	if !t.Valid || claims.UserID == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	return domain.Identity{UserID: claims.UserID, Role: domain.ParseRole(claims.Role)}, nil
}

// Sign issues a token for id valid for ttl.
func (v *Verifier) Sign(id domain.Identity, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    id.UserID,
		SessionID: sessionID,
		Role:      string(id.Role),
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest extracts a token from, in order, the named cookie, an
// "Authorization: Bearer" header and the "token" query parameter.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	return r.URL.Query().Get("token")
}

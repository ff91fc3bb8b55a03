// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file authenticates API requests. The access token is read from the
// auth cookie, the Authorization bearer header, or the token query parameter
// (in that order) and verified once; the resulting identity is stored in the
// context for handlers and downstream middleware.
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-marketplace-chat/internal/auth"
	"github.com/tbourn/go-marketplace-chat/internal/domain"
)

const (
	ctxKeyIdentity = "identity"
	ctxKeyUserID   = "userID"
	ctxKeyRole     = "role"
)

// TokenVerifier turns a raw access token into an identity.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// Authenticate rejects requests without a valid access token with 401.
func Authenticate(v TokenVerifier, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.Verify(auth.TokenFromRequest(c.Request, cookieName))
		if err != nil {
			msg := "authentication required"
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				msg = "access token has expired"
			case errors.Is(err, auth.ErrInvalidToken):
				msg = "invalid access token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(HeaderRequestID),
				"code":       "unauthorized",
				"message":    msg,
			})
			return
		}
		SetIdentity(c, id)
		c.Next()
	}
}

// SetIdentity stores id in the context and tags the request-scoped logger.
func SetIdentity(c *gin.Context, id domain.Identity) {
	c.Set(ctxKeyIdentity, id)
	c.Set(ctxKeyUserID, id.UserID)
	c.Set(ctxKeyRole, string(id.Role))

	l := LoggerFrom(c).With().
		Str("user_id", id.UserID).
		Str("role", string(id.Role)).
		Logger()
	c.Set(loggerKey, &l)
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	id, ok := c.Value(ctxKeyIdentity).(domain.Identity)
	return id, ok && id.UserID != ""
}

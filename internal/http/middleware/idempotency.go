// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on message sends and,
// when a stored entry already exists for (user, room, key), marks the request
// as a replay so the rate limiter skips it. The handler still performs the
// authoritative check-and-insert in the service transaction; the lookup here
// is advisory.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header carrying the client key.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key, if the request carried one.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	s, _ := c.Value(ctxKeyIdemKey).(string)
	return s, s != ""
}

// IsReplay reports whether a stored entry was found for the request's key.
func IsReplay(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyIdemReplay).(bool)
	return b
}

// IdempotencyOptions tunes key validation.
type IdempotencyOptions struct {
	// MaxLen caps the key length (default 200).
	MaxLen int
	// Pattern restricts the allowed characters (default URL-safe tokens).
	Pattern *regexp.Regexp
	// RoomParam names the path parameter holding the room id (default "roomId").
	RoomParam string
}

// IdempotencyLookup reports whether a live entry exists for the key.
type IdempotencyLookup func(ctx context.Context, userID, roomID, key string, now time.Time) (bool, error)

// IdempotencyValidator rejects malformed keys with 400 and stores valid ones
// in the context. It must run after Authenticate so the lookup is scoped to
// the caller. Lookup errors are logged and otherwise ignored.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	param := opts.RoomParam
	if param == "" {
		param = "roomId"
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(HeaderRequestID),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		id, authed := IdentityFrom(c)
		roomID := c.Param(param)
		if lookup != nil && authed && roomID != "" {
			exists, err := lookup(c.Request.Context(), id.UserID, roomID, key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
			}
			if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

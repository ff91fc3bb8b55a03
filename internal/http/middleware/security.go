// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file sets baseline security headers on every response and exposes the
// custom response headers browser clients need to read (request id,
// idempotent replay marker, ETag).
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// exposedHeaders are made readable to cross-origin clients.
var exposedHeaders = []string{HeaderRequestID, "Idempotent-Replay", "ETag"}

// SecurityOptions toggles the optional headers.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// NoStore marks responses as non-cacheable by intermediaries.
	NoStore bool
	// EnablePolicy adds Permissions-Policy and cross-domain policy headers.
	EnablePolicy bool
}

// SecurityHeaders returns the middleware.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 180 * 24 * time.Hour
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		exposeHeaders(h, exposedHeaders...)

		c.Next()
	}
}

// exposeHeaders appends names to Access-Control-Expose-Headers, skipping
// ones already listed (case-insensitively).
func exposeHeaders(h http.Header, names ...string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	have := make(map[string]struct{})
	for _, p := range strings.Split(cur, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			have[p] = struct{}{}
		}
	}
	parts := []string{}
	if strings.TrimSpace(cur) != "" {
		parts = append(parts, cur)
	}
	for _, n := range names {
		if _, ok := have[strings.ToLower(n)]; !ok {
			parts = append(parts, n)
		}
	}
	h.Set(key, strings.Join(parts, ", "))
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

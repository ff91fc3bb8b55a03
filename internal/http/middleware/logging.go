// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the request ID injector, a structured access logger that
// redacts credentials and personal data, a panic-safe recovery handler, and
// the accessor for the request-scoped logger.
//
// Recommended order: RequestID, Logger, Recovery. Authenticate runs later in
// the chain and enriches the request-scoped logger with the caller's id, so
// the access line (emitted after the handler) carries it too.
package middleware

import (
	"net/http"
	"net/url"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// HeaderRequestID carries the correlation ID in both directions.
	HeaderRequestID = "X-Request-ID"

	requestIDKey = "requestID"
	loggerKey    = "logger"

	// maxQueryLogLength caps the number of bytes of the query string logged.
	maxQueryLogLength = 2048

	redacted = "[REDACTED]"
)

var (
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// LogOptions configures what the access logger masks. The defaults below are
// always applied; options only add to them.
type LogOptions struct {
	// MaskHeaders are request headers logged as [REDACTED].
	MaskHeaders []string
	// MaskParams are query parameters whose values are logged as [REDACTED].
	MaskParams []string
	// LogHeaders includes the (masked) request headers in the access line.
	LogHeaders bool
}

// RequestID attaches (or propagates) a correlation identifier per request.
// An incoming X-Request-ID is reused; otherwise a UUIDv4 is generated. The ID
// is echoed on the response and stored in the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

// Logger writes one structured access line per request and stores a
// request-scoped zerolog.Logger under the "logger" context key.
//
// Credentials never reach the log: the Authorization and Cookie headers and
// the token query parameter (used by websocket clients) are masked, and
// e-mail addresses or phone numbers in the query are replaced.
//
// Level: error for 5xx or when c.Errors is non-empty, warn for 4xx, info
// otherwise.
func Logger(opts LogOptions) gin.HandlerFunc {
	maskHeaders := toSet([]string{"authorization", "cookie", "set-cookie"}, opts.MaskHeaders)
	maskParams := toSet([]string{"token", "access_token"}, opts.MaskParams)

	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(redactQuery(c.Request.URL.RawQuery, maskParams), maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()
		c.Set(loggerKey, &l)

		var headers map[string]string
		if opts.LogHeaders {
			headers = redactHeaders(c.Request.Header, maskHeaders)
		}

		c.Next()

		// Authenticate may have swapped in an enriched logger.
		lg := LoggerFrom(c)
		var ev *zerolog.Event
		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			ev = lg.Error().Str("errors", c.Errors.String())
		case status >= 500:
			ev = lg.Error()
		case status >= 400:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}
		if headers != nil {
			ev = ev.Interface("headers", headers)
		}
		ev.Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Msg("request")
	}
}

// Recovery converts a panic into a JSON 500 (when nothing has been written
// yet) and logs the stack trace with the request ID.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", asString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(HeaderRequestID, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// Logger did not run. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// redactQuery masks sensitive parameter values and scrubs personal data from
// the rest. Unparseable queries are scrubbed as a whole.
func redactQuery(raw string, mask map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return scrub(raw)
	}
	for k, vv := range q {
		if _, ok := mask[strings.ToLower(k)]; ok {
			q[k] = []string{redacted}
			continue
		}
		for i, v := range vv {
			vv[i] = scrub(v)
		}
	}
	return q.Encode()
}

func redactHeaders(h http.Header, mask map[string]struct{}) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := mask[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = scrub(strings.Join(vv, ", "))
	}
	return out
}

func scrub(s string) string {
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

func toSet(base, extra []string) map[string]struct{} {
	m := make(map[string]struct{}, len(base)+len(extra))
	for _, s := range append(base, extra...) {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			m[s] = struct{}{}
		}
	}
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate caps s at max bytes (not runes; fine for logs). max <= 0 disables.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

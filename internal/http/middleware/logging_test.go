package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) {
		v, _ := c.Get(requestIDKey)
		c.String(http.StatusOK, asString(v))
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/rid", nil))
	gen := w.Header().Get(HeaderRequestID)
	if gen == "" || w.Body.String() != gen {
		t.Fatalf("generated id header=%q ctx=%q", gen, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/rid", nil)
	req.Header.Set("x-request-id", "abc-123")
	if got := serve(r, req).Header().Get(HeaderRequestID); got != "abc-123" {
		t.Fatalf("propagated id = %q", got)
	}
}

func TestLogger_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(LogOptions{}))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/err", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
		c.Status(http.StatusBadRequest)
	})

	serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/missing", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/err", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("want 3 access lines, got %d:\n%s", len(lines), buf.String())
	}
	want := []struct{ level, path string }{
		{"info", "/ok"},
		{"warn", "/missing"},
		{"error", "/err"},
	}
	for i, w := range want {
		var m map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &m); err != nil {
			t.Fatal(err)
		}
		if m["level"] != w.level || m["path"] != w.path || m["request_id"] == "" {
			t.Fatalf("line %d = %v", i, m)
		}
	}
}

func TestLogger_RedactsCredentialsAndPersonalData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(LogOptions{LogHeaders: true, MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/chat/ws", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/chat/ws?token=eyJhbGciOi.secret&contact=bea@example.com&limit=50", nil)
	req.Header.Set("Authorization", "Bearer eyJhbGciOi.secret")
	req.Header.Set("Cookie", "accessToken=eyJhbGciOi.secret")
	req.Header.Set("X-Api-Key", "k-123")
	req.Header.Set("X-Note", "call +44 20 7946 0958")
	serve(r, req)

	out := buf.String()
	if strings.Contains(out, "secret") || strings.Contains(out, "k-123") {
		t.Fatalf("credential leaked:\n%s", out)
	}
	if strings.Contains(out, "bea@example.com") || strings.Contains(out, "7946") {
		t.Fatalf("personal data leaked:\n%s", out)
	}
	if !strings.Contains(out, "limit=50") {
		t.Fatalf("harmless params must be kept:\n%s", out)
	}
}

func TestLogger_PicksUpEnrichedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(LogOptions{}))
	r.GET("/me", func(c *gin.Context) {
		l := LoggerFrom(c).With().Str("user_id", "u-1").Logger()
		c.Set(loggerKey, &l)
		c.Status(http.StatusOK)
	})
	serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	if !strings.Contains(buf.String(), `"user_id":"u-1"`) {
		t.Fatalf("access line lacks user_id:\n%s", buf.String())
	}
}

func TestRecovery_PanicsToJSON500AndLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(LogOptions{}), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["code"] != "internal_error" || body["request_id"] != w.Header().Get(HeaderRequestID) {
		t.Fatalf("body = %v", body)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("panic not logged:\n%s", buf.String())
	}
}

func TestRecovery_PanicAfterWrite_NoJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/late", nil))
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("JSON written after partial body: %q", w.Body.String())
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.GET("/use", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("custom")
		c.Status(http.StatusOK)
	})
	serve(r, httptest.NewRequest(http.MethodGet, "/use", nil))
	if !strings.Contains(buf.String(), `"message":"custom"`) || strings.Contains(buf.String(), "request_id") {
		t.Fatalf("fallback logger output:\n%s", buf.String())
	}
}

func TestRedactQuery(t *testing.T) {
	mask := toSet([]string{"token"}, nil)
	cases := map[string]string{
		"":                     "",
		"token=abc":            "token=%5BREDACTED%5D",
		"TOKEN=abc":            "TOKEN=%5BREDACTED%5D",
		"cursor=m1&limit=10":   "cursor=m1&limit=10",
		"q=a@b.io":             "q=%5BREDACTED%3Aemail%5D",
		"bad=%zz&mail=x@y.com": "bad=%zz&mail=[REDACTED:email]",
	}
	for in, want := range cases {
		if got := redactQuery(in, mask); got != want {
			t.Errorf("redactQuery(%q) = %q, want %q", in, got, want)
		}
	}
	if truncate("abcdefgh", 5) != "abcde…" || truncate("abc", 0) != "abc" {
		t.Fatal("truncate")
	}
}

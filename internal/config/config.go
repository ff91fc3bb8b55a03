// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the HTTP
// server, the database connection, token verification, chat limits, the
// websocket transport, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "marketplace-chat")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the relational store backing rooms and messages.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres|mysql
	DSN    string // DB_DSN: required for postgres and mysql
	Path   string // DB_PATH: SQLite file path
}

// AuthConfig describes how access tokens issued by the auth service are verified.
type AuthConfig struct {
	JWTSecret  string // JWT_SECRET (HMAC)
	Audience   string // JWT_AUDIENCE
	CookieName string // AUTH_COOKIE
}

// ChatConfig holds content limits for messages and previews.
type ChatConfig struct {
	MessageMaxRunes  int // MESSAGE_MAX_RUNES
	AttachmentMaxLen int // ATTACHMENT_MAX_LEN
	PreviewMaxRunes  int // PREVIEW_MAX_RUNES
	HistoryPageSize  int // HISTORY_PAGE_SIZE, used by fetch-older-messages
}

// WSConfig tunes the websocket transport.
type WSConfig struct {
	WriteWait       time.Duration // WS_WRITE_WAIT
	PongWait        time.Duration // WS_PONG_WAIT; pings are sent at 9/10 of it
	MaxMessageBytes int64         // WS_MAX_MESSAGE_BYTES
	SendBuffer      int           // WS_SEND_BUFFER
	EventRPS        float64       // WS_EVENT_RPS
	EventBurst      int           // WS_EVENT_BURST
	AllowedOrigins  []string      // WS_ALLOWED_ORIGINS; empty allows any origin
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	DB   DBConfig
	Auth AuthConfig
	Chat ChatConfig
	WS   WSConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// PingPeriod is the interval between websocket pings. It must stay below
// PongWait so a healthy peer always answers before the read deadline.
func (w WSConfig) PingPeriod() time.Duration {
	return (w.PongWait * 9) / 10
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DB:   loadDB(),
		Auth: loadAuth(),
		Chat: loadChat(),
		WS:   loadWS(),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),
		OTEL:           loadOTEL(),
	}
	cfg.normalize()
	return cfg, cfg.validate()
}

func loadDB() DBConfig {
	return DBConfig{
		Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DSN:    getenv("DB_DSN", ""),
		Path:   getenv("DB_PATH", "chat.db"),
	}
}

func loadAuth() AuthConfig {
	return AuthConfig{
		JWTSecret:  getenv("JWT_SECRET", ""),
		Audience:   getenv("JWT_AUDIENCE", "marketplace-api"),
		CookieName: getenv("AUTH_COOKIE", "accessToken"),
	}
}

func loadChat() ChatConfig {
	return ChatConfig{
		MessageMaxRunes:  getint("MESSAGE_MAX_RUNES", 500),
		AttachmentMaxLen: getint("ATTACHMENT_MAX_LEN", 1000),
		PreviewMaxRunes:  getint("PREVIEW_MAX_RUNES", 100),
		HistoryPageSize:  getint("HISTORY_PAGE_SIZE", 50),
	}
}

func loadWS() WSConfig {
	return WSConfig{
		WriteWait:       getdur("WS_WRITE_WAIT", 10*time.Second),
		PongWait:        getdur("WS_PONG_WAIT", 60*time.Second),
		MaxMessageBytes: int64(getint("WS_MAX_MESSAGE_BYTES", 8<<10)),
		SendBuffer:      getint("WS_SEND_BUFFER", 256),
		EventRPS:        getfloat("WS_EVENT_RPS", 10),
		EventBurst:      getint("WS_EVENT_BURST", 20),
		AllowedOrigins:  splitCSV(getenv("WS_ALLOWED_ORIGINS", "")),
	}
}

func loadOTEL() OTELConfig {
	return OTELConfig{
		Enabled:     getbool("OTEL_ENABLED", false),
		Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
		ServiceName: getenv("OTEL_SERVICE_NAME", "marketplace-chat"),
		SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
	}
}

// normalize maps accepted aliases onto their canonical spelling.
func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	switch c.DB.Driver {
	case "postgresql", "pg":
		c.DB.Driver = "postgres"
	}
}

// validate returns the first invalid setting, checked section by section.
func (c Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if c.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}

	for _, section := range []interface{ validate() error }{c.DB, c.Auth, c.Chat, c.WS} {
		if err := section.validate(); err != nil {
			return err
		}
	}

	switch {
	case c.RateRPS < 0:
		return errors.New("RATE_RPS must be >= 0")
	case c.RateBurst < 1:
		return errors.New("RATE_BURST must be >= 1")
	case c.Security.HSTSMaxAge < 0:
		return errors.New("HSTS_MAX_AGE must be >= 0")
	case c.IdempotencyTTL <= 0:
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	case c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1:
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

func (d DBConfig) validate() error {
	switch d.Driver {
	case "sqlite":
		if strings.TrimSpace(d.Path) == "" {
			return errors.New("DB_PATH must not be empty")
		}
	case "postgres", "mysql":
		if strings.TrimSpace(d.DSN) == "" {
			return errors.New("DB_DSN must be set for postgres and mysql")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be one of: sqlite, postgres, mysql (got %q)", d.Driver)
	}
	return nil
}

func (a AuthConfig) validate() error {
	if strings.TrimSpace(a.JWTSecret) == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if strings.TrimSpace(a.CookieName) == "" {
		return errors.New("AUTH_COOKIE must not be empty")
	}
	return nil
}

func (ch ChatConfig) validate() error {
	switch {
	case ch.MessageMaxRunes < 1 || ch.AttachmentMaxLen < 1:
		return errors.New("MESSAGE_MAX_RUNES and ATTACHMENT_MAX_LEN must be >= 1")
	case ch.PreviewMaxRunes < 1:
		return errors.New("PREVIEW_MAX_RUNES must be >= 1")
	case ch.HistoryPageSize < 1 || ch.HistoryPageSize > 100:
		return errors.New("HISTORY_PAGE_SIZE must be between 1 and 100")
	}
	return nil
}

func (w WSConfig) validate() error {
	switch {
	case w.WriteWait <= 0 || w.PongWait <= 0:
		return errors.New("WS_WRITE_WAIT and WS_PONG_WAIT must be positive durations")
	case w.MaxMessageBytes <= 0:
		return errors.New("WS_MAX_MESSAGE_BYTES must be > 0")
	case w.SendBuffer < 1:
		return errors.New("WS_SEND_BUFFER must be >= 1")
	case w.EventRPS < 0 || w.EventBurst < 1:
		return errors.New("WS_EVENT_RPS must be >= 0 and WS_EVENT_BURST >= 1")
	}
	return nil
}

// lookup parses the variable k, falling back to def when it is unset, empty,
// or does not parse.
func lookup[T any](k string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(k)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getenv(k, def string) string {
	return lookup(k, def, func(s string) (string, error) { return s, nil })
}

func getfloat(k string, def float64) float64 {
	return lookup(k, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getint(k string, def int) int { return lookup(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration { return lookup(k, def, time.ParseDuration) }

func getbool(k string, def bool) bool { return lookup(k, def, parseBool) }

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing slash;
// blank maps to root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}

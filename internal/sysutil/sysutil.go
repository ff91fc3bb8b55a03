// Package sysutil holds process bootstrap helpers for the server command.
package sysutil

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SetLogLevel configures the global zerolog level. Unknown values fall back
// to info; "warning" is accepted as an alias for warn.
func SetLogLevel(lvl string) {
	zerolog.SetGlobalLevel(ParseLevel(lvl))
}

// ParseLevel maps a level name (case-insensitive) to a zerolog level.
func ParseLevel(lvl string) zerolog.Level {
	switch s := strings.ToLower(strings.TrimSpace(lvl)); s {
	case "", "info":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	default:
		l, err := zerolog.ParseLevel(s)
		if err != nil {
			return zerolog.InfoLevel
		}
		return l
	}
}

// NewLogger builds the process logger: JSON lines, or a console writer for
// local development.
func NewLogger(w io.Writer, service string, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Str("service", service).Logger()
}

// FirstNonEmpty returns the first value that is not blank, or "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

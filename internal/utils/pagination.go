// Package utils provides small helpers shared by the HTTP and service layers.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
// Surrounding whitespace is ignored.
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageNumber reads a 1-based page number; anything unparsable or below 1
// yields the first page.
func PageNumber(raw string) int {
	if p := AtoiDefault(raw, 1); p > 1 {
		return p
	}
	return 1
}

// Offset converts a 1-based page into a row offset.
func Offset(page, limit int) int {
	if page < 1 || limit < 1 {
		return 0
	}
	return (page - 1) * limit
}

// TotalPages is ceil(total/limit); zero when there is nothing to page.
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit < 1 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

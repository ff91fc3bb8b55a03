// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and give clients a stable, machine-readable
// taxonomy next to the human-readable message. Service failures are
// classified by services.KindOf and translated by failErr; handlers only pick
// codes directly for transport-level problems (bad query strings, missing
// path parameters).
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "forbidden",
//	  "message": "you are not a participant of this chat"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-marketplace-chat/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidLimit = "invalid_limit"
	ErrCodeBadCursor    = "invalid_cursor"
)

// msgInternal is the only text a client ever sees for an unclassified error.
const msgInternal = "internal server error"

// failErr writes the envelope for a service error. Classified errors carry
// their own client-safe message; anything else is logged and reported as a
// generic 500.
func failErr(c *gin.Context, err error) {
	switch services.KindOf(err) {
	case services.KindNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case services.KindForbidden:
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case services.KindInvalidArgument:
		code := ErrCodeBadRequest
		if errors.Is(err, services.ErrBadCursor) {
			code = ErrCodeBadCursor
		}
		fail(c, http.StatusBadRequest, code, err.Error())
	case services.KindConflict:
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		c.Error(err) //nolint:errcheck
		fail(c, http.StatusInternalServerError, ErrCodeInternal, msgInternal)
	}
}

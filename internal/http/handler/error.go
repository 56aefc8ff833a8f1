package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docshare/internal/http/middleware"
	"docshare/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "NOT_FOUND", "ROLE_ALREADY_SIGNED")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// serviceErrors maps sharing service sentinels to their HTTP form.
var serviceErrors = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{service.ErrNoActiveDocument, fiber.StatusBadRequest, "NO_ACTIVE_DOCUMENT", "no document to share"},
	{service.ErrInvalidSnapshot, fiber.StatusBadRequest, "INVALID_SNAPSHOT", "document snapshot must be a JSON object or markup string"},
	{service.ErrUnsupportedDocumentType, fiber.StatusUnprocessableEntity, "UNSUPPORTED_DOCUMENT_TYPE", "this document type cannot be shared"},
	{service.ErrShareNotFound, fiber.StatusNotFound, "NOT_FOUND", "share not found"},
	{service.ErrInvalidRole, fiber.StatusBadRequest, "INVALID_ROLE", "role is not part of this share"},
	{service.ErrEmptySignature, fiber.StatusBadRequest, "EMPTY_SIGNATURE", "signature image is required"},
	{service.ErrRoleAlreadySigned, fiber.StatusConflict, "ROLE_ALREADY_SIGNED", "this role has already signed"},
	{service.ErrAccessDenied, fiber.StatusForbidden, "ACCESS_DENIED", "invalid access password"},
	{service.ErrStoreUnavailable, fiber.StatusServiceUnavailable, "STORE_UNAVAILABLE", "share store unavailable"},
}

// writeServiceError translates a service error; unknown errors become INTERNAL_ERROR.
func writeServiceError(c *fiber.Ctx, err error) error {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			return writeError(c, m.status, m.code, m.message)
		}
	}
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}

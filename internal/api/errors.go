// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pdftext/backend/internal/lifecycle"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewPayloadTooLargeError creates a 413 error for a request body over limit bytes
func NewPayloadTooLargeError(limit int64) *APIError {
	return &APIError{
		Status:  http.StatusRequestEntityTooLarge,
		Code:    "REQUEST_TOO_LARGE",
		Message: fmt.Sprintf("request body exceeds %d bytes", limit),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

// lifecycleCodes maps controller error kinds to response status and code.
var lifecycleCodes = map[lifecycle.ErrorKind]struct {
	status int
	code   string
}{
	lifecycle.KindInvalidFileType:   {http.StatusBadRequest, "INVALID_FILE_TYPE"},
	lifecycle.KindFileTooLarge:      {http.StatusBadRequest, "FILE_TOO_LARGE"},
	lifecycle.KindPrecondition:      {http.StatusConflict, "PRECONDITION_FAILED"},
	lifecycle.KindNoResult:          {http.StatusConflict, "NO_RESULT"},
	lifecycle.KindExtractionFailure: {http.StatusUnprocessableEntity, "EXTRACTION_FAILED"},
	lifecycle.KindTimeout:           {http.StatusGatewayTimeout, "EXTRACTION_TIMEOUT"},
}

// NewLifecycleError converts a controller error into an API error.
// Errors of any other type become internal errors.
func NewLifecycleError(err error) *APIError {
	var lerr *lifecycle.Error
	if !errors.As(err, &lerr) {
		return NewInternalError("request failed", err)
	}
	mapped, ok := lifecycleCodes[lerr.Kind]
	if !ok {
		return NewInternalError(lerr.Message, lerr.Err)
	}
	apiErr := &APIError{
		Status:  mapped.status,
		Code:    mapped.code,
		Message: lerr.Message,
	}
	if lerr.Err != nil {
		apiErr.Details = lerr.Err.Error()
	}
	return apiErr
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		apiErr  *APIError
		httpErr *echo.HTTPError
		lerr    *lifecycle.Error
	)

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &lerr):
		apiErr = NewLifecycleError(lerr)
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
			Details: err.Error(),
		}
	}

	// HEAD requests get no body.
	if c.Request().Method == http.MethodHead {
		c.NoContent(apiErr.Status)
		return
	}
	c.JSON(apiErr.Status, apiErr)
}

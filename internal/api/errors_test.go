package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pdftext/backend/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLifecycleError(t *testing.T) {
	tests := []struct {
		kind       lifecycle.ErrorKind
		wantStatus int
		wantCode   string
	}{
		{lifecycle.KindInvalidFileType, http.StatusBadRequest, "INVALID_FILE_TYPE"},
		{lifecycle.KindFileTooLarge, http.StatusBadRequest, "FILE_TOO_LARGE"},
		{lifecycle.KindPrecondition, http.StatusConflict, "PRECONDITION_FAILED"},
		{lifecycle.KindNoResult, http.StatusConflict, "NO_RESULT"},
		{lifecycle.KindExtractionFailure, http.StatusUnprocessableEntity, "EXTRACTION_FAILED"},
		{lifecycle.KindTimeout, http.StatusGatewayTimeout, "EXTRACTION_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &lifecycle.Error{Kind: tt.kind, Message: "boom"})
			apiErr := NewLifecycleError(err)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, "boom", apiErr.Message)
		})
	}

	plain := NewLifecycleError(errors.New("disk full"))
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
	assert.Equal(t, "disk full", plain.Details)
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"api error", NewBadRequestError("bad form", nil), http.StatusBadRequest, "BAD_REQUEST"},
		{"lifecycle error", &lifecycle.Error{Kind: lifecycle.KindNoResult, Message: "nothing"}, http.StatusConflict, "NO_RESULT"},
		{"echo error", echo.NewHTTPError(http.StatusNotFound, "missing"), http.StatusNotFound, "HTTP_ERROR"},
		{"unknown error", errors.New("kaboom"), http.StatusInternalServerError, "UNKNOWN_ERROR"},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			ErrorHandler(tt.err, c)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

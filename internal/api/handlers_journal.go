// handlers_journal.go - Attempt journal handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// maxAttemptLimit caps the limit query parameter.
const maxAttemptLimit = 500

// JournalHandlerImpl implements the JournalHandler interface
type JournalHandlerImpl struct {
	log AttemptLog
}

// NewJournalHandler creates a new journal handler
func NewJournalHandler(log AttemptLog) JournalHandler {
	return &JournalHandlerImpl{log: log}
}

// HandleRecentAttempts lists settled attempts, newest first
func (h *JournalHandlerImpl) HandleRecentAttempts(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return NewValidationError("limit")
		}
		limit = min(n, maxAttemptLimit)
	}

	attempts, err := h.log.Recent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to query attempts", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"attempts": attempts,
		"count":    len(attempts),
	})
}

// HandleAttemptSummary aggregates attempts by outcome
func (h *JournalHandlerImpl) HandleAttemptSummary(c echo.Context) error {
	summary, err := h.log.Summary(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to summarize attempts", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"outcomes": summary,
	})
}

// handlers_session.go - Upload session lifecycle handlers
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pdftext/backend/internal/lifecycle"
	"github.com/pdftext/backend/internal/models"
	"github.com/pdftext/backend/internal/upload"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

// defaultPollInterval is how often the progress stream samples the session.
const defaultPollInterval = 100 * time.Millisecond

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	ctrl         SessionController
	intake       FileIntake
	log          *logrus.Entry
	pollInterval time.Duration
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(ctrl SessionController, intake FileIntake, logger *logrus.Logger) *SessionHandlerImpl {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SessionHandlerImpl{
		ctrl:         ctrl,
		intake:       intake,
		log:          logger.WithField("component", "api"),
		pollInterval: defaultPollInterval,
	}
}

// HandleGetSession returns the current session snapshot
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

// HandleGetSessionMsgpack returns the snapshot as MessagePack
func (h *SessionHandlerImpl) HandleGetSessionMsgpack(c echo.Context) error {
	data, err := msgpack.Marshal(h.ctrl.Snapshot())
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// UploadPath is the route that receives file uploads.
const UploadPath = "/api/session/file"

// SkipUploadBodyLimit keeps a global body limit off the upload route,
// which enforces a limit derived from the maximum file size itself.
func SkipUploadBodyLimit(c echo.Context) bool {
	return c.Request().URL.Path == UploadPath
}

// HandleSelectFile accepts a multipart upload in the "file" field and
// selects it. An optional "lastModified" field carries Unix milliseconds.
// Bodies larger than the intake's limit are streamed and discarded so the
// session still records FileTooLarge.
func (h *SessionHandlerImpl) HandleSelectFile(c echo.Context) error {
	req := c.Request()
	limit := h.intake.BodyLimit()
	if req.ContentLength > limit {
		return h.selectOversized(c)
	}

	req.Body = http.MaxBytesReader(c.Response(), req.Body, limit)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return NewPayloadTooLargeError(limit)
		}
		return NewValidationError("file")
	}

	if _, err := h.intake.Accept(header, c.FormValue("lastModified")); err != nil {
		var lerr *lifecycle.Error
		if errors.As(err, &lerr) {
			return NewLifecycleError(lerr)
		}
		return NewInternalError("failed to accept upload", err)
	}
	return c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func (h *SessionHandlerImpl) selectOversized(c echo.Context) error {
	mr, err := c.Request().MultipartReader()
	if err != nil {
		return NewBadRequestError("expected a multipart upload", err)
	}

	if _, err := h.intake.AcceptOversized(mr); err != nil {
		var lerr *lifecycle.Error
		switch {
		case errors.As(err, &lerr):
			return NewLifecycleError(lerr)
		case errors.Is(err, upload.ErrBodyTooLarge):
			return NewPayloadTooLargeError(h.intake.BodyLimit())
		case errors.Is(err, upload.ErrNoFile):
			return NewValidationError("file")
		default:
			return NewBadRequestError("failed to read upload", err)
		}
	}
	return c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

// HandleStartExtraction starts extracting the selected file
func (h *SessionHandlerImpl) HandleStartExtraction(c echo.Context) error {
	if err := h.ctrl.StartExtraction(); err != nil {
		return NewLifecycleError(err)
	}
	return c.JSON(http.StatusAccepted, h.ctrl.Snapshot())
}

// HandleCancel aborts an in-flight extraction
func (h *SessionHandlerImpl) HandleCancel(c echo.Context) error {
	h.ctrl.Cancel()
	return c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

// HandleReset returns the session to idle
func (h *SessionHandlerImpl) HandleReset(c echo.Context) error {
	h.ctrl.Reset()
	return c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

// HandleEscape clears the session unless an extraction is running
func (h *SessionHandlerImpl) HandleEscape(c echo.Context) error {
	if err := h.ctrl.Escape(); err != nil {
		return NewLifecycleError(err)
	}
	return c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

// HandleExport downloads the extraction result in the requested format
func (h *SessionHandlerImpl) HandleExport(c echo.Context) error {
	format, err := lifecycle.ParseExportFormat(c.QueryParam("format"))
	if err != nil {
		return &APIError{
			Status:  http.StatusBadRequest,
			Code:    "UNSUPPORTED_FORMAT",
			Message: "unsupported export format",
			Details: err.Error(),
		}
	}

	export, err := h.ctrl.Export(format)
	if err != nil {
		return NewLifecycleError(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": export.Filename}))
	return c.Blob(http.StatusOK, export.ContentType, export.Data)
}

// HandleProgressStream streams session snapshots via Server-Sent Events.
// The stream ends after a Result or Error snapshot has been sent.
func (h *SessionHandlerImpl) HandleProgressStream(c echo.Context) error {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Response().WriteHeader(http.StatusOK)

	var last models.UploadSession
	send := func(session models.UploadSession) bool {
		if session.State == last.State &&
			session.ProgressPercent == last.ProgressPercent &&
			session.UpdatedAt.Equal(last.UpdatedAt) {
			return false
		}
		last = session

		data, err := json.Marshal(session)
		if err != nil {
			h.log.WithError(err).Warn("Failed to encode progress event")
			return false
		}
		fmt.Fprintf(c.Response(), "data: %s\n\n", data)
		c.Response().Flush()
		return true
	}

	// Send initial state immediately
	if send(h.ctrl.Snapshot()); last.IsSettled() {
		return nil
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-ticker.C:
			if send(h.ctrl.Snapshot()) && last.IsSettled() {
				return nil
			}
		}
	}
}

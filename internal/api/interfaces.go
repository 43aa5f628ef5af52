// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"mime/multipart"

	"github.com/labstack/echo/v4"
	"github.com/pdftext/backend/internal/lifecycle"
	"github.com/pdftext/backend/internal/models"
)

// SessionHandler handles the upload session lifecycle
type SessionHandler interface {
	HandleGetSession(c echo.Context) error
	HandleGetSessionMsgpack(c echo.Context) error
	HandleSelectFile(c echo.Context) error
	HandleStartExtraction(c echo.Context) error
	HandleCancel(c echo.Context) error
	HandleReset(c echo.Context) error
	HandleEscape(c echo.Context) error
	HandleExport(c echo.Context) error
	HandleProgressStream(c echo.Context) error
}

// JournalHandler exposes the attempt journal
type JournalHandler interface {
	HandleRecentAttempts(c echo.Context) error
	HandleAttemptSummary(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionController is the part of the lifecycle controller the
// handlers drive. It allows mocking in tests.
type SessionController interface {
	Snapshot() models.UploadSession
	StartExtraction() error
	Cancel()
	Reset()
	Escape() error
	Export(format lifecycle.ExportFormat) (models.Export, error)
}

// FileIntake stores an uploaded part and selects it.
type FileIntake interface {
	Accept(header *multipart.FileHeader, lastModified string) (models.FileDescriptor, error)
	AcceptOversized(mr *multipart.Reader) (models.FileDescriptor, error)
	BodyLimit() int64
}

// AttemptLog is the read side of the attempt journal.
type AttemptLog interface {
	Recent(ctx context.Context, limit int) ([]models.Attempt, error)
	Summary(ctx context.Context) ([]models.AttemptSummary, error)
}

package lifecycle

import (
	"errors"
	"fmt"

	"github.com/pdftext/backend/internal/models"
)

// ErrorKind classifies lifecycle errors.
type ErrorKind string

const (
	KindInvalidFileType   ErrorKind = "InvalidFileType"
	KindFileTooLarge      ErrorKind = "FileTooLarge"
	KindExtractionFailure ErrorKind = "ExtractionFailure"
	KindTimeout           ErrorKind = "TimeoutError"
	KindPrecondition      ErrorKind = "PreconditionError"
	KindNoResult          ErrorKind = "NoResultError"
)

// Error is returned by controller operations and mirrored into the
// session's error fields when it moves the session to Error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Detail returns the human-readable message without the kind prefix.
func (e *Error) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a lifecycle error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return ""
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func preconditionError(op string, state models.SessionState) *Error {
	return newError(KindPrecondition, "%s is not allowed while the session is %s", op, string(state))
}

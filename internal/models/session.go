package models

import "time"

// SessionState represents the lifecycle state of the upload session.
type SessionState string

const (
	StateIdle         SessionState = "idle"
	StateFileSelected SessionState = "file_selected"
	StateProcessing   SessionState = "processing"
	StateResult       SessionState = "result"
	StateError        SessionState = "error"
)

// UploadSession is a snapshot of the single live session.
type UploadSession struct {
	State           SessionState    `json:"state" msgpack:"state"`
	File            *FileDescriptor `json:"file,omitempty" msgpack:"file,omitempty"`
	ExtractedText   string          `json:"extractedText,omitempty" msgpack:"extractedText,omitempty"`
	PageCount       int             `json:"pageCount,omitempty" msgpack:"pageCount,omitempty"`
	WordCount       int             `json:"wordCount,omitempty" msgpack:"wordCount,omitempty"`
	ErrorKind       string          `json:"errorKind,omitempty" msgpack:"errorKind,omitempty"`
	ErrorMessage    string          `json:"errorMessage,omitempty" msgpack:"errorMessage,omitempty"`
	ProgressPercent int             `json:"progressPercent" msgpack:"progressPercent"`
	Attempt         uint64          `json:"attempt" msgpack:"attempt"`
	UpdatedAt       time.Time       `json:"updatedAt" msgpack:"updatedAt"`
}

// NewUploadSession creates an idle session.
func NewUploadSession() UploadSession {
	return UploadSession{
		State:     StateIdle,
		UpdatedAt: time.Now(),
	}
}

// Clone returns a copy that does not share the file descriptor.
func (s UploadSession) Clone() UploadSession {
	if s.File != nil {
		f := *s.File
		s.File = &f
	}
	return s
}

// IsSettled reports whether the session holds a final outcome.
func (s UploadSession) IsSettled() bool {
	return s.State == StateResult || s.State == StateError
}

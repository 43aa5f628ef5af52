package models

import "time"

// PDFMimeType is the only declared type accepted for extraction.
const PDFMimeType = "application/pdf"

// FileInfo represents metadata about a file held in the upload store.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// FileDescriptor is the opaque handle of a candidate or selected file.
type FileDescriptor struct {
	ID           string    `json:"id,omitempty" msgpack:"id,omitempty"` // upload store ID, empty for files not backed by storage
	Name         string    `json:"name" msgpack:"name"`
	SizeBytes    int64     `json:"sizeBytes" msgpack:"sizeBytes"`
	MimeType     string    `json:"mimeType" msgpack:"mimeType"`
	LastModified time.Time `json:"lastModified" msgpack:"lastModified"`
}

// Package upload turns multipart uploads into file selections.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/pdftext/backend/internal/models"
	"github.com/pdftext/backend/internal/storage"
	"github.com/sirupsen/logrus"
)

// Overhead is the multipart framing allowed on top of the maximum file
// size before a request body counts as oversized.
const Overhead = 64 << 10

var (
	// ErrNoFile is returned when an upload carries no "file" part.
	ErrNoFile = errors.New(`upload has no "file" part`)
	// ErrBodyTooLarge is returned when an oversized request body holds a
	// file that is itself within the limit.
	ErrBodyTooLarge = errors.New("upload request body too large")
)

// Selector is the part of the lifecycle controller the intake needs.
type Selector interface {
	SelectFile(file models.FileDescriptor) error
	MaxFileSize() int64
}

// Intake stores uploaded bytes and offers them to the controller.
type Intake struct {
	store    storage.Store
	selector Selector
	log      *logrus.Entry
}

// NewIntake creates an intake. The selector can be attached later with
// Attach when the controller itself needs the intake for releases.
func NewIntake(store storage.Store, selector Selector, logger *logrus.Logger) *Intake {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Intake{
		store:    store,
		selector: selector,
		log:      logger.WithField("component", "upload"),
	}
}

// Attach sets the selector that receives accepted uploads.
func (in *Intake) Attach(selector Selector) {
	in.selector = selector
}

// Accept stores the uploaded part and selects it. lastModified is the
// optional client-reported modification time in Unix milliseconds.
//
// Candidates that will be rejected anyway (wrong type or over the size
// limit) are never written to disk; their descriptor carries no ID.
// Stored bytes of a rejected candidate are deleted again.
func (in *Intake) Accept(header *multipart.FileHeader, lastModified string) (models.FileDescriptor, error) {
	if in.selector == nil {
		return models.FileDescriptor{}, errors.New("upload intake has no selector attached")
	}

	desc := Describe(header, lastModified)
	if desc.MimeType != models.PDFMimeType || desc.SizeBytes > in.selector.MaxFileSize() {
		return desc, in.selector.SelectFile(desc)
	}

	src, err := header.Open()
	if err != nil {
		return desc, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	info, err := in.store.Save(desc.Name, desc.MimeType, src)
	if err != nil {
		return desc, fmt.Errorf("failed to store uploaded file: %w", err)
	}
	desc.ID = info.ID
	desc.SizeBytes = info.Size

	if err := in.selector.SelectFile(desc); err != nil {
		in.remove(desc.ID)
		return desc, err
	}

	in.log.WithFields(logrus.Fields{
		"file": desc.Name,
		"id":   desc.ID,
		"size": desc.SizeBytes,
	}).Info("File selected")
	return desc, nil
}

// BodyLimit is the largest request body Accept should be handed. Larger
// bodies go through AcceptOversized.
func (in *Intake) BodyLimit() int64 {
	if in.selector == nil {
		return Overhead
	}
	return in.selector.MaxFileSize() + Overhead
}

// AcceptOversized reads an upload whose body exceeds BodyLimit. The file
// part is counted and discarded without being stored, and the descriptor
// is offered to the selector so the session records the rejection.
func (in *Intake) AcceptOversized(mr *multipart.Reader) (models.FileDescriptor, error) {
	var desc models.FileDescriptor
	if in.selector == nil {
		return desc, errors.New("upload intake has no selector attached")
	}

	var found bool
	var lastModified string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return desc, fmt.Errorf("reading upload: %w", err)
		}

		switch part.FormName() {
		case "file":
			if !found {
				found = true
				desc.Name = part.FileName()
				desc.MimeType = strings.TrimSpace(part.Header.Get("Content-Type"))
				desc.SizeBytes, err = io.Copy(io.Discard, part)
			}
		case "lastModified":
			var raw []byte
			raw, err = io.ReadAll(io.LimitReader(part, 32))
			lastModified = string(raw)
		}
		if err == nil {
			_, err = io.Copy(io.Discard, part)
		}
		part.Close()
		if err != nil {
			return desc, fmt.Errorf("reading upload: %w", err)
		}
	}

	if !found {
		return desc, ErrNoFile
	}
	desc.LastModified = parseLastModified(lastModified)

	if desc.SizeBytes <= in.selector.MaxFileSize() {
		return desc, ErrBodyTooLarge
	}

	in.log.WithFields(logrus.Fields{
		"file": desc.Name,
		"size": desc.SizeBytes,
	}).Info("Oversized upload discarded")
	return desc, in.selector.SelectFile(desc)
}

// Release deletes the stored bytes of a file that left the session.
func (in *Intake) Release(file models.FileDescriptor) {
	if file.ID == "" {
		return
	}
	in.remove(file.ID)
}

func (in *Intake) remove(id string) {
	if err := in.store.Delete(id); err != nil {
		in.log.WithError(err).WithField("id", id).Warn("Failed to delete stored file")
	}
}

// Describe builds a descriptor from the multipart header. The MIME type
// is the declared part Content-Type, unmodified.
func Describe(header *multipart.FileHeader, lastModified string) models.FileDescriptor {
	return models.FileDescriptor{
		Name:         header.Filename,
		SizeBytes:    header.Size,
		MimeType:     strings.TrimSpace(header.Header.Get("Content-Type")),
		LastModified: parseLastModified(lastModified),
	}
}

// parseLastModified reads Unix milliseconds; anything else is the zero time.
func parseLastModified(raw string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

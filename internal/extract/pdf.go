package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdftext/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrNotPDF is returned when the stored bytes lack the PDF signature.
var ErrNotPDF = errors.New("file does not look like a PDF")

// ErrNoText is returned when no page of a document yields any text.
var ErrNoText = errors.New("no page contains extractable text")

// ContentSource provides the bytes of an uploaded file.
type ContentSource interface {
	ReadAll(id string) ([]byte, error)
}

// PDFEngine extracts the text layer of a PDF with ledongthuc/pdf.
// Image-only pages yield no text; there is no OCR.
type PDFEngine struct {
	source ContentSource
	log    *logrus.Entry
}

// NewPDFEngine creates an engine that reads file content from source.
func NewPDFEngine(source ContentSource, logger *logrus.Logger) *PDFEngine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PDFEngine{
		source: source,
		log:    logger.WithField("engine", "pdf"),
	}
}

func (e *PDFEngine) Name() string { return "pdf" }

func (e *PDFEngine) Extract(ctx context.Context, file models.FileDescriptor) <-chan models.ExtractionEvent {
	ch := make(chan models.ExtractionEvent)

	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				emit(ctx, ch, models.ExtractionEvent{Err: fmt.Errorf("pdf library panicked: %v", r)})
			}
		}()

		if !emit(ctx, ch, models.ExtractionEvent{Progress: 0}) {
			return
		}

		result, err := e.extract(ctx, file, func(percent int) bool {
			return emit(ctx, ch, models.ExtractionEvent{Progress: percent})
		})
		if err != nil {
			emit(ctx, ch, models.ExtractionEvent{Err: err})
			return
		}
		emit(ctx, ch, models.ExtractionEvent{Result: result})
	}()

	return ch
}

func (e *PDFEngine) extract(ctx context.Context, file models.FileDescriptor, progress func(int) bool) (*models.ExtractionResult, error) {
	if file.ID == "" {
		return nil, errors.New("file has no stored content")
	}

	data, err := e.source.ReadAll(file.ID)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", file.Name, err)
	}
	if !ValidatePDF(data) {
		return nil, ErrNotPDF
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	return e.collectPages(ctx, file, reader.NumPage(), func(i int) (string, error) {
		page := reader.Page(i)
		if page.V.IsNull() {
			return "", nil
		}
		return page.GetPlainText(nil)
	}, progress)
}

// collectPages joins the text of pages 1..pageCount. Every page after the
// first gets a header and a progress tick, including pages that are null
// or fail to decode.
func (e *PDFEngine) collectPages(ctx context.Context, file models.FileDescriptor, pageCount int,
	readPage func(i int) (string, error), progress func(int) bool) (*models.ExtractionResult, error) {
	var text strings.Builder
	withText, failed := 0, 0
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if i > 1 {
			fmt.Fprintf(&text, "\n--- Page %d ---\n", i)
		}

		pageText, err := readPage(i)
		switch {
		case err != nil:
			failed++
			e.log.WithError(err).WithFields(logrus.Fields{
				"file": file.Name,
				"page": i,
			}).Warn("Page text extraction failed")
			text.WriteString("[text extraction failed]")
		case strings.TrimSpace(pageText) != "":
			withText++
			text.WriteString(strings.TrimSpace(pageText))
		}

		// 100 is reserved for the terminal event.
		if !progress(i * 99 / pageCount) {
			return nil, ctx.Err()
		}
	}

	if withText == 0 {
		return nil, fmt.Errorf("%w: %d of %d pages failed to decode", ErrNoText, failed, pageCount)
	}

	extracted := strings.TrimSpace(text.String())
	return &models.ExtractionResult{
		Text:      extracted,
		PageCount: pageCount,
		WordCount: countWords(extracted),
	}, nil
}

// ValidatePDF checks the %PDF- magic bytes.
func ValidatePDF(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}

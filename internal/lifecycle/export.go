package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/pdftext/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for an unknown export format.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ExportFormat selects how an extraction result is rendered for download.
type ExportFormat string

const (
	FormatText     ExportFormat = "txt"
	FormatMarkdown ExportFormat = "md"
	FormatJSON     ExportFormat = "json"
	FormatYAML     ExportFormat = "yaml"
)

// ParseExportFormat resolves a user-supplied format name. An empty name
// selects plain text.
func ParseExportFormat(name string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "", "txt", "text":
		return FormatText, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// SuggestedFilename derives the download name from the original file
// name: report.pdf becomes report_extracted.txt.
func SuggestedFilename(original string, format ExportFormat) string {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "document"
	}
	return base + "_extracted." + string(format)
}

// exportDocument is the structured export body.
type exportDocument struct {
	FileName    string    `json:"fileName" yaml:"file_name"`
	SizeBytes   int64     `json:"sizeBytes" yaml:"size_bytes"`
	PageCount   int       `json:"pageCount,omitempty" yaml:"page_count,omitempty"`
	WordCount   int       `json:"wordCount,omitempty" yaml:"word_count,omitempty"`
	ExtractedAt time.Time `json:"extractedAt" yaml:"extracted_at"`
	Text        string    `json:"text" yaml:"text"`
}

// Export renders the current result. It fails with NoResultError unless
// the session is in the Result state.
func (c *Controller) Export(format ExportFormat) (models.Export, error) {
	session := c.Snapshot()
	if session.State != models.StateResult || session.File == nil {
		return models.Export{}, newError(KindNoResult, "there is no extraction result to export (session is %s)", session.State)
	}
	return renderExport(session, format)
}

func renderExport(session models.UploadSession, format ExportFormat) (models.Export, error) {
	out := models.Export{Filename: SuggestedFilename(session.File.Name, format)}

	doc := exportDocument{
		FileName:    session.File.Name,
		SizeBytes:   session.File.SizeBytes,
		PageCount:   session.PageCount,
		WordCount:   session.WordCount,
		ExtractedAt: session.UpdatedAt,
		Text:        session.ExtractedText,
	}

	switch format {
	case FormatText:
		out.Data = []byte(session.ExtractedText)
		out.ContentType = "text/plain; charset=utf-8"
	case FormatMarkdown:
		var b strings.Builder
		fmt.Fprintf(&b, "# %s\n\n", doc.FileName)
		if doc.PageCount > 0 {
			fmt.Fprintf(&b, "_%d pages, %d words_\n\n", doc.PageCount, doc.WordCount)
		}
		b.WriteString(doc.Text)
		b.WriteString("\n")
		out.Data = []byte(b.String())
		out.ContentType = "text/markdown; charset=utf-8"
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return models.Export{}, fmt.Errorf("encoding json export: %w", err)
		}
		out.Data = data
		out.ContentType = "application/json; charset=utf-8"
	case FormatYAML:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return models.Export{}, fmt.Errorf("encoding yaml export: %w", err)
		}
		out.Data = data
		out.ContentType = "application/yaml; charset=utf-8"
	default:
		return models.Export{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	return out, nil
}

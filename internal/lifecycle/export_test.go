package lifecycle

import (
	"encoding/json"
	"testing"

	"github.com/pdftext/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func resultHarness(t *testing.T, name, text string) *harness {
	t.Helper()
	h := newHarness(t, 0)
	require.NoError(t, h.ctrl.SelectFile(pdfFile(name, 2048)))
	require.NoError(t, h.ctrl.StartExtraction())
	require.Eventually(t, func() bool { return h.engine.Calls() == 1 }, waitFor, tick)
	h.engine.Succeed(0, text)
	h.waitState(t, models.StateResult)
	return h
}

func TestExport_RequiresResult(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.ctrl.Export(FormatText)
	assert.Equal(t, KindNoResult, KindOf(err))

	require.NoError(t, h.ctrl.SelectFile(pdfFile("a.pdf", 10)))
	_, err = h.ctrl.Export(FormatText)
	assert.Equal(t, KindNoResult, KindOf(err))
}

func TestExport_TextRoundTrip(t *testing.T) {
	h := resultHarness(t, "report.pdf", "T")

	out, err := h.ctrl.Export(FormatText)
	require.NoError(t, err)
	assert.Equal(t, "report_extracted.txt", out.Filename)
	assert.Equal(t, "T", string(out.Data))
	assert.Equal(t, "text/plain; charset=utf-8", out.ContentType)
}

func TestExport_UnicodeTextIsPreserved(t *testing.T) {
	text := "Zürich – 東京 – naïve café"
	h := resultHarness(t, "notes.pdf", text)

	out, err := h.ctrl.Export(FormatText)
	require.NoError(t, err)
	assert.Equal(t, text, string(out.Data))
}

func TestExport_StructuredFormats(t *testing.T) {
	h := resultHarness(t, "report.pdf", "line one\nline two")

	jsonOut, err := h.ctrl.Export(FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "report_extracted.json", jsonOut.Filename)
	var fromJSON exportDocument
	require.NoError(t, json.Unmarshal(jsonOut.Data, &fromJSON))
	assert.Equal(t, "report.pdf", fromJSON.FileName)
	assert.Equal(t, "line one\nline two", fromJSON.Text)

	yamlOut, err := h.ctrl.Export(FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "report_extracted.yaml", yamlOut.Filename)
	var fromYAML exportDocument
	require.NoError(t, yaml.Unmarshal(yamlOut.Data, &fromYAML))
	assert.Equal(t, "line one\nline two", fromYAML.Text)
	assert.Equal(t, int64(2048), fromYAML.SizeBytes)

	mdOut, err := h.ctrl.Export(FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "report_extracted.md", mdOut.Filename)
	assert.Contains(t, string(mdOut.Data), "# report.pdf")
	assert.Contains(t, string(mdOut.Data), "line two")
}

func TestParseExportFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    ExportFormat
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "TXT", want: FormatText},
		{in: ".md", want: FormatMarkdown},
		{in: "markdown", want: FormatMarkdown},
		{in: "json", want: FormatJSON},
		{in: "yml", want: FormatYAML},
		{in: "docx", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExportFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuggestedFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":         "report_extracted.txt",
		"Annual.Report.PDF":  "Annual.Report_extracted.txt",
		"no_extension":       "no_extension_extracted.txt",
		`C:\docs\scan.pdf`:   "scan_extracted.txt",
		"dir/sub/file.pdf":   "file_extracted.txt",
		".pdf":               "document_extracted.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, SuggestedFilename(in, FormatText), in)
	}
}

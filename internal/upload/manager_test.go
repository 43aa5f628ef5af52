package upload

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/pdftext/backend/internal/lifecycle"
	"github.com/pdftext/backend/internal/models"
	"github.com/pdftext/backend/internal/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileHeader builds a parsed multipart file header the way a browser
// upload would arrive.
func fileHeader(t *testing.T, name, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func newIntake(t *testing.T, limit int64) (*Intake, *lifecycle.Controller, *testutil.MockStorage) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := testutil.NewMockStorage()
	intake := NewIntake(store, nil, logger)

	ctrl, err := lifecycle.NewController(testutil.NewScriptedEngine(), lifecycle.Options{
		MaxFileSize: limit,
		Logger:      logger,
		OnRelease:   intake.Release,
	})
	require.NoError(t, err)
	intake.Attach(ctrl)
	return intake, ctrl, store
}

func TestDescribe(t *testing.T) {
	h := fileHeader(t, "report.pdf", "application/pdf", []byte("%PDF-1.4"))

	desc := Describe(h, "1767225600000")
	assert.Equal(t, "report.pdf", desc.Name)
	assert.Equal(t, int64(8), desc.SizeBytes)
	assert.Equal(t, models.PDFMimeType, desc.MimeType)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), desc.LastModified)

	assert.True(t, Describe(h, "").LastModified.IsZero())
	assert.True(t, Describe(h, "yesterday").LastModified.IsZero())
}

func TestAcceptStoresAndSelects(t *testing.T) {
	intake, ctrl, store := newIntake(t, 1024)

	desc, err := intake.Accept(fileHeader(t, "report.pdf", "application/pdf", []byte("%PDF-1.4 body")), "")
	require.NoError(t, err)

	require.NotEmpty(t, desc.ID)
	assert.True(t, store.HasFile(desc.ID))

	session := ctrl.Snapshot()
	assert.Equal(t, models.StateFileSelected, session.State)
	require.NotNil(t, session.File)
	assert.Equal(t, desc.ID, session.File.ID)
}

func TestAcceptRejectsWithoutStoring(t *testing.T) {
	tests := []struct {
		name        string
		fileName    string
		contentType string
		size        int
		kind        lifecycle.ErrorKind
	}{
		{"wrong type", "notes.txt", "text/plain", 10, lifecycle.KindInvalidFileType},
		{"missing type", "blob", "", 10, lifecycle.KindInvalidFileType},
		{"too large", "big.pdf", "application/pdf", 2048, lifecycle.KindFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intake, ctrl, store := newIntake(t, 1024)

			_, err := intake.Accept(fileHeader(t, tt.fileName, tt.contentType, make([]byte, tt.size)), "")
			require.Error(t, err)
			assert.Equal(t, tt.kind, lifecycle.KindOf(err))
			assert.Equal(t, 0, store.GetFileCount())
			assert.Equal(t, models.StateError, ctrl.Snapshot().State)
		})
	}
}

func TestAcceptDeletesWhenSelectionRejected(t *testing.T) {
	intake, ctrl, store := newIntake(t, 1024)

	_, err := intake.Accept(fileHeader(t, "a.pdf", "application/pdf", []byte("%PDF-a")), "")
	require.NoError(t, err)
	require.NoError(t, ctrl.StartExtraction())

	_, err = intake.Accept(fileHeader(t, "b.pdf", "application/pdf", []byte("%PDF-b")), "")
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindPrecondition, lifecycle.KindOf(err))
	assert.Equal(t, 1, store.GetFileCount(), "only the in-flight file stays stored")

	ctrl.Cancel()
}

func TestReleaseOnReplaceAndReset(t *testing.T) {
	intake, ctrl, store := newIntake(t, 1024)

	first, err := intake.Accept(fileHeader(t, "a.pdf", "application/pdf", []byte("%PDF-a")), "")
	require.NoError(t, err)
	second, err := intake.Accept(fileHeader(t, "b.pdf", "application/pdf", []byte("%PDF-b")), "")
	require.NoError(t, err)

	assert.False(t, store.HasFile(first.ID))
	assert.True(t, store.HasFile(second.ID))

	ctrl.Reset()
	assert.False(t, store.HasFile(second.ID))
	assert.Equal(t, 0, store.GetFileCount())
}

func TestAcceptWithoutSelector(t *testing.T) {
	intake := NewIntake(testutil.NewMockStorage(), nil, nil)
	_, err := intake.Accept(fileHeader(t, "a.pdf", "application/pdf", []byte("x")), "")
	assert.Error(t, err)
}


// multipartReader streams a browser-style upload with the given parts.
func multipartReader(t *testing.T, name, contentType string, data []byte, lastModified string) *multipart.Reader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if lastModified != "" {
		require.NoError(t, w.WriteField("lastModified", lastModified))
	}
	if name != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return multipart.NewReader(&body, w.Boundary())
}

func TestBodyLimit(t *testing.T) {
	intake, _, _ := newIntake(t, 1024)
	assert.Equal(t, int64(1024+Overhead), intake.BodyLimit())

	detached := NewIntake(testutil.NewMockStorage(), nil, nil)
	assert.Equal(t, int64(Overhead), detached.BodyLimit())
}

func TestAcceptOversized(t *testing.T) {
	t.Run("records FileTooLarge without storing", func(t *testing.T) {
		intake, ctrl, store := newIntake(t, 1024)

		desc, err := intake.AcceptOversized(multipartReader(t, "huge.pdf", "application/pdf", make([]byte, 5000), "1767225600000"))
		require.Error(t, err)
		assert.Equal(t, lifecycle.KindFileTooLarge, lifecycle.KindOf(err))
		assert.Contains(t, err.Error(), "1024")

		assert.Empty(t, desc.ID)
		assert.Equal(t, int64(5000), desc.SizeBytes)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), desc.LastModified)
		assert.Equal(t, 0, store.GetFileCount())

		session := ctrl.Snapshot()
		assert.Equal(t, models.StateError, session.State)
		assert.Equal(t, string(lifecycle.KindFileTooLarge), session.ErrorKind)
	})

	t.Run("wrong type is still a type error", func(t *testing.T) {
		intake, ctrl, _ := newIntake(t, 1024)

		_, err := intake.AcceptOversized(multipartReader(t, "movie.mp4", "video/mp4", make([]byte, 5000), ""))
		assert.Equal(t, lifecycle.KindInvalidFileType, lifecycle.KindOf(err))
		assert.Equal(t, models.StateError, ctrl.Snapshot().State)
	})

	t.Run("small file in a large body", func(t *testing.T) {
		intake, ctrl, store := newIntake(t, 1024)

		_, err := intake.AcceptOversized(multipartReader(t, "a.pdf", "application/pdf", make([]byte, 10), ""))
		assert.ErrorIs(t, err, ErrBodyTooLarge)
		assert.Equal(t, models.StateIdle, ctrl.Snapshot().State)
		assert.Equal(t, 0, store.GetFileCount())
	})

	t.Run("no file part", func(t *testing.T) {
		intake, ctrl, _ := newIntake(t, 1024)

		_, err := intake.AcceptOversized(multipartReader(t, "", "", nil, "1767225600000"))
		assert.ErrorIs(t, err, ErrNoFile)
		assert.Equal(t, models.StateIdle, ctrl.Snapshot().State)
	})
}

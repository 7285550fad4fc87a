package upload

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfacil/pdfacil-backend/pkg/testutil"
)

func TestNormalizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"relatório final.pdf", "relat_rio_final.pdf"},
		{"../../etc/passwd", "passwd"},
		{"", "file"},
		{"...", "file"},
		{"ok-name_1.pdf", "ok-name_1.pdf"},
		{"weird$chars&here!.pdf", "weird_chars_here_.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFilename(tt.in))
		})
	}
}

func TestNormalizeFilename_CapsLength(t *testing.T) {
	long := ""
	for i := 0; i < 300; i++ {
		long += "a"
	}
	got := NormalizeFilename(long + ".pdf")
	assert.LessOrEqual(t, len(got), 128)
	assert.Contains(t, got, ".pdf")
}

// buildUpload assembles a multipart request carrying one file.
func buildUpload(t *testing.T, filename, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	if contentType != "" {
		hdr["Content-Type"] = []string{contentType}
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["file"][0]
}

func TestValidate_AcceptsRealPDF(t *testing.T) {
	fh := buildUpload(t, "doc.pdf", "application/pdf", testutil.PDFBytes(1))

	info, err := Validate(fh, []string{".pdf"}, []string{"application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, "doc.pdf", info.Filename)
	assert.Equal(t, ".pdf", info.Ext)
	assert.Equal(t, "application/pdf", info.MIME)
}

func TestValidate_RejectsWrongExtension(t *testing.T) {
	fh := buildUpload(t, "doc.exe", "application/pdf", testutil.PDFBytes(1))

	_, err := Validate(fh, []string{".pdf"}, []string{"application/pdf"})
	require.Error(t, err)
}

func TestValidate_RejectsMismatchedContent(t *testing.T) {
	// A PNG payload wearing a .pdf name must not pass the sniff.
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	fh := buildUpload(t, "doc.pdf", "application/pdf", png)

	_, err := Validate(fh, []string{".pdf"}, []string{"application/pdf"})
	require.Error(t, err)
}

func TestValidate_DeclaredTypeConflict(t *testing.T) {
	// Declared type matches neither the content nor the extension.
	fh := buildUpload(t, "doc.pdf", "video/mp4", testutil.PDFBytes(1))

	_, err := Validate(fh, []string{".pdf"}, []string{"application/pdf"})
	require.Error(t, err)
}

func TestValidate_TextLeniency(t *testing.T) {
	// CSV content routinely sniffs as text/plain.
	fh := buildUpload(t, "dados.csv", "text/csv", []byte("a,b,c\n1,2,3\n"))

	_, err := Validate(fh, []string{".csv"}, []string{"text/csv"})
	require.NoError(t, err)
}

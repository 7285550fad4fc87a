package httputil

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfacil/pdfacil-backend/pkg/errors"
)

func TestError_AppErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.TooLarge("Arquivo muito grande."))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error":"Arquivo muito grande."}`, rec.Body.String())
}

func TestError_UnknownErrorIsGeneric500(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, stderrors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body["error"], "pq:")
}

func TestSendFile_Disposition(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, SendFile(rec, req, path, "resultado.pdf", false))

	assert.Equal(t, `attachment; filename="resultado.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 fake", rec.Body.String())

	rec = httptest.NewRecorder()
	require.NoError(t, SendFile(rec, req, path, "resultado.pdf", true))
	assert.Equal(t, `inline; filename="resultado.pdf"`, rec.Header().Get("Content-Disposition"))
}

func TestValidate_Details(t *testing.T) {
	type payload struct {
		Page int `validate:"gte=1"`
	}
	err := Validate(payload{Page: 0})
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errors.KindInvalidInput, appErr.Kind)
	assert.Contains(t, appErr.Details, "Page")
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfacil/pdfacil-backend/internal/editsession"
	"github.com/pdfacil/pdfacil-backend/internal/pipeline"
	"github.com/pdfacil/pdfacil-backend/internal/preview"
	"github.com/pdfacil/pdfacil-backend/internal/ratelimit"
	"github.com/pdfacil/pdfacil-backend/internal/sandbox"
	"github.com/pdfacil/pdfacil-backend/internal/telemetry"
	"github.com/pdfacil/pdfacil-backend/internal/tools"
	"github.com/pdfacil/pdfacil-backend/internal/upload"
	"github.com/pdfacil/pdfacil-backend/pkg/config"
	"github.com/pdfacil/pdfacil-backend/pkg/logger"
	"github.com/pdfacil/pdfacil-backend/pkg/testutil"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Environment = "production"
	cfg.Upload.MaxContentLength = 10 << 20
	cfg.Upload.MaxPDFPages = 50
	cfg.Upload.MaxTotalPages = 100
	cfg.Upload.EditMaxPages = 20
	cfg.OCR.Langs = "por+eng"
	cfg.OCR.Timeout = 300
	cfg.OCR.MemMB = 1024
	cfg.OCR.Jobs = 1
	cfg.OCR.OnSigned = config.SignedBlock
	cfg.RateLimit.Default = 100
	cfg.Admin.Token = "s3cret"
	return cfg
}

func newTestRouter(t *testing.T, cfg *config.Config) (chi.Router, *Handler) {
	t.Helper()
	log := logger.New("test", "production")

	store, err := upload.NewStore(t.TempDir(), time.Hour, log)
	require.NoError(t, err)

	runner := sandbox.NewRunner(log)
	gs := tools.NewGhostscript("", runner, time.Minute, 512, log)
	office := tools.NewOffice("", runner, time.Minute, 512, log)
	ocr := tools.NewOCR(&tools.Paths{}, runner, log)

	previews := preview.NewCache(
		store.Subdir(upload.ThumbsDir),
		store.Subdir(upload.TmpPreviewsDir),
		func(ctx context.Context, input, output string) error {
			return os.WriteFile(output, []byte("png"), 0o644)
		},
		log,
	)
	sessions := editsession.NewStore(store.Subdir(upload.EditSessionsDir), time.Hour, log)
	svc := pipeline.New(cfg, store, gs, office, ocr, previews, sessions, log)

	h := New(cfg, svc, telemetry.New(), ratelimit.New(cfg.RateLimit), logger.NewTailBuffer(100), &tools.Paths{}, log)
	r := chi.NewRouter()
	h.Routes(r)
	return r, h
}

// multipartBody builds a request body with one PDF file part plus the
// given plain fields.
func multipartBody(t *testing.T, field, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	hdr.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string          `json:"status"`
		Tools  map[string]bool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.Tools["ghostscript"])
	assert.Contains(t, body.Tools, "ocr")
	assert.Contains(t, body.Tools, "tesseract")
}

func TestOrganizeEndToEnd(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	body, ctype := multipartBody(t, "file", "relatorio.pdf", testutil.PDFBytes(3), map[string]string{
		"pages": "[3,2,1]",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/organize", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="organizado_relatorio.pdf"`)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestOrganizeRequiresDirectives(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	body, ctype := multipartBody(t, "file", "a.pdf", testutil.PDFBytes(1), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/organize", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOversizedBodyFixedMessage(t *testing.T) {
	cfg := testConfig()
	r, _ := newTestRouter(t, cfg)

	body, ctype := multipartBody(t, "file", "a.pdf", testutil.PDFBytes(1), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/organize", body)
	req.Header.Set("Content-Type", ctype)
	req.ContentLength = cfg.Upload.MaxContentLength + 1
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"error":"Arquivo muito grande."}`, rec.Body.String())
}

func TestRejectsWrongExtension(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	body, ctype := multipartBody(t, "file", "a.exe", testutil.PDFBytes(1), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/split", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitExhaustion(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.PerEndpoint = map[string]int{"organize": 1}
	r, _ := newTestRouter(t, cfg)

	send := func() *httptest.ResponseRecorder {
		body, ctype := multipartBody(t, "file", "a.pdf", testutil.PDFBytes(1), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/organize", body)
		req.Header.Set("Content-Type", ctype)
		req.RemoteAddr = "203.0.113.9:4711"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	first := send()
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := send()
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestCompressProfilesListing(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/compress/profiles", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var profiles map[string]tools.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profiles))
	assert.Len(t, profiles, 4)
	assert.Equal(t, "Equilíbrio", profiles[tools.ProfileBalanced].Label)
	assert.Contains(t, profiles, tools.ProfileLossless)
}

func TestCompressRejectsUnknownProfile(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	body, ctype := multipartBody(t, "file", "a.pdf", testutil.PDFBytes(1), map[string]string{
		"profile": "ultra-mega",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/compress", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOCROptionsPayload(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ocr/options", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["available"])
	assert.Equal(t, []any{"por", "eng"}, body["langs"])
}

func TestAdminRequiresToken(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminStatsWithToken(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats?window=15m", nil)
	req.Header.Set("X-Admin-Token", "s3cret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "stats")
	assert.Contains(t, body, "tools")
}

func TestAdminDisabledWithoutConfiguredToken(t *testing.T) {
	cfg := testConfig()
	cfg.Admin.Token = ""
	r, _ := newTestRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("X-Admin-Token", "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminLogs(t *testing.T) {
	r, h := newTestRouter(t, testConfig())
	h.tail.Write([]byte(`{"level":"warn","message":"disco quase cheio"}`))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/logs?tail=10", nil)
	req.Header.Set("X-Admin-Token", "s3cret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Rows  []json.RawMessage `json:"rows"`
		Count int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestTelemetryCountsRequests(t *testing.T) {
	r, h := newTestRouter(t, testConfig())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/compress/profiles", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	snap := h.metrics.Snapshot("60")
	assert.Equal(t, int64(1), snap.Total)
	assert.Equal(t, int64(1), snap.Status2xx)
}

func TestTelemetryRecordsFailureMessage(t *testing.T) {
	r, h := newTestRouter(t, testConfig())

	body, ctype := multipartBody(t, "file", "a.exe", testutil.PDFBytes(1), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/split", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	snap := h.metrics.Snapshot("60")
	require.NotEmpty(t, snap.Failures)
	assert.Equal(t, "Extensão de arquivo não permitida.", snap.Failures[0].Message)
	assert.Equal(t, "/api/split", snap.Failures[0].Path)
	assert.Equal(t, http.StatusBadRequest, snap.Failures[0].Status)
}

func TestMergeRequiresTwoFiles(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	body, ctype := multipartBody(t, "files", "a.pdf", testutil.PDFBytes(1), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/merge", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSplitSelectionEndToEnd(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	body, ctype := multipartBody(t, "file", "doc.pdf", testutil.PDFBytes(4), map[string]string{
		"pages": "2,4",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/split", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestSplitExplodeReturnsZIP(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	body, ctype := multipartBody(t, "file", "doc.pdf", testutil.PDFBytes(2), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/split", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".zip")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestEditUploadAndApplyFlow(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	body, ctype := multipartBody(t, "file", "contrato.pdf", testutil.PDFBytes(3), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/edit/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var up struct {
		SessionID string `json:"session_id"`
		Pages     int    `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	require.NotEmpty(t, up.SessionID)
	assert.Equal(t, 3, up.Pages)

	payload, err := json.Marshal(map[string]any{
		"session_id": up.SessionID,
		"pages":      []int{3, 1},
	})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/api/edit/apply/organize", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var applied struct {
		DownloadURL string `json:"download_url"`
		Filename    string `json:"filename"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &applied))
	assert.Equal(t, "/api/edit/download/"+up.SessionID, applied.DownloadURL)
	assert.Equal(t, "editado_contrato.pdf", applied.Filename)

	req = httptest.NewRequest(http.MethodGet, applied.DownloadURL, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestEditApplyUnknownAction(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	payload := []byte(`{"session_id":"abcdefghijkl"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/edit/apply/detonate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditUnknownSession(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/edit/download/abcdefghijkl", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewFlow(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	body, ctype := multipartBody(t, "file", "doc.pdf", testutil.PDFBytes(1), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/preview", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ThumbID  string `json:"thumb_id"`
		ThumbURL string `json:"thumb_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ThumbID)
	assert.Equal(t, "/api/preview/"+resp.ThumbID+".png", resp.ThumbURL)

	req = httptest.NewRequest(http.MethodGet, resp.ThumbURL, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age=86400")
	assert.Equal(t, "png", rec.Body.String())
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "comprimido_nota.pdf", outputName("nota.pdf", "comprimido", ".pdf"))
	assert.Equal(t, "convertido_planilha.pdf", outputName("planilha.xlsx", "convertido", ".pdf"))
	assert.Equal(t, "dividido_documento.pdf", outputName(".pdf", "dividido", ".pdf"))
}

func TestFormHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Form = map[string][]string{
		"a": {"sim"},
		"b": {"false"},
		"n": {"42"},
		"x": {"abc"},
	}
	assert.True(t, formBool(req, "a"))
	assert.False(t, formBool(req, "b"))
	assert.False(t, formBool(req, "missing"))
	assert.Equal(t, 42, formInt(req, "n"))
	assert.Equal(t, 0, formInt(req, "x"))
}

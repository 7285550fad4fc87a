// Package api exposes the HTTP surface: the operation endpoints, the
// preview and edit-session routes and the admin surface.
package api

import (
	"context"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pdfacil/pdfacil-backend/internal/pipeline"
	"github.com/pdfacil/pdfacil-backend/internal/ratelimit"
	"github.com/pdfacil/pdfacil-backend/internal/telemetry"
	"github.com/pdfacil/pdfacil-backend/internal/tools"
	"github.com/pdfacil/pdfacil-backend/internal/upload"
	"github.com/pdfacil/pdfacil-backend/pkg/config"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
	"github.com/pdfacil/pdfacil-backend/pkg/httputil"
	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

// formMemoryLimit is how much of a multipart body is held in memory
// before spilling to temp files.
const formMemoryLimit = 32 << 20

// Handler carries the wired services for every route.
type Handler struct {
	cfg     *config.Config
	svc     *pipeline.Service
	metrics *telemetry.Metrics
	limiter *ratelimit.Limiter
	tail    *logger.TailBuffer
	tools   *tools.Paths
	log     *logger.Logger
}

// New creates the handler.
func New(cfg *config.Config, svc *pipeline.Service, metrics *telemetry.Metrics, limiter *ratelimit.Limiter, tail *logger.TailBuffer, paths *tools.Paths, log *logger.Logger) *Handler {
	return &Handler{
		cfg:     cfg,
		svc:     svc,
		metrics: metrics,
		limiter: limiter,
		tail:    tail,
		tools:   paths,
		log:     log.WithComponent("api"),
	}
}

// Routes registers every endpoint on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(Telemetry(h.metrics))

		r.Post("/convert", h.limited("convert", h.Convert))
		r.Post("/merge", h.limited("merge", h.Merge))
		r.Post("/split", h.limited("split", h.Split))
		r.Post("/compress", h.limited("compress", h.Compress))
		r.Get("/compress/profiles", h.CompressProfiles)
		r.Post("/organize", h.limited("organize", h.Organize))
		r.Post("/ocr", h.limited("ocr", h.OCR))
		r.Get("/ocr/options", h.OCROptions)
		r.Post("/preview", h.limited("preview", h.Preview))
		r.Get("/preview/{id}.png", h.PreviewPNG)

		r.Route("/edit", func(r chi.Router) {
			r.Post("/upload", h.limited("edit", h.EditUpload))
			r.Post("/apply/{action}", h.limited("edit", h.EditApply))
			r.Get("/download/{sessionID}", h.EditDownload)
			r.Get("/preview/{sessionID}.png", h.EditPreview)
			r.Post("/discard/{sessionID}", h.EditDiscard)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.adminOnly)
			r.Get("/stats", h.limited("admin_stats", h.AdminStats))
			r.Get("/logs", h.AdminLogs)
		})
	})
}

// Health reports process liveness and external tool availability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tools":  h.toolAvailability(),
	})
}

func (h *Handler) toolAvailability() map[string]bool {
	return map[string]bool{
		"ghostscript": h.tools.Ghostscript != "",
		"libreoffice": h.tools.LibreOffice != "",
		"ocr":         h.tools.OCR != "",
		"tesseract":   h.tools.Tesseract != "",
		"unpaper":     h.tools.Unpaper != "",
		"pngquant":    h.tools.PNGQuant != "",
	}
}

type errMsgKey struct{}

// Telemetry feeds every finished request into the counters. The error
// helper deposits the client-visible message for the failure ring.
func Telemetry(m *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			carrier := new(string)
			r = r.WithContext(context.WithValue(r.Context(), errMsgKey{}, carrier))
			sw := &httputil.StatusWriter{ResponseWriter: w, Code: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.Track(r.URL.Path, sw.Code, *carrier)
		})
	}
}

// limited enforces the endpoint's per-IP budget before the handler runs.
func (h *Handler) limited(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, retry := h.limiter.Allow(clientIP(r), endpoint)
		if !ok {
			if secs := int(retry.Seconds()) + 1; secs > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(secs))
			}
			h.error(w, r, apperr.RateLimited("Muitas requisições. Aguarde um instante e tente novamente."))
			return
		}
		next(w, r)
	}
}

func (h *Handler) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if h.cfg.Admin.Token == "" || token != h.cfg.Admin.Token {
			h.error(w, r, apperr.Unauthorized("token de administração inválido"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// error renders the failure and deposits its message for telemetry.
func (h *Handler) error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.AppError
	if carrier, ok := r.Context().Value(errMsgKey{}).(*string); ok {
		if apperr.As(err, &appErr) {
			*carrier = appErr.Message
		} else {
			*carrier = err.Error()
		}
	}
	if apperr.As(err, &appErr) && appErr.StatusCode >= 500 {
		h.log.Error().Err(err).Str("request_id", httputil.GetRequestID(r.Context())).Msg("request failed")
	} else if appErr == nil {
		h.log.Error().Err(err).Str("request_id", httputil.GetRequestID(r.Context())).Msg("request failed")
	}
	httputil.Error(w, err)
}

// parseMultipart bounds and parses the request body. Oversized bodies
// produce the fixed 413 payload.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	maxBytes := h.cfg.Upload.MaxContentLength
	if r.ContentLength > maxBytes {
		return apperr.TooLarge("Arquivo muito grande.")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(formMemoryLimit); err != nil {
		var mbe *http.MaxBytesError
		if apperr.As(err, &mbe) {
			return apperr.TooLarge("Arquivo muito grande.")
		}
		return apperr.InvalidInput("Formulário de envio inválido.").Wrap(err)
	}
	return nil
}

// saveUpload validates one uploaded file and persists it as a scratch
// file the caller owns.
func (h *Handler) saveUpload(fh *multipart.FileHeader, exts, mimes []string) (string, *upload.Info, error) {
	info, err := upload.Validate(fh, exts, mimes)
	if err != nil {
		return "", nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, apperr.InvalidInput("Não foi possível ler o arquivo enviado.").Wrap(err)
	}
	defer f.Close()
	path, size, err := h.svc.Store().Save(f, info.Filename)
	if err != nil {
		return "", nil, apperr.Internal("falha ao salvar o arquivo").Wrap(err)
	}
	info.Size = size
	return path, info, nil
}

// formFile fetches the single uploaded file under the given field.
func formFile(r *http.Request, field string) (*multipart.FileHeader, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, apperr.InvalidInput("Nenhum arquivo foi enviado.")
	}
	return r.MultipartForm.File[field][0], nil
}

// sendAndRemove streams the output file and deletes it afterwards.
func (h *Handler) sendAndRemove(w http.ResponseWriter, r *http.Request, path, downloadName string, inline bool) {
	defer h.svc.Store().Remove(path)
	if err := httputil.SendFile(w, r, path, downloadName, inline); err != nil {
		h.log.Error().Err(err).Str("request_id", httputil.GetRequestID(r.Context())).Msg("response stream failed")
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func formBool(r *http.Request, field string) bool {
	switch strings.ToLower(r.FormValue(field)) {
	case "1", "true", "yes", "on", "sim":
		return true
	}
	return false
}

func formInt(r *http.Request, field string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue(field)))
	if err != nil {
		return 0
	}
	return n
}

// pdfOnly are the allow-lists for endpoints that take a PDF.
var (
	pdfExts  = []string{".pdf"}
	pdfMIMEs = []string{"application/pdf"}
)

// outputName derives the delivered filename from the upload, swapping
// the extension and prefixing the operation.
func outputName(uploadName, prefix, ext string) string {
	base := strings.TrimSuffix(uploadName, getExt(uploadName))
	if base == "" {
		base = "documento"
	}
	return prefix + "_" + base + ext
}

func getExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

package api

import (
	"net/http"
	"strings"

	"github.com/pdfacil/pdfacil-backend/internal/pipeline"
	"github.com/pdfacil/pdfacil-backend/pkg/httputil"
)

// OCR handles POST /api/ocr.
func (h *Handler) OCR(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.error(w, r, err)
		return
	}
	fh, err := formFile(r, "file")
	if err != nil {
		h.error(w, r, err)
		return
	}

	path, info, err := h.saveUpload(fh, pdfExts, pdfMIMEs)
	if err != nil {
		h.error(w, r, err)
		return
	}
	defer h.svc.Store().Remove(path)

	out, err := h.svc.OCR(r.Context(), path, ocrRequestFromForm(r))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.sendAndRemove(w, r, out, outputName(info.Filename, "pesquisavel", ".pdf"), true)
}

// OCROptions handles GET /api/ocr/options.
func (h *Handler) OCROptions(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.svc.OCRDefaults())
}

func ocrRequestFromForm(r *http.Request) pipeline.OCRRequest {
	var langs []string
	if raw := strings.TrimSpace(r.FormValue("lang")); raw != "" {
		for _, l := range strings.FieldsFunc(raw, func(c rune) bool { return c == '+' || c == ',' }) {
			if l = strings.TrimSpace(l); l != "" {
				langs = append(langs, l)
			}
		}
	}
	return pipeline.OCRRequest{
		Langs:             langs,
		Force:             formBool(r, "force"),
		SkipText:          formBool(r, "skip_text"),
		Optimize:          formInt(r, "optimize"),
		Deskew:            formBool(r, "deskew"),
		RotatePages:       formBool(r, "rotate_pages"),
		Clean:             formBool(r, "clean"),
		Jobs:              formInt(r, "jobs"),
		TimeoutSec:        formInt(r, "timeout"),
		MemMB:             formInt(r, "mem_mb"),
		ConfirmInvalidate: formBool(r, "invalidate_signatures"),
	}
}

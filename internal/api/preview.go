package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pdfacil/pdfacil-backend/pkg/httputil"
)

// Preview handles POST /api/preview: renders (or reuses) the first-page
// thumbnail and returns its content-addressed id.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.error(w, r, err)
		return
	}
	fh, err := formFile(r, "file")
	if err != nil {
		h.error(w, r, err)
		return
	}

	path, _, err := h.saveUpload(fh, pdfExts, pdfMIMEs)
	if err != nil {
		h.error(w, r, err)
		return
	}
	defer h.svc.Store().Remove(path)

	id, err := h.svc.Previews().Ensure(r.Context(), path)
	if err != nil {
		h.error(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{
		"thumb_id":  id,
		"thumb_url": "/api/preview/" + id + ".png",
	})
}

// PreviewPNG handles GET /api/preview/{id}.png. Thumbnails are
// content-addressed, so clients may cache them hard.
func (h *Handler) PreviewPNG(w http.ResponseWriter, r *http.Request) {
	path, err := h.svc.Previews().Path(chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	http.ServeFile(w, r, path)
}

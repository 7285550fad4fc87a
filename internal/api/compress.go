package api

import (
	"net/http"

	"github.com/pdfacil/pdfacil-backend/internal/tools"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
	"github.com/pdfacil/pdfacil-backend/pkg/httputil"
)

// Compress handles POST /api/compress.
func (h *Handler) Compress(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.error(w, r, err)
		return
	}
	fh, err := formFile(r, "file")
	if err != nil {
		h.error(w, r, err)
		return
	}

	profile := r.FormValue("profile")
	if profile == "" {
		profile = tools.ProfileBalanced
	}
	if _, ok := tools.Profiles()[profile]; !ok {
		h.error(w, r, apperr.InvalidInput("Perfil de compressão desconhecido."))
		return
	}
	mods, err := parseModifications(r)
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

	out, err := h.svc.Compress(r.Context(), path, profile, mods)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.sendAndRemove(w, r, out, outputName(info.Filename, "comprimido", ".pdf"), true)
}

// CompressProfiles handles GET /api/compress/profiles.
func (h *Handler) CompressProfiles(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, tools.Profiles())
}

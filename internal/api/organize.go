package api

import (
	"encoding/json"
	"net/http"

	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

// Organize handles POST /api/organize.
func (h *Handler) Organize(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.error(w, r, err)
		return
	}
	fh, err := formFile(r, "file")
	if err != nil {
		h.error(w, r, err)
		return
	}

	pages, err := parsePageList(r.FormValue("pages"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	var rotations map[int]int
	if raw := r.FormValue("rotations"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rotations); err != nil {
			h.error(w, r, apperr.InvalidInput("rotations deve mapear página para ângulo."))
			return
		}
	}
	if len(pages) == 0 && len(rotations) == 0 {
		h.error(w, r, apperr.InvalidInput("Informe pages ou rotations."))
		return
	}

	path, info, err := h.saveUpload(fh, pdfExts, pdfMIMEs)
	if err != nil {
		h.error(w, r, err)
		return
	}
	defer h.svc.Store().Remove(path)

	out, err := h.svc.Organize(path, pages, rotations)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.sendAndRemove(w, r, out, outputName(info.Filename, "organizado", ".pdf"), false)
}

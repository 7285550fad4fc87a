package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pdfacil/pdfacil-backend/internal/pipeline"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

// Split handles POST /api/split.
func (h *Handler) Split(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.svc.Split(r.Context(), path, pages, mods)
	if err != nil {
		h.error(w, r, err)
		return
	}
	if res.ZIP {
		h.sendAndRemove(w, r, res.Path, outputName(info.Filename, "paginas", ".zip"), false)
		return
	}
	h.sendAndRemove(w, r, res.Path, outputName(info.Filename, "dividido", ".pdf"), false)
}

// parsePageList accepts either a JSON int list or a comma-separated
// string of 1-based page numbers.
func parsePageList(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var pages []int
	if err := json.Unmarshal([]byte(raw), &pages); err == nil {
		return pages, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, apperr.InvalidInput("pages deve ser uma lista de números de página.")
		}
		pages = append(pages, n)
	}
	return pages, nil
}

// parseModifications decodes the optional modificacoes JSON plus the
// shorthand rotations dict, merging the latter into the former.
func parseModifications(r *http.Request) (*pipeline.Modifications, error) {
	var mods pipeline.Modifications
	if raw := r.FormValue("modificacoes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mods); err != nil {
			return nil, apperr.InvalidInput("modificacoes inválidas.")
		}
	}
	if raw := r.FormValue("rotations"); raw != "" {
		var rot map[int]int
		if err := json.Unmarshal([]byte(raw), &rot); err != nil {
			return nil, apperr.InvalidInput("rotations deve mapear página para ângulo.")
		}
		if mods.Rotations == nil {
			mods.Rotations = rot
		} else {
			for page, angle := range rot {
				mods.Rotations[page] = angle
			}
		}
	}
	return &mods, nil
}

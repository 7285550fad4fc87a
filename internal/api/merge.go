package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdfacil/pdfacil-backend/internal/pipeline"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

// Merge handles POST /api/merge.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.error(w, r, err)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["files[]"]
	}
	if len(files) < 2 {
		h.error(w, r, apperr.InvalidInput("Envie pelo menos dois PDFs para juntar."))
		return
	}

	pagesMap, rotations, crops, err := parseMergeDirectives(r, len(files))
	if err != nil {
		h.error(w, r, err)
		return
	}

	var saved []string
	defer func() { h.svc.Store().Remove(saved...) }()

	inputs := make([]pipeline.MergeInput, 0, len(files))
	for i, fh := range files {
		path, _, err := h.saveUpload(fh, pdfExts, pdfMIMEs)
		if err != nil {
			h.error(w, r, err)
			return
		}
		saved = append(saved, path)
		in := pipeline.MergeInput{Path: path}
		if pagesMap != nil {
			in.Pages = pagesMap[i]
		}
		if rotations != nil {
			in.Rotation = rotations[i]
		}
		if crops != nil && i < len(crops) {
			in.Crops = crops[i]
		}
		inputs = append(inputs, in)
	}

	opts := pipeline.MergeOptions{
		AutoOrient: formBool(r, "autoOrient"),
		Flatten:    formBool(r, "flatten") || r.URL.Query().Get("flatten") != "",
	}
	out, err := h.svc.Merge(r.Context(), inputs, opts)
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.sendAndRemove(w, r, out, "documentos_unidos.pdf", false)
}

// parseMergeDirectives decodes pagesMap, rotations and crops, holding
// each to the strict shape: parallel to the file list, integer-typed.
func parseMergeDirectives(r *http.Request, n int) ([][]int, []int, [][]pipeline.PageCrop, error) {
	var pagesMap [][]int
	if raw := r.FormValue("pagesMap"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &pagesMap); err != nil {
			return nil, nil, nil, apperr.InvalidInput("pagesMap deve ser uma lista de listas de inteiros.")
		}
		if len(pagesMap) != n {
			return nil, nil, nil, apperr.InvalidInput(fmt.Sprintf("pagesMap tem %d entradas para %d arquivos.", len(pagesMap), n))
		}
	}

	var rotations []int
	if raw := r.FormValue("rotations"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &rotations); err != nil {
			return nil, nil, nil, apperr.InvalidInput("rotations deve ser uma lista de inteiros.")
		}
		if len(rotations) != n {
			return nil, nil, nil, apperr.InvalidInput(fmt.Sprintf("rotations tem %d entradas para %d arquivos.", len(rotations), n))
		}
	}

	var crops [][]pipeline.PageCrop
	if raw := r.FormValue("crops"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &crops); err != nil {
			return nil, nil, nil, apperr.InvalidInput("crops deve ser uma lista de listas {page, box}.")
		}
	}

	return pagesMap, rotations, crops, nil
}

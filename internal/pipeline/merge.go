package pipeline

import (
	"context"

	"github.com/pdfacil/pdfacil-backend/internal/pdf"
	"github.com/pdfacil/pdfacil-backend/internal/tools"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

// PageCrop is one absolute crop inside a merge input, in page-local
// points as [x0, y0, x1, y1].
type PageCrop struct {
	Page int        `json:"page"`
	Box  [4]float64 `json:"box"`
}

// MergeInput is one already-saved upload plus its per-file directives.
type MergeInput struct {
	Path     string
	Pages    []int
	Rotation int
	Crops    []PageCrop
}

// MergeOptions are the request-level merge flags.
type MergeOptions struct {
	// AutoOrient is a client hint; page orientation is currently left
	// to the flatten pass when one runs.
	AutoOrient bool
	// Flatten runs the merged output through the structural pdfwrite
	// pass, flattening form fields.
	Flatten bool
}

// Merge prepares each input (rotation delta, crops, page selection),
// concatenates them in order and optionally flattens the result.
func (s *Service) Merge(ctx context.Context, inputs []MergeInput, opts MergeOptions) (string, error) {
	if len(inputs) < 2 {
		return "", apperr.InvalidInput("a junção requer pelo menos dois arquivos")
	}

	var prepared []string
	cleanup := func() { s.store.Remove(prepared...) }

	totalPages := 0
	for _, in := range inputs {
		n, err := pdf.EnforcePageLimit(in.Path, s.cfg.Upload.MaxPDFPages)
		if err != nil {
			cleanup()
			return "", err
		}
		if len(in.Pages) > 0 {
			totalPages += len(in.Pages)
		} else {
			totalPages += n
		}
		if err := pdf.EnforceTotalPages(totalPages, s.cfg.Upload.MaxTotalPages); err != nil {
			cleanup()
			return "", err
		}

		path, err := s.prepareMergeInput(in)
		if err != nil {
			cleanup()
			return "", err
		}
		prepared = append(prepared, path)
	}
	defer cleanup()

	merged := s.store.ScratchPath(".pdf")
	if err := pdf.Merge(prepared, merged); err != nil {
		s.store.Remove(merged)
		return "", err
	}

	if !opts.Flatten {
		return merged, nil
	}

	flat := s.store.ScratchPath(".pdf")
	if err := s.gs.Compress(ctx, merged, flat, tools.ProfileLossless); err != nil {
		s.store.Remove(merged, flat)
		return "", err
	}
	s.store.Remove(merged)
	return flat, nil
}

// prepareMergeInput applies the per-file directives, always producing a
// fresh scratch copy so the caller-owned upload is left untouched.
func (s *Service) prepareMergeInput(in MergeInput) (string, error) {
	out := s.store.ScratchPath(".pdf")

	if err := pdf.RotateDelta(in.Path, out, nil, in.Rotation); err != nil {
		s.store.Remove(out)
		return "", err
	}

	for _, crop := range in.Crops {
		next := s.store.ScratchPath(".pdf")
		if err := pdf.CropAbsolute(out, next, crop.Page, crop.Box); err != nil {
			s.store.Remove(out, next)
			return "", err
		}
		s.store.Remove(out)
		out = next
	}

	if len(in.Pages) > 0 {
		next := s.store.ScratchPath(".pdf")
		if err := pdf.Apply(out, next, pdf.Transform{Pages: in.Pages, Strict: true}); err != nil {
			s.store.Remove(out, next)
			return "", err
		}
		s.store.Remove(out)
		out = next
	}

	return out, nil
}

// Package pipeline composes the upload store, the in-process PDF engine
// and the sandboxed external tools into the operations the HTTP layer
// exposes. Every orchestrator writes to unique scratch paths and removes
// its intermediates on all exits; only the returned output survives for
// the caller to stream and delete.
package pipeline

import (
	"sort"

	"github.com/pdfacil/pdfacil-backend/internal/editsession"
	"github.com/pdfacil/pdfacil-backend/internal/pdf"
	"github.com/pdfacil/pdfacil-backend/internal/preview"
	"github.com/pdfacil/pdfacil-backend/internal/tools"
	"github.com/pdfacil/pdfacil-backend/internal/upload"
	"github.com/pdfacil/pdfacil-backend/pkg/config"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

// Service owns the orchestrators.
type Service struct {
	cfg      *config.Config
	store    *upload.Store
	gs       *tools.Ghostscript
	office   *tools.Office
	ocr      *tools.OCR
	previews *preview.Cache
	sessions *editsession.Store
	log      *logger.Logger
}

// New wires the service.
func New(cfg *config.Config, store *upload.Store, gs *tools.Ghostscript, office *tools.Office, ocr *tools.OCR, previews *preview.Cache, sessions *editsession.Store, log *logger.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		gs:       gs,
		office:   office,
		ocr:      ocr,
		previews: previews,
		sessions: sessions,
		log:      log.WithComponent("pipeline"),
	}
}

// Previews exposes the thumbnail cache for the HTTP layer.
func (s *Service) Previews() *preview.Cache { return s.previews }

// Sessions exposes the edit-session store for the HTTP layer.
func (s *Service) Sessions() *editsession.Store { return s.sessions }

// Store exposes the upload store for the HTTP layer.
func (s *Service) Store() *upload.Store { return s.store }

// Modifications are the optional in-process edits accepted alongside
// split and compress: pages to drop and per-page rotation deltas.
type Modifications struct {
	Removed   []int       `json:"paginas_removidas"`
	Rotations map[int]int `json:"rotacoes"`
}

func (m *Modifications) empty() bool {
	return m == nil || (len(m.Removed) == 0 && len(m.Rotations) == 0)
}

// applyModifications rewrites input into a fresh scratch file with the
// rotation deltas and page removals applied, returning the new path.
// When there is nothing to do the input path is returned unchanged.
func (s *Service) applyModifications(input string, mods *Modifications) (string, error) {
	if mods.empty() {
		return input, nil
	}

	current := input
	cleanup := func(p string) {
		if p != input {
			s.store.Remove(p)
		}
	}

	if len(mods.Rotations) > 0 {
		// Group pages by delta so each distinct angle is one pass.
		byAngle := make(map[int][]int)
		for page, angle := range mods.Rotations {
			if angle%360 != 0 {
				byAngle[angle] = append(byAngle[angle], page)
			}
		}
		angles := make([]int, 0, len(byAngle))
		for a := range byAngle {
			angles = append(angles, a)
		}
		sort.Ints(angles)
		for _, angle := range angles {
			pages := byAngle[angle]
			sort.Ints(pages)
			next := s.store.ScratchPath(".pdf")
			if err := pdf.RotateDelta(current, next, pages, angle); err != nil {
				cleanup(current)
				return "", err
			}
			cleanup(current)
			current = next
		}
	}

	if len(mods.Removed) > 0 {
		n, err := pdf.PageCount(current)
		if err != nil {
			cleanup(current)
			return "", err
		}
		removed := make(map[int]bool, len(mods.Removed))
		for _, p := range mods.Removed {
			removed[p] = true
		}
		var kept []int
		for p := 1; p <= n; p++ {
			if !removed[p] {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			cleanup(current)
			return "", apperr.InvalidInput("não é possível remover todas as páginas")
		}
		next := s.store.ScratchPath(".pdf")
		if err := pdf.Apply(current, next, pdf.Transform{Pages: kept}); err != nil {
			cleanup(current)
			return "", err
		}
		cleanup(current)
		current = next
	}

	return current, nil
}

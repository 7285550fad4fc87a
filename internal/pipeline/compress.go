package pipeline

import (
	"context"

	"github.com/pdfacil/pdfacil-backend/internal/pdf"
)

// Compress applies the optional modifications, then rewrites the PDF
// through the external writer with the chosen profile's preset.
func (s *Service) Compress(ctx context.Context, input, profile string, mods *Modifications) (string, error) {
	if _, err := pdf.EnforcePageLimit(input, s.cfg.Upload.MaxPDFPages); err != nil {
		return "", err
	}

	work, err := s.applyModifications(input, mods)
	if err != nil {
		return "", err
	}
	if work != input {
		defer s.store.Remove(work)
	}

	out := s.store.ScratchPath(".pdf")
	if err := s.gs.Compress(ctx, work, out, profile); err != nil {
		s.store.Remove(out)
		return "", err
	}
	return out, nil
}

package pipeline

import (
	"github.com/pdfacil/pdfacil-backend/internal/pdf"
)

// Organize reorders, drops and rotates pages in one strict pass: any
// index outside the document fails the whole request.
func (s *Service) Organize(input string, pages []int, rotations map[int]int) (string, error) {
	if _, err := pdf.EnforcePageLimit(input, s.cfg.Upload.MaxPDFPages); err != nil {
		return "", err
	}

	out := s.store.ScratchPath(".pdf")
	t := pdf.Transform{
		Pages:     pages,
		Rotations: rotations,
		Strict:    true,
	}
	if err := pdf.Apply(input, out, t); err != nil {
		s.store.Remove(out)
		return "", err
	}
	return out, nil
}

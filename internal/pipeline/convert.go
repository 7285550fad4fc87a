package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfacil/pdfacil-backend/internal/pdf"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

var imageExts = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

var officeExts = map[string]bool{
	"csv":  true,
	"xls":  true,
	"xlsx": true,
	"doc":  true,
	"docx": true,
	"odt":  true,
	"rtf":  true,
	"txt":  true,
	"html": true,
	"ppt":  true,
	"pptx": true,
	"odp":  true,
}

// ConvertExts lists every extension the convert endpoint accepts.
func ConvertExts() []string {
	exts := make([]string, 0, len(imageExts)+len(officeExts))
	for e := range imageExts {
		exts = append(exts, e)
	}
	for e := range officeExts {
		exts = append(exts, e)
	}
	return exts
}

// Convert turns the uploaded file at input into a PDF, dispatching on
// the (already validated) extension. The returned path is a fresh
// scratch file the caller owns.
func (s *Service) Convert(ctx context.Context, input, ext string) (string, error) {
	switch {
	case imageExts[ext]:
		return s.convertImage(input)
	case officeExts[ext]:
		return s.convertOffice(ctx, input)
	default:
		return "", apperr.InvalidInput(fmt.Sprintf("extensão não suportada para conversão: .%s", ext))
	}
}

func (s *Service) convertImage(input string) (string, error) {
	out := s.store.ScratchPath(".pdf")
	if err := pdf.FromImages([]string{input}, out); err != nil {
		s.store.Remove(out)
		return "", err
	}
	return out, nil
}

func (s *Service) convertOffice(ctx context.Context, input string) (string, error) {
	outDir, err := s.store.ScratchDir()
	if err != nil {
		return "", apperr.Internal("falha ao preparar a conversão").Wrap(err)
	}
	defer os.RemoveAll(outDir)

	produced, err := s.office.ConvertToPDF(ctx, input, outDir)
	if err != nil {
		return "", err
	}

	out := s.store.ScratchPath(".pdf")
	if err := os.Rename(produced, out); err != nil {
		return "", apperr.Internal("falha ao mover o PDF convertido").Wrap(err)
	}
	return out, nil
}

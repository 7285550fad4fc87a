package pipeline

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pdfacil/pdfacil-backend/internal/pdf"
	"github.com/pdfacil/pdfacil-backend/internal/tools"
	"github.com/pdfacil/pdfacil-backend/pkg/config"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

// OCRRequest are the client-tunable OCR parameters. Zero values fall
// back to the configured defaults, and the resource knobs are clamped
// to the configured ceilings.
type OCRRequest struct {
	Langs       []string
	Force       bool
	SkipText    bool
	Optimize    int
	Deskew      bool
	RotatePages bool
	Clean       bool
	Jobs        int
	TimeoutSec  int
	MemMB       int
	// ConfirmInvalidate is the caller's explicit go-ahead to OCR a
	// digitally signed PDF when the policy is "ask".
	ConfirmInvalidate bool
}

// OCRDefaults is the /api/ocr/options payload.
func (s *Service) OCRDefaults() map[string]any {
	return map[string]any{
		"langs":      strings.Split(s.cfg.OCR.Langs, "+"),
		"timeout":    s.cfg.OCR.Timeout,
		"mem_mb":     s.cfg.OCR.MemMB,
		"jobs":       s.cfg.OCR.Jobs,
		"clean":      s.cfg.OCR.Clean,
		"on_signed":  s.cfg.OCR.OnSigned,
		"optimize":   1,
		"skip_text":  true,
		"available":  s.ocr.Available(),
	}
}

// OCR runs the recognition pipeline over one PDF and returns the path
// of the sanitized, text-bearing output.
func (s *Service) OCR(ctx context.Context, input string, req OCRRequest) (string, error) {
	if _, err := pdf.EnforcePageLimit(input, s.cfg.Upload.MaxPDFPages); err != nil {
		return "", err
	}

	// Sanitizer failures fall back to a plain copy; only files the
	// parser cannot open at all are rejected later by the engine.
	work := s.store.ScratchPath(".pdf")
	if err := pdf.Sanitize(input, work); err != nil {
		s.log.Warn().Err(err).Msg("sanitizer fell back to copy")
		if err := copyFile(input, work); err != nil {
			s.store.Remove(work)
			return "", apperr.Internal("falha ao preparar o arquivo").Wrap(err)
		}
	}
	defer s.store.Remove(work)

	opts, err := s.buildOCROptions(ctx, work, req)
	if err != nil {
		return "", err
	}

	out := s.store.ScratchPath(".pdf")
	if err := s.ocr.Run(ctx, work, out, *opts); err != nil {
		s.store.Remove(out)
		return "", err
	}

	if _, err := pdf.EnforcePageLimit(out, s.cfg.Upload.MaxPDFPages); err != nil {
		s.store.Remove(out)
		return "", err
	}

	// Sanitize the engine output in place.
	clean := s.store.ScratchPath(".pdf")
	if err := pdf.Sanitize(out, clean); err == nil {
		if err := os.Rename(clean, out); err != nil {
			s.store.Remove(out, clean)
			return "", apperr.Internal("falha ao finalizar o arquivo").Wrap(err)
		}
	} else {
		s.store.Remove(clean)
	}
	return out, nil
}

func (s *Service) buildOCROptions(ctx context.Context, work string, req OCRRequest) (*tools.OCROptions, error) {
	signed, err := pdf.IsSigned(work)
	if err != nil {
		return nil, err
	}
	invalidate := false
	if signed {
		switch s.cfg.OCR.OnSigned {
		case config.SignedBlock:
			return nil, apperr.SignedDocument("O PDF possui assinatura digital e a política do servidor não permite processá-lo.")
		case config.SignedAsk:
			if !req.ConfirmInvalidate {
				return nil, apperr.SignedDocument("O PDF possui assinatura digital. Confirme que a assinatura pode ser invalidada para continuar.")
			}
			invalidate = true
		case config.SignedInvalidate:
			invalidate = true
		}
	}

	langs := req.Langs
	if len(langs) == 0 {
		langs = strings.Split(s.cfg.OCR.Langs, "+")
	}
	langs, err = tools.ResolveLanguages(langs, s.ocr.InstalledLanguages(ctx))
	if err != nil {
		return nil, err
	}

	opts := tools.OCROptions{
		Langs:                langs,
		Force:                req.Force,
		SkipText:             !req.Force,
		Optimize:             clamp(req.Optimize, 0, 3, 1),
		Deskew:               req.Deskew,
		RotatePages:          req.RotatePages,
		Clean:                req.Clean || s.cfg.OCR.Clean,
		Jobs:                 clamp(req.Jobs, 1, s.cfg.OCR.Jobs, s.cfg.OCR.Jobs),
		Timeout:              time.Duration(clamp(req.TimeoutSec, 10, s.cfg.OCR.Timeout, s.cfg.OCR.Timeout)) * time.Second,
		MemMB:                clamp(req.MemMB, 128, s.cfg.OCR.MemMB, s.cfg.OCR.MemMB),
		InvalidateSignatures: invalidate,
	}
	s.ocr.ApplyHelperDowngrades(&opts)
	return &opts, nil
}

// clamp bounds v to [lo, hi], substituting def when v was not supplied.
func clamp(v, lo, hi, def int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfacil/pdfacil-backend/internal/editsession"
	"github.com/pdfacil/pdfacil-backend/internal/pdf"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

// EditUpload creates an edit session from a saved upload, after the
// session-specific page gate.
func (s *Service) EditUpload(srcPath, originalName string, size int64, client string) (*editsession.Session, error) {
	pages, err := pdf.EnforcePageLimit(srcPath, s.cfg.Upload.EditMaxPages)
	if err != nil {
		return nil, err
	}
	return s.sessions.Create(srcPath, originalName, pages, size, client)
}

// EditOrganize reorders/rotates the session's working copy in one
// strict pass.
func (s *Service) EditOrganize(sess *editsession.Session, pages []int, rotations map[int]int) error {
	return sess.Apply(func(current, scratch string) error {
		return pdf.Apply(current, scratch, pdf.Transform{
			Pages:     pages,
			Rotations: rotations,
			Strict:    true,
		})
	})
}

// EditCrop crops one page of the working copy to a fractional region.
func (s *Service) EditCrop(sess *editsession.Session, page int, region pdf.Rect) error {
	return sess.Apply(func(current, scratch string) error {
		return pdf.Apply(current, scratch, pdf.Transform{
			Crops:  map[int]pdf.Rect{page: region},
			Strict: true,
		})
	})
}

// EditRedact paints opaque black rectangles over the given fractional
// regions of one page, committed into the content stream.
func (s *Service) EditRedact(sess *editsession.Session, page int, regions []pdf.Rect) error {
	if len(regions) == 0 {
		return apperr.InvalidInput("nenhuma região de tarja informada")
	}
	return sess.Apply(func(current, scratch string) error {
		in := current
		for i, region := range regions {
			out := scratch
			if i < len(regions)-1 {
				out = fmt.Sprintf("%s.part%d", scratch, i)
			}
			err := pdf.Redact(in, out, page, region)
			if in != current {
				os.Remove(in)
			}
			if err != nil {
				return err
			}
			in = out
		}
		return nil
	})
}

// EditText stamps one line of text at a fractional position.
func (s *Service) EditText(sess *editsession.Session, page int, x, y float64, font string, size float64, text string, color *pdf.RGB) error {
	return sess.Apply(func(current, scratch string) error {
		return pdf.InsertText(current, scratch, page, x, y, font, size, text, color)
	})
}

// EditOCR runs the OCR pipeline over the session's working copy.
func (s *Service) EditOCR(ctx context.Context, sess *editsession.Session, req OCRRequest) error {
	return sess.Apply(func(current, scratch string) error {
		out, err := s.OCR(ctx, current, req)
		if err != nil {
			return err
		}
		defer s.store.Remove(out)
		return copyFile(out, scratch)
	})
}

// EditAll applies a full organize pass plus a list of crops in a single
// session step, so intermediate states never replace current.pdf.
func (s *Service) EditAll(sess *editsession.Session, pages []int, rotations map[int]int, crops map[int]pdf.Rect) error {
	return sess.Apply(func(current, scratch string) error {
		return pdf.Apply(current, scratch, pdf.Transform{
			Pages:     pages,
			Rotations: rotations,
			Crops:     crops,
			Strict:    true,
		})
	})
}

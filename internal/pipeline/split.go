package pipeline

import (
	"archive/zip"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/pdfacil/pdfacil-backend/internal/pdf"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

// SplitResult is the split output: a single PDF when a page selection
// was given, otherwise a ZIP with one PDF per page.
type SplitResult struct {
	Path string
	ZIP  bool
}

// Split applies the optional modifications, then either extracts the
// requested pages into one PDF or explodes every page into a ZIP.
func (s *Service) Split(ctx context.Context, input string, pages []int, mods *Modifications) (*SplitResult, error) {
	if _, err := pdf.EnforcePageLimit(input, s.cfg.Upload.MaxPDFPages); err != nil {
		return nil, err
	}

	work, err := s.applyModifications(input, mods)
	if err != nil {
		return nil, err
	}
	if work != input {
		defer s.store.Remove(work)
	}

	if len(pages) > 0 {
		out := s.store.ScratchPath(".pdf")
		if err := pdf.Apply(work, out, pdf.Transform{Pages: pages, Strict: true}); err != nil {
			s.store.Remove(out)
			return nil, err
		}
		return &SplitResult{Path: out}, nil
	}

	out, err := s.explode(ctx, work)
	if err != nil {
		return nil, err
	}
	return &SplitResult{Path: out, ZIP: true}, nil
}

// explode writes every page of input into its own PDF and packages them
// as a ZIP with entries named pagina_<k>_<random>.pdf.
func (s *Service) explode(ctx context.Context, input string) (string, error) {
	n, err := pdf.PageCount(input)
	if err != nil {
		return "", err
	}

	parts := make([]string, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(min(runtime.NumCPU(), 4))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			part := s.store.ScratchPath(".pdf")
			if err := pdf.ExtractPage(input, part, i+1); err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	err = g.Wait()
	defer s.store.Remove(parts...)
	if err != nil {
		return "", err
	}

	zipPath := s.store.ScratchPath(".zip")
	f, err := os.Create(zipPath)
	if err != nil {
		return "", apperr.Internal("falha ao criar o arquivo ZIP").Wrap(err)
	}
	zw := zip.NewWriter(f)
	for i, part := range parts {
		entry := fmt.Sprintf("pagina_%d_%s.pdf", i+1, randomSuffix())
		w, err := zw.Create(entry)
		if err == nil {
			err = copyInto(w, part)
		}
		if err != nil {
			zw.Close()
			f.Close()
			s.store.Remove(zipPath)
			return "", apperr.Internal("falha ao gravar o arquivo ZIP").Wrap(err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		s.store.Remove(zipPath)
		return "", apperr.Internal("falha ao finalizar o arquivo ZIP").Wrap(err)
	}
	if err := f.Close(); err != nil {
		s.store.Remove(zipPath)
		return "", apperr.Internal("falha ao finalizar o arquivo ZIP").Wrap(err)
	}
	return zipPath, nil
}

func copyInto(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func randomSuffix() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b[:])
}

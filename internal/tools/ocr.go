package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pdfacil/pdfacil-backend/internal/sandbox"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

// OCROptions are the per-request OCR parameters after defaulting.
type OCROptions struct {
	Langs                []string
	Force                bool
	SkipText             bool
	Optimize             int
	Deskew               bool
	RotatePages          bool
	Clean                bool
	Jobs                 int
	Timeout              time.Duration
	MemMB                int
	InvalidateSignatures bool
}

// OCR drives the OCR engine with its optional helper binaries.
type OCR struct {
	bin       string
	tesseract string
	unpaper   string
	pngquant  string
	runner    *sandbox.Runner
	log       *logger.Logger
}

// NewOCR creates the driver.
func NewOCR(paths *Paths, runner *sandbox.Runner, log *logger.Logger) *OCR {
	return &OCR{
		bin:       paths.OCR,
		tesseract: paths.Tesseract,
		unpaper:   paths.Unpaper,
		pngquant:  paths.PNGQuant,
		runner:    runner,
		log:       log.WithTool("ocr"),
	}
}

// Available reports whether the engine binary was resolved.
func (o *OCR) Available() bool { return o.bin != "" }

// InstalledLanguages lists the language packs the engine can use, by
// asking tesseract. Returns nil (not an error) when the list cannot be
// retrieved, in which case callers pass the request through unchanged.
func (o *OCR) InstalledLanguages(ctx context.Context) []string {
	if o.tesseract == "" {
		return nil
	}
	res, err := o.runner.Run(ctx, o.tesseract, []string{"--list-langs"}, sandbox.Limits{WallTimeout: 10 * time.Second})
	if err != nil || res.RC != 0 {
		return nil
	}
	// First line is a header; the rest are language codes.
	var langs []string
	for _, line := range strings.Split(res.Stdout+"\n"+res.Stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, " ") {
			continue
		}
		langs = append(langs, line)
	}
	return langs
}

// ResolveLanguages keeps the requested languages that are installed,
// preserving request order. A nil installed list passes the request
// through. An empty survivor set is a hard error naming the gap.
func ResolveLanguages(requested, installed []string) ([]string, error) {
	if len(installed) == 0 {
		return requested, nil
	}
	have := make(map[string]bool, len(installed))
	for _, l := range installed {
		have[l] = true
	}
	var kept, missing []string
	for _, l := range requested {
		if have[l] {
			kept = append(kept, l)
		} else {
			missing = append(missing, l)
		}
	}
	if len(kept) == 0 {
		return nil, apperr.DependencyMissing(fmt.Sprintf(
			"Nenhum dos idiomas solicitados está instalado: %s.", strings.Join(missing, ", ")))
	}
	return kept, nil
}

// ApplyHelperDowngrades relaxes options the missing helper binaries
// cannot honor: clean needs the page-cleanup helper, optimize above 1
// needs the PNG quantizer.
func (o *OCR) ApplyHelperDowngrades(opts *OCROptions) {
	if opts.Clean && o.unpaper == "" {
		o.log.Warn().Msg("unpaper missing, disabling clean")
		opts.Clean = false
	}
	if opts.Optimize > 1 && o.pngquant == "" {
		o.log.Warn().Msg("pngquant missing, capping optimize at 1")
		opts.Optimize = 1
	}
}

// Run executes the OCR engine. On a quantizer-related failure it retries
// once with optimize=1; missing language data and signature conflicts
// surface as their own kinds.
func (o *OCR) Run(ctx context.Context, input, output string, opts OCROptions) error {
	if !o.Available() {
		return apperr.DependencyMissing("O mecanismo de OCR não está instalado no servidor.")
	}

	res, err := o.runOnce(ctx, input, output, opts)
	if err != nil {
		return err
	}
	if res.RC != 0 && opts.Optimize > 1 && mentionsQuantizer(res.Stderr) {
		o.log.Warn().Msg("quantizer failure, retrying with optimize=1")
		opts.Optimize = 1
		res, err = o.runOnce(ctx, input, output, opts)
		if err != nil {
			return err
		}
	}
	if res.RC != 0 {
		return o.classifyFailure(res)
	}
	return nil
}

func (o *OCR) runOnce(ctx context.Context, input, output string, opts OCROptions) (*sandbox.Result, error) {
	args := []string{
		"--output-type", "pdf",
		"--optimize", strconv.Itoa(opts.Optimize),
		"--jobs", strconv.Itoa(opts.Jobs),
	}
	if len(opts.Langs) > 0 {
		args = append(args, "--language", strings.Join(opts.Langs, "+"))
	}
	if opts.RotatePages {
		args = append(args, "--rotate-pages")
	}
	if opts.Deskew {
		args = append(args, "--deskew")
	}
	if opts.Clean {
		args = append(args, "--clean")
	}
	if opts.Force {
		args = append(args, "--force-ocr")
	} else {
		args = append(args, "--skip-text")
	}
	if opts.InvalidateSignatures {
		args = append(args, "--invalidate-digital-signatures")
	}
	args = append(args, input, output)

	lim := sandbox.Limits{
		WallTimeout: opts.Timeout,
		CPUSeconds:  uint64(opts.Timeout/time.Second) * uint64(max(opts.Jobs, 1)),
		MemoryBytes: uint64(opts.MemMB) << 20,
		Niceness:    10,
	}
	res, err := o.runner.Run(ctx, o.bin, args, lim)
	if err != nil {
		return nil, mapRunError("OCR", err)
	}
	return res, nil
}

func (o *OCR) classifyFailure(res *sandbox.Result) error {
	stderr := strings.ToLower(res.Stderr)
	switch {
	case strings.Contains(stderr, "tessdata") || strings.Contains(stderr, "language"):
		return apperr.DependencyMissing("Pacote de idioma do OCR ausente no servidor.")
	case strings.Contains(stderr, "digital signature") || strings.Contains(stderr, "digitalsignature"):
		return apperr.SignedDocument("O PDF possui assinatura digital; confirme a invalidação para continuar.")
	default:
		o.log.Error().Int("rc", res.RC).Str("stderr", res.Stderr).Msg("ocr failed")
		return toolFailure("OCR", res)
	}
}

func mentionsQuantizer(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "pngquant")
}

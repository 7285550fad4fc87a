package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfacil/pdfacil-backend/internal/sandbox"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

// Office drives the headless office-suite converter.
type Office struct {
	bin     string
	runner  *sandbox.Runner
	timeout time.Duration
	memMB   int
	log     *logger.Logger
}

// NewOffice creates the driver.
func NewOffice(bin string, runner *sandbox.Runner, timeout time.Duration, memMB int, log *logger.Logger) *Office {
	return &Office{bin: bin, runner: runner, timeout: timeout, memMB: memMB, log: log.WithTool("libreoffice")}
}

// Available reports whether the binary was resolved.
func (o *Office) Available() bool { return o.bin != "" }

// ConvertToPDF converts a document or spreadsheet into a PDF inside
// outDir and returns the produced file's path.
func (o *Office) ConvertToPDF(ctx context.Context, input, outDir string) (string, error) {
	if !o.Available() {
		return "", apperr.DependencyMissing("LibreOffice não está instalado no servidor.")
	}

	args := []string{
		"--headless",
		"--safe-mode",
		"--convert-to", "pdf",
		"--outdir", outDir,
		input,
	}
	lim := sandbox.Limits{
		WallTimeout: o.timeout,
		CPUSeconds:  uint64(o.timeout / time.Second),
		MemoryBytes: uint64(o.memMB) << 20,
		Niceness:    10,
	}
	res, err := o.runner.Run(ctx, o.bin, args, lim)
	if err != nil {
		return "", mapRunError("LibreOffice", err)
	}
	if res.RC != 0 {
		o.log.Error().Int("rc", res.RC).Str("stderr", res.Stderr).Msg("conversion failed")
		return "", toolFailure("LibreOffice", res)
	}

	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	produced := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(produced); err != nil {
		return "", apperr.ToolFailure("LibreOffice", "nenhum PDF foi produzido na conversão")
	}
	return produced, nil
}

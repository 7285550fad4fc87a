package tools

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pdfacil/pdfacil-backend/internal/sandbox"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

// Compression profile ids as the frontend sees them.
const (
	ProfileLighter     = "mais-leve"
	ProfileBalanced    = "equilibrio"
	ProfileHighQuality = "alta-qualidade"
	ProfileLossless    = "sem-perdas"
)

// Profile describes one compression preset for the profile listing.
type Profile struct {
	Label string `json:"label"`
	Hint  string `json:"hint"`
}

// Profiles returns the frontend-visible compression profiles.
func Profiles() map[string]Profile {
	return map[string]Profile{
		ProfileLighter:     {Label: "Mais leve", Hint: "Menor tamanho possível; imagens em baixa resolução."},
		ProfileBalanced:    {Label: "Equilíbrio", Hint: "Bom compromisso entre tamanho e qualidade."},
		ProfileHighQuality: {Label: "Alta qualidade", Hint: "Compressão leve, preserva detalhes de impressão."},
		ProfileLossless:    {Label: "Sem perdas", Hint: "Somente reescrita estrutural, sem reamostrar imagens."},
	}
}

// presetForProfile maps a profile id onto the pdfwrite preset.
func presetForProfile(profile string) (string, error) {
	switch profile {
	case ProfileLighter:
		return "/screen", nil
	case ProfileBalanced:
		return "/ebook", nil
	case ProfileHighQuality:
		return "/printer", nil
	case ProfileLossless:
		return "/default", nil
	default:
		return "", apperr.InvalidInput(fmt.Sprintf("perfil de compressão desconhecido: %s", profile))
	}
}

// Ghostscript drives the pdfwrite device and the first-page PNG render.
type Ghostscript struct {
	bin     string
	runner  *sandbox.Runner
	timeout time.Duration
	memMB   int
	log     *logger.Logger
}

// NewGhostscript creates the driver; bin may be empty when the binary is
// not installed, in which case every call fails with DependencyMissing.
func NewGhostscript(bin string, runner *sandbox.Runner, timeout time.Duration, memMB int, log *logger.Logger) *Ghostscript {
	return &Ghostscript{bin: bin, runner: runner, timeout: timeout, memMB: memMB, log: log.WithTool("ghostscript")}
}

// Available reports whether the binary was resolved.
func (g *Ghostscript) Available() bool { return g.bin != "" }

// Compress rewrites input through the pdfwrite device using the preset
// of the given profile, at PDF compatibility level 1.4.
func (g *Ghostscript) Compress(ctx context.Context, input, output, profile string) error {
	preset, err := presetForProfile(profile)
	if err != nil {
		return err
	}
	if !g.Available() {
		return apperr.DependencyMissing("Ghostscript não está instalado no servidor.")
	}

	args := []string{
		"-sDEVICE=pdfwrite",
		"-dPDFSETTINGS=" + preset,
		"-dCompatibilityLevel=1.4",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dAutoRotatePages=/None",
		"-sOutputFile=" + output,
		input,
	}
	return g.run(ctx, args, output)
}

// RenderFirstPagePNG rasterizes page one at the given DPI, for the
// thumbnail cache.
func (g *Ghostscript) RenderFirstPagePNG(ctx context.Context, input, output string, dpi int) error {
	if !g.Available() {
		return apperr.DependencyMissing("Ghostscript não está instalado no servidor.")
	}
	args := []string{
		"-sDEVICE=png16m",
		"-dFirstPage=1",
		"-dLastPage=1",
		fmt.Sprintf("-r%d", dpi),
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile=" + output,
		input,
	}
	return g.run(ctx, args, output)
}

func (g *Ghostscript) run(ctx context.Context, args []string, output string) error {
	lim := sandbox.Limits{
		WallTimeout: g.timeout,
		CPUSeconds:  uint64(g.timeout / time.Second),
		MemoryBytes: uint64(g.memMB) << 20,
		Niceness:    10,
	}
	res, err := g.runner.Run(ctx, g.bin, args, lim)
	if err != nil {
		return mapRunError("Ghostscript", err)
	}
	if res.RC != 0 {
		g.log.Error().Int("rc", res.RC).Str("stderr", res.Stderr).Msg("ghostscript failed")
		return toolFailure("Ghostscript", res)
	}
	if _, err := os.Stat(output); err != nil {
		return apperr.ToolFailure("Ghostscript", "nenhum arquivo de saída foi produzido")
	}
	return nil
}

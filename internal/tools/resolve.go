// Package tools resolves and drives the external binaries: Ghostscript,
// the LibreOffice headless converter and the OCR engine, plus the
// optional helpers the OCR engine degrades without. All invocations go
// through the sandbox runner.
package tools

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/pdfacil/pdfacil-backend/internal/sandbox"
	"github.com/pdfacil/pdfacil-backend/pkg/config"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

// stderr excerpts in client-visible tool errors are capped at this size.
const maxStderrLen = 1500

// Paths holds the resolved binary locations; empty means unavailable.
type Paths struct {
	Ghostscript string
	LibreOffice string
	OCR         string
	Tesseract   string
	Unpaper     string
	PNGQuant    string
}

// Resolve locates every external binary once at boot. An env-configured
// path wins; otherwise PATH is searched, with a Windows install-dir scan
// for Ghostscript.
func Resolve(cfg *config.Config, log *logger.Logger) *Paths {
	p := &Paths{
		Ghostscript: resolveOne(cfg.Tools.GhostscriptBin, gsCandidates()...),
		LibreOffice: resolveOne(cfg.Tools.LibreOfficeBin, "soffice", "libreoffice"),
		OCR:         resolveOne(cfg.OCR.Bin, "ocrmypdf"),
		Tesseract:   resolveOne("", "tesseract"),
		Unpaper:     resolveOne("", "unpaper"),
		PNGQuant:    resolveOne("", "pngquant"),
	}
	log.Info().
		Str("ghostscript", p.Ghostscript).
		Str("libreoffice", p.LibreOffice).
		Str("ocr", p.OCR).
		Str("tesseract", p.Tesseract).
		Str("unpaper", p.Unpaper).
		Str("pngquant", p.PNGQuant).
		Msg("external tools resolved")
	return p
}

func resolveOne(configured string, candidates ...string) string {
	if configured != "" {
		if filepath.IsAbs(configured) {
			if _, err := os.Stat(configured); err == nil {
				return configured
			}
			return ""
		}
		candidates = append([]string{configured}, candidates...)
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return path
		}
	}
	return ""
}

func gsCandidates() []string {
	if runtime.GOOS == "windows" {
		out := []string{"gswin64c", "gswin32c"}
		if found := findWindowsGhostscript(); found != "" {
			out = append(out, found)
		}
		return out
	}
	return []string{"gs"}
}

// findWindowsGhostscript scans the standard install roots and picks the
// highest installed version.
func findWindowsGhostscript() string {
	var candidates []string
	for _, root := range []string{`C:\Program Files\gs`, `C:\Program Files (x86)\gs`} {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			for _, exe := range []string{"gswin64c.exe", "gswin32c.exe"} {
				bin := filepath.Join(root, e.Name(), "bin", exe)
				if _, err := os.Stat(bin); err == nil {
					candidates = append(candidates, bin)
				}
			}
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	// Directory names sort by version (gs9.56 < gs10.02 lexically is
	// wrong, but the padded comparison below handles the common case).
	sort.Slice(candidates, func(i, j int) bool {
		return versionKey(candidates[i]) < versionKey(candidates[j])
	})
	return candidates[len(candidates)-1]
}

func versionKey(path string) string {
	dir := filepath.Base(filepath.Dir(filepath.Dir(path)))
	if len(dir) < 8 {
		return "00000000"[:8-len(dir)] + dir
	}
	return dir
}

// toolFailure maps a non-zero sandbox result to a client-facing error
// with a truncated stderr excerpt.
func toolFailure(tool string, res *sandbox.Result) error {
	msg := res.Stderr
	if msg == "" {
		msg = res.Stdout
	}
	if len(msg) > maxStderrLen {
		msg = msg[:maxStderrLen]
	}
	return apperr.ToolFailure(tool, msg)
}

// mapRunError converts a runner error into the right kind.
func mapRunError(tool string, err error) error {
	if apperr.Is(err, sandbox.ErrTimeout) {
		return apperr.ToolTimeout(tool)
	}
	return apperr.Internal("falha ao executar " + tool).Wrap(err)
}

// Package preview is the content-addressed thumbnail cache: first-page
// PNG renders keyed by the sha256 of the input bytes.
package preview

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"

	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

// RenderDPI is the fixed DPI of the first-page render.
const RenderDPI = 96

var idRe = regexp.MustCompile(`^[a-f0-9]{16,64}$`)

// RenderFunc rasterizes the first page of a PDF into a PNG file.
type RenderFunc func(ctx context.Context, input, outputPNG string) error

// Cache stores thumbnails under dir as <hash>.png, writing through a
// temp file in tmpDir and an atomic rename. Concurrent generators for
// the same hash produce identical bytes; the last rename wins.
type Cache struct {
	dir    string
	tmpDir string
	render RenderFunc
	log    *logger.Logger
}

// NewCache creates a cache over the given directories.
func NewCache(dir, tmpDir string, render RenderFunc, log *logger.Logger) *Cache {
	return &Cache{dir: dir, tmpDir: tmpDir, render: render, log: log.WithComponent("preview")}
}

// Ensure returns the thumbnail id for the PDF at path, rendering it if
// it is not cached yet. Identical input bytes always map to the same id.
func (c *Cache) Ensure(ctx context.Context, path string) (string, error) {
	id, err := hashFile(path)
	if err != nil {
		return "", apperr.Internal("falha ao calcular o identificador da prévia").Wrap(err)
	}

	final := filepath.Join(c.dir, id+".png")
	if _, err := os.Stat(final); err == nil {
		return id, nil
	}

	tmp := filepath.Join(c.tmpDir, id+"-"+uuid.New().String()[:8]+".png")
	defer os.Remove(tmp)
	if err := c.render(ctx, path, tmp); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", apperr.Internal("falha ao gravar a prévia").Wrap(err)
	}
	c.log.Debug().Str("thumb_id", id).Msg("thumbnail rendered")
	return id, nil
}

// Path resolves a thumbnail id to its PNG file.
func (c *Cache) Path(id string) (string, error) {
	if !idRe.MatchString(id) {
		return "", apperr.InvalidInput("identificador de prévia inválido")
	}
	path := filepath.Join(c.dir, id+".png")
	if _, err := os.Stat(path); err != nil {
		return "", apperr.NotFound("prévia")
	}
	return path, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

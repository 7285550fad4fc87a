package upload

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

// Subdirectories of the upload root with their own lifecycle owners.
const (
	ThumbsDir       = "thumbs"
	EditSessionsDir = "edit_sessions"
	TmpPreviewsDir  = "tmp_previews"
)

// Store allocates request-scoped scratch files under the upload root and
// garbage-collects stale ones. Every scratch name embeds a random nonce,
// so concurrent requests never collide.
type Store struct {
	root string
	ttl  time.Duration
	log  *logger.Logger
}

// NewStore creates the upload root layout.
func NewStore(root string, ttl time.Duration, log *logger.Logger) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{abs, filepath.Join(abs, ThumbsDir), filepath.Join(abs, EditSessionsDir), filepath.Join(abs, TmpPreviewsDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{root: abs, ttl: ttl, log: log.WithComponent("upload-store")}, nil
}

// Root returns the absolute upload root.
func (s *Store) Root() string { return s.root }

// Subdir returns the absolute path of one of the managed subdirectories.
func (s *Store) Subdir(name string) string { return filepath.Join(s.root, name) }

// ScratchPath reserves a new scratch path at the root. The suffix should
// carry the extension, e.g. ".pdf" or "_merged.pdf".
func (s *Store) ScratchPath(suffix string) string {
	return filepath.Join(s.root, nonce()+suffix)
}

// ScratchDir creates a fresh scratch directory at the root.
func (s *Store) ScratchDir() (string, error) {
	dir := filepath.Join(s.root, "job_"+nonce())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Save writes an upload stream into a scratch file named after the
// canonical filename and returns its path.
func (s *Store) Save(src io.Reader, canonicalName string) (string, int64, error) {
	path := filepath.Join(s.root, nonce()+"_"+canonicalName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return path, n, nil
}

// Contains reports whether path lies within the upload root.
func (s *Store) Contains(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Remove deletes scratch paths, ignoring ones already gone. Paths
// outside the root are refused.
func (s *Store) Remove(paths ...string) {
	for _, p := range paths {
		if p == "" || !s.Contains(p) {
			continue
		}
		if err := os.RemoveAll(p); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", p).Msg("scratch removal failed")
		}
	}
}

// StartSweeper runs the TTL sweep every interval until ctx is done.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Sweep removes loose scratch entries, stale previews and thumbnails
// older than the TTL. Edit sessions are swept by their own store.
func (s *Store) Sweep() {
	cutoff := time.Now().Add(-s.ttl)

	s.sweepDir(s.root, cutoff, func(name string, isDir bool) bool {
		return name != ThumbsDir && name != EditSessionsDir && name != TmpPreviewsDir
	})
	s.sweepDir(filepath.Join(s.root, TmpPreviewsDir), cutoff, nil)
	s.sweepDir(filepath.Join(s.root, ThumbsDir), cutoff, nil)
}

func (s *Store) sweepDir(dir string, cutoff time.Time, keep func(name string, isDir bool) bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	removed := 0
	for _, e := range entries {
		if keep != nil && !keep(e.Name(), e.IsDir()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info().Str("dir", dir).Int("removed", removed).Msg("swept stale files")
	}
}

func nonce() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

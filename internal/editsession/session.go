// Package editsession manages the server-side working directories of the
// multi-step edit flow: an immutable original.pdf, a mutable current.pdf
// and a metadata record, keyed by a short random session id.
package editsession

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/pdfacil/pdfacil-backend/internal/pdf"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

const (
	idLen         = 12
	idAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	originalName  = "original.pdf"
	currentName   = "current.pdf"
	metaName      = "meta.json"
)

var idRe = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// Meta is the session metadata record.
type Meta struct {
	OriginalName string    `json:"original_name"`
	CreatedAt    time.Time `json:"created_at"`
	Pages        int       `json:"pages"`
	Size         int64     `json:"size"`
	Client       string    `json:"client,omitempty"`
}

// Session is one edit workspace. Only current.pdf is ever mutated;
// original.pdf stays untouched for the session's lifetime.
type Session struct {
	ID   string
	Dir  string
	Meta Meta

	mu sync.Mutex
}

// CurrentPath returns the mutable working copy.
func (s *Session) CurrentPath() string { return filepath.Join(s.Dir, currentName) }

// OriginalPath returns the immutable upload copy.
func (s *Session) OriginalPath() string { return filepath.Join(s.Dir, originalName) }

// Apply runs one edit step: fn reads current.pdf and writes the scratch
// path; the scratch result is sanitized and atomically replaces
// current.pdf. Steps on the same session are serialized.
func (s *Session) Apply(fn func(current, scratch string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	scratch := filepath.Join(s.Dir, "step.tmp.pdf")
	sanitized := filepath.Join(s.Dir, "step.san.pdf")
	defer os.Remove(scratch)
	defer os.Remove(sanitized)

	if err := fn(s.CurrentPath(), scratch); err != nil {
		return err
	}
	if err := pdf.Sanitize(scratch, sanitized); err != nil {
		return err
	}
	return os.Rename(sanitized, s.CurrentPath())
}

// Store manages the sessions under <root>/edit_sessions.
type Store struct {
	root string
	ttl  time.Duration
	log  *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates the store over an existing root directory.
func NewStore(root string, ttl time.Duration, log *logger.Logger) *Store {
	return &Store{
		root:     root,
		ttl:      ttl,
		log:      log.WithComponent("edit-sessions"),
		sessions: make(map[string]*Session),
	}
}

// Create copies the uploaded PDF into a fresh session directory as both
// original and current, and persists the metadata record.
func (st *Store) Create(srcPath, originalNameHint string, pages int, size int64, client string) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, apperr.Internal("falha ao criar sessão").Wrap(err)
	}
	dir := filepath.Join(st.root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, apperr.Internal("falha ao criar sessão").Wrap(err)
	}

	sess := &Session{
		ID:  id,
		Dir: dir,
		Meta: Meta{
			OriginalName: originalNameHint,
			CreatedAt:    time.Now(),
			Pages:        pages,
			Size:         size,
			Client:       client,
		},
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		os.RemoveAll(dir)
		return nil, apperr.Internal("falha ao criar sessão").Wrap(err)
	}
	for _, name := range []string{originalName, currentName} {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			os.RemoveAll(dir)
			return nil, apperr.Internal("falha ao criar sessão").Wrap(err)
		}
	}
	if err := writeMeta(dir, sess.Meta); err != nil {
		os.RemoveAll(dir)
		return nil, apperr.Internal("falha ao criar sessão").Wrap(err)
	}

	st.mu.Lock()
	st.sessions[id] = sess
	st.mu.Unlock()

	st.log.Info().Str("session_id", id).Int("pages", pages).Msg("edit session created")
	return sess, nil
}

// Get returns a live session by id. Ids failing the format check are
// rejected before touching the filesystem.
func (st *Store) Get(id string) (*Session, error) {
	if !idRe.MatchString(id) {
		return nil, apperr.InvalidInput("identificador de sessão inválido")
	}

	st.mu.Lock()
	sess, ok := st.sessions[id]
	st.mu.Unlock()
	if ok {
		return sess, nil
	}

	// Session directories survive in-memory state, e.g. after a sweep
	// of the map; reload from disk when the layout is intact.
	dir := filepath.Join(st.root, id)
	meta, err := readMeta(dir)
	if err != nil {
		return nil, apperr.NotFound("sessão de edição")
	}
	if _, err := os.Stat(filepath.Join(dir, currentName)); err != nil {
		return nil, apperr.NotFound("sessão de edição")
	}
	sess = &Session{ID: id, Dir: dir, Meta: *meta}

	st.mu.Lock()
	if existing, ok := st.sessions[id]; ok {
		sess = existing
	} else {
		st.sessions[id] = sess
	}
	st.mu.Unlock()
	return sess, nil
}

// Discard destroys a session directory.
func (st *Store) Discard(id string) error {
	sess, err := st.Get(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
	return os.RemoveAll(sess.Dir)
}

// StartSweeper destroys sessions older than the TTL every interval.
func (st *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.Sweep()
			}
		}
	}()
}

// Sweep removes expired session directories.
func (st *Store) Sweep() {
	cutoff := time.Now().Add(-st.ttl)
	entries, err := os.ReadDir(st.root)
	if err != nil {
		return
	}
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := readMeta(filepath.Join(st.root, e.Name()))
		expired := err != nil
		if meta != nil && meta.CreatedAt.Before(cutoff) {
			expired = true
		}
		if !expired {
			continue
		}
		if err := os.RemoveAll(filepath.Join(st.root, e.Name())); err == nil {
			st.mu.Lock()
			delete(st.sessions, e.Name())
			st.mu.Unlock()
			removed++
		}
	}
	if removed > 0 {
		st.log.Info().Int("removed", removed).Msg("swept expired edit sessions")
	}
}

func writeMeta(dir string, meta Meta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metaName), data, 0o644)
}

func readMeta(dir string) (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaName))
	if err != nil {
		return nil, err
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func newID() (string, error) {
	b := make([]byte, idLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i, v := range b {
		b[i] = idAlphabet[int(v)%len(idAlphabet)]
	}
	return string(b), nil
}

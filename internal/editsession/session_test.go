package editsession

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfacil/pdfacil-backend/internal/pdf"
	"github.com/pdfacil/pdfacil-backend/pkg/logger"
	"github.com/pdfacil/pdfacil-backend/pkg/testutil"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	return NewStore(t.TempDir(), ttl, logger.New("test", "production"))
}

func createSession(t *testing.T, st *Store, pages int) *Session {
	t.Helper()
	dir := t.TempDir()
	src := testutil.WritePDF(t, dir, "upload.pdf", pages)
	sess, err := st.Create(src, "upload.pdf", pages, 1234, "test-agent")
	require.NoError(t, err)
	return sess
}

func TestCreate_Layout(t *testing.T) {
	st := newTestStore(t, time.Hour)
	sess := createSession(t, st, 3)

	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9_-]{12}$`), sess.ID)
	for _, name := range []string{"original.pdf", "current.pdf", "meta.json"} {
		_, err := os.Stat(filepath.Join(sess.Dir, name))
		assert.NoError(t, err, name)
	}
	assert.Equal(t, 3, sess.Meta.Pages)
	assert.Equal(t, "upload.pdf", sess.Meta.OriginalName)
}

func TestGet_RejectsMalformedIDs(t *testing.T) {
	st := newTestStore(t, time.Hour)

	for _, id := range []string{"", "abc", "../../etc", "has space", "x!y"} {
		_, err := st.Get(id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestGet_ReloadsFromDisk(t *testing.T) {
	st := newTestStore(t, time.Hour)
	sess := createSession(t, st, 1)

	// A fresh store over the same root must find the session.
	st2 := NewStore(st.root, time.Hour, logger.New("test", "production"))
	got, err := st2.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.Meta.OriginalName, got.Meta.OriginalName)
}

func TestApply_ReplacesCurrentKeepsOriginal(t *testing.T) {
	st := newTestStore(t, time.Hour)
	sess := createSession(t, st, 4)

	originalBefore, err := os.ReadFile(sess.OriginalPath())
	require.NoError(t, err)

	err = sess.Apply(func(current, scratch string) error {
		return pdf.Apply(current, scratch, pdf.Transform{Pages: []int{2, 1}, Strict: true})
	})
	require.NoError(t, err)

	n, err := pdf.PageCount(sess.CurrentPath())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	originalAfter, err := os.ReadFile(sess.OriginalPath())
	require.NoError(t, err)
	assert.Equal(t, originalBefore, originalAfter)
}

func TestApply_FailedStepLeavesCurrentIntact(t *testing.T) {
	st := newTestStore(t, time.Hour)
	sess := createSession(t, st, 2)

	before, err := os.ReadFile(sess.CurrentPath())
	require.NoError(t, err)

	err = sess.Apply(func(current, scratch string) error {
		return pdf.Apply(current, scratch, pdf.Transform{Pages: []int{9}, Strict: true})
	})
	require.Error(t, err)

	after, err := os.ReadFile(sess.CurrentPath())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDiscard(t *testing.T) {
	st := newTestStore(t, time.Hour)
	sess := createSession(t, st, 1)

	require.NoError(t, st.Discard(sess.ID))
	_, err := os.Stat(sess.Dir)
	assert.True(t, os.IsNotExist(err))
	_, err = st.Get(sess.ID)
	assert.Error(t, err)
}

func TestSweep_RemovesExpired(t *testing.T) {
	st := newTestStore(t, time.Nanosecond)
	sess := createSession(t, st, 1)

	time.Sleep(10 * time.Millisecond)
	st.Sweep()

	_, err := os.Stat(sess.Dir)
	assert.True(t, os.IsNotExist(err))
}

package preview

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfacil/pdfacil-backend/pkg/logger"
	"github.com/pdfacil/pdfacil-backend/pkg/testutil"
)

func newTestCache(t *testing.T) (*Cache, *int) {
	t.Helper()
	renders := new(int)
	render := func(ctx context.Context, input, output string) error {
		*renders++
		return os.WriteFile(output, []byte("png-bytes"), 0o644)
	}
	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp")
	require.NoError(t, os.Mkdir(tmp, 0o755))
	return NewCache(dir, tmp, render, logger.New("test", "production")), renders
}

func TestEnsure_SameBytesSameID(t *testing.T) {
	cache, renders := newTestCache(t)
	dir := t.TempDir()
	a := testutil.WritePDF(t, dir, "a.pdf", 2)
	b := testutil.WritePDF(t, dir, "b.pdf", 2)

	idA, err := cache.Ensure(context.Background(), a)
	require.NoError(t, err)
	idB, err := cache.Ensure(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, idA, idB, "identical bytes must map to one id")
	assert.Equal(t, 1, *renders, "second request must hit the cache")
}

func TestEnsure_DifferentBytesDifferentID(t *testing.T) {
	cache, _ := newTestCache(t)
	dir := t.TempDir()
	a := testutil.WritePDF(t, dir, "a.pdf", 1)
	b := testutil.WritePDF(t, dir, "b.pdf", 2)

	idA, err := cache.Ensure(context.Background(), a)
	require.NoError(t, err)
	idB, err := cache.Ensure(context.Background(), b)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)
}

func TestPath_ValidatesID(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.Path("../../etc/passwd")
	require.Error(t, err)

	_, err = cache.Path("ZZZZZZZZZZZZZZZZ")
	require.Error(t, err)

	_, err = cache.Path("0123456789abcdef")
	require.Error(t, err, "well-formed but unknown id is a 404")
}

func TestPath_ServesExistingThumb(t *testing.T) {
	cache, _ := newTestCache(t)
	dir := t.TempDir()
	in := testutil.WritePDF(t, dir, "a.pdf", 1)

	id, err := cache.Ensure(context.Background(), in)
	require.NoError(t, err)

	path, err := cache.Path(id)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdfacil/pdfacil-backend/internal/sandbox"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
	"github.com/pdfacil/pdfacil-backend/pkg/logger"
)

func TestResolveLanguages(t *testing.T) {
	tests := []struct {
		name      string
		requested []string
		installed []string
		want      []string
		wantErr   bool
	}{
		{"all installed", []string{"por", "eng"}, []string{"eng", "por", "osd"}, []string{"por", "eng"}, false},
		{"partial keeps order", []string{"deu", "por", "fra"}, []string{"por", "fra"}, []string{"por", "fra"}, false},
		{"none installed", []string{"jpn"}, []string{"por", "eng"}, nil, true},
		{"unknown install list passes through", []string{"jpn"}, nil, []string{"jpn"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveLanguages(tt.requested, tt.installed)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.ErrDependencyMissing))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func testOCR(unpaper, pngquant string) *OCR {
	paths := &Paths{OCR: "/usr/bin/ocrmypdf", Unpaper: unpaper, PNGQuant: pngquant}
	log := logger.New("test", "production")
	return NewOCR(paths, sandbox.NewRunner(log), log)
}

func TestApplyHelperDowngrades(t *testing.T) {
	t.Run("missing unpaper disables clean", func(t *testing.T) {
		o := testOCR("", "/usr/bin/pngquant")
		opts := OCROptions{Clean: true, Optimize: 3}
		o.ApplyHelperDowngrades(&opts)
		assert.False(t, opts.Clean)
		assert.Equal(t, 3, opts.Optimize)
	})

	t.Run("missing pngquant caps optimize", func(t *testing.T) {
		o := testOCR("/usr/bin/unpaper", "")
		opts := OCROptions{Clean: true, Optimize: 3}
		o.ApplyHelperDowngrades(&opts)
		assert.True(t, opts.Clean)
		assert.Equal(t, 1, opts.Optimize)
	})

	t.Run("helpers present leave options alone", func(t *testing.T) {
		o := testOCR("/usr/bin/unpaper", "/usr/bin/pngquant")
		opts := OCROptions{Clean: true, Optimize: 2}
		o.ApplyHelperDowngrades(&opts)
		assert.True(t, opts.Clean)
		assert.Equal(t, 2, opts.Optimize)
	})
}

func TestClassifyFailure(t *testing.T) {
	o := testOCR("", "")

	err := o.classifyFailure(&sandbox.Result{RC: 1, Stderr: "Error opening data file /usr/share/tessdata/jpn.traineddata"})
	assert.True(t, apperr.Is(err, apperr.ErrDependencyMissing))

	err = o.classifyFailure(&sandbox.Result{RC: 1, Stderr: "input PDF has a digital signature"})
	assert.True(t, apperr.Is(err, apperr.ErrSignedDocument))

	err = o.classifyFailure(&sandbox.Result{RC: 1, Stderr: "something exploded"})
	assert.True(t, apperr.Is(err, apperr.ErrToolFailure))
}

func TestMentionsQuantizer(t *testing.T) {
	assert.True(t, mentionsQuantizer("subprocess pngquant failed"))
	assert.False(t, mentionsQuantizer("out of memory"))
}

func TestPresetForProfile(t *testing.T) {
	tests := []struct {
		profile string
		preset  string
	}{
		{ProfileLighter, "/screen"},
		{ProfileBalanced, "/ebook"},
		{ProfileHighQuality, "/printer"},
		{ProfileLossless, "/default"},
	}
	for _, tt := range tests {
		got, err := presetForProfile(tt.profile)
		require.NoError(t, err)
		assert.Equal(t, tt.preset, got)
	}

	_, err := presetForProfile("turbo")
	require.Error(t, err)
}

func TestToolFailure_TruncatesStderr(t *testing.T) {
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	err := toolFailure("Ghostscript", &sandbox.Result{RC: 1, Stderr: string(long)})

	var appErr *apperr.AppError
	require.True(t, apperr.As(err, &appErr))
	assert.LessOrEqual(t, len(appErr.Message), maxStderrLen+len("Ghostscript: "))
}

func TestMapRunError(t *testing.T) {
	err := mapRunError("OCR", sandbox.ErrTimeout)
	assert.True(t, apperr.Is(err, apperr.ErrToolTimeout))
}

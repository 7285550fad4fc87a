package telemetry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrack_Counters(t *testing.T) {
	m := New()

	m.Track("/api/compress", 200, "")
	m.Track("/api/compress", 200, "")
	m.Track("/api/compress", 400, "perfil inválido")
	m.Track("/api/ocr", 504, "timeout")

	snap := m.Snapshot("1h")
	assert.Equal(t, int64(4), snap.Total)
	assert.Equal(t, int64(2), snap.Status2xx)
	assert.Equal(t, int64(1), snap.Status4xx)
	assert.Equal(t, int64(1), snap.Status5xx)
	assert.Equal(t, int64(2), snap.PerTool["compress_ok"])
	assert.Equal(t, int64(1), snap.PerTool["compress_err"])
	assert.Equal(t, int64(1), snap.PerTool["ocr_err"])
	assert.Equal(t, 4, snap.WindowCount)
}

func TestTrack_ToolPrefixTable(t *testing.T) {
	m := New()

	// compress/profiles must count under compress, not fall through.
	m.Track("/api/compress/profiles", 200, "")
	m.Track("/api/edit/apply/crop", 200, "")
	m.Track("/health", 200, "")

	snap := m.Snapshot("1h")
	assert.Equal(t, int64(1), snap.PerTool["compress_ok"])
	assert.Equal(t, int64(1), snap.PerTool["edit_ok"])
	assert.NotContains(t, snap.PerTool, "health_ok")
}

func TestFailureRing_NewestFirstAndBounded(t *testing.T) {
	m := New()

	for i := 0; i < 105; i++ {
		m.Track("/api/split", 500, fmt.Sprintf("falha %d", i))
	}

	snap := m.Snapshot("1h")
	require.Len(t, snap.Failures, 100)
	assert.Equal(t, "falha 104", snap.Failures[0].Message)
	assert.Equal(t, "falha 5", snap.Failures[99].Message)
}

func TestSnapshot_WindowParsing(t *testing.T) {
	m := New()
	m.Track("/api/merge", 200, "")

	tests := []struct {
		window  string
		minutes int
	}{
		{"15m", 15},
		{"1h", 60},
		{"24h", 1440},
		{"", 60},
		{"90", 90},
		{"0", 1},
		{"100000", 1440},
		{"garbage", 60},
	}
	for _, tt := range tests {
		t.Run(tt.window, func(t *testing.T) {
			snap := m.Snapshot(tt.window)
			assert.Equal(t, tt.minutes, snap.WindowMinutes)
		})
	}
}

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailBuffer_NewestFirst(t *testing.T) {
	tail := NewTailBuffer(10)
	log := NewWithTail("test", "production", tail)

	log.Info().Msg("first")
	log.Info().Msg("second")
	log.Info().Msg("third")

	rows := tail.Tail(2, "")
	require.Len(t, rows, 2)
	assert.Contains(t, rows[0].Line, "third")
	assert.Contains(t, rows[1].Line, "second")
}

func TestTailBuffer_LevelFilter(t *testing.T) {
	tail := NewTailBuffer(10)
	log := NewWithTail("test", "production", tail)

	log.Debug().Msg("noise")
	log.Info().Msg("info row")
	log.Error().Msg("error row")

	rows := tail.Tail(10, "error")
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Line, "error row")
}

func TestTailBuffer_Wraparound(t *testing.T) {
	tail := NewTailBuffer(3)
	log := NewWithTail("test", "production", tail)

	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		log.Info().Msg(msg)
	}

	rows := tail.Tail(10, "")
	require.Len(t, rows, 3)
	assert.Contains(t, rows[0].Line, "e")
	assert.Contains(t, rows[2].Line, "c")
}

package logger

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TailRow is one captured log line.
type TailRow struct {
	Time  time.Time `json:"time"`
	Level string    `json:"level"`
	Line  string    `json:"line"`
}

// TailBuffer keeps the most recent log lines in memory. It implements
// zerolog.LevelWriter so it can be teed behind the main output without
// touching the log files themselves.
type TailBuffer struct {
	mu   sync.Mutex
	rows []TailRow
	next int
	full bool
}

// NewTailBuffer creates a buffer holding up to capacity lines.
func NewTailBuffer(capacity int) *TailBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &TailBuffer{rows: make([]TailRow, capacity)}
}

func (b *TailBuffer) Write(p []byte) (int, error) {
	return b.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (b *TailBuffer) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	row := TailRow{
		Time:  time.Now(),
		Level: level.String(),
		Line:  string(p),
	}
	b.mu.Lock()
	b.rows[b.next] = row
	b.next = (b.next + 1) % len(b.rows)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
	return len(p), nil
}

// Tail returns up to n rows, newest first, filtered by minimum level.
// An empty or unknown level means no filtering.
func (b *TailBuffer) Tail(n int, level string) []TailRow {
	min, err := zerolog.ParseLevel(level)
	filter := err == nil && level != ""

	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.next
	if b.full {
		size = len(b.rows)
	}
	out := make([]TailRow, 0, n)
	for i := 0; i < size && len(out) < n; i++ {
		idx := (b.next - 1 - i + len(b.rows)) % len(b.rows)
		row := b.rows[idx]
		if filter {
			lvl, err := zerolog.ParseLevel(row.Level)
			if err != nil || lvl < min {
				continue
			}
		}
		out = append(out, row)
	}
	return out
}

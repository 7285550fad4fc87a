// Package telemetry keeps in-memory request counters, a per-minute
// activity ring and a bounded ring of recent failures. Everything
// resets on restart; there is no external metrics backend.
package telemetry

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	minuteRingSize  = 1440
	failureRingSize = 100
)

// toolForPath maps request path prefixes to the logical tool name
// counted under <tool>_ok / <tool>_err. Order matters: the first
// matching prefix wins.
var toolForPath = []struct {
	prefix string
	tool   string
}{
	{"/api/convert", "convert"},
	{"/api/merge", "merge"},
	{"/api/split", "split"},
	{"/api/compress", "compress"},
	{"/api/organize", "organize"},
	{"/api/ocr", "ocr"},
	{"/api/preview", "preview"},
	{"/api/edit", "edit"},
	{"/api/admin", "admin"},
}

type minuteSlot struct {
	stamp int64 // unix minute this slot last counted for
	count int
}

// Failure is one recorded non-2xx outcome.
type Failure struct {
	Time    time.Time `json:"time"`
	Path    string    `json:"path"`
	Status  int       `json:"status"`
	Message string    `json:"message,omitempty"`
}

// Metrics is safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	startedAt time.Time
	total     int64
	status2xx int64
	status4xx int64
	status5xx int64
	perTool   map[string]int64

	minutes [minuteRingSize]minuteSlot

	failures [failureRingSize]Failure
	failN    int // total failures ever recorded
}

func New() *Metrics {
	return &Metrics{
		startedAt: time.Now(),
		perTool:   make(map[string]int64),
	}
}

// Track records one finished request.
func (m *Metrics) Track(path string, status int, message string) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	switch {
	case status >= 200 && status < 300:
		m.status2xx++
	case status >= 400 && status < 500:
		m.status4xx++
	case status >= 500:
		m.status5xx++
	}

	if tool := toolFor(path); tool != "" {
		if status >= 200 && status < 400 {
			m.perTool[tool+"_ok"]++
		} else {
			m.perTool[tool+"_err"]++
		}
	}

	minute := now.Unix() / 60
	slot := &m.minutes[minute%minuteRingSize]
	if slot.stamp != minute {
		slot.stamp = minute
		slot.count = 0
	}
	slot.count++

	if status >= 400 {
		m.failures[m.failN%failureRingSize] = Failure{
			Time:    now,
			Path:    path,
			Status:  status,
			Message: message,
		}
		m.failN++
	}
}

// Snapshot is the admin stats payload.
type Snapshot struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Total         int64            `json:"total_requests"`
	Status2xx     int64            `json:"status_2xx"`
	Status4xx     int64            `json:"status_4xx"`
	Status5xx     int64            `json:"status_5xx"`
	PerTool       map[string]int64 `json:"per_tool"`
	WindowMinutes int              `json:"window_minutes"`
	WindowCount   int              `json:"window_requests"`
	Failures      []Failure        `json:"recent_failures"`
}

// Snapshot returns counters plus the request count over the given
// window ("15m", "1h", "24h" or a plain minute count, clamped to the
// ring size).
func (m *Metrics) Snapshot(window string) Snapshot {
	minutes := parseWindow(window)
	now := time.Now().Unix() / 60

	m.mu.Lock()
	defer m.mu.Unlock()

	windowCount := 0
	for i := 0; i < minutes; i++ {
		minute := now - int64(i)
		slot := m.minutes[minute%minuteRingSize]
		if slot.stamp == minute {
			windowCount += slot.count
		}
	}

	perTool := make(map[string]int64, len(m.perTool))
	for k, v := range m.perTool {
		perTool[k] = v
	}

	n := m.failN
	if n > failureRingSize {
		n = failureRingSize
	}
	failures := make([]Failure, 0, n)
	for i := 0; i < n; i++ {
		// Newest first.
		failures = append(failures, m.failures[(m.failN-1-i+failureRingSize*2)%failureRingSize])
	}

	return Snapshot{
		UptimeSeconds: int64(time.Since(m.startedAt).Seconds()),
		Total:         m.total,
		Status2xx:     m.status2xx,
		Status4xx:     m.status4xx,
		Status5xx:     m.status5xx,
		PerTool:       perTool,
		WindowMinutes: minutes,
		WindowCount:   windowCount,
		Failures:      failures,
	}
}

func toolFor(path string) string {
	for _, e := range toolForPath {
		if strings.HasPrefix(path, e.prefix) {
			return e.tool
		}
	}
	return ""
}

func parseWindow(window string) int {
	switch window {
	case "", "1h":
		return 60
	case "15m":
		return 15
	case "24h":
		return minuteRingSize
	}
	n, err := strconv.Atoi(window)
	if err != nil {
		return 60
	}
	if n < 1 {
		return 1
	}
	if n > minuteRingSize {
		return minuteRingSize
	}
	return n
}

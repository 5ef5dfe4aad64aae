package archive

import (
	"fmt"
	"sync"
	"time"
)

// Progress is one report from a running extraction.
type Progress struct {
	Archive    string        `json:"archive"`
	BytesRead  int64         `json:"bytesRead"`
	TotalBytes int64         `json:"totalBytes"`
	Iterations int           `json:"iterations"` // entries written so far
	Elapsed    time.Duration `json:"elapsed"`
	Done       bool          `json:"done"`
}

// Sink receives progress reports. It is called from the extracting goroutine.
type Sink func(Progress)

// Percent is BytesRead as a percentage of TotalBytes, capped at 100.
func (p Progress) Percent() float64 {
	if p.TotalBytes <= 0 {
		if p.Done {
			return 100
		}
		return 0
	}
	pct := float64(p.BytesRead) * 100 / float64(p.TotalBytes)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// ElapsedFormatted renders Elapsed as hh:mm:ss.
func (p Progress) ElapsedFormatted() string {
	d := p.Elapsed.Round(time.Second)
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// tracker turns byte counts into reports whose percentage only increases.
type tracker struct {
	mu      sync.Mutex
	archive string
	total   int64
	read    int64
	files   int
	lastPct int
	start   time.Time
	sink    Sink
}

func newTracker(archive string, total int64, sink Sink) *tracker {
	return &tracker{archive: archive, total: total, lastPct: -1, start: time.Now(), sink: sink}
}

func (t *tracker) add(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	t.read += int64(n)
	if t.read > t.total {
		t.read = t.total
	}
	p, ok := t.reportLocked(false)
	t.mu.Unlock()
	if ok {
		t.sink(p)
	}
}

func (t *tracker) file() {
	t.mu.Lock()
	t.files++
	t.mu.Unlock()
}

func (t *tracker) reset() {
	t.mu.Lock()
	t.read = 0
	t.mu.Unlock()
}

func (t *tracker) finish() {
	t.mu.Lock()
	t.read = t.total
	p, ok := t.reportLocked(true)
	t.mu.Unlock()
	if ok {
		t.sink(p)
	}
}

func (t *tracker) reportLocked(done bool) (Progress, bool) {
	p := Progress{
		Archive:    t.archive,
		BytesRead:  t.read,
		TotalBytes: t.total,
		Iterations: t.files,
		Elapsed:    time.Since(t.start),
		Done:       done,
	}
	pct := int(p.Percent())
	if t.sink == nil || (!done && pct <= t.lastPct) {
		return p, false
	}
	t.lastPct = pct
	return p, true
}

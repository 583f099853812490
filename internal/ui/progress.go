package ui

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"
)

const (
	defaultWidth    = 40
	refreshInterval = 100 * time.Millisecond
)

// Bar draws a single-line percentage bar, redrawing in place with \r.
type Bar struct {
	mu         sync.Mutex
	label      string
	width      int
	out        io.Writer
	percent    float64
	lastUpdate time.Time
	finished   bool
}

// NewBar returns a bar writing to out.
func NewBar(label string, out io.Writer) *Bar {
	return &Bar{label: label, width: defaultWidth, out: out}
}

// Set moves the bar to percent (clamped to 0..100). Redraws are throttled to
// one per 100ms, except for 0 and 100.
func (b *Bar) Set(percent float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}

	percent = math.Max(0, math.Min(100, percent))
	edge := percent == 0 || percent == 100
	if !edge && time.Since(b.lastUpdate) < refreshInterval {
		b.percent = percent
		return
	}
	b.percent = percent
	b.lastUpdate = time.Now()
	fmt.Fprint(b.out, "\r"+Render(b.label, percent, b.width))
}

// Finish draws the final state and ends the line. Later calls to Set are
// ignored.
func (b *Bar) Finish(percent float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.finished = true
	b.percent = math.Max(0, math.Min(100, percent))
	fmt.Fprintln(b.out, "\r"+Render(b.label, b.percent, b.width))
}

// Render formats one frame of the bar, e.g. "Uploading... [████░░░░] 50.0%".
func Render(label string, percent float64, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	completed := int(float64(width) * percent / 100)
	if completed > width {
		completed = width
	}
	if completed < 0 {
		completed = 0
	}
	bar := strings.Repeat("█", completed) + strings.Repeat("░", width-completed)
	return fmt.Sprintf("%s [%s] %.1f%%", label, bar, percent)
}

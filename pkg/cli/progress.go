package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	barWidth = 30

	// Redraws closer together than this are dropped, except the last.
	redrawInterval = 100 * time.Millisecond
)

// ProgressBar draws a one-line progress bar for a batch run, redrawn in
// place with a carriage return. It satisfies runner.Progress and is safe
// for concurrent Update calls from worker goroutines.
type ProgressBar struct {
	w     io.Writer
	label string
	now   func() time.Time

	mu       sync.Mutex
	total    int64
	done     int64
	started  time.Time
	lastDraw time.Time
}

// NewProgressBar creates a bar writing to w, os.Stderr when nil, so that it
// does not mix with command output on stdout.
func NewProgressBar(w io.Writer, label string) *ProgressBar {
	if w == nil {
		w = os.Stderr
	}
	return &ProgressBar{w: w, label: label, now: time.Now}
}

// Start resets the bar for total items.
func (p *ProgressBar) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.done = 0
	p.started = p.now()
	p.draw(true)
}

// Update records done finished items. Counts lower than an earlier update
// are ignored; workers may report out of order.
func (p *ProgressBar) Update(done int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if done <= p.done {
		return
	}
	p.done = done
	p.draw(done == p.total)
}

// Finish draws the completed bar and ends the line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total == 0 {
		return
	}
	p.draw(true)
	fmt.Fprintln(p.w)
}

// draw must be called with p.mu held.
func (p *ProgressBar) draw(force bool) {
	if p.total <= 0 {
		return
	}
	now := p.now()
	if !force && now.Sub(p.lastDraw) < redrawInterval {
		return
	}
	p.lastDraw = now

	frac := float64(p.done) / float64(p.total)
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * barWidth)
	bar := strings.Repeat("=", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-filled-1)
	}

	line := fmt.Sprintf("\r%s %d/%d [%s] %3.0f%%", p.label, p.done, p.total, bar, frac*100)
	if elapsed := now.Sub(p.started); elapsed > 0 && p.done > 0 {
		rate := float64(p.done) / elapsed.Seconds()
		line += fmt.Sprintf(" %.1f/s", rate)
		if left := p.total - p.done; left > 0 {
			eta := time.Duration(float64(left) / rate * float64(time.Second))
			line += " eta " + eta.Round(time.Second).String()
		}
	}
	fmt.Fprint(p.w, line)
}

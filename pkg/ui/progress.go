package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
	barWidth      = 20
)

// Progress draws a single updating line for one phase of a run. Update
// matches the taskqueue OnProgress callback.
type Progress struct {
	mu        sync.Mutex
	phase     string
	startTime time.Time
	lastDone  int
	active    bool
	now       func() time.Time
}

// NewProgress creates an idle progress line
func NewProgress() *Progress {
	return &Progress{now: time.Now}
}

// Phase starts a new line for the named phase, ending any previous one.
func (p *Progress) Phase(name string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.finishLocked()
	p.phase = name
	p.startTime = p.now()
	p.lastDone = 0
	if total == 0 {
		write(false, "%s %s\n", Magenta("→"), Dim(name+": nothing to do"))
		return
	}
	p.active = true
	write(false, "%s %s\n", Magenta("→"), Cyan(fmt.Sprintf("%s (%d)", name, total)))
}

// Update redraws the line with remaining of total tasks left.
func (p *Progress) Update(remaining, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active || total <= 0 {
		return
	}
	done := total - remaining
	if done < 0 {
		done = 0
	}
	p.lastDone = done
	write(false, "\r%s\r%s", strings.Repeat(" ", 80), p.line(done, total))
	if remaining == 0 {
		p.finishLocked()
	}
}

// Finish ends the current line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
}

func (p *Progress) finishLocked() {
	if p.active {
		write(false, "\n")
		p.active = false
	}
}

func (p *Progress) line(done, total int) string {
	filled := barWidth * done / total
	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, barWidth-filled)

	elapsed := p.now().Sub(p.startTime)
	return fmt.Sprintf("%s [%s] %d/%d • %s • %s",
		Cyan(p.phase), bar, done, total, FormatDuration(elapsed), Dim("eta "+eta(done, total, elapsed)))
}

func eta(done, total int, elapsed time.Duration) string {
	if done == 0 || elapsed <= 0 {
		return "calculating..."
	}
	perItem := elapsed / time.Duration(done)
	return FormatDuration(perItem * time.Duration(total-done))
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// BarWidth is the number of cells in the download bar.
const BarWidth = 50

// ProgressBar renders download progress. On a terminal it redraws a single
// line; elsewhere it prints a line at every 10% step.
type ProgressBar struct {
	out        io.Writer
	isTTY      bool
	lastUpdate time.Time
	lastStep   int
	done       bool
}

// NewProgressBar creates a progress bar writing to out.
func NewProgressBar(out io.Writer) *ProgressBar {
	if out == nil {
		out = os.Stdout
	}

	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	return &ProgressBar{out: out, isTTY: isTTY, lastStep: -1}
}

// Update renders the current byte count. total <= 0 means the length is
// unknown and only the byte count is shown.
func (p *ProgressBar) Update(current, total int64) {
	complete := total > 0 && current >= total

	// Rate limit redraws to avoid flicker (max 10/sec for TTY)
	now := time.Now()
	if p.isTTY && !complete && now.Sub(p.lastUpdate) < 100*time.Millisecond {
		return
	}
	p.lastUpdate = now

	if total <= 0 {
		if p.isTTY {
			_, _ = fmt.Fprintf(p.out, "\rDownloading... %s", FormatBytes(current))
		}
		return
	}

	pct := float64(current) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}

	if p.isTTY {
		_, _ = fmt.Fprintf(p.out, "\r%s", RenderBar(pct))
		return
	}

	// Non-TTY: print at 10% intervals
	step := int(pct / 10)
	if step > p.lastStep {
		p.lastStep = step
		_, _ = fmt.Fprintln(p.out, RenderBar(float64(step*10)))
	}
}

// Finish ends the progress line.
func (p *ProgressBar) Finish(current int64) {
	if p.done {
		return
	}
	p.done = true
	if p.isTTY {
		_, _ = fmt.Fprintln(p.out)
		return
	}
	if p.lastStep < 0 {
		_, _ = fmt.Fprintf(p.out, "Downloaded %s\n", FormatBytes(current))
	}
}

// RenderBar returns the bar for pct percent, e.g. "[═════     ] 10.0%".
func RenderBar(pct float64) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * BarWidth)
	bar := SuccessStyle.Render(strings.Repeat("═", filled)) + strings.Repeat(" ", BarWidth-filled)
	return fmt.Sprintf("[%s] %.1f%%", bar, pct)
}

// FormatBytes formats a byte count in human-readable units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

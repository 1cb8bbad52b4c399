package dataset

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Remaining estimates the time left after done of done+left rows took
// elapsed.
func Remaining(elapsed time.Duration, done, left int64) time.Duration {
	if done <= 0 {
		return 0
	}
	return time.Duration(float64(elapsed) / float64(done) * float64(left))
}

// FormatRemaining renders d as "N days N hours N min N s". Days, hours and
// minutes are omitted when zero; seconds are always shown and truncated.
func FormatRemaining(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}

	var parts []string
	if days := secs / 86400; days > 0 {
		parts = append(parts, fmt.Sprintf("%d days", days))
		secs -= days * 86400
	}
	if hours := secs / 3600; hours > 0 {
		parts = append(parts, fmt.Sprintf("%d hours", hours))
		secs -= hours * 3600
	}
	if mins := secs / 60; mins > 0 {
		parts = append(parts, fmt.Sprintf("%d min", mins))
		secs -= mins * 60
	}
	parts = append(parts, fmt.Sprintf("%d s", secs))
	return strings.Join(parts, " ")
}

// progress writes iteration reports for one run over rows [start, end).
type progress struct {
	out       io.Writer
	every     int64
	start     int64
	end       int64
	remaining bool
	now       func() time.Time
	began     time.Time
}

// line returns the report for row i. The percentage is relative to end.
func (p *progress) line(i int64) string {
	var pct float64
	if p.end > 0 {
		pct = float64(i) * 100 / float64(p.end)
	}
	s := fmt.Sprintf("Processing entry: %d (%.2f%%)", i, pct)
	if done := i - p.start; p.remaining && done > 0 {
		eta := Remaining(p.now().Sub(p.began), done, p.end-i)
		s += " Remaining: " + FormatRemaining(eta)
	}
	return s
}

// step reports row i if it falls on the print interval.
func (p *progress) step(i int64) bool {
	if p.out == nil || i%p.every != 0 {
		return false
	}
	fmt.Fprintln(p.out, p.line(i))
	return true
}

func (p *progress) finish(visited int64) {
	if p.out == nil {
		return
	}
	if visited == 0 {
		fmt.Fprintln(p.out, "No entries processed")
		return
	}
	fmt.Fprintf(p.out, "Processed %d entries\n", visited)
}

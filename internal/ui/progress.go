// Package ui renders transfer status in the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

const barWidth = 30

var (
	barColor   = color.New(color.FgCyan)
	okColor    = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed, color.Bold)
	labelColor = color.New(color.Bold)
)

// Bar is a single-line progress indicator. Report matches progress.Reporter.
type Bar struct {
	mu      sync.Mutex
	out     io.Writer
	label   string
	shown   bool
	lastPct int
}

func NewBar(out io.Writer, label string) *Bar {
	return &Bar{out: out, label: label, lastPct: -1}
}

// SetLabel takes effect on the next redraw.
func (b *Bar) SetLabel(label string) {
	b.mu.Lock()
	b.label = label
	b.mu.Unlock()
}

func (b *Bar) Report(fraction float64, visible bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !visible {
		if b.shown {
			fmt.Fprint(b.out, "\r\033[K")
			b.shown = false
			b.lastPct = -1
		}
		return
	}
	pct := int(fraction * 100)
	if b.shown && pct == b.lastPct {
		return
	}
	b.shown = true
	b.lastPct = pct
	fmt.Fprintf(b.out, "\r\033[K%s %s %3d%%", labelColor.Sprint(b.label), Render(fraction, barWidth), pct)
}

// Render draws the bar body, e.g. [#####.....].
func Render(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return "[" + barColor.Sprint(strings.Repeat("#", filled)) + strings.Repeat(".", width-filled) + "]"
}

func Success(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, okColor.Sprintf(format, args...))
}

func Warn(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, warnColor.Sprintf(format, args...))
}

func Error(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, errColor.Sprintf(format, args...))
}

func Info(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, fmt.Sprintf(format, args...))
}

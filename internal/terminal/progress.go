package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// ProgressBar renders tile download progress. On a terminal it redraws one
// line in place; otherwise it prints a line every quarter.
type ProgressBar struct {
	mu       sync.Mutex
	out      io.Writer
	tty      bool
	label    string
	bar      progress.Model
	lastStep int
	finished bool
}

var labelStyle = lipgloss.NewStyle().Bold(true)

// NewProgressBar creates a bar writing to out
func NewProgressBar(out io.Writer, label string) *ProgressBar {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &ProgressBar{
		out:      out,
		tty:      tty,
		label:    label,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		lastStep: -1,
	}
}

// Update records that current of total tiles are done. Safe for concurrent use.
func (p *ProgressBar) Update(current, total int) {
	if p == nil || total <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}

	ratio := float64(current) / float64(total)
	if p.tty {
		fmt.Fprintf(p.out, "\r%s %s %d/%d tiles", labelStyle.Render(p.label), p.bar.ViewAs(ratio), current, total)
	} else {
		step := current * 4 / total
		if step != p.lastStep {
			p.lastStep = step
			fmt.Fprintf(p.out, "%s: %d/%d tiles (%d%%)\n", p.label, current, total, current*100/total)
		}
	}
	if current >= total {
		p.finish()
	}
}

// Done terminates the in-place line. Calling it more than once is harmless.
func (p *ProgressBar) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finish()
}

func (p *ProgressBar) finish() {
	if p.finished {
		return
	}
	p.finished = true
	if p.tty {
		fmt.Fprintln(p.out)
	}
}

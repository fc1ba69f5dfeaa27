package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/roach88/fontrecipe/internal/compiler"
	"github.com/roach88/fontrecipe/internal/engine"
)

// Status palette, shared with the CLI.
var (
	colorPass  = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorFail  = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorWarn  = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorMuted = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#5c6773"}

	PassStyle   = lipgloss.NewStyle().Foreground(colorPass)
	FailStyle   = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
	SkipStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	MutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	HeaderStyle = lipgloss.NewStyle().Bold(true)
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Summary is the outcome of a run per target.
type Summary struct {
	RunID   string
	Counts  engine.Counts
	Built   []string
	Failed  []string
	Skipped []string
	Errors  []string
}

// Summarize collects the target outcomes of res.
func Summarize(res *engine.Result) Summary {
	s := Summary{RunID: res.RunID, Counts: res.Counts()}
	for path, st := range res.Targets {
		switch st {
		case engine.TargetBuilt:
			s.Built = append(s.Built, path)
		case engine.TargetFailed:
			s.Failed = append(s.Failed, path)
		default:
			s.Skipped = append(s.Skipped, path)
		}
	}
	sort.Strings(s.Built)
	sort.Strings(s.Failed)
	sort.Strings(s.Skipped)

	for _, n := range res.Sequence() {
		if n.Status == engine.StatusFailed && n.Err != nil {
			s.Errors = append(s.Errors, fmt.Sprintf("%s [%s]: %v", n.Op, n.Key.Short(), n.Err))
		}
	}
	return s
}

// WriteSummary renders s. Styles apply only when styled is true.
func WriteSummary(w io.Writer, s Summary, styled bool) error {
	render := func(st lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return st.Render(text)
	}

	var b strings.Builder
	c := s.Counts
	header := fmt.Sprintf("run %s: %d succeeded", s.RunID, c.Succeeded)
	if c.Cached > 0 {
		header += fmt.Sprintf(" (%d cached)", c.Cached)
	}
	header += fmt.Sprintf(", %d failed, %d skipped", c.Failed, c.Skipped)
	b.WriteString(render(HeaderStyle, header) + "\n")

	for _, p := range s.Built {
		fmt.Fprintf(&b, "  %s %s\n", render(PassStyle, "ok"), p)
	}
	for _, p := range s.Failed {
		fmt.Fprintf(&b, "  %s %s\n", render(FailStyle, "FAIL"), p)
	}
	for _, p := range s.Skipped {
		fmt.Fprintf(&b, "  %s %s\n", render(SkipStyle, "skip"), p)
	}
	if len(s.Errors) > 0 {
		b.WriteString("\n")
		for _, e := range s.Errors {
			b.WriteString(render(MutedStyle, e) + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// NodeStatusLine renders one node result, for verbose output.
func NodeStatusLine(n *engine.NodeResult) string {
	line := fmt.Sprintf("%-9s [%s] %s -> %s", n.Status, n.Key.Short(), n.Op, n.Output)
	if n.Cached {
		line += " (cached)"
	}
	if n.Kind == compiler.KindPostprocess {
		line += " (in place)"
	}
	return line
}

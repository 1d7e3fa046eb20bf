package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/user/stigforge/pkg/classify"
	"github.com/user/stigforge/pkg/pipeline"
	"github.com/user/stigforge/pkg/record"
)

const (
	defaultWidth = 80
	maxBar       = 40
)

// Printer writes the human-readable run summary. Colour and bar width
// follow the terminal when Out is one.
type Printer struct {
	Out     io.Writer
	NoColor bool
	width   int
	good    *color.Color
	warn    *color.Color
	bad     *color.Color
	head    *color.Color
}

// NewPrinter returns a Printer for w.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	p := &Printer{
		Out:   w,
		width: defaultWidth,
		good:  color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		bad:   color.New(color.FgRed, color.Bold),
		head:  color.New(color.Bold),
	}
	tty := false
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		tty = true
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			p.width = tw
		}
	}
	if noColor || !tty {
		p.NoColor = true
		for _, c := range []*color.Color{p.good, p.warn, p.bad, p.head} {
			c.DisableColor()
		}
	}
	return p
}

// categoryColor groups the categories by how much of the check is scripted.
func (p *Printer) categoryColor(c classify.Category) *color.Color {
	switch c {
	case classify.CategoryFullyAutomated, classify.CategoryAutomatedWithConfig:
		return p.good
	case classify.CategoryHybrid, classify.CategorySemiAutomated:
		return p.warn
	default:
		return p.bad
	}
}

// Summary prints category and platform counts and the artifact outcome
// line.
func (p *Printer) Summary(res *pipeline.Result) error {
	s := res.Stats
	fmt.Fprintf(p.Out, "%s\n", p.head.Sprintf("Run %s (%s): %d record(s)", res.RunID, res.Mode, s.Total))

	barRoom := p.width - 45
	if barRoom > maxBar {
		barRoom = maxBar
	}

	tw := tabwriter.NewWriter(p.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nCATEGORY\tCOUNT\t")
	for _, c := range classify.Categories {
		n := s.Categories[c]
		if n == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", p.categoryColor(c).Sprint(c), n, bar(n, s.Total, barRoom))
	}
	fmt.Fprintln(tw, "\nPLATFORM\tCOUNT\t")
	for _, pl := range record.Platforms {
		if n := s.Platforms[pl]; n > 0 {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", pl, n, bar(n, s.Total, barRoom))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if res.Mode == pipeline.ModeClassify {
		return nil
	}
	fmt.Fprintf(p.Out, "\n%s synthesized · %s manual placeholder · %d skipped · %s failed",
		p.good.Sprint(s.Synthesized), p.warn.Sprint(s.ManualPlaceholder), s.Skipped, p.failures(s.Failed))
	if s.Errors > 0 {
		fmt.Fprintf(p.Out, " · %s", p.bad.Sprintf("%d error(s)", s.Errors))
	}
	fmt.Fprintln(p.Out)
	if res.ConfigSample != "" {
		fmt.Fprintf(p.Out, "Organization-defined values: edit %s and pass it with --config.\n", res.ConfigSample)
	}
	return nil
}

func (p *Printer) failures(n int) string {
	if n == 0 {
		return "0"
	}
	return p.bad.Sprint(n)
}

func bar(n, total, room int) string {
	if total == 0 || room <= 0 {
		return ""
	}
	w := n * room / total
	if w == 0 && n > 0 {
		w = 1
	}
	return strings.Repeat("█", w)
}

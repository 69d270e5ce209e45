package scenario

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// Output prints run summaries, with colour and a boxed banner on terminals.
type Output struct {
	w     io.Writer
	isTTY bool
}

// NewOutput creates an Output writing to w.
func NewOutput(w io.Writer, isTTY bool) *Output {
	return &Output{w: w, isTTY: isTTY}
}

func (o *Output) color(c ansi.Color, text string) string {
	if !o.isTTY {
		return text
	}
	return ansi.Style{}.Bold().ForegroundColor(c).Styled(text)
}

func padCenter(text string, width int) string {
	if len(text) >= width {
		return text
	}
	return strings.Repeat(" ", (width-len(text))/2) + text + strings.Repeat(" ", width-len(text)-(width-len(text))/2)
}

// PrintResults prints the final results summary.
func (o *Output) PrintResults(results *Results) {
	fmt.Fprintln(o.w)

	var summary string
	c := ansi.Color(ansi.Green)
	if results.Failed > 0 {
		summary = fmt.Sprintf("FAILED: %d/%d tests passed", results.Passed, results.Total)
		c = ansi.Red
	} else {
		summary = fmt.Sprintf("PASSED: %d/%d tests", results.Passed, results.Total)
	}

	if !o.isTTY {
		fmt.Fprintf(o.w, "%s (%d scenarios, %s)\n", summary, len(results.Scenarios), results.Duration.Round(time.Millisecond))
		return
	}
	fmt.Fprintln(o.w, o.color(c, "╭"+strings.Repeat("─", 40)+"╮"))
	fmt.Fprintln(o.w, o.color(c, "│"+padCenter(summary, 40)+"│"))
	fmt.Fprintln(o.w, o.color(c, "╰"+strings.Repeat("─", 40)+"╯"))
	fmt.Fprintf(o.w, "  Completed %d scenarios in %s\n\n", len(results.Scenarios), results.Duration.Round(time.Millisecond))
}

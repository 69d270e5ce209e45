package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/tinyrange/qdev/internal/devtree"
	"github.com/tinyrange/qdev/internal/qcmd"
	"github.com/tinyrange/qdev/internal/topology"
)

// report writes placement results and dumps, coloured when color is set.
type report struct {
	w     io.Writer
	color bool
}

func (r *report) paint(s string, c ansi.Color) string {
	if !r.color {
		return s
	}
	return ansi.Style{}.Bold().ForegroundColor(c).Styled(s)
}

// placements prints one line per device and returns how many were
// rejected.
func (r *report) placements(placements []topology.Placement) int {
	rejected := 0
	for _, p := range placements {
		var status string
		switch p.Outcome {
		case devtree.Placed:
			status = r.paint("placed  ", ansi.Green)
		case devtree.PlacedWithWarnings:
			status = r.paint("forced  ", ansi.Yellow)
		case devtree.Rejected:
			status = r.paint("rejected", ansi.Red)
			rejected++
		}
		fmt.Fprintf(r.w, "%s %-14s %s\n", status, p.Source, p.Device)
		for _, w := range p.Warnings {
			fmt.Fprintf(r.w, "         %s\n", w)
		}
		if p.Err != nil {
			fmt.Fprintf(r.w, "         %v\n", p.Err)
		}
	}
	return rejected
}

func (r *report) commandLine(c *devtree.Container, readconfig bool) error {
	if !readconfig {
		line, err := qcmd.ContainerCmdline(c)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.w, "\n%s\n", line)
		return nil
	}
	config, rest, err := qcmd.ContainerReadConfig(c)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.w, "\n%s\n%s\n", config, rest)
	return nil
}

// dump prints a container dump with its header lines highlighted.
func (r *report) dump(text string) {
	fmt.Fprintln(r.w)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "Bus ") || strings.HasPrefix(trimmed, "Buses of ") || strings.HasPrefix(trimmed, "Devices of ") {
			line = line[:len(line)-len(trimmed)] + r.paint(trimmed, ansi.Cyan)
		}
		fmt.Fprintln(r.w, line)
	}
}

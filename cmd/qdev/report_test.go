package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/qdev/internal/devtree"
	"github.com/tinyrange/qdev/internal/topology"
)

func testPlacements() []topology.Placement {
	mouse := devtree.NewDevice("")
	mouse.SetParam("driver", "usb-mouse")
	tablet := devtree.NewDevice("")
	tablet.SetParam("driver", "usb-tablet")
	return []topology.Placement{
		{Source: "device 0", Device: mouse, Result: devtree.Result{Outcome: devtree.Placed}},
		{Source: "device 1", Device: tablet, Result: devtree.Result{
			Outcome: devtree.Rejected,
			Err:     errors.New("parent bus {type=uhci}: no free slot"),
		}},
	}
}

func TestReportPlacements(t *testing.T) {
	var buf bytes.Buffer
	r := &report{w: &buf}

	assert.Equal(t, 1, r.placements(testPlacements()))
	assert.Equal(t, "placed   device 0       a'usb-mouse'\n"+
		"rejected device 1       a'usb-tablet'\n"+
		"         parent bus {type=uhci}: no free slot\n", buf.String())
}

func TestReportColor(t *testing.T) {
	var plain, colored bytes.Buffer
	(&report{w: &plain}).placements(testPlacements())
	(&report{w: &colored, color: true}).placements(testPlacements())

	assert.NotEqual(t, plain.String(), colored.String())
	assert.Equal(t, plain.String(), ansi.Strip(colored.String()))
}

func TestReportCommandLine(t *testing.T) {
	c := devtree.New(devtree.Options{})
	mon := devtree.NewStringDevice("monitor", devtree.Templates{Create: "-monitor stdio"}, "")
	ctl := devtree.NewDevice("").AddParent(devtree.Requirement{Type: "pci"})
	ctl.SetParam("driver", "piix3-usb-uhci")
	ctl.SetParam("id", "usb1")
	require.True(t, c.Insert(mon).OK())
	require.True(t, c.Insert(ctl).OK())

	var buf bytes.Buffer
	r := &report{w: &buf}
	require.NoError(t, r.commandLine(c, false))
	assert.Equal(t, "\n-monitor stdio -device driver=piix3-usb-uhci,id=usb1\n", buf.String())

	buf.Reset()
	require.NoError(t, r.commandLine(c, true))
	assert.Equal(t, "\n[device \"usb1\"]\n  driver = \"piix3-usb-uhci\"\n\n-monitor stdio\n", buf.String())
}

func TestReportDumpHighlightsHeaders(t *testing.T) {
	c := devtree.New(devtree.Options{})
	var buf bytes.Buffer
	r := &report{w: &buf, color: true}
	r.dump(c.StrBusLong())

	out := buf.String()
	assert.Equal(t, "\n"+strings.TrimRight(c.StrBusLong(), "\n")+"\n", ansi.Strip(out))
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(ansi.Strip(line), "Bus pci.0") {
			assert.NotEqual(t, ansi.Strip(line), line)
		}
	}
}

package scenario

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/qdev/internal/devtree"
	"github.com/tinyrange/qdev/internal/topology"
)

func TestExamples(t *testing.T) {
	runner := &Runner{Out: io.Discard}
	results, err := runner.Run(context.Background(), []string{"../../examples/..."})
	require.NoError(t, err)
	assert.Len(t, results.Scenarios, 3)
	assert.Equal(t, 5, results.Total)
	for _, s := range results.Scenarios {
		for _, tr := range s.Tests {
			assert.True(t, tr.Passed, "%s/%s: %s", s.Name, tr.Name, tr.Error)
		}
	}
}

func writeScenario(t *testing.T, topo, spec string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "topology.yaml"), []byte(topo), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, SpecName), []byte(spec), 0o644))
	return dir
}

const mouseTopology = `
usbs:
  - id: usb1
    type: piix3-usb-uhci
    max_ports: 1
devices:
  - params: {driver: usb-mouse, id: m0}
    parents: [{type: uhci}]
  - params: {driver: usb-mouse, id: m1}
    parents: [{type: uhci}]
`

func TestRunReportsFailures(t *testing.T) {
	dir := writeScenario(t, mouseTopology, `
name: mice
topology: topology.yaml
tests:
  - name: second mouse rejected
    expect:
      rejected: 1
      devices:
        m1: {outcome: Rejected}
  - name: wrong
    expect:
      cmdline_contains: [-device driver=usb-kbd]
`)

	var out bytes.Buffer
	runner := &Runner{Out: &out}
	results, err := runner.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 2, results.Total)
	assert.Equal(t, 1, results.Passed)
	assert.Equal(t, 1, results.Failed)
	assert.Contains(t, out.String(), "[FAIL] mice (1/2 tests)")
	assert.Contains(t, out.String(), "wrong: rejected: expected 0, got 1")
}

func TestExpectedError(t *testing.T) {
	dir := writeScenario(t, "devices:\n  - kind: bogus\n", `
name: broken
topology: topology.yaml
tests:
  - name: unknown kind
    expect:
      error: unknown device kind
  - name: unexpected
`)

	runner := &Runner{Out: io.Discard}
	results, err := runner.Run(context.Background(), []string{filepath.Join(dir, SpecName)})
	require.NoError(t, err)
	require.Len(t, results.Scenarios, 1)
	tests := results.Scenarios[0].Tests
	require.Len(t, tests, 2)
	assert.True(t, tests[0].Passed, tests[0].Error)
	assert.False(t, tests[1].Passed)
	assert.Contains(t, tests[1].Error, "unknown device kind")
}

func TestRunWithoutScenarios(t *testing.T) {
	runner := &Runner{Out: io.Discard}
	_, err := runner.Run(context.Background(), []string{t.TempDir() + "/..."})
	assert.Error(t, err)
}

func TestLoadNeedsTopology(t *testing.T) {
	path := filepath.Join(t.TempDir(), SpecName)
	require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "topology is required")

	require.NoError(t, os.WriteFile(path, []byte("name: x\ntopology: t.yaml\n"), 0o644))
	s, err := Load(path)
	require.NoError(t, err)
	require.Len(t, s.Tests, 1)
	assert.Equal(t, "default", s.Tests[0].Name)
}

func TestAssert(t *testing.T) {
	mouse := devtree.NewDevice("")
	mouse.SetParam("driver", "usb-mouse")
	mouse.SetParam("bus", "usb1.0")
	out := &Outcome{
		Placements: []topology.Placement{{
			Source: "device 0",
			Device: mouse,
			Result: devtree.Result{
				Outcome:  devtree.PlacedWithWarnings,
				Warnings: []devtree.Warning{{Err: devtree.ErrNoFreeSlot}},
			},
		}},
		Cmdline: "-device driver=usb-mouse,bus=usb1.0",
		Buses:   "Buses of vm1",
	}

	assert.Empty(t, Assert(out, Expectation{
		Forced: 1,
		Devices: map[string]DeviceExpect{
			"device 0": {Outcome: "PlacedWithWarnings", Modes: []string{"NoFreeSlot"}, Bus: "usb1.0"},
		},
		CmdlineEquals: "-device driver=usb-mouse,bus=usb1.0",
		BusesContains: []string{"vm1"},
	}))

	errs := Assert(out, Expectation{
		Devices: map[string]DeviceExpect{
			"device 0": {Params: "driver=usb-mouse", Modes: []string{"UsedSlot"}},
			"device 1": {},
		},
		ReadConfigContains: []string{"[device"},
	})
	var fields []string
	for _, err := range errs {
		var ae *AssertionError
		require.True(t, errors.As(err, &ae))
		fields = append(fields, ae.Field)
	}
	assert.Equal(t, []string{"forced", "device[device 0].modes", "device[device 0].params", "", "readconfig"}, fields)
	assert.Contains(t, FormatErrors(errs), "device device 1: not placed")
}

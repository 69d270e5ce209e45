package scenario

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tinyrange/qdev/internal/devtree"
	"github.com/tinyrange/qdev/internal/topology"
)

// AssertionError represents a failed assertion.
type AssertionError struct {
	Field    string
	Expected any
	Actual   any
	Message  string
}

func (e *AssertionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: expected %v, got %v", e.Field, e.Expected, e.Actual)
}

// Outcome is everything a placement run produced.
type Outcome struct {
	Placements []topology.Placement
	Cmdline    string
	ReadConfig string
	// ReadConfigRest holds the options that have no config block.
	ReadConfigRest string
	Buses          string
}

// Assert checks an outcome against expectations.
func Assert(out *Outcome, expect Expectation) []error {
	var errors []error

	rejected, forced := 0, 0
	for _, p := range out.Placements {
		switch p.Outcome {
		case devtree.Rejected:
			rejected++
		case devtree.PlacedWithWarnings:
			forced++
		}
	}
	if rejected != expect.Rejected {
		errors = append(errors, &AssertionError{Field: "rejected", Expected: expect.Rejected, Actual: rejected})
	}
	if forced != expect.Forced {
		errors = append(errors, &AssertionError{Field: "forced", Expected: expect.Forced, Actual: forced})
	}

	for _, key := range sortedKeys(expect.Devices) {
		errors = append(errors, assertDevice(out.Placements, key, expect.Devices[key])...)
	}

	if expect.CmdlineEquals != "" && out.Cmdline != expect.CmdlineEquals {
		errors = append(errors, &AssertionError{
			Field:    "cmdline",
			Expected: expect.CmdlineEquals,
			Actual:   out.Cmdline,
		})
	}
	errors = append(errors, assertContains("cmdline", out.Cmdline, expect.CmdlineContains)...)
	errors = append(errors, assertContains("readconfig", out.ReadConfig, expect.ReadConfigContains)...)
	errors = append(errors, assertContains("buses", out.Buses, expect.BusesContains)...)

	return errors
}

func assertDevice(placements []topology.Placement, key string, expect DeviceExpect) []error {
	idx := slices.IndexFunc(placements, func(p topology.Placement) bool {
		return p.Device.Ref() == key || p.Device.ID() == key || p.Source == key
	})
	if idx < 0 {
		return []error{&AssertionError{Message: fmt.Sprintf("device %s: not placed", key)}}
	}
	p := placements[idx]

	var errors []error
	field := func(name string) string { return fmt.Sprintf("device[%s].%s", key, name) }
	if expect.Outcome != "" && p.Outcome.String() != expect.Outcome {
		errors = append(errors, &AssertionError{Field: field("outcome"), Expected: expect.Outcome, Actual: p.Outcome})
	}
	if len(expect.Modes) > 0 {
		var modes []string
		for _, w := range p.Warnings {
			modes = append(modes, w.Mode())
		}
		if !slices.Equal(modes, expect.Modes) {
			errors = append(errors, &AssertionError{Field: field("modes"), Expected: expect.Modes, Actual: modes})
		}
	}
	if expect.Params != "" {
		if got := p.Device.Params().String(); got != expect.Params {
			errors = append(errors, &AssertionError{Field: field("params"), Expected: expect.Params, Actual: got})
		}
	}
	if expect.Bus != "" {
		if got := p.Device.Param("bus"); got != expect.Bus {
			errors = append(errors, &AssertionError{Field: field("bus"), Expected: expect.Bus, Actual: got})
		}
	}
	return errors
}

func assertContains(name, actual string, want []string) []error {
	var errors []error
	for _, s := range want {
		if !strings.Contains(actual, s) {
			errors = append(errors, &AssertionError{
				Field:    name,
				Expected: fmt.Sprintf("contains %q", s),
				Actual:   truncate(actual, 200),
			})
		}
	}
	return errors
}

func sortedKeys(m map[string]DeviceExpect) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// FormatErrors formats multiple errors into a single string.
func FormatErrors(errors []error) string {
	if len(errors) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range errors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Package scenario runs YAML-driven placement checks against machine
// topologies.
package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tinyrange/qdev/internal/capability"
	"github.com/tinyrange/qdev/internal/devtree"
	"github.com/tinyrange/qdev/internal/qcmd"
	"github.com/tinyrange/qdev/internal/topology"
)

// SpecName is the file name the runner looks for in scenario directories.
const SpecName = "test.yaml"

// Runner loads scenarios and applies their topologies.
type Runner struct {
	Verbose bool
	Out     io.Writer
}

// NewRunner creates a new scenario runner writing to stdout.
func NewRunner() *Runner {
	return &Runner{Out: os.Stdout}
}

// Results contains the results of running scenarios.
type Results struct {
	Scenarios []ScenarioResult
	Total     int
	Passed    int
	Failed    int
	Duration  time.Duration
}

// ScenarioResult contains results for a single scenario.
type ScenarioResult struct {
	Name     string
	Tests    []TestResult
	Total    int
	Passed   int
	Failed   int
	Duration time.Duration
}

// TestResult contains the result of a single test case.
type TestResult struct {
	Name     string
	Passed   bool
	Error    string
	Duration time.Duration
}

// Run executes every scenario matching patterns.
func (r *Runner) Run(ctx context.Context, patterns []string) (*Results, error) {
	start := time.Now()
	results := &Results{}

	specPaths, err := r.findSpecs(patterns)
	if err != nil {
		return nil, fmt.Errorf("finding scenarios: %w", err)
	}
	if len(specPaths) == 0 {
		return nil, fmt.Errorf("no %s files found matching patterns", SpecName)
	}

	for _, path := range specPaths {
		if ctx.Err() != nil {
			break
		}
		s, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}

		result := r.RunScenario(s, filepath.Dir(path))
		results.Scenarios = append(results.Scenarios, result)
		results.Total += result.Total
		results.Passed += result.Passed
		results.Failed += result.Failed
	}

	results.Duration = time.Since(start)
	return results, ctx.Err()
}

// findSpecs finds all scenario files matching the given patterns. A pattern
// ending in "/..." is walked recursively; anything else names a directory or
// a scenario file.
func (r *Runner) findSpecs(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"./examples/..."}
	}

	var paths []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	for _, pattern := range patterns {
		if baseDir, ok := strings.CutSuffix(pattern, "/..."); ok {
			err := filepath.WalkDir(baseDir, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.Name() == SpecName {
					add(path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			continue
		}

		info, err := os.Stat(pattern)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(pattern)
			continue
		}
		if _, err := os.Stat(filepath.Join(pattern, SpecName)); err == nil {
			add(filepath.Join(pattern, SpecName))
		}
	}

	return paths, nil
}

// RunScenario runs every test case of s. dir resolves the scenario's
// relative paths.
func (r *Runner) RunScenario(s *Scenario, dir string) ScenarioResult {
	start := time.Now()
	result := ScenarioResult{
		Name:  s.Name,
		Total: len(s.Tests),
	}

	for _, tc := range s.Tests {
		tcResult := r.runTestCase(s, dir, tc)
		result.Tests = append(result.Tests, tcResult)
		if tcResult.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	result.Duration = time.Since(start)

	if result.Failed > 0 {
		fmt.Fprintf(r.Out, "[FAIL] %s (%d/%d tests)\n", s.Name, result.Passed, result.Total)
		for _, tr := range result.Tests {
			if !tr.Passed {
				fmt.Fprintf(r.Out, "       - %s: %s\n", tr.Name, tr.Error)
			}
		}
	} else if r.Verbose {
		fmt.Fprintf(r.Out, "[PASS] %s (%d/%d tests)\n", s.Name, result.Passed, result.Total)
	}

	return result
}

func (r *Runner) runTestCase(s *Scenario, dir string, tc TestCase) TestResult {
	start := time.Now()
	result := TestResult{Name: tc.Name}

	out, err := apply(s, dir, tc)
	var errors []error
	switch {
	case err != nil && tc.Expect.Error == "":
		errors = append(errors, err)
	case err != nil:
		if !strings.Contains(err.Error(), tc.Expect.Error) {
			errors = append(errors, &AssertionError{Field: "error", Expected: fmt.Sprintf("contains %q", tc.Expect.Error), Actual: err})
		}
	case tc.Expect.Error != "":
		errors = append(errors, &AssertionError{Field: "error", Expected: fmt.Sprintf("contains %q", tc.Expect.Error), Actual: "<nil>"})
	default:
		errors = Assert(out, tc.Expect)
	}

	if len(errors) > 0 {
		result.Error = FormatErrors(errors)
	} else {
		result.Passed = true
	}
	result.Duration = time.Since(start)
	slog.Debug("scenario: test case done", "scenario", s.Name, "test", tc.Name, "passed", result.Passed)
	return result
}

// apply loads the topology of s, applies it and renders the machine.
func apply(s *Scenario, dir string, tc TestCase) (*Outcome, error) {
	doc, err := topology.Load(filepath.Join(dir, s.Topology))
	if err != nil {
		return nil, err
	}
	if tc.Strict != nil {
		doc.StrictMode = *tc.Strict
	}

	var caps devtree.Capabilities
	if s.HelpFile != "" || s.DeviceHelpFile != "" {
		probe, err := capability.FromFiles(resolve(dir, s.HelpFile), resolve(dir, s.DeviceHelpFile))
		if err != nil {
			return nil, err
		}
		caps = probe
	}

	c, placements, err := doc.Apply(caps)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Placements: placements, Buses: c.StrBusShort()}
	if out.Cmdline, err = qcmd.ContainerCmdline(c); err != nil {
		return nil, err
	}
	if out.ReadConfig, out.ReadConfigRest, err = qcmd.ContainerReadConfig(c); err != nil {
		return nil, err
	}
	return out, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

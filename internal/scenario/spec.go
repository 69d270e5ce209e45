package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario describes one machine topology and the placements expected from
// it. Paths are relative to the directory holding the scenario file.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Topology is the YAML or HCL machine description.
	Topology string `yaml:"topology"`
	// HelpFile and DeviceHelpFile hold captured hypervisor help output.
	// Without them every option and device is treated as supported.
	HelpFile       string     `yaml:"help_file"`
	DeviceHelpFile string     `yaml:"device_help_file"`
	Tests          []TestCase `yaml:"tests"`
}

// TestCase applies the topology once and checks the outcome.
type TestCase struct {
	Name string `yaml:"name"`
	// Strict overrides the topology's strict_mode when set.
	Strict *bool       `yaml:"strict"`
	Expect Expectation `yaml:"expect"`
}

// Expectation defines the expected outcome of a placement run.
type Expectation struct {
	// Error, when set, must be contained in the error returned by Apply.
	Error string `yaml:"error"`
	// Rejected and Forced count placements by outcome.
	Rejected int `yaml:"rejected"`
	Forced   int `yaml:"forced"`
	// Devices is keyed by device ref, declared id or placement source.
	Devices            map[string]DeviceExpect `yaml:"devices"`
	CmdlineEquals      string                  `yaml:"cmdline_equals"`
	CmdlineContains    []string                `yaml:"cmdline_contains"`
	ReadConfigContains []string                `yaml:"readconfig_contains"`
	BusesContains      []string                `yaml:"buses_contains"`
}

// DeviceExpect defines what is expected of a single placement.
type DeviceExpect struct {
	Outcome string   `yaml:"outcome"`
	Modes   []string `yaml:"modes"`
	Params  string   `yaml:"params"`
	Bus     string   `yaml:"bus"`
}

// Load loads a scenario from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	if s.Topology == "" {
		return nil, fmt.Errorf("scenario %q: topology is required", s.Name)
	}
	if len(s.Tests) == 0 {
		s.Tests = []TestCase{{Name: "default"}}
	}
	return &s, nil
}

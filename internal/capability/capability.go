// Package capability answers which command-line options and device drivers
// a hypervisor binary supports, from the text it prints for -h and
// -device ?.
package capability

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

var versionPattern = regexp.MustCompile(`QEMU emulator version (\d+)\.(\d+)(?:\.(\d+))?`)

// Probe holds captured help output. The zero value supports nothing.
type Probe struct {
	help       string
	deviceHelp string
	version    string
}

// New builds a probe from the output of "<binary> -h" and
// "<binary> -device ?".
func New(help, deviceHelp string) *Probe {
	return &Probe{
		help:       help,
		deviceHelp: deviceHelp,
		version:    parseVersion(help),
	}
}

// Load runs binary once for each help text and returns the resulting probe.
func Load(ctx context.Context, binary string) (*Probe, error) {
	help, err := capture(ctx, binary, "-h")
	if err != nil {
		return nil, err
	}
	devices, err := capture(ctx, binary, "-device", "?")
	if err != nil {
		return nil, err
	}
	p := New(help, devices)
	slog.Debug("capability: probed hypervisor", "binary", binary, "version", p.Version())
	return p, nil
}

// capture returns the combined output of binary args. Old binaries exit
// non-zero after printing help, so output wins over the exit status.
func capture(ctx context.Context, binary string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if out.Len() == 0 || ctx.Err() != nil {
			return "", fmt.Errorf("run %s %s: %w", binary, strings.Join(args, " "), err)
		}
		slog.Debug("capability: help exited with error", "binary", binary, "args", args, "err", err)
	}
	return out.String(), nil
}

// FromFiles builds a probe from previously captured help files. An empty
// path leaves that text empty.
func FromFiles(helpPath, devicesPath string) (*Probe, error) {
	help, err := readOptional(helpPath)
	if err != nil {
		return nil, err
	}
	devices, err := readOptional(devicesPath)
	if err != nil {
		return nil, err
	}
	return New(help, devices), nil
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read help text: %w", err)
	}
	return string(data), nil
}

// HasOption reports whether the help text documents -name.
func (p *Probe) HasOption(name string) bool {
	re, err := regexp.Compile(`(?m)^-` + regexp.QuoteMeta(name) + `(\s|$)`)
	if err != nil {
		return false
	}
	return re.MatchString(p.help)
}

// HasDevice reports whether the device list names driver.
func (p *Probe) HasDevice(driver string) bool {
	return strings.Contains(p.deviceHelp, `name "`+driver+`"`)
}

// Version returns the hypervisor version in semver form ("v2.1.0"), or ""
// when the help text does not state it.
func (p *Probe) Version() string {
	return p.version
}

// AtLeast reports whether the hypervisor version is v or newer. v may omit
// the "v" prefix and trailing components. An unknown version is never at
// least anything.
func (p *Probe) AtLeast(v string) bool {
	if p.version == "" {
		return false
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return false
	}
	return semver.Compare(p.version, v) >= 0
}

func parseVersion(help string) string {
	m := versionPattern.FindStringSubmatch(help)
	if m == nil {
		return ""
	}
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	v := fmt.Sprintf("v%s.%s.%s", m[1], m[2], patch)
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

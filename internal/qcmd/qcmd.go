// Package qcmd renders placed devices as hypervisor command-line options,
// monitor commands and -readconfig blocks.
package qcmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/tinyrange/qdev/internal/devtree"
)

var (
	// ErrUnsupported is returned when a device kind has no rendering for the
	// requested operation, e.g. hotplugging a -global.
	ErrUnsupported = errors.New("operation not supported by device")
	// ErrMissingParam is returned when a rendering needs a param the device
	// does not carry.
	ErrMissingParam = errors.New("missing parameter")
)

// Cmdline returns the command-line option that defines d.
func Cmdline(d *devtree.Device) (string, error) {
	switch d.Kind() {
	case devtree.KindString:
		return execTemplate(d, "create", d.Templates().Create)
	case devtree.KindCustom, devtree.KindDevice, devtree.KindDrive:
		if d.Params().Len() == 0 {
			return "-" + d.Type(), nil
		}
		return "-" + d.Type() + " " + d.Params().String(), nil
	case devtree.KindGlobal:
		driver, property, value, err := globalParams(d)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("-global %s.%s=%s", driver, property, value), nil
	}
	return "", fmt.Errorf("%w: create %s (kind %s)", ErrUnsupported, d, d.Kind())
}

// Hotplug returns the monitor command that adds d to a running machine.
func Hotplug(d *devtree.Device) (string, error) {
	switch d.Kind() {
	case devtree.KindString:
		return execTemplate(d, "hotplug", d.Templates().Hotplug)
	case devtree.KindDevice:
		return "device_add " + d.Params().String(), nil
	case devtree.KindDrive:
		return "drive_add auto " + d.Params().String(), nil
	}
	return "", fmt.Errorf("%w: hotplug %s (kind %s)", ErrUnsupported, d, d.Kind())
}

// Unplug returns the monitor command that removes d from a running
// machine. Devices and drives need an id.
func Unplug(d *devtree.Device) (string, error) {
	var verb string
	switch d.Kind() {
	case devtree.KindString:
		return execTemplate(d, "unplug", d.Templates().Unplug)
	case devtree.KindDevice:
		verb = "device_del"
	case devtree.KindDrive:
		verb = "drive_del"
	default:
		return "", fmt.Errorf("%w: unplug %s (kind %s)", ErrUnsupported, d, d.Kind())
	}
	id := d.ID()
	if id == "" {
		return "", fmt.Errorf("%w: unplug %s needs an id", ErrMissingParam, d)
	}
	return verb + " " + id, nil
}

// ReadConfig returns the -readconfig block of d. String devices without a
// config template return "".
func ReadConfig(d *devtree.Device) (string, error) {
	switch d.Kind() {
	case devtree.KindString:
		return execTemplate(d, "config", d.Templates().Config)
	case devtree.KindCustom, devtree.KindDevice, devtree.KindDrive:
		var sb strings.Builder
		sb.WriteString("[" + d.Type())
		if id := d.ID(); id != "" {
			fmt.Fprintf(&sb, " %q", id)
		}
		sb.WriteString("]\n")
		d.Params().Each(func(k, v string) {
			if k == "id" {
				return
			}
			fmt.Fprintf(&sb, "  %s = %q\n", k, v)
		})
		return sb.String(), nil
	case devtree.KindGlobal:
		driver, property, value, err := globalParams(d)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[global]\n  driver = %q\n  property = %q\n  value = %q\n", driver, property, value), nil
	}
	return "", fmt.Errorf("%w: config %s (kind %s)", ErrUnsupported, d, d.Kind())
}

func globalParams(d *devtree.Device) (driver, property, value string, err error) {
	for _, key := range []string{"driver", "property"} {
		if !d.Params().Has(key) {
			return "", "", "", fmt.Errorf("%w: %s of %s", ErrMissingParam, key, d)
		}
	}
	p := d.Params()
	return p.Value("driver"), p.Value("property"), p.Value("value"), nil
}

// execTemplate expands a KindString template with the device params. A
// reference to an absent param is an error.
func execTemplate(d *devtree.Device, name, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s template of %s: %w", name, d, err)
	}
	data := make(map[string]string, d.Params().Len())
	d.Params().Each(func(k, v string) { data[k] = v })

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("%w: %s template of %s (have %s): %v",
			ErrMissingParam, name, d, strings.Join(sortedKeys(data), ","), err)
	}
	return sb.String(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package qcmd

import (
	"fmt"
	"strings"

	"github.com/tinyrange/qdev/internal/devtree"
)

// ContainerCmdline joins the command-line options of every device in
// insertion order.
func ContainerCmdline(c *devtree.Container) (string, error) {
	var parts []string
	for _, d := range c.Devices() {
		line, err := Cmdline(d)
		if err != nil {
			return "", fmt.Errorf("render %s: %w", d, err)
		}
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " "), nil
}

// ContainerReadConfig splits the machine into a -readconfig file and the
// command-line options of devices without a config rendering. Blocks are
// separated by a blank line.
func ContainerReadConfig(c *devtree.Container) (config, cmdline string, err error) {
	var blocks, rest []string
	for _, d := range c.Devices() {
		block, err := ReadConfig(d)
		if err != nil {
			return "", "", fmt.Errorf("render %s: %w", d, err)
		}
		if block != "" {
			blocks = append(blocks, block)
			continue
		}
		line, err := Cmdline(d)
		if err != nil {
			return "", "", fmt.Errorf("render %s: %w", d, err)
		}
		if line != "" {
			rest = append(rest, line)
		}
	}
	return strings.Join(blocks, "\n"), strings.Join(rest, " "), nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/tinyrange/qdev/internal/capability"
	"github.com/tinyrange/qdev/internal/devtree"
	"github.com/tinyrange/qdev/internal/topology"
)

func run() error {
	helpFile := flag.String("help-file", "", "captured output of `qemu -h`")
	deviceHelpFile := flag.String("device-help-file", "", "captured output of `qemu -device ?`")
	qemu := flag.String("qemu", "", "probe this hypervisor binary instead of reading help files")
	strict := flag.Bool("strict", false, "write every address param on placement")
	short := flag.Bool("short", false, "print the one-line bus dump")
	long := flag.Bool("long", false, "print the full bus dump")
	readconfig := flag.Bool("readconfig", false, "print a -readconfig file plus the leftover command line")
	verbose := flag.Bool("v", false, "enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `qdev - place a machine's devices on their buses

USAGE:
  qdev [flags] <topology.yaml|topology.hcl>

FLAGS:
  -help-file F         Captured "qemu -h" output used to answer option checks
  -device-help-file F  Captured "qemu -device ?" output used to answer device checks
  -qemu BINARY         Run BINARY to capture both help texts
  -strict              Write bus and address params even when a device omits them
  -short               Print every bus on one line
  -long                Print every bus with its devices in full
  -readconfig          Print a -readconfig file instead of a plain command line
  -v                   Debug logging

Without help files every option and device is assumed to be supported.
The exit status is 1 when any device was rejected.
`)
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	doc, err := topology.Load(flag.Arg(0))
	if err != nil {
		return err
	}
	if *strict {
		doc.StrictMode = true
	}

	caps, err := loadCapabilities(*qemu, *helpFile, *deviceHelpFile)
	if err != nil {
		return err
	}

	c, placements, err := doc.Apply(caps)
	if err != nil {
		return fmt.Errorf("apply %s: %w", flag.Arg(0), err)
	}

	r := &report{
		w:     os.Stdout,
		color: term.IsTerminal(int(os.Stdout.Fd())),
	}
	rejected := r.placements(placements)
	if err := r.commandLine(c, *readconfig); err != nil {
		return err
	}
	if *short {
		r.dump(c.StrBusShort())
	}
	if *long {
		r.dump(c.StrBusLong())
	}

	if rejected > 0 {
		return fmt.Errorf("%d device(s) rejected", rejected)
	}
	return nil
}

func loadCapabilities(binary, helpFile, deviceHelpFile string) (devtree.Capabilities, error) {
	switch {
	case binary != "":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return capability.Load(ctx, binary)
	case helpFile != "" || deviceHelpFile != "":
		return capability.FromFiles(helpFile, deviceHelpFile)
	}
	return nil, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "qdev: %v\n", err)
		os.Exit(1)
	}
}

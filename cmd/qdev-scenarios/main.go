// Command qdev-scenarios applies machine topologies and checks their
// placements against YAML scenario files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/term"

	"github.com/tinyrange/qdev/internal/scenario"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	runner := scenario.NewRunner()
	runner.Verbose = *verbose

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	results, err := runner.Run(ctx, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	scenario.NewOutput(os.Stdout, term.IsTerminal(int(os.Stdout.Fd()))).PrintResults(results)

	if results.Failed > 0 {
		os.Exit(1)
	}
}

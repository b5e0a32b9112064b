package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pushstream-latency/pkg/config"
	"pushstream-latency/pkg/version"

	"github.com/fatih/color"
)

const invalidOptionMessage = "ERR: Invalid option. Try -h or --help for help."

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without the process: it returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...AppOption) int {
	cfg, err := config.Load(args)
	switch {
	case errors.Is(err, config.ErrHelp):
		config.PrintUsage(stdout)
		return 0
	case errors.Is(err, config.ErrVersion):
		fmt.Fprintf(stdout, "%s %s\n", config.AppName, version.Info())
		return 0
	case errors.Is(err, config.ErrMissingURL):
		config.PrintUsage(stdout)
		return 1
	case config.IsUsageError(err):
		color.New(color.FgHiMagenta).Fprintln(stdout, invalidOptionMessage)
		return 1
	case err != nil:
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return 1
	}

	logger := log.New(stderr, "[latency] ", log.LstdFlags)

	app, err := NewApp(cfg, stdout, logger, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error starting probe: %v\n", err)
		return 1
	}

	if err := app.Run(ctx); err != nil {
		logger.Printf("ERROR: %v", err)
		return 1
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Exiting.")
	return 0
}

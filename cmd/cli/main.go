package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/seedgrid/internal/cli"
	"github.com/vk/seedgrid/internal/sandbox"
)

// main is the entrypoint for the seedgrid application.
func main() {
	sandbox.ExecLimited()

	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Stderr, os.Args[1:])
	stop()

	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitFailure)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling. A panic escaping the command tree is reported as an error.
func run(ctx context.Context, outW, errW io.Writer, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &cli.ExitError{Code: cli.ExitFailure, Message: fmt.Sprintf("a critical error occurred: %v", r)}
		}
	}()
	return cli.Execute(ctx, args, outW, errW)
}

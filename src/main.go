package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"schemabench/src/cli"
	"schemabench/src/runner"
	"schemabench/src/settings"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// run holds every process-scoped resource so that deferred cleanup happens
// on each return path before main decides the exit code.
func run() error {
	// Configuration comes from config.json and the environment only.
	args, err := settings.Load("")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := runner.InitRunner(ctx, args)
	if err != nil {
		return fmt.Errorf("failed to initialize runner: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing runner: %s\n", err)
		}
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to start prompt: %w", err)
	}
	defer rl.Close()

	return cli.NewPrompt(rl, r, rl.Stdout()).Run(ctx)
}

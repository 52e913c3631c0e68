// Command lexicard is a spaced-repetition vocabulary trainer.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/conorfennell/lexicard/internal/config"
)

const usage = `usage: lexicard <command> [flags]

commands:
  serve     run the JSON API
  quiz      study in the terminal
  sync      exchange the snapshot with the configured remote
  migrate   reconcile stored cards with the catalog
  stats     print study statistics

Run "lexicard <command> --help" for the flags of a command.
`

type command func(ctx context.Context, a *app, fs *pflag.FlagSet) error

var commands = map[string]command{
	"serve":   runServe,
	"quiz":    runQuiz,
	"sync":    runSync,
	"migrate": runMigrate,
	"stats":   runStats,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "lexicard:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return nil
	}
	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", name)
	}

	fs := config.Flags(name)
	addCommandFlags(name, fs)
	fs.SetOutput(stderr)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a, err := openApp(ctx, cfg, logger, stdin, stdout)
	if err != nil {
		return err
	}
	cmdErr := cmd(ctx, a, fs)
	if err := a.Close(); err != nil {
		logger.Error("failed to close cleanly", "error", err)
		if cmdErr == nil {
			cmdErr = err
		}
	}
	return cmdErr
}

func addCommandFlags(name string, fs *pflag.FlagSet) {
	switch name {
	case "sync":
		fs.Bool("force", false, "overwrite a newer remote snapshot")
		fs.String("resolve", "", "settle a conflict: use_cloud or keep_local")
	case "stats":
		fs.Int("days", 7, "number of days to show")
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

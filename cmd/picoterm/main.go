// Package main implements a serial console that runs commands on the
// command loop of a board and prints the replies.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/cli"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/config"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/console"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/options"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	os.Exit(run(app.Context(), os.Args, os.Stdout))
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	opts, err := cli.ParseConsoleFlags(args)
	logger := config.CreateLogger(opts.Flags, nil)
	if err != nil {
		var usageErr *cli.UsageError
		if errors.As(err, &usageErr) {
			logger.Error(usageErr.Error())
			usageErr.ShowUsage()
		} else {
			logger.Error(err.Error())
		}
		return 1
	}

	config.PrintBanner(logger, opts.Flags, "picoterm", version, commit, date)

	c, err := console.Open(logger, opts.Port, opts.Baud)
	if err != nil {
		logger.Error("Opening console failed", log.Err(err))
		return 1
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Closing console failed", log.Err(err))
		}
	}()

	if err := execute(ctx, logger, c, opts, stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Operation cancelled")
		} else {
			logger.Error("Command failed", log.Err(err))
		}
		return 1
	}
	return 0
}

// execute synchronizes with the command loop and runs all commands in order.
func execute(ctx context.Context, logger *log.Logger, c *console.Console, opts options.Console, stdout io.Writer) error {
	c.Timeout = opts.Timeout
	if err := c.Sync(ctx); err != nil {
		return err
	}

	for _, arg := range opts.Commands {
		key, input, err := console.ParseCommand(arg)
		if err != nil {
			return err
		}

		reply, err := c.Command(ctx, key, input)
		if err != nil {
			return err
		}
		logger.Debug("Command done", log.String("command", arg), log.Int("bytes", len(reply)))
		if _, err := fmt.Fprint(stdout, strings.ReplaceAll(reply, "\r\n", "\n")); err != nil {
			return fmt.Errorf("writing reply: %w", err)
		}
	}
	return nil
}

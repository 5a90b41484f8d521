// Package main implements the converter of a firmware binary into the SRAM
// initialization files of the picorv32 SoC.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/cli"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/config"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/converter"
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

// run executes the tool and returns the exit code. Logs and the size note
// are written to stdout.
func run(ctx context.Context, args []string, stdout io.Writer) int {
	opts, err := cli.ParseFlags(args)
	logger := config.CreateLogger(opts.Flags, stdout)
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

	config.PrintBanner(logger, opts.Flags, "conv_to_init", version, commit, date)

	result, err := converter.New(logger).Convert(ctx, opts)
	if err != nil {
		var overflow *converter.OverflowError
		switch {
		case errors.As(err, &overflow):
			logger.Error("Program is too large",
				log.Int("bytes", overflow.Size),
				log.Int("capacity", overflow.Capacity))
			logger.Error("And don't forget to leave room for the stack")
		case errors.Is(err, context.Canceled):
			logger.Info("Operation cancelled")
		default:
			logger.Error("Conversion failed", log.Err(err))
		}
		return 1
	}

	if !opts.Quiet {
		fmt.Fprintf(stdout, "NOTE: program occupies %d bytes\n", result.Size)
	}
	return 0
}

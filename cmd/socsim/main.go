// Package main implements a simulator of the picorv32 SoC that runs the
// firmware command loop with the terminal as the UART.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/cli"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/config"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/monitor"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/options"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/peripheral"
	"github.com/pkg/term"
	"github.com/retroenv/retrogolib/app"
	"github.com/retroenv/retrogolib/log"
)

const (
	terminalDevice = "/dev/tty"
	pollInterval   = time.Millisecond
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	os.Exit(run(app.Context(), os.Args, os.Stdin, os.Stdout))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) int {
	opts, err := cli.ParseSimulatorFlags(args)
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

	config.PrintBanner(logger, opts.Flags, "socsim", version, commit, date)

	input := stdin
	if opts.Raw {
		t, err := term.Open(terminalDevice, term.CBreakMode)
		if err != nil {
			logger.Error("Opening terminal failed", log.String("device", terminalDevice), log.Err(err))
			return 1
		}
		defer func() {
			_ = t.Restore()
			_ = t.Close()
		}()
		input = t
	}

	if err := simulate(ctx, logger, opts, input, stdout); err != nil {
		logger.Error("Simulation failed", log.Err(err))
		return 1
	}
	return 0
}

// simulate runs the command loop until the context is cancelled or the
// input is exhausted.
func simulate(ctx context.Context, logger *log.Logger, opts options.Simulator, input io.Reader, output io.Writer) error {
	sim, err := peripheral.NewSimulation(peripheral.SimConfig{
		ClockFrequency: opts.ClockFrequency,
		AddressWidth:   opts.AddressWidth,
		Input:          input,
		Output:         output,
		CRLF:           true,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sim.UART.OnEOF = cancel
	sim.Bus.Fault = func(addr uint32, err error) {
		logger.Warn("Bus fault", log.Hex("address", addr), log.Err(err))
	}
	sim.LEDs.OnChange = func(value uint32) {
		logger.Debug("LEDs changed", log.Hex("value", uint8(value)))
	}
	sim.RGBLED.OnChange = func(value uint32) {
		logger.Debug("RGB LED changed", log.Hex("colour", value))
	}

	cfg := monitor.DefaultConfig(uint32(opts.ClockFrequency))
	cfg.PollInterval = pollInterval
	m := monitor.New(logger, cfg, sim.Bus, sim.Counter)

	err = m.Run(ctx)
	if errors.Is(err, context.Canceled) {
		if uartErr := sim.UART.Err(); uartErr != nil {
			return uartErr
		}
		logger.Debug("Simulation stopped")
		return nil
	}
	return err
}

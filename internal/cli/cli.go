// Package cli handles command line interface logic
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/options"
)

const (
	convUsage    = "usage: conv_to_init [options] <clk_freq> <sram_addr_width> <input_file>"
	simUsage     = "usage: socsim [options]"
	consoleUsage = "usage: picoterm [options] -p <port> <command>..."

	defaultTimeout = 5 * time.Second
)

var negativeNumber = regexp.MustCompile(`^-[0-9]+$`)

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	usage string
	msg   string
}

func (e *UsageError) Error() string {
	if e.msg == "" {
		return "invalid arguments"
	}
	return e.msg
}

// ShowUsage prints the usage line and the flag defaults.
func (e *UsageError) ShowUsage() {
	fmt.Printf("%s\n\n", e.usage)
	if e.flags != nil {
		e.flags.SetOutput(os.Stdout)
		e.flags.PrintDefaults()
		fmt.Println()
	}
}

// ParseFlags parses the image converter command line, args[0] being the
// program name. Numeric arguments are converted like C atoi: the leading
// decimal digits count and text without any yields 0, which the parameter
// validation rejects.
func ParseFlags(args []string) (options.Program, error) {
	flags := newFlagSet(args)
	var opts options.Program
	readFlags(flags, &opts.Flags)
	flags.StringVar(&opts.OutputDir, "o", options.DefaultOutputDir, "directory to write the init and parameter files to")
	flags.BoolVar(&opts.Verify, "verify", false, "verify the written lane files by merging them back")

	positional, err := parse(flags, args[1:])
	if err != nil {
		return opts, &UsageError{flags: flags, usage: convUsage, msg: err.Error()}
	}
	if len(positional) > 3 {
		if err := validateArgs(flags, convUsage, positional[3:]); err != nil {
			return opts, err
		}
	}
	if len(positional) != 3 {
		return opts, &UsageError{
			flags: flags,
			usage: convUsage,
			msg:   fmt.Sprintf("expected 3 arguments, got %d", len(positional)),
		}
	}

	opts.ClockFrequency = atoi(positional[0])
	opts.AddressWidth = atoi(positional[1])
	opts.Input = positional[2]
	return opts, nil
}

// ParseSimulatorFlags parses the SoC simulator command line.
func ParseSimulatorFlags(args []string) (options.Simulator, error) {
	flags := newFlagSet(args)
	var opts options.Simulator
	readFlags(flags, &opts.Flags)
	flags.IntVar(&opts.ClockFrequency, "clk", 27000000, "simulated CPU clock frequency in Hz")
	flags.IntVar(&opts.AddressWidth, "w", 13, "SRAM word address width")
	flags.BoolVar(&opts.Raw, "raw", false, "read single key presses from the terminal")

	positional, err := parse(flags, args[1:])
	if err != nil {
		return opts, &UsageError{flags: flags, usage: simUsage, msg: err.Error()}
	}
	if len(positional) != 0 {
		return opts, &UsageError{flags: flags, usage: simUsage, msg: "unexpected arguments: " + strings.Join(positional, " ")}
	}
	if opts.ClockFrequency <= 0 {
		return opts, fmt.Errorf("clk must be positive, got %d", opts.ClockFrequency)
	}
	return opts, nil
}

// ParseConsoleFlags parses the serial console command line.
func ParseConsoleFlags(args []string) (options.Console, error) {
	flags := newFlagSet(args)
	var opts options.Console
	readFlags(flags, &opts.Flags)
	flags.StringVar(&opts.Port, "p", "", "serial port of the board")
	flags.IntVar(&opts.Baud, "b", 115200, "baud rate")
	flags.DurationVar(&opts.Timeout, "t", defaultTimeout, "time to wait for a reply")

	positional, err := parse(flags, args[1:])
	if err != nil {
		return opts, &UsageError{flags: flags, usage: consoleUsage, msg: err.Error()}
	}
	if opts.Port == "" || len(positional) == 0 {
		return opts, &UsageError{flags: flags, usage: consoleUsage, msg: "port and at least one command required"}
	}
	if err := validateArgs(flags, consoleUsage, positional); err != nil {
		return opts, err
	}
	opts.Commands = positional
	return opts, nil
}

func newFlagSet(args []string) *flag.FlagSet {
	name := "tool"
	if len(args) > 0 {
		name = args[0]
	}
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	return flags
}

func readFlags(flags *flag.FlagSet, opts *options.Flags) {
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}

// parse parses the flags and returns the positional arguments. A negative
// number ends flag parsing so that it is reported as an invalid value instead
// of an unknown flag.
func parse(flags *flag.FlagSet, args []string) ([]string, error) {
	end := len(args)
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if negativeNumber.MatchString(arg) {
			end = i
			break
		}
	}

	if err := flags.Parse(args[:end]); err != nil {
		return nil, err
	}
	positional := append([]string{}, flags.Args()...)
	return append(positional, args[end:]...), nil
}

// validateArgs checks that no flags follow the positional arguments.
func validateArgs(flags *flag.FlagSet, usage string, args []string) error {
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") && !negativeNumber.MatchString(arg) {
			return &UsageError{
				flags: flags,
				usage: usage,
				msg:   fmt.Sprintf("Potential argument %s found after positional arguments, please pass all options first", arg),
			}
		}
	}
	return nil
}

// atoi converts the optionally signed decimal prefix of s after leading
// white space. Values that overflow an int saturate.
func atoi(s string) int {
	s = strings.TrimLeft(s, " \t\n\v\f\r")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}

	v, err := strconv.Atoi(s[:end])
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			if s[0] == '-' {
				return math.MinInt
			}
			return math.MaxInt
		}
		return 0
	}
	return v
}

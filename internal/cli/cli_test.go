package cli

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/options"
	"github.com/retroenv/retrogolib/assert"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		clock     int
		width     int
		input     string
		outputDir string
	}{
		{
			name:      "positional only",
			args:      []string{"conv_to_init", "27000000", "13", "firmware.bin"},
			clock:     27000000,
			width:     13,
			input:     "firmware.bin",
			outputDir: options.DefaultOutputDir,
		},
		{
			name:      "output directory",
			args:      []string{"conv_to_init", "-o", "build", "100000000", "10", "fw.bin"},
			clock:     100000000,
			width:     10,
			input:     "fw.bin",
			outputDir: "build",
		},
		{
			name:      "negative clock is kept for validation",
			args:      []string{"conv_to_init", "-5", "10", "fw.bin"},
			clock:     -5,
			width:     10,
			input:     "fw.bin",
			outputDir: options.DefaultOutputDir,
		},
		{
			name:      "non numeric width becomes zero",
			args:      []string{"conv_to_init", "1000", "abc", "fw.bin"},
			clock:     1000,
			width:     0,
			input:     "fw.bin",
			outputDir: options.DefaultOutputDir,
		},
		{
			name:      "numeric prefix",
			args:      []string{"conv_to_init", "27000000Hz", "13abc", "fw.bin"},
			clock:     27000000,
			width:     13,
			input:     "fw.bin",
			outputDir: options.DefaultOutputDir,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseFlags(tt.args)
			assert.NoError(t, err)
			assert.Equal(t, tt.clock, opts.ClockFrequency)
			assert.Equal(t, tt.width, opts.AddressWidth)
			assert.Equal(t, tt.input, opts.Input)
			assert.Equal(t, tt.outputDir, opts.OutputDir)
		})
	}
}

func TestParseFlagsBehavior(t *testing.T) {
	opts, err := ParseFlags([]string{"conv_to_init", "-q", "-verify", "-debug", "1", "2", "fw.bin"})
	assert.NoError(t, err)
	assert.True(t, opts.Quiet)
	assert.True(t, opts.Debug)
	assert.True(t, opts.Verify)
}

func TestParseFlagsUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no arguments", args: []string{"conv_to_init"}},
		{name: "missing input", args: []string{"conv_to_init", "1", "2"}},
		{name: "too many", args: []string{"conv_to_init", "1", "2", "a.bin", "b.bin"}},
		{name: "flag after positional", args: []string{"conv_to_init", "1", "2", "a.bin", "-q"}},
		{name: "unknown flag", args: []string{"conv_to_init", "-x", "1", "2", "a.bin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFlags(tt.args)
			var usageErr *UsageError
			assert.True(t, errors.As(err, &usageErr))
		})
	}
}

func TestParseSimulatorFlags(t *testing.T) {
	opts, err := ParseSimulatorFlags([]string{"socsim"})
	assert.NoError(t, err)
	assert.Equal(t, 27000000, opts.ClockFrequency)
	assert.Equal(t, 13, opts.AddressWidth)
	assert.False(t, opts.Raw)

	opts, err = ParseSimulatorFlags([]string{"socsim", "-clk", "50000000", "-raw"})
	assert.NoError(t, err)
	assert.Equal(t, 50000000, opts.ClockFrequency)
	assert.True(t, opts.Raw)

	_, err = ParseSimulatorFlags([]string{"socsim", "-clk", "0"})
	assert.Error(t, err)

	_, err = ParseSimulatorFlags([]string{"socsim", "extra"})
	var usageErr *UsageError
	assert.True(t, errors.As(err, &usageErr))
}

func TestParseConsoleFlags(t *testing.T) {
	opts, err := ParseConsoleFlags([]string{"picoterm", "-p", "/dev/ttyUSB1", "-t", "2s", "g", "l=ff8800"})
	assert.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", opts.Port)
	assert.Equal(t, 115200, opts.Baud)
	assert.Equal(t, 2*time.Second, opts.Timeout)
	assert.Equal(t, 2, len(opts.Commands))
	assert.Equal(t, "l=ff8800", opts.Commands[1])

	_, err = ParseConsoleFlags([]string{"picoterm", "g"})
	var usageErr *UsageError
	assert.True(t, errors.As(err, &usageErr))

	_, err = ParseConsoleFlags([]string{"picoterm", "-p", "/dev/ttyUSB1"})
	assert.True(t, errors.As(err, &usageErr))
}

func TestAtoi(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "13", want: 13},
		{in: "13abc", want: 13},
		{in: "  42", want: 42},
		{in: "+7", want: 7},
		{in: "-5x", want: -5},
		{in: "abc", want: 0},
		{in: "", want: 0},
		{in: "-", want: 0},
		{in: "1 2", want: 1},
		{in: "99999999999999999999", want: math.MaxInt},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, atoi(tt.in), "input %q", tt.in)
	}
}

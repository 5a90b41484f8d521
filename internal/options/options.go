// Package options contains the program options.
package options

import (
	"time"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/initfile"
)

// DefaultOutputDir is where the generated files are written, relative to
// the working directory the tool is invoked from.
const DefaultOutputDir = "../src"

// Flags contains behavior options shared by all tools.
type Flags struct {
	Debug bool `flag:"debug" usage:"enable debug logging"`
	Quiet bool `flag:"q" usage:"quiet mode"`
}

// Program options of the image converter.
type Program struct {
	initfile.Parameters
	Flags

	Input     string
	OutputDir string `flag:"o" usage:"directory to write the init and parameter files to"`
	Verify    bool   `flag:"verify" usage:"verify the written lane files by merging them back"`
}

// Simulator options of the SoC simulator.
type Simulator struct {
	Flags

	ClockFrequency int  `flag:"clk" usage:"simulated CPU clock frequency in Hz" default:"27000000"`
	AddressWidth   int  `flag:"w" usage:"SRAM word address width" default:"13"`
	Raw            bool `flag:"raw" usage:"read single key presses from the terminal"`
}

// Console options of the serial console.
type Console struct {
	Flags

	Port     string        `flag:"p" usage:"serial port of the board"`
	Baud     int           `flag:"b" usage:"baud rate" default:"115200"`
	Timeout  time.Duration `flag:"t" usage:"time to wait for a reply" default:"5s"`
	Commands []string
}

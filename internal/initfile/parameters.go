package initfile

import (
	"fmt"
	"io"
)

// Parameters are the SoC build parameters shared between the firmware image
// and the Verilog sources.
type Parameters struct {
	ClockFrequency int // CPU clock in Hz
	AddressWidth   int // word address width of the SRAM
}

// ArgumentError reports an invalid parameter value.
type ArgumentError struct {
	Name  string
	Value int
	Limit int // upper bound that was exceeded, 0 if the value was not positive
}

func (e *ArgumentError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("%s must be at most %d, got %d", e.Name, e.Limit, e.Value)
	}
	return fmt.Sprintf("%s must be positive, got %d", e.Name, e.Value)
}

// Validate checks that both parameters are strictly positive and that the
// capacity can be represented.
func (p Parameters) Validate() error {
	if p.ClockFrequency <= 0 {
		return &ArgumentError{Name: "clk_freq", Value: p.ClockFrequency}
	}
	if p.AddressWidth <= 0 {
		return &ArgumentError{Name: "sram_addr_width", Value: p.AddressWidth}
	}
	if p.AddressWidth > MaxAddressWidth {
		return &ArgumentError{Name: "sram_addr_width", Value: p.AddressWidth, Limit: MaxAddressWidth}
	}
	return nil
}

// Capacity returns the SRAM size in bytes.
func (p Parameters) Capacity() int {
	return Capacity(p.AddressWidth)
}

// WriteParameters writes the Verilog localparam declarations for the
// parameters, address width first.
func WriteParameters(w io.Writer, p Parameters) error {
	if _, err := fmt.Fprintf(w, "localparam SRAM_ADDR_WIDTH = %d;\n", p.AddressWidth); err != nil {
		return fmt.Errorf("writing address width: %w", err)
	}
	if _, err := fmt.Fprintf(w, "localparam CLK_FREQ = %d;\n", p.ClockFrequency); err != nil {
		return fmt.Errorf("writing clock frequency: %w", err)
	}
	return nil
}

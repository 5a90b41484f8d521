package initfile

import (
	"bytes"
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestWriteParameters(t *testing.T) {
	var buf bytes.Buffer
	err := WriteParameters(&buf, Parameters{ClockFrequency: 27000000, AddressWidth: 13})
	assert.NoError(t, err)
	assert.Equal(t, "localparam SRAM_ADDR_WIDTH = 13;\nlocalparam CLK_FREQ = 27000000;\n", buf.String())
}

func TestParametersValidate(t *testing.T) {
	tests := []struct {
		name        string
		params      Parameters
		errContains string
	}{
		{name: "valid", params: Parameters{ClockFrequency: 100000000, AddressWidth: 10}},
		{name: "zero clock", params: Parameters{ClockFrequency: 0, AddressWidth: 10}, errContains: "clk_freq"},
		{name: "negative clock", params: Parameters{ClockFrequency: -1, AddressWidth: 10}, errContains: "clk_freq"},
		{name: "zero width", params: Parameters{ClockFrequency: 1, AddressWidth: 0}, errContains: "sram_addr_width"},
		{name: "negative width", params: Parameters{ClockFrequency: 1, AddressWidth: -3}, errContains: "sram_addr_width"},
		{name: "width too large", params: Parameters{ClockFrequency: 1, AddressWidth: 61}, errContains: "at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errContains)
		})
	}
}

func TestParametersValidateNamesArgument(t *testing.T) {
	err := Parameters{ClockFrequency: 1, AddressWidth: 0}.Validate()
	var argErr *ArgumentError
	assert.True(t, errors.As(err, &argErr))
	assert.Equal(t, "sram_addr_width", argErr.Name)
	assert.Equal(t, 0, argErr.Value)
}

func TestParametersCapacity(t *testing.T) {
	p := Parameters{ClockFrequency: 100000000, AddressWidth: 10}
	assert.Equal(t, 4096, p.Capacity())
}

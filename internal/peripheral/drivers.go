// Package peripheral implements drivers for the memory mapped peripherals of
// the SoC on top of a register bus, and simulated devices backing them.
package peripheral

import (
	"context"
	"time"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/soc"
)

const hexDigits = "0123456789abcdef"

// LEDs drives the board LEDs.
type LEDs struct {
	reg soc.Register
}

// NewLEDs returns the LED driver.
func NewLEDs(bus soc.Bus) *LEDs {
	return &LEDs{reg: soc.NewRegister(bus, soc.LEDAddr)}
}

func (l *LEDs) Set(value byte) { l.reg.Write8(value) }
func (l *LEDs) Get() byte      { return l.reg.Read8() }

// RGBLED drives the WS2812B RGB LED.
type RGBLED struct {
	reg soc.Register
}

// NewRGBLED returns the RGB LED driver.
func NewRGBLED(bus soc.Bus) *RGBLED {
	return &RGBLED{reg: soc.NewRegister(bus, soc.RGBLEDAddr)}
}

// Set sets the LED colour, only the low 24 bits are used.
func (r *RGBLED) Set(colour uint32) {
	r.reg.Write32(colour & 0xFFFFFF)
}

// UART drives the serial port. Reads of the data register return
// soc.UARTEmpty while no character was received.
type UART struct {
	divisor soc.Register
	data    soc.Register

	// PollInterval is slept between polls of an empty receiver.
	PollInterval time.Duration
}

// NewUART returns the UART driver.
func NewUART(bus soc.Bus) *UART {
	return &UART{
		divisor: soc.NewRegister(bus, soc.UARTDivisorAddr),
		data:    soc.NewRegister(bus, soc.UARTDataAddr),
	}
}

// SetDivisor sets the baud rate clock divisor.
func (u *UART) SetDivisor(divisor uint32) {
	u.divisor.Write32(divisor)
}

// GetChar blocks until a character is received.
func (u *UART) GetChar() byte {
	c, _ := u.GetCharContext(context.Background())
	return c
}

// GetCharContext blocks until a character is received or the context is done.
func (u *UART) GetCharContext(ctx context.Context) (byte, error) {
	for {
		if c := u.data.Read8(); c != soc.UARTEmpty {
			return c, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if u.PollInterval > 0 {
			time.Sleep(u.PollInterval)
		}
	}
}

func (u *UART) PutChar(c byte) {
	u.data.Write8(c)
}

func (u *UART) Puts(s string) {
	for i := range len(s) {
		u.data.Write8(s[i])
	}
}

// PrintHex prints a value as 8 lowercase hex digits.
func (u *UART) PrintHex(value uint32) {
	for range 8 {
		u.PutChar(hexDigits[value>>28])
		value <<= 4
	}
}

// GetHex reads hex digits until a carriage return, see GetHexContext.
func (u *UART) GetHex() uint32 {
	v, _ := u.GetHexContext(context.Background())
	return v
}

// GetHexContext reads hex digits until a carriage return. Digits are echoed,
// other characters are ignored and the carriage return is echoed as a line
// feed. Overflowing digits shift out of the 32-bit result.
func (u *UART) GetHexContext(ctx context.Context) (uint32, error) {
	var value uint32
	for {
		c, err := u.GetCharContext(ctx)
		if err != nil {
			return value, err
		}

		switch {
		case c >= '0' && c <= '9':
			value = value<<4 | uint32(c-'0')
		case c >= 'a' && c <= 'f':
			value = value<<4 | uint32(c-'a'+10)
		case c >= 'A' && c <= 'F':
			value = value<<4 | uint32(c-'A'+10)
		case c == '\r':
			u.PutChar('\n')
			return value, nil
		default:
			continue
		}
		u.PutChar(c)
	}
}

// Timer drives the countdown timer. The counter decrements once per clock
// cycle until it reaches zero.
type Timer struct {
	reg soc.Register

	// PollInterval is slept between polls of a running counter in Delay.
	PollInterval time.Duration
}

// NewTimer returns the countdown timer driver.
func NewTimer(bus soc.Bus) *Timer {
	return &Timer{reg: soc.NewRegister(bus, soc.TimerAddr)}
}

// WriteByteLane writes one byte lane (0-3) of the counter.
func (t *Timer) WriteByteLane(lane int, value byte) {
	t.reg.At(uint32(lane & 3)).Write8(value)
}

// WriteHalfWord writes the half-word at byte offset 0 or 2 of the counter.
func (t *Timer) WriteHalfWord(offset int, value uint16) {
	t.reg.At(uint32(offset & 2)).Write16(value)
}

func (t *Timer) Write(value uint32) { t.reg.Write32(value) }
func (t *Timer) Read() uint32       { return t.reg.Read32() }

// Delay loads the counter and blocks until it reaches zero.
func (t *Timer) Delay(cycles uint32) {
	_ = t.DelayContext(context.Background(), cycles)
}

// DelayContext loads the counter and blocks until it reaches zero or the
// context is done.
func (t *Timer) DelayContext(ctx context.Context, cycles uint32) error {
	t.Write(cycles)
	for t.Read() != 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t.PollInterval > 0 {
			time.Sleep(t.PollInterval)
		}
	}
	return nil
}

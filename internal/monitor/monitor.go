// Package monitor implements the single character command loop of the SoC
// firmware against the peripheral drivers.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/peripheral"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/soc"
	"github.com/retroenv/retrogolib/log"
)

// Prompt is the first line of the command menu.
const Prompt = "Enter command:\r\n"

// Menu is printed before every command is read.
const Menu = Prompt +
	"   c: countdown timer test\r\n" +
	"   d: delay 3 seconds\r\n" +
	"   e: endian test\r\n" +
	"   g: read LED value\r\n" +
	"   i: increment LED value\r\n" +
	"   l: set RGB LED\r\n" +
	"   m: memory test\r\n" +
	"   r: read clock\r\n"

// InitialLEDs is the LED value set at startup.
const InitialLEDs = 6

const memTestWords = 512

var memTestPatterns = [...]uint32{0, 0xffffffff, 0xaaaaaaaa, 0x55555555, 0xdeadbeef}

// Clock returns the free running cycle counter.
type Clock interface {
	Cycles() uint32
}

// Config configures the monitor.
type Config struct {
	ClockFrequency uint32
	MemTestBase    uint32        // start of the RAM window used by the memory test
	ScratchAddr    uint32        // RAM word used by the endian test
	PollInterval   time.Duration // sleep between polls of the UART and timer
}

// DefaultConfig returns the configuration for the given clock frequency.
// The RAM locations fit into the smallest supported SRAM.
func DefaultConfig(clockFrequency uint32) Config {
	return Config{
		ClockFrequency: clockFrequency,
		MemTestBase:    0x1000,
		ScratchAddr:    0x0ffc,
	}
}

// Monitor runs commands received over the UART.
type Monitor struct {
	logger *log.Logger
	cfg    Config
	bus    soc.Bus
	clock  Clock

	uart  *peripheral.UART
	leds  *peripheral.LEDs
	rgb   *peripheral.RGBLED
	timer *peripheral.Timer
}

// New returns a monitor driving the peripherals on the given bus.
func New(logger *log.Logger, cfg Config, bus soc.Bus, clock Clock) *Monitor {
	m := &Monitor{
		logger: logger,
		cfg:    cfg,
		bus:    bus,
		clock:  clock,
		uart:   peripheral.NewUART(bus),
		leds:   peripheral.NewLEDs(bus),
		rgb:    peripheral.NewRGBLED(bus),
		timer:  peripheral.NewTimer(bus),
	}
	m.uart.PollInterval = cfg.PollInterval
	m.timer.PollInterval = cfg.PollInterval
	return m
}

// Banner initializes the LEDs and the UART and prints the start banner.
func (m *Monitor) Banner() {
	m.leds.Set(InitialLEDs)
	m.uart.SetDivisor(soc.UARTDivisor(int(m.cfg.ClockFrequency), soc.DefaultBaudRate))

	m.uart.Puts("\r\nStarting, CLK_FREQ: 0x")
	m.uart.PrintHex(m.cfg.ClockFrequency)
	m.uart.Puts("\r\n\r\n")
}

// Run prints the banner and executes commands until the context is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.Banner()
	for {
		if err := m.Step(ctx); err != nil {
			return err
		}
	}
}

// Step prints the menu, reads one command character and executes it.
func (m *Monitor) Step(ctx context.Context) error {
	m.uart.Puts(Menu)
	ch, err := m.uart.GetCharContext(ctx)
	if err != nil {
		return fmt.Errorf("reading command: %w", err)
	}
	m.logger.Debug("Executing command", log.String("key", string(rune(ch))))

	switch ch {
	case 'c':
		m.timerTest()
	case 'd':
		if err := m.timer.DelayContext(ctx, 3*m.cfg.ClockFrequency); err != nil {
			return fmt.Errorf("delaying: %w", err)
		}
		m.uart.Puts("delay done\r\n")
	case 'e':
		m.endianTest()
	case 'g':
		m.uart.Puts("LED = ")
		m.uart.PrintHex(uint32(m.leds.Get()))
		m.uart.Puts("\r\n")
	case 'i':
		m.leds.Set(m.leds.Get() + 1)
	case 'l':
		m.uart.Puts(" enter 6 hex digits: ")
		colour, err := m.uart.GetHexContext(ctx)
		if err != nil {
			return fmt.Errorf("reading colour: %w", err)
		}
		m.rgb.Set(colour)
		m.uart.Puts("\r\n")
	case 'm':
		if errs := m.memoryTest(); errs > 0 {
			m.logger.Warn("Memory test failed", log.Int("errors", errs))
			m.uart.Puts("memory test FAILED.\r\n")
		} else {
			m.uart.Puts("memory test PASSED.\r\n")
		}
	case 'r':
		m.uart.Puts("time is ")
		m.uart.PrintHex(m.clock.Cycles())
		m.uart.Puts("\r\n")
	default:
		m.uart.Puts("  Try again...\r\n")
	}
	return nil
}

// timerTest checks that the timer register honours byte and half-word
// lane writes. Bit 0 of the failure mask is set when the byte write to the
// most significant lane did not land, bit 1 when the half-word write to
// the upper half did not clear it.
func (m *Monitor) timerTest() {
	var mask uint32

	m.timer.WriteByteLane(3, 0xff)
	val := m.timer.Read()
	if val == 0xff000000 || val < 0xfe000000 {
		mask = 1
	}

	m.timer.WriteHalfWord(2, 0)
	if m.timer.Read() > 0xffff {
		mask |= 2
	}

	m.uart.Puts("Countdown timer test ")
	if mask != 0 {
		m.uart.Puts("FAILED, mask = ")
		m.uart.PrintHex(mask)
		m.uart.Puts("\r\n")
		return
	}
	m.uart.Puts("PASSED\r\n")
}

func (m *Monitor) endianTest() {
	addr := m.cfg.ScratchAddr
	m.bus.Write32(addr, 0x44332211)
	byte0 := m.bus.Read8(addr)
	byte3 := m.bus.Read8(addr + 3)
	m.bus.Write8(addr+3, 0xab)
	word := m.bus.Read32(addr)

	ok := byte0 == 0x11 && byte3 == 0x44 && word == 0xab332211

	m.uart.Puts("\r\nEndian test: at ")
	m.uart.PrintHex(addr)
	m.uart.Puts(", byte0: ")
	m.uart.PrintHex(uint32(byte0))
	m.uart.Puts(", byte3: ")
	m.uart.PrintHex(uint32(byte3))
	m.uart.Puts(",\r\n     word: ")
	m.uart.PrintHex(word)
	if ok {
		m.uart.Puts(" [PASSED]\r\n")
	} else {
		m.uart.Puts(" [FAILED]\r\n")
	}
}

// memoryTest fills the test window with every pattern and then with an
// address dependent pattern, returning the number of mismatching reads.
func (m *Monitor) memoryTest() int {
	errs := 0
	fill := func(value func(i uint32) uint32) {
		for i := range uint32(memTestWords) {
			m.bus.Write32(m.cfg.MemTestBase+4*i, value(i))
		}
		for i := range uint32(memTestWords) {
			if got := m.bus.Read32(m.cfg.MemTestBase + 4*i); got != value(i) {
				errs++
				m.logger.Debug("Memory mismatch",
					log.Hex("address", m.cfg.MemTestBase+4*i),
					log.Hex("expected", value(i)),
					log.Hex("got", got))
			}
		}
	}

	for _, pattern := range memTestPatterns {
		fill(func(uint32) uint32 { return pattern })
	}
	fill(func(i uint32) uint32 { return i + i<<17 })
	return errs
}

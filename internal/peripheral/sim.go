package peripheral

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/initfile"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/soc"
)

// MinAddressWidth and MaxAddressWidth bound the simulated SRAM size.
const (
	MinAddressWidth = 11
	MaxAddressWidth = 20
)

// SimLatch is a plain storage register, used for the LEDs and the RGB LED.
type SimLatch struct {
	mask  uint32
	value uint32

	// OnChange is called with the new value after every write that changes it.
	OnChange func(value uint32)
}

// NewSimLatch returns a latch that keeps the bits selected by mask.
func NewSimLatch(mask uint32) *SimLatch {
	return &SimLatch{mask: mask}
}

// Value returns the latched value.
func (l *SimLatch) Value() uint32 {
	return l.value
}

func (l *SimLatch) ReadWord(uint32) uint32 {
	return l.value
}

func (l *SimLatch) WriteWord(_ uint32, value uint32, strobe uint8) {
	old := l.value
	l.value = soc.MergeWord(l.value, value, strobe) & l.mask
	if l.value != old && l.OnChange != nil {
		l.OnChange(l.value)
	}
}

// SimUART is a UART whose receiver is fed from a reader and whose
// transmitter writes to a writer. Offset 0 is the divisor register,
// offset 4 the data register.
type SimUART struct {
	out     io.Writer
	rx      chan byte
	divisor uint32

	mu   sync.Mutex
	err  error
	done chan struct{}

	// OnEOF is called when the data register is read while the receiver is
	// empty and the input is exhausted, so no character will ever arrive.
	OnEOF func()
}

// NewSimUART starts receiving from in. Line feeds are translated to carriage
// returns when crlf is set, matching what a serial terminal sends for Enter.
func NewSimUART(in io.Reader, out io.Writer, crlf bool) *SimUART {
	u := &SimUART{
		out:  out,
		rx:   make(chan byte, 256),
		done: make(chan struct{}),
	}
	go u.receive(bufio.NewReader(in), crlf)
	return u
}

func (u *SimUART) receive(r *bufio.Reader, crlf bool) {
	defer close(u.done)
	for {
		c, err := r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				u.mu.Lock()
				u.err = err
				u.mu.Unlock()
			}
			return
		}
		if crlf && c == '\n' {
			c = '\r'
		}
		u.rx <- c
	}
}

// Done is closed when the input is exhausted.
func (u *SimUART) Done() <-chan struct{} {
	return u.done
}

// Pending returns the number of received characters not read yet.
func (u *SimUART) Pending() int {
	return len(u.rx)
}

// Err returns the input error that stopped the receiver, nil on EOF.
func (u *SimUART) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// Divisor returns the last written baud rate divisor.
func (u *SimUART) Divisor() uint32 {
	return u.divisor
}

func (u *SimUART) ReadWord(offset uint32) uint32 {
	if offset == 0 {
		return u.divisor
	}
	select {
	case c := <-u.rx:
		return uint32(c)
	default:
	}

	if u.OnEOF != nil {
		select {
		case <-u.done:
			if len(u.rx) == 0 {
				u.OnEOF()
			}
		default:
		}
	}
	return soc.UARTEmpty
}

func (u *SimUART) WriteWord(offset uint32, value uint32, strobe uint8) {
	if offset == 0 {
		u.divisor = soc.MergeWord(u.divisor, value, strobe)
		return
	}
	if strobe&1 != 0 {
		_, _ = u.out.Write([]byte{byte(value)})
	}
}

// SimTimer is a countdown timer that decrements with the elapsed wall clock
// time at the simulated clock frequency, and by at least one per read.
type SimTimer struct {
	clockFrequency int
	now            func() time.Time
	last           time.Time
	value          uint32
}

// NewSimTimer returns a timer counting at the given frequency. A nil now
// function selects time.Now.
func NewSimTimer(clockFrequency int, now func() time.Time) *SimTimer {
	if now == nil {
		now = time.Now
	}
	return &SimTimer{
		clockFrequency: clockFrequency,
		now:            now,
		last:           now(),
	}
}

func (t *SimTimer) ReadWord(uint32) uint32 {
	now := t.now()
	cycles := uint64(now.Sub(t.last).Seconds() * float64(t.clockFrequency))
	t.last = now
	if cycles == 0 {
		cycles = 1
	}
	if cycles >= uint64(t.value) {
		t.value = 0
	} else {
		t.value -= uint32(cycles)
	}
	return t.value
}

func (t *SimTimer) WriteWord(_ uint32, value uint32, strobe uint8) {
	t.value = soc.MergeWord(t.value, value, strobe)
	t.last = t.now()
}

// SimCycleCounter models the free running cycle counter read by rdtime.
type SimCycleCounter struct {
	clockFrequency int
	now            func() time.Time
	start          time.Time
}

// NewSimCycleCounter returns a counter starting at zero.
func NewSimCycleCounter(clockFrequency int, now func() time.Time) *SimCycleCounter {
	if now == nil {
		now = time.Now
	}
	return &SimCycleCounter{clockFrequency: clockFrequency, now: now, start: now()}
}

// Cycles returns the low 32 bits of the elapsed clock cycles.
func (c *SimCycleCounter) Cycles() uint32 {
	elapsed := c.now().Sub(c.start).Seconds() * float64(c.clockFrequency)
	return uint32(uint64(elapsed))
}

// SimConfig configures a simulated SoC.
type SimConfig struct {
	ClockFrequency int
	AddressWidth   int
	Input          io.Reader
	Output         io.Writer
	CRLF           bool             // translate input line feeds to carriage returns
	Now            func() time.Time // nil selects time.Now
}

// Simulation is the simulated SoC with all peripherals mapped.
type Simulation struct {
	Bus     *soc.SimBus
	RAM     *soc.RAM
	LEDs    *SimLatch
	RGBLED  *SimLatch
	UART    *SimUART
	Timer   *SimTimer
	Counter *SimCycleCounter
}

// NewSimulation builds the memory map of the SoC on a simulated bus.
func NewSimulation(cfg SimConfig) (*Simulation, error) {
	if cfg.ClockFrequency <= 0 {
		return nil, fmt.Errorf("clock frequency must be positive, got %d", cfg.ClockFrequency)
	}
	if cfg.AddressWidth < MinAddressWidth || cfg.AddressWidth > MaxAddressWidth {
		return nil, fmt.Errorf("address width must be between %d and %d, got %d",
			MinAddressWidth, MaxAddressWidth, cfg.AddressWidth)
	}

	sim := &Simulation{
		Bus:     soc.NewSimBus(),
		RAM:     soc.NewRAM(initfile.Capacity(cfg.AddressWidth)),
		LEDs:    NewSimLatch(0xFF),
		RGBLED:  NewSimLatch(0xFFFFFF),
		UART:    NewSimUART(cfg.Input, cfg.Output, cfg.CRLF),
		Timer:   NewSimTimer(cfg.ClockFrequency, cfg.Now),
		Counter: NewSimCycleCounter(cfg.ClockFrequency, cfg.Now),
	}

	mappings := []struct {
		base   uint32
		size   uint32
		device soc.Device
	}{
		{soc.RAMBase, sim.RAM.Size(), sim.RAM},
		{soc.LEDAddr, 4, sim.LEDs},
		{soc.UARTDivisorAddr, 8, sim.UART},
		{soc.TimerAddr, 4, sim.Timer},
		{soc.RGBLEDAddr, 4, sim.RGBLED},
	}
	for _, m := range mappings {
		if err := sim.Bus.Map(m.base, m.size, m.device); err != nil {
			return nil, fmt.Errorf("building memory map: %w", err)
		}
	}
	return sim, nil
}

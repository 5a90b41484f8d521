package peripheral

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/soc"
	"github.com/retroenv/retrogolib/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestSimulation(t *testing.T, input string) (*Simulation, *bytes.Buffer, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Unix(0, 0)}
	var out bytes.Buffer
	sim, err := NewSimulation(SimConfig{
		ClockFrequency: 1000,
		AddressWidth:   MinAddressWidth,
		Input:          strings.NewReader(input),
		Output:         &out,
		Now:            clock.Now,
	})
	assert.NoError(t, err)
	return sim, &out, clock
}

func TestLEDs(t *testing.T) {
	sim, _, _ := newTestSimulation(t, "")
	var changes []uint32
	sim.LEDs.OnChange = func(v uint32) { changes = append(changes, v) }

	leds := NewLEDs(sim.Bus)
	leds.Set(6)
	leds.Set(leds.Get() + 1)
	leds.Set(7)

	assert.Equal(t, byte(7), leds.Get())
	assert.Equal(t, 2, len(changes))
	assert.Equal(t, uint32(7), sim.LEDs.Value())
}

func TestRGBLED(t *testing.T) {
	sim, _, _ := newTestSimulation(t, "")
	NewRGBLED(sim.Bus).Set(0x12ff8800)
	assert.Equal(t, uint32(0xff8800), sim.RGBLED.Value())
}

func TestUARTOutput(t *testing.T) {
	sim, out, _ := newTestSimulation(t, "")
	uart := NewUART(sim.Bus)

	uart.SetDivisor(soc.UARTDivisor(27000000, soc.DefaultBaudRate))
	assert.Equal(t, uint32(234), sim.UART.Divisor())

	uart.Puts("LED = ")
	uart.PrintHex(0xdeadbeef)
	uart.PutChar('!')
	assert.Equal(t, "LED = deadbeef!", out.String())
}

func TestUARTGetChar(t *testing.T) {
	sim, _, _ := newTestSimulation(t, "ab")
	uart := NewUART(sim.Bus)
	assert.Equal(t, byte('a'), uart.GetChar())
	assert.Equal(t, byte('b'), uart.GetChar())
}

func TestUARTGetCharContext(t *testing.T) {
	sim, _, _ := newTestSimulation(t, "")
	<-sim.UART.Done()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewUART(sim.Bus).GetCharContext(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestUARTGetHex(t *testing.T) {
	sim, out, _ := newTestSimulation(t, "1aZ\r")
	v := NewUART(sim.Bus).GetHex()
	assert.Equal(t, uint32(0x1a), v)
	assert.Equal(t, "1a\n", out.String())
}

func TestUARTGetHexUppercase(t *testing.T) {
	sim, _, _ := newTestSimulation(t, "FF8800\r")
	assert.Equal(t, uint32(0xff8800), NewUART(sim.Bus).GetHex())
}

func TestSimUARTTranslatesLineFeed(t *testing.T) {
	var out bytes.Buffer
	u := NewSimUART(strings.NewReader("5\n"), &out, true)
	<-u.Done()
	assert.Equal(t, 2, u.Pending())
	assert.Equal(t, uint32('5'), u.ReadWord(4))
	assert.Equal(t, uint32('\r'), u.ReadWord(4))
	assert.Equal(t, uint32(soc.UARTEmpty), u.ReadWord(4))
	assert.NoError(t, u.Err())
}

func TestTimerLanes(t *testing.T) {
	sim, _, _ := newTestSimulation(t, "")
	timer := NewTimer(sim.Bus)

	timer.WriteByteLane(3, 0xff)
	v := timer.Read()
	assert.True(t, v < 0xff000000 && v >= 0xfe000000)

	timer.WriteHalfWord(2, 0)
	assert.True(t, timer.Read() <= 0xffff)
}

func TestTimerCountsElapsedCycles(t *testing.T) {
	sim, _, clock := newTestSimulation(t, "")
	timer := NewTimer(sim.Bus)

	timer.Write(5000)
	clock.Advance(2 * time.Second)
	assert.Equal(t, uint32(3000), timer.Read())
	clock.Advance(10 * time.Second)
	assert.Equal(t, uint32(0), timer.Read())
	assert.Equal(t, uint32(0), timer.Read())
}

func TestTimerDelay(t *testing.T) {
	sim, _, _ := newTestSimulation(t, "")
	timer := NewTimer(sim.Bus)
	timer.Delay(50)
	assert.Equal(t, uint32(0), timer.Read())
}

func TestTimerDelayContext(t *testing.T) {
	sim, _, _ := newTestSimulation(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTimer(sim.Bus).DelayContext(ctx, 1<<30)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSimCycleCounter(t *testing.T) {
	clock := &fakeClock{now: time.Unix(100, 0)}
	counter := NewSimCycleCounter(27000000, clock.Now)
	assert.Equal(t, uint32(0), counter.Cycles())
	clock.Advance(time.Second)
	assert.Equal(t, uint32(27000000), counter.Cycles())
}

func TestNewSimulationValidation(t *testing.T) {
	_, err := NewSimulation(SimConfig{ClockFrequency: 0, AddressWidth: 13})
	assert.Error(t, err)
	_, err = NewSimulation(SimConfig{ClockFrequency: 1, AddressWidth: MaxAddressWidth + 1})
	assert.Error(t, err)
}

func TestSimUARTOnEOF(t *testing.T) {
	u := NewSimUART(strings.NewReader("x"), io.Discard, false)
	eof := 0
	u.OnEOF = func() { eof++ }
	<-u.Done()

	assert.Equal(t, uint32('x'), u.ReadWord(4))
	assert.Equal(t, 0, eof)
	assert.Equal(t, uint32(soc.UARTEmpty), u.ReadWord(4))
	assert.Equal(t, 1, eof)
}

// Package soc describes the memory map of the picorv32 SoC and provides the
// register bus abstraction that the peripheral drivers are written against.
package soc

import "math"

// Memory map of the SoC. All peripheral registers live in the I/O region.
const (
	RAMBase = 0x00000000
	IOBase  = 0x80000000

	LEDAddr         = 0x80000000 // byte
	UARTDivisorAddr = 0x80000008 // word
	UARTDataAddr    = 0x8000000C // byte, reads 0xFF when no data is available
	TimerAddr       = 0x80000010 // word, byte and half-word writable
	RGBLEDAddr      = 0x80000020 // word, 24-bit colour
)

// UARTEmpty is read from the UART data register when the receiver is empty.
const UARTEmpty = 0xFF

// DefaultBaudRate is the baud rate the firmware configures the UART for.
const DefaultBaudRate = 115200

// Bus gives access to memory and memory mapped registers at byte, half-word
// and word granularity. Multi-byte values are little-endian.
type Bus interface {
	Read8(addr uint32) uint8
	Write8(addr uint32, value uint8)
	Read16(addr uint32) uint16
	Write16(addr uint32, value uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, value uint32)
}

// Register is a handle for a single memory mapped register.
type Register struct {
	bus  Bus
	addr uint32
}

// NewRegister returns a register handle for the given address.
func NewRegister(bus Bus, addr uint32) Register {
	return Register{bus: bus, addr: addr}
}

// Addr returns the address of the register.
func (r Register) Addr() uint32 {
	return r.addr
}

// At returns a handle for the register at the given byte offset, used to
// access individual byte or half-word lanes of a wider register.
func (r Register) At(offset uint32) Register {
	return Register{bus: r.bus, addr: r.addr + offset}
}

func (r Register) Read8() uint8         { return r.bus.Read8(r.addr) }
func (r Register) Read16() uint16       { return r.bus.Read16(r.addr) }
func (r Register) Read32() uint32       { return r.bus.Read32(r.addr) }
func (r Register) Write8(value uint8)   { r.bus.Write8(r.addr, value) }
func (r Register) Write16(value uint16) { r.bus.Write16(r.addr, value) }
func (r Register) Write32(value uint32) { r.bus.Write32(r.addr, value) }

// UARTDivisor returns the UART clock divisor for the given baud rate,
// rounded to the nearest integer.
func UARTDivisor(clockFrequency, baud int) uint32 {
	if baud <= 0 {
		return 0
	}
	return uint32(math.Floor(float64(clockFrequency)/float64(baud) + 0.5))
}

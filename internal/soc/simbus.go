package soc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnmapped is reported for accesses to addresses without a device.
	ErrUnmapped = errors.New("unmapped address")
	// ErrMisaligned is reported for half-word or word accesses that are not
	// naturally aligned.
	ErrMisaligned = errors.New("misaligned access")
	// ErrOverlap is returned when a device is mapped over another one.
	ErrOverlap = errors.New("overlapping mapping")
)

// Device is a peripheral or memory attached to the simulated bus. Accesses
// arrive as aligned words relative to the device base, writes carry a byte
// strobe with bit n set for every valid byte lane n, as on the picorv32
// native memory interface.
type Device interface {
	ReadWord(offset uint32) uint32
	WriteWord(offset uint32, value uint32, strobe uint8)
}

type region struct {
	base   uint32
	size   uint32
	device Device
}

func (r region) contains(addr uint32) bool {
	return addr >= r.base && addr-r.base < r.size
}

// SimBus is an in-memory bus routing accesses to mapped devices.
type SimBus struct {
	regions []region

	// Fault is called for unmapped or misaligned accesses. Faulting reads
	// return 0 and faulting writes are dropped.
	Fault func(addr uint32, err error)
}

// NewSimBus returns an empty simulated bus.
func NewSimBus() *SimBus {
	return &SimBus{}
}

// Map attaches a device at a word aligned base address.
func (b *SimBus) Map(base, size uint32, device Device) error {
	if base%4 != 0 || size == 0 || size%4 != 0 {
		return fmt.Errorf("mapping 0x%08x size %d: %w", base, size, ErrMisaligned)
	}
	end := uint64(base) + uint64(size)
	for _, r := range b.regions {
		if uint64(base) < uint64(r.base)+uint64(r.size) && uint64(r.base) < end {
			return fmt.Errorf("mapping 0x%08x over 0x%08x: %w", base, r.base, ErrOverlap)
		}
	}

	b.regions = append(b.regions, region{base: base, size: size, device: device})
	sort.Slice(b.regions, func(i, j int) bool {
		return b.regions[i].base < b.regions[j].base
	})
	return nil
}

func (b *SimBus) Read8(addr uint32) uint8 {
	word, ok := b.readWord(addr)
	if !ok {
		return 0
	}
	return uint8(word >> laneShift(addr))
}

func (b *SimBus) Read16(addr uint32) uint16 {
	if addr%2 != 0 {
		b.fault(addr, ErrMisaligned)
		return 0
	}
	word, ok := b.readWord(addr)
	if !ok {
		return 0
	}
	return uint16(word >> laneShift(addr))
}

func (b *SimBus) Read32(addr uint32) uint32 {
	if addr%4 != 0 {
		b.fault(addr, ErrMisaligned)
		return 0
	}
	word, _ := b.readWord(addr)
	return word
}

func (b *SimBus) Write8(addr uint32, value uint8) {
	b.writeWord(addr, uint32(value)<<laneShift(addr), 1<<(addr%4))
}

func (b *SimBus) Write16(addr uint32, value uint16) {
	if addr%2 != 0 {
		b.fault(addr, ErrMisaligned)
		return
	}
	b.writeWord(addr, uint32(value)<<laneShift(addr), 0b11<<(addr%4))
}

func (b *SimBus) Write32(addr uint32, value uint32) {
	if addr%4 != 0 {
		b.fault(addr, ErrMisaligned)
		return
	}
	b.writeWord(addr, value, 0b1111)
}

func (b *SimBus) find(addr uint32) (region, bool) {
	i := sort.Search(len(b.regions), func(i int) bool {
		r := b.regions[i]
		return uint64(r.base)+uint64(r.size) > uint64(addr)
	})
	if i < len(b.regions) && b.regions[i].contains(addr) {
		return b.regions[i], true
	}
	b.fault(addr, ErrUnmapped)
	return region{}, false
}

func (b *SimBus) readWord(addr uint32) (uint32, bool) {
	r, ok := b.find(addr)
	if !ok {
		return 0, false
	}
	return r.device.ReadWord((addr - r.base) &^ 3), true
}

func (b *SimBus) writeWord(addr, value uint32, strobe uint8) {
	r, ok := b.find(addr)
	if !ok {
		return
	}
	r.device.WriteWord((addr-r.base)&^3, value, strobe)
}

func (b *SimBus) fault(addr uint32, err error) {
	if b.Fault != nil {
		b.Fault(addr, err)
	}
}

func laneShift(addr uint32) uint32 {
	return (addr % 4) * 8
}

// StrobeMask expands a byte strobe into a mask of the written bits.
func StrobeMask(strobe uint8) uint32 {
	var mask uint32
	for lane := range 4 {
		if strobe&(1<<lane) != 0 {
			mask |= 0xFF << (lane * 8)
		}
	}
	return mask
}

// MergeWord applies a strobed write to an existing word.
func MergeWord(old, value uint32, strobe uint8) uint32 {
	mask := StrobeMask(strobe)
	return old&^mask | value&mask
}

// RAM is word addressable memory for the simulated bus.
type RAM struct {
	data []byte
}

// NewRAM returns zeroed memory of the given size in bytes.
func NewRAM(size int) *RAM {
	return &RAM{data: make([]byte, size)}
}

// Size returns the memory size in bytes.
func (m *RAM) Size() uint32 {
	return uint32(len(m.data))
}

func (m *RAM) ReadWord(offset uint32) uint32 {
	return binary.LittleEndian.Uint32(m.data[offset:])
}

func (m *RAM) WriteWord(offset uint32, value uint32, strobe uint8) {
	old := binary.LittleEndian.Uint32(m.data[offset:])
	binary.LittleEndian.PutUint32(m.data[offset:], MergeWord(old, value, strobe))
}

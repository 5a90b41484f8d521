// Package initfile splits a firmware image into the byte lane initialization
// files of four inferred 8-bit wide SRAM blocks.
package initfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

const (
	// LaneCount is the number of byte wide memories that make up a 32-bit word.
	LaneCount = 4
	// GroupSize is the boundary in bytes that the image gets padded to.
	GroupSize = 16

	// ParametersFileName is the Verilog include file carrying the SoC parameters.
	ParametersFileName = "sys_parameters.v"

	// MaxAddressWidth is the largest address width whose capacity fits an int.
	MaxAddressWidth = 60
)

// Result describes a finished split.
type Result struct {
	ImageSize int // bytes read from the input image
	Size      int // bytes written to all lanes, including padding
}

// Padding returns the number of zero bytes appended to the image.
func (r Result) Padding() int {
	return r.Size - r.ImageSize
}

// LaneFileName returns the file name of the initialization file of a lane.
// Lane 0 holds the least significant byte of every word.
func LaneFileName(lane int) string {
	return fmt.Sprintf("mem_init%d.ini", lane)
}

// Capacity returns the number of bytes a memory with the given word address
// width can hold.
func Capacity(addressWidth int) int {
	return LaneCount * (1 << addressWidth)
}

// PaddedSize returns the image size rounded up to the next group boundary.
func PaddedSize(n int) int {
	return (n + GroupSize - 1) / GroupSize * GroupSize
}

// Splitter distributes image bytes round-robin across the lane writers.
type Splitter struct {
	lanes [LaneCount]*bufio.Writer
	count int
}

// NewSplitter returns a splitter writing to the given lane writers.
func NewSplitter(lanes [LaneCount]io.Writer) *Splitter {
	s := &Splitter{}
	for i, w := range lanes {
		s.lanes[i] = bufio.NewWriter(w)
	}
	return s
}

// Split streams the image until EOF, pads all lanes with zero bytes up to the
// next group boundary and flushes the lane writers.
func (s *Splitter) Split(r io.Reader) (Result, error) {
	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{ImageSize: s.count, Size: s.count}, fmt.Errorf("reading image: %w", err)
		}
		if err := s.writeByte(b); err != nil {
			return Result{ImageSize: s.count, Size: s.count}, err
		}
	}

	result := Result{ImageSize: s.count}
	for s.count%GroupSize != 0 {
		if err := s.writeByte(0); err != nil {
			result.Size = s.count
			return result, err
		}
	}
	result.Size = s.count

	for i, w := range s.lanes {
		if err := w.Flush(); err != nil {
			return result, fmt.Errorf("flushing lane %d: %w", i, err)
		}
	}
	return result, nil
}

func (s *Splitter) writeByte(b byte) error {
	lane := s.count % LaneCount
	if _, err := fmt.Fprintf(s.lanes[lane], "%02X\n", b); err != nil {
		return fmt.Errorf("writing lane %d: %w", lane, err)
	}
	s.count++
	return nil
}

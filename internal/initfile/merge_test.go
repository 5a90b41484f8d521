package initfile

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestMergeRoundTrip(t *testing.T) {
	data := []byte{0x13, 0x00, 0x00, 0x00, 0x6f, 0x00, 0x40, 0x00, 0xde, 0xad, 0xbe, 0xef, 0x01}
	lanes, result := splitBytes(t, data)

	var readers [LaneCount]io.Reader
	for i, lane := range lanes {
		readers[i] = bytes.NewReader(lane.Bytes())
	}

	image, err := Merge(readers)
	assert.NoError(t, err)
	assert.Equal(t, result.Size, len(image))
	assert.True(t, bytes.Equal(data, image[:len(data)]))
	for _, b := range image[len(data):] {
		assert.Equal(t, byte(0), b)
	}
}

func TestMergeLaneMismatch(t *testing.T) {
	readers := [LaneCount]io.Reader{
		strings.NewReader("00\n01\n"),
		strings.NewReader("00\n01\n"),
		strings.NewReader("00\n"),
		strings.NewReader("00\n01\n"),
	}
	_, err := Merge(readers)
	assert.True(t, errors.Is(err, ErrLaneMismatch))
}

func TestMergeInvalidEntry(t *testing.T) {
	readers := [LaneCount]io.Reader{
		strings.NewReader("00\n"),
		strings.NewReader("0G\n"),
		strings.NewReader("00\n"),
		strings.NewReader("00\n"),
	}
	_, err := Merge(readers)
	assert.ErrorContains(t, err, "lane 1")
}

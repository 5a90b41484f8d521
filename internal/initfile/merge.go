package initfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrLaneMismatch is returned when the lanes of an image differ in length.
var ErrLaneMismatch = errors.New("lane length mismatch")

// Merge reassembles an image from the contents of its lane files.
// The result includes any padding that was written by Split.
func Merge(lanes [LaneCount]io.Reader) ([]byte, error) {
	var decoded [LaneCount][]byte
	for i, r := range lanes {
		data, err := readLane(r)
		if err != nil {
			return nil, fmt.Errorf("reading lane %d: %w", i, err)
		}
		decoded[i] = data
	}

	words := len(decoded[0])
	for i := 1; i < LaneCount; i++ {
		if len(decoded[i]) != words {
			return nil, fmt.Errorf("%w: lane 0 has %d entries, lane %d has %d",
				ErrLaneMismatch, words, i, len(decoded[i]))
		}
	}

	image := make([]byte, 0, words*LaneCount)
	for word := range words {
		for lane := range LaneCount {
			image = append(image, decoded[lane][word])
		}
	}
	return image, nil
}

func readLane(r io.Reader) ([]byte, error) {
	var data []byte
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if len(text) != 2 {
			return nil, fmt.Errorf("line %d: invalid entry '%s'", line, text)
		}
		v, err := strconv.ParseUint(text, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		data = append(data, byte(v))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}
	return data, nil
}

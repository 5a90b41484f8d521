// Package verification verifies that the written lane files recreate the input image.
package verification

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/initfile"
	"github.com/retroenv/retrogolib/log"
)

const maxReportedMismatches = 10

// VerifyOutput merges the lane files in dir and compares them against the
// input image followed by the zero padding.
func VerifyOutput(logger *log.Logger, input, dir string, result initfile.Result) error {
	source, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading source file for comparison: %w", err)
	}

	merged, err := mergeLaneFiles(dir)
	if err != nil {
		return err
	}

	expected := make([]byte, result.Size)
	copy(expected, source)

	if err := checkBufferEqual(logger, expected, merged); err != nil {
		return fmt.Errorf("lane files mismatch: %w", err)
	}
	return nil
}

func mergeLaneFiles(dir string) ([]byte, error) {
	var readers [initfile.LaneCount]io.Reader
	for i := range initfile.LaneCount {
		path := filepath.Join(dir, initfile.LaneFileName(i))
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening lane file '%s': %w", path, err)
		}
		defer func() {
			_ = file.Close()
		}()
		readers[i] = file
	}

	merged, err := initfile.Merge(readers)
	if err != nil {
		return nil, fmt.Errorf("merging lane files: %w", err)
	}
	return merged, nil
}

func checkBufferEqual(logger *log.Logger, input, output []byte) error {
	if len(input) != len(output) {
		return fmt.Errorf("mismatched lengths, %d != %d", len(input), len(output))
	}

	var diffs uint64
	for i := range input {
		if input[i] == output[i] {
			continue
		}

		diffs++
		if diffs < maxReportedMismatches {
			logger.Error("Offset mismatch",
				log.Hex("offset", i),
				log.Hex("expected", input[i]),
				log.Hex("got", output[i]))
		}
	}
	if diffs == 0 {
		return nil
	}
	return fmt.Errorf("%d offset mismatches", diffs)
}

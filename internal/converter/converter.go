// Package converter handles the image conversion workflow: opening the input,
// creating the output files in a fixed order, splitting and the size check.
package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/initfile"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/options"
	"github.com/grughuhler/picorv32-tang-nano-20k/internal/verification"
	"github.com/retroenv/retrogolib/log"
)

// ErrInputIsDirectory is wrapped by the OpenError for a directory input.
var ErrInputIsDirectory = errors.New("input is a directory")

// OpenError reports a file that could not be opened or created.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("could not open file %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// OverflowError reports an image that does not fit into the SRAM.
// The output files are complete when this error is returned.
type OverflowError struct {
	Size     int
	Capacity int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("program is too large: %d bytes is greater than %d bytes", e.Size, e.Capacity)
}

// Converter converts firmware images into SRAM initialization files.
type Converter struct {
	logger *log.Logger
}

// New creates a new converter.
func New(logger *log.Logger) *Converter {
	return &Converter{
		logger: logger,
	}
}

// Convert runs the complete conversion. The input is opened first, then the
// four lane files and then the parameters file, which is written before any
// lane data. Files created before a failing open are left in place.
func (c *Converter) Convert(ctx context.Context, opts options.Program) (initfile.Result, error) {
	if err := opts.Parameters.Validate(); err != nil {
		return initfile.Result{}, err
	}

	input, err := os.Open(opts.Input)
	if err != nil {
		return initfile.Result{}, &OpenError{Path: opts.Input, Err: err}
	}
	defer func() { _ = input.Close() }()

	info, err := input.Stat()
	if err != nil {
		return initfile.Result{}, &OpenError{Path: opts.Input, Err: err}
	}
	if info.IsDir() {
		return initfile.Result{}, &OpenError{Path: opts.Input, Err: ErrInputIsDirectory}
	}

	lanes, err := c.createLaneFiles(opts.OutputDir)
	if err != nil {
		return initfile.Result{}, err
	}
	defer func() { _ = closeAll(lanes) }()

	if err := c.writeParameters(opts.OutputDir, opts.Parameters); err != nil {
		return initfile.Result{}, err
	}

	if err := ctx.Err(); err != nil {
		return initfile.Result{}, fmt.Errorf("converting: %w", err)
	}

	var writers [initfile.LaneCount]io.Writer
	for i, lane := range lanes {
		writers[i] = lane
	}
	result, err := initfile.NewSplitter(writers).Split(input)
	if err != nil {
		return result, fmt.Errorf("splitting image: %w", err)
	}

	if err := closeAll(lanes); err != nil {
		return result, fmt.Errorf("closing lane files: %w", err)
	}

	c.logger.Debug("Image split",
		log.String("file", opts.Input),
		log.Int("image_bytes", result.ImageSize),
		log.Int("padding", result.Padding()))

	if opts.Verify {
		if err := verification.VerifyOutput(c.logger, opts.Input, opts.OutputDir, result); err != nil {
			return result, fmt.Errorf("verification failed: %w", err)
		}
		c.logger.Info("Verification successful")
	}

	capacity := opts.Parameters.Capacity()
	if result.Size > capacity {
		return result, &OverflowError{Size: result.Size, Capacity: capacity}
	}
	return result, nil
}

func (c *Converter) createLaneFiles(dir string) ([initfile.LaneCount]*os.File, error) {
	var lanes [initfile.LaneCount]*os.File
	for i := range lanes {
		path := filepath.Join(dir, initfile.LaneFileName(i))
		file, err := os.Create(path)
		if err != nil {
			_ = closeAll(lanes)
			return lanes, &OpenError{Path: path, Err: err}
		}
		c.logger.Debug("Created lane file", log.Int("lane", i), log.String("file", path))
		lanes[i] = file
	}
	return lanes, nil
}

func (c *Converter) writeParameters(dir string, params initfile.Parameters) error {
	path := filepath.Join(dir, initfile.ParametersFileName)
	file, err := os.Create(path)
	if err != nil {
		return &OpenError{Path: path, Err: err}
	}

	if err := initfile.WriteParameters(file, params); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing '%s': %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing '%s': %w", path, err)
	}
	c.logger.Debug("Wrote parameters", log.String("file", path))
	return nil
}

// closeAll closes all open files. Files that are already closed are skipped.
func closeAll(files [initfile.LaneCount]*os.File) error {
	var errs []error
	for i, file := range files {
		if file == nil {
			continue
		}
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("lane %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

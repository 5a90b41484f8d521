// Package console implements a host side client for the command loop of a
// board connected over a serial port.
package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grughuhler/picorv32-tang-nano-20k/internal/monitor"
	"github.com/pkg/term"
	"github.com/retroenv/retrogolib/log"
)

// DefaultTimeout is the time to wait for the prompt after a command.
const DefaultTimeout = 5 * time.Second

// pollTimeout bounds a single read from the serial device so that the
// receiver notices Close.
const pollTimeout = 100 * time.Millisecond

// retryReply is what the command loop answers to an unknown command.
const retryReply = "  Try again...\r\n"

// ErrClosed is returned when the connection was closed or the device
// stopped delivering data.
var ErrClosed = errors.New("console closed")

// Console talks to the command loop of a board.
type Console struct {
	logger *log.Logger
	rw     io.ReadWriter
	closer io.Closer

	// pollEOF treats io.EOF as an expired read timeout instead of the end
	// of the input.
	pollEOF bool

	rx        chan []byte
	stop      chan struct{}
	done      chan struct{}
	readErr   error
	closeOnce sync.Once

	pending []byte

	// Timeout bounds every Command, WaitPrompt and Sync call. Zero disables
	// the timeout.
	Timeout time.Duration
}

// New returns a console communicating over rw. If rw is an io.Closer it is
// closed by Close.
func New(logger *log.Logger, rw io.ReadWriter) *Console {
	c := newConsole(logger, rw, false)
	if closer, ok := rw.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// Open opens the serial device in raw mode at the given baud rate.
func Open(logger *log.Logger, port string, baud int) (*Console, error) {
	t, err := term.Open(port, term.Speed(baud), term.RawMode, term.ReadTimeout(pollTimeout))
	if err != nil {
		return nil, fmt.Errorf("opening serial port '%s': %w", port, err)
	}
	if err := t.Flush(); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("flushing serial port '%s': %w", port, err)
	}

	c := newConsole(logger, t, true)
	c.closer = t
	logger.Debug("Opened serial port", log.String("port", port), log.Int("baud", baud))
	return c, nil
}

func newConsole(logger *log.Logger, rw io.ReadWriter, pollEOF bool) *Console {
	c := &Console{
		logger:  logger,
		rw:      rw,
		pollEOF: pollEOF,
		rx:      make(chan []byte, 64),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		Timeout: DefaultTimeout,
	}
	go c.receive()
	return c
}

func (c *Console) receive() {
	defer close(c.done)
	defer close(c.rx)

	buf := make([]byte, 256)
	for {
		n, err := c.rw.Read(buf)
		if n > 0 {
			select {
			case c.rx <- bytes.Clone(buf[:n]):
			case <-c.stop:
				return
			}
		}
		if err == nil {
			continue
		}
		if c.pollEOF && errors.Is(err, io.EOF) {
			select {
			case <-c.stop:
				return
			default:
				continue
			}
		}
		if !errors.Is(err, io.EOF) {
			c.readErr = err
		}
		return
	}
}

// Close stops the receiver and closes the underlying device.
func (c *Console) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		if c.pollEOF {
			// the device may only be closed once no read is in progress
			<-c.done
		}
		if c.closer != nil {
			err = c.closer.Close()
		}
	})
	return err
}

// Command sends a command key followed by optional input and returns the
// reply printed before the next menu.
func (c *Console) Command(ctx context.Context, key byte, input string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.Debug("Sending command", log.String("key", string(rune(key))), log.String("input", input))
	if err := c.send(append([]byte{key}, input...)); err != nil {
		return "", err
	}

	reply, err := c.readUntil(ctx, monitor.Menu)
	if err != nil {
		return reply, fmt.Errorf("waiting for reply to command '%c': %w", key, err)
	}
	return reply, nil
}

// WaitPrompt discards received output until a complete menu was seen.
func (c *Console) WaitPrompt(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.readUntil(ctx, monitor.Menu); err != nil {
		return fmt.Errorf("waiting for prompt: %w", err)
	}
	return nil
}

// Sync discards stale output and sends an empty command, returning once
// the command loop answered it. Afterwards replies line up with commands.
func (c *Console) Sync(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.drain()
	if err := c.send([]byte{'\r'}); err != nil {
		return err
	}
	if _, err := c.readUntil(ctx, retryReply+monitor.Menu); err != nil {
		return fmt.Errorf("synchronizing with command loop: %w", err)
	}
	return nil
}

func (c *Console) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func (c *Console) send(data []byte) error {
	if _, err := c.rw.Write(data); err != nil {
		return fmt.Errorf("writing to console: %w", err)
	}
	return nil
}

// drain drops everything received so far.
func (c *Console) drain() {
	c.pending = nil
	for {
		select {
		case data, ok := <-c.rx:
			if !ok {
				return
			}
			c.logger.Debug("Discarding stale output", log.Int("bytes", len(data)))
		default:
			return
		}
	}
}

// readUntil returns the received text before marker and consumes the
// marker. On error the text received so far is returned.
func (c *Console) readUntil(ctx context.Context, marker string) (string, error) {
	for {
		if i := bytes.Index(c.pending, []byte(marker)); i >= 0 {
			text := string(c.pending[:i])
			c.pending = c.pending[i+len(marker):]
			return text, nil
		}

		select {
		case data, ok := <-c.rx:
			if !ok {
				if c.readErr != nil {
					return string(c.pending), fmt.Errorf("reading from console: %w", c.readErr)
				}
				return string(c.pending), ErrClosed
			}
			c.pending = append(c.pending, data...)
		case <-ctx.Done():
			return string(c.pending), ctx.Err()
		}
	}
}

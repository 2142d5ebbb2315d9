package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/badgeidle/internal/shared"
)

// Console reads control lines from an input stream.
//
// It also answers verification prompts: while [Console.Prompt] is waiting, the
// next line is the code rather than a command. Login prompts run before
// [Console.Serve] starts. [Console.Close] releases the reader goroutine.
type Console struct {
	in     io.Reader
	out    io.Writer
	logger *log.Logger

	start    sync.Once
	lines    chan string
	err      error // set before lines is closed
	stop     chan struct{}
	stopOnce sync.Once
	finished chan struct{}
}

// NewConsole creates a Console reading in and replying on out.
func NewConsole(in io.Reader, out io.Writer, logger *log.Logger) *Console {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Console{
		in:       in,
		out:      out,
		logger:   shared.WithLogger(logger, "component", "console"),
		lines:    make(chan string),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Close stops delivering lines. A reader goroutine blocked inside a read of
// the input exits once that read returns.
func (c *Console) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *Console) read() {
	c.start.Do(func() {
		go func() {
			defer close(c.finished)
			scanner := bufio.NewScanner(c.in)
			for scanner.Scan() {
				select {
				case c.lines <- scanner.Text():
				case <-c.stop:
					return
				}
			}
			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			c.err = err
			close(c.lines)
		}()
	})
}

func (c *Console) next(ctx context.Context) (string, error) {
	c.read()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.stop:
		return "", io.EOF
	case line, ok := <-c.lines:
		if !ok {
			return "", c.err
		}
		return line, nil
	}
}

// Prompt writes a verification request and returns the next non-empty line.
func (c *Console) Prompt(ctx context.Context, hint string) (string, error) {
	if hint == "" {
		hint = "your device"
	}
	fmt.Fprintf(c.out, "Verification code sent to %s: ", hint)

	for {
		line, err := c.next(ctx)
		if err != nil {
			return "", fmt.Errorf("reading verification code: %w", err)
		}
		if code := strings.TrimSpace(line); code != "" {
			return code, nil
		}
	}
}

// Serve dispatches lines to sink until ctx ends, the input closes, or the sink stops.
func (c *Console) Serve(ctx context.Context, sink Sink) error {
	fmt.Fprintln(c.out, `Type "help" for commands.`)
	for {
		line, err := c.next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		err = Execute(line, sink, c.out)
		switch {
		case errors.Is(err, shared.ErrSchedulerStopped):
			return nil
		case err != nil:
			c.logger.Warn("command rejected", "line", line, "error", err)
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package source connects operator input devices (serial pendants, USB HID
// pendants and remote WebSocket consoles) to a stroke.Console.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/Thermoquad/linstroke/pkg/stroke"
)

// ErrConnectionClosed is returned when the remote end of a source went away
var ErrConnectionClosed = errors.New("connection closed")

// Source feeds operator commands into a console
type Source interface {
	// Name describes the source for logs
	Name() string
	// Run executes commands until ctx is done or the source fails
	Run(ctx context.Context, console *stroke.Console) error
	Close() error
}

// RunAll runs every source on its own goroutine and waits for all of them.
// A failing source is logged and does not stop the others.
func RunAll(ctx context.Context, sources []Source, console *stroke.Console, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	var wg sync.WaitGroup
	for _, s := range sources {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("input source started", "source", s.Name())
			if err := s.Run(ctx, console); err != nil && ctx.Err() == nil {
				logger.Error("input source stopped", "source", s.Name(), "error", err)
				return
			}
			logger.Debug("input source finished", "source", s.Name())
		}()
	}
	wg.Wait()
}

// CloseAll closes every source and combines their errors
func CloseAll(sources []Source) error {
	var err error
	for _, s := range sources {
		if cerr := s.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.Name(), cerr))
		}
	}
	return err
}

// serveLines executes newline-delimited commands read from rw and writes
// one reply per command. It returns ErrConnectionClosed at end of input.
func serveLines(rw io.ReadWriter, console *stroke.Console, logger *slog.Logger) error {
	scanner := bufio.NewScanner(rw)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reply := execute(console, line, logger)
		if _, err := io.WriteString(rw, reply+"\n"); err != nil {
			return fmt.Errorf("failed to write reply: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ErrConnectionClosed
}

// execute runs one command and renders the reply or error as text
func execute(console *stroke.Console, line string, logger *slog.Logger) string {
	reply, err := console.Execute(line)
	if err != nil {
		logger.Debug("rejected command", "command", line, "error", err)
		return "error: " + err.Error()
	}
	logger.Debug("executed command", "command", line)
	return reply
}

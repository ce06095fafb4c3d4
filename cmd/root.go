// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Logging flags
	logLevel  string
	logFormat string
	logFile   string
)

// logger is configured from the logging flags before any command runs
var logger = slog.Default()

// logOutput is the open --log-file, if any
var logOutput *os.File

var rootCmd = &cobra.Command{
	Use:   "linstroke",
	Short: "LinUDP linear motor stroke controller",
	Long: `Linstroke - drives a LinMot linear motor back and forth between two points
over the LinUDP protocol.

The run command exchanges one request/response with the drive every loop
interval, walks the drive through power up, error acknowledge and homing, and
then moves the slider between the stroke start and end positions. Stroke
parameters are changed live from the terminal, a serial or HID pendant, or a
remote WebSocket console.

Other commands:
  simulate  Run a simulated drive for development
  ping      Exchange a single status request with a drive
  monitor   Poll a drive and report anomalies without controlling it
  decode    Decode LinUDP frames from hex
  ports     List serial ports and HID devices

For WebSocket authentication, the password is read from the LINSTROKE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logOutput != nil {
			logOutput.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to a file instead of stderr")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func setupLogging(cmd *cobra.Command, args []string) error {
	var out io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logOutput = f
		out = f
	}

	l, err := newLogger(out, logLevel, logFormat)
	if err != nil {
		return err
	}
	logger = l
	slog.SetDefault(logger)
	return nil
}

// newLogger builds a text or JSON logger writing to out
func newLogger(out io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(out, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (use text or json)", format)
	}
}

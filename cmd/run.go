// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/linstroke/pkg/drive"
	"github.com/Thermoquad/linstroke/pkg/linudp"
	"github.com/Thermoquad/linstroke/pkg/mci"
	"github.com/Thermoquad/linstroke/pkg/source"
	"github.com/Thermoquad/linstroke/pkg/stroke"
)

var (
	// Loop flags
	loopInterval   time.Duration
	reportInterval time.Duration
	localPort      int
	drivePort      int
	useTUI         bool
	maxLagMM       float64

	// Limit flags
	maxPositionMM   float64
	maxVelocity     float64
	maxAcceleration float64
	maxDeceleration float64

	// Initial stroke flags
	startMM     float64
	endMM       float64
	toleranceMM float64
)

var runCmd = &cobra.Command{
	Use:   "run <drive-address>",
	Short: "Move the slider back and forth between two positions",
	Long: `Run the cyclic control loop against a LinUDP drive.

One request/response is exchanged with the drive every loop interval. The
controller switches the drive on, acknowledges a pending error once at
startup, homes the motor and then commands moves between the stroke start
and end positions, turning around when the demand position comes within the
tolerance of the current end point.

The drive starts powered off. Stroke parameters are edited live with console
commands (type 'h' for the list), either in the terminal or from any of the
input sources:
  Serial pendant:  --serial-port /dev/ttyUSB0 [--serial-baud 115200]
  HID pendant:     --hid 16c0:05df
  Remote console:  --ws-url wss://host/path [--ws-username user]

Drive errors after the first ReadyToSwitchOn are only acknowledged after an
explicit 'ack' command.

The loop stops with an error when no exchange succeeds for a whole report
interval.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVar(&loopInterval, "loop-interval", 5*time.Millisecond, "Control loop interval")
	runCmd.Flags().DurationVar(&reportInterval, "report-interval", time.Second, "Timing statistics interval")
	runCmd.Flags().IntVar(&localPort, "local-port", linudp.MASTER_PORT, "Local UDP port (0 for any)")
	runCmd.Flags().IntVar(&drivePort, "drive-port", linudp.DRIVE_PORT, "Drive UDP port")
	runCmd.Flags().BoolVar(&useTUI, "tui", term.IsTerminal(int(os.Stdin.Fd())), "Use terminal UI (false for text mode)")
	runCmd.Flags().Float64Var(&maxLagMM, "max-lag-mm", 0, "Report position lag above this as an anomaly (0 disables)")

	runCmd.Flags().Float64Var(&maxPositionMM, "max-position-mm", 0, "Never command positions beyond this, in mm (0 for no limit)")
	runCmd.Flags().Float64Var(&maxVelocity, "max-velocity", 0, "Velocity limit in m/s (0 for no limit)")
	runCmd.Flags().Float64Var(&maxAcceleration, "max-acceleration", 0, "Acceleration limit in m/s² (0 for no limit)")
	runCmd.Flags().Float64Var(&maxDeceleration, "max-deceleration", 0, "Deceleration limit in m/s² (0 for no limit)")

	runCmd.Flags().Float64Var(&startMM, "start-mm", 0, "Initial stroke start position in mm")
	runCmd.Flags().Float64Var(&endMM, "end-mm", 0, "Initial stroke end position in mm")
	runCmd.Flags().Float64Var(&toleranceMM, "tolerance-mm", 1, "Initial direction change tolerance in mm")

	runCmd.Flags().StringVar(&serialPort, "serial-port", "", "Serial pendant device")
	runCmd.Flags().IntVar(&serialBaud, "serial-baud", 115200, "Serial pendant baud rate")
	runCmd.Flags().StringVar(&hidDevice, "hid", "", "HID pendant as VID:PID (hex)")
	runCmd.Flags().StringVar(&wsURL, "ws-url", "", "Remote console WebSocket URL (ws:// or wss://)")
	runCmd.Flags().StringVar(&wsUsername, "ws-username", "", "Username for HTTP Basic auth")
	runCmd.Flags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// buildLimits returns the limits set on the command line; zero means none
func buildLimits() stroke.Limits {
	limits := stroke.NoLimits()
	if maxPositionMM > 0 {
		limits.MaxPosition = mci.PositionFromMillimetersFloat(maxPositionMM)
	}
	if maxVelocity > 0 {
		limits.MaxVelocity = mci.VelocityFromMetersPerSecondFloat(maxVelocity)
	}
	if maxAcceleration > 0 {
		limits.MaxAcceleration = mci.AccelerationFromMetersPerSecondSquaredFloat(maxAcceleration)
	}
	if maxDeceleration > 0 {
		limits.MaxDeceleration = mci.AccelerationFromMetersPerSecondSquaredFloat(maxDeceleration)
	}
	return limits
}

// initialParams returns the stroke parameters set on the command line. The
// drive always starts powered off.
func initialParams() stroke.Params {
	p := stroke.DefaultParams()
	p.Start = mci.PositionFromMillimetersFloat(startMM)
	p.End = mci.PositionFromMillimetersFloat(endMM)
	p.Tolerance = mci.PositionFromMillimetersFloat(toleranceMM)
	return p
}

func runRun(cmd *cobra.Command, args []string) error {
	driveAddress := args[0]

	// The TUI owns the terminal, so logs need a file
	if useTUI && logFile == "" {
		f, err := tea.LogToFile("linstroke.log", "linstroke")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		l, err := newLogger(f, logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
	}

	transport, err := drive.DialUDP(driveAddress, localPort, drivePort)
	if err != nil {
		return err
	}
	defer transport.Close()
	driveInfo := fmt.Sprintf("Drive: %s (local %s)", transport.RemoteAddr(), transport.LocalAddr())

	params := initialParams()
	cell := stroke.NewCell(params)
	console := stroke.NewConsole(cell, params)

	sources, ws, err := openSources()
	if err != nil {
		return err
	}
	defer func() {
		if err := source.CloseAll(sources); err != nil {
			logger.Warn("failed to close input sources", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := drive.DefaultConfig()
	cfg.Interval = loopInterval
	cfg.ReportInterval = reportInterval
	cfg.Limits = buildLimits()
	cfg.MaxLag = mci.PositionFromMillimetersFloat(maxLagMM)
	cfg.Logger = logger
	loop := drive.NewLoop(cfg, transport, cell)

	if ws != nil {
		loop.AddObserver(drive.AsyncObserver(ctx, ws.PublishReport))
	}
	go source.RunAll(ctx, sources, console, logger)

	logger.Info("starting control loop", "drive", transport.RemoteAddr().String(),
		"interval", loopInterval, "report_interval", reportInterval, "stroke", params.String())

	if useTUI {
		return runControlTUI(ctx, cancel, loop, console, driveInfo)
	}
	return runTextConsole(ctx, loop, console, driveInfo)
}

// runTextConsole reads console commands from stdin while the loop runs and
// logs one timing report per window
func runTextConsole(ctx context.Context, loop *drive.Loop, console *stroke.Console, driveInfo string) error {
	fmt.Printf("Linstroke - LinUDP stroke controller\n")
	fmt.Printf("%s\n", driveInfo)
	fmt.Printf("Type 'h' for help, Ctrl+C to exit\n\n")

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			reply, err := console.Execute(scanner.Text())
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			if reply != "" {
				fmt.Println(reply)
			}
		}
	}()

	return loopResult(loop.Run(ctx))
}

// loopResult hides the error from a deliberate shutdown
func loopResult(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

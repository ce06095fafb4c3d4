// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/linstroke/pkg/drivesim"
	"github.com/Thermoquad/linstroke/pkg/linudp"
	"github.com/Thermoquad/linstroke/pkg/mci"
)

var (
	simListen      string
	simPort        int
	simBootTicks   int
	simHomingTicks int
	simStartError  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated LinUDP drive",
	Long: `Answer LinUDP requests like a drive, for development without hardware.

The simulated drive boots into ReadyToSwitchOn, switches on, homes and runs
trapezoidal moves for VAI GoToPos and VAI Stop commands. Motion commands
before homing put it into the NotHomed error.

  linstroke simulate &
  linstroke run 127.0.0.1 --local-port 0

Use --start-error to have the drive come up in an error state (for example
--start-error 0x20 for MotorHotSensor) to exercise error acknowledge.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simListen, "listen", "127.0.0.1", "Address to listen on")
	simulateCmd.Flags().IntVar(&simPort, "port", linudp.DRIVE_PORT, "UDP port to listen on")
	simulateCmd.Flags().IntVar(&simBootTicks, "boot-ticks", drivesim.DefaultConfig().BootTicks, "Requests answered before the drive is ready")
	simulateCmd.Flags().IntVar(&simHomingTicks, "homing-ticks", drivesim.DefaultConfig().HomingTicks, "Requests the homing procedure takes")
	simulateCmd.Flags().StringVar(&simStartError, "start-error", "", "Error code reported once booted (e.g. 0x20)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg := drivesim.DefaultConfig()
	cfg.BootTicks = simBootTicks
	cfg.HomingTicks = simHomingTicks
	if simStartError != "" {
		code, err := strconv.ParseUint(simStartError, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid --start-error %q: %w", simStartError, err)
		}
		cfg.StartError = mci.ErrorCode(code)
	}

	conn, err := net.ListenPacket("udp", net.JoinHostPort(simListen, strconv.Itoa(simPort)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("simulated drive listening", "addr", conn.LocalAddr().String(),
		"boot_ticks", cfg.BootTicks, "start_error", cfg.StartError.String())

	return drivesim.New(cfg).Serve(ctx, conn, logger)
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/linstroke/pkg/drive"
	"github.com/Thermoquad/linstroke/pkg/linudp"
	"github.com/Thermoquad/linstroke/pkg/mci"
)

var (
	monitorInterval  time.Duration
	monitorStats     time.Duration
	monitorShowAll   bool
	monitorRaw       bool
	monitorMaxLagMM  float64
	monitorLocalPort int
	monitorDrivePort int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <drive-address>",
	Short: "Poll a drive and report anomalies",
	Long: `Poll a drive with status requests and detect anomalies without controlling it.

Each response is validated and the following are reported as they occur:
  - Decode failures and timeouts
  - Drive state changes
  - Active warnings and drive error codes
  - Fatal error status
  - Position lag above --max-lag-mm

By default, only anomalies are displayed. Use --show-all to display every
response, and --raw to print the frames in hex.

Periodic statistics summaries are displayed at --stats-interval.`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 100*time.Millisecond, "Polling interval")
	monitorCmd.Flags().DurationVar(&monitorStats, "stats-interval", 10*time.Second, "Statistics update interval")
	monitorCmd.Flags().BoolVar(&monitorShowAll, "show-all", false, "Show all responses (not just anomalies)")
	monitorCmd.Flags().BoolVar(&monitorRaw, "raw", false, "Print request and response frames in hex")
	monitorCmd.Flags().Float64Var(&monitorMaxLagMM, "max-lag-mm", 0, "Report position lag above this (0 disables)")
	monitorCmd.Flags().IntVar(&monitorLocalPort, "local-port", 0, "Local UDP port (0 for any)")
	monitorCmd.Flags().IntVar(&monitorDrivePort, "drive-port", linudp.DRIVE_PORT, "Drive UDP port")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	transport, err := drive.DialUDP(args[0], monitorLocalPort, monitorDrivePort)
	if err != nil {
		return err
	}
	defer transport.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("Linstroke - Drive Monitor\n")
	fmt.Printf("Drive: %s (local %s)\n", transport.RemoteAddr(), transport.LocalAddr())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	maxLag := mci.PositionFromMillimetersFloat(monitorMaxLagMM)
	req := statusRequest()
	stats := drive.NewStatistics(time.Now())
	var (
		rx        [linudp.BUFFER_SIZE]byte
		lastState mci.State
	)

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			printStatistics(stats)
			return nil
		case <-ticker.C:
		}

		start := time.Now()
		resp, n, err := exchange(transport, req, rx[:], monitorInterval/2)
		timestamp := start.Format("15:04:05.000")

		if monitorRaw && n > 0 {
			fmt.Printf("[%s] RX %s\n", timestamp, hex.EncodeToString(rx[:n]))
		}

		var anomalies []linudp.ValidationError
		if err != nil {
			fmt.Printf("[%s] \033[1;31mEXCHANGE FAILED:\033[0m %v\n", timestamp, err)
		} else {
			anomalies = linudp.ValidateResponse(resp, maxLag)

			if resp.State != nil && (lastState == nil || resp.State.String() != lastState.String()) {
				fmt.Printf("[%s] \033[1;32mSTATE:\033[0m %s\n", timestamp, resp.State)
				lastState = resp.State
			}
			if monitorShowAll {
				fmt.Printf("[%s] %s", timestamp, linudp.FormatResponse(resp))
			}
			if len(anomalies) > 0 {
				printValidationErrors(timestamp, anomalies)
			}
		}
		stats.Update(time.Since(start), err, anomalies)

		if time.Since(stats.StartTime) >= monitorStats {
			printStatistics(stats)
			stats.Reset(time.Now())
		}
	}
}

// printValidationErrors prints the anomalies found in one response
func printValidationErrors(timestamp string, anomalies []linudp.ValidationError) {
	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m\n", timestamp)

	for i, a := range anomalies {
		switch a.Type {
		case linudp.ANOMALY_DRIVE_ERROR, linudp.ANOMALY_FATAL_ERROR:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, a.Message)
		default:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, a.Message)
		}
		for k, v := range a.Details {
			fmt.Printf("    %s=%v\n", k, v)
		}
	}
	fmt.Println()
}

// printStatistics prints a statistics summary
func printStatistics(stats *drive.Statistics) {
	fmt.Printf("\n=== Statistics (%s) ===\n", formatUptime(time.Since(stats.StartTime)))
	fmt.Printf("%s, %d anomalies\n\n", stats.String(), stats.Anomalies)
}

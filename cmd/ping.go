// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/linstroke/pkg/drive"
	"github.com/Thermoquad/linstroke/pkg/linudp"
)

var (
	pingTimeout   time.Duration
	pingCount     int
	pingLocalPort int
	pingDrivePort int
)

var pingCmd = &cobra.Command{
	Use:   "ping <drive-address>",
	Short: "Exchange status requests with a drive",
	Long: `Send LinUDP status requests to a drive and print the decoded responses.

The requests carry no control flags or motion command, so the drive state is
not changed. Useful for verifying:
  - The drive is reachable on the configured ports
  - The drive answers with well formed responses
  - The drive's current state, position and error code

Exit codes:
  0 - All requests answered
  1 - One or more requests failed/timed out
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().DurationVar(&pingTimeout, "timeout", time.Second, "Timeout for each request")
	pingCmd.Flags().IntVar(&pingCount, "count", 1, "Number of requests to send")
	pingCmd.Flags().IntVar(&pingLocalPort, "local-port", 0, "Local UDP port (0 for any)")
	pingCmd.Flags().IntVar(&pingDrivePort, "drive-port", linudp.DRIVE_PORT, "Drive UDP port")
}

// statusRequest asks for every response field without touching the drive
func statusRequest() *linudp.Request {
	return &linudp.Request{
		ResponseFlags: linudp.DEFAULT_RESPONSE_FLAGS | linudp.RESP_MONITORING_CHANNEL,
	}
}

// exchange sends req and waits up to timeout for the response. rx receives
// the raw response frame.
func exchange(t drive.Transport, req *linudp.Request, rx []byte, timeout time.Duration) (*linudp.Response, int, error) {
	var tx [linudp.BUFFER_SIZE]byte
	n, err := req.Encode(tx[:])
	if err != nil {
		return nil, 0, &drive.TickError{Kind: drive.KindEncode, Err: err}
	}
	if err := t.Send(tx[:n]); err != nil {
		return nil, 0, &drive.TickError{Kind: drive.KindTransport, Err: err}
	}

	n, err = t.Receive(rx, time.Now().Add(timeout))
	if err != nil {
		kind := drive.KindTransport
		if errors.Is(err, drive.ErrReceiveTimeout) {
			kind = drive.KindTimeout
		}
		return nil, 0, &drive.TickError{Kind: kind, Err: err}
	}

	resp, err := linudp.DecodeResponse(rx[:n])
	if err != nil {
		return nil, n, &drive.TickError{Kind: drive.KindDecode, Err: err}
	}
	return resp, n, nil
}

func runPing(cmd *cobra.Command, args []string) error {
	transport, err := drive.DialUDP(args[0], pingLocalPort, pingDrivePort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer transport.Close()

	fmt.Printf("Linstroke - Drive Ping\n")
	fmt.Printf("Drive: %s (local %s)\n", transport.RemoteAddr(), transport.LocalAddr())
	fmt.Printf("Timeout: %v per request\n", pingTimeout)
	fmt.Printf("Count: %d requests\n\n", pingCount)

	var rx [linudp.BUFFER_SIZE]byte
	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Request %d/%d: ", i, pingCount)

		startTime := time.Now()
		resp, _, err := exchange(transport, statusRequest(), rx[:], pingTimeout)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		} else {
			fmt.Printf("response in %v\n", time.Since(startTime).Round(time.Microsecond))
			fmt.Print(linudp.FormatResponse(resp))
			for _, a := range linudp.ValidateResponse(resp, 0) {
				fmt.Printf("  \033[1;33m%s:\033[0m %s\n", a.Type, a.Message)
			}
			successCount++
		}

		// Small delay between requests
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d requests sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(max(pingCount, 1))*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}

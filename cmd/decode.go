// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/linstroke/pkg/linudp"
)

var decodeRequest bool

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>...",
	Short: "Decode a LinUDP frame",
	Long: `Decode a LinUDP response (or request, with --request) given in hex.

The frame may be split over several arguments and may contain spaces,
colons, dashes or 0x prefixes, so dumps from packet captures can be pasted
directly:

  linstroke decode 01000000 7f000000 ...
  linstroke decode --request "01 00 00 00 7F 00 00 00 01 00"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeRequest, "request", false, "Decode a request instead of a response")
}

var hexSeparators = strings.NewReplacer(" ", "", ":", "", "-", "", "0x", "", "0X", "", "\n", "", "\t", "")

// parseHexFrame joins args into a single frame
func parseHexFrame(args []string) ([]byte, error) {
	s := hexSeparators.Replace(strings.Join(args, ""))
	frame, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(frame) > linudp.BUFFER_SIZE {
		return nil, fmt.Errorf("frame is %d bytes, LinUDP frames are at most %d", len(frame), linudp.BUFFER_SIZE)
	}
	return frame, nil
}

// decodeFrame renders a request or response frame
func decodeFrame(frame []byte, asRequest bool) (string, error) {
	if asRequest {
		req, err := linudp.DecodeRequest(frame)
		if err != nil {
			return "", fmt.Errorf("failed to decode request: %w", err)
		}
		return linudp.FormatRequest(req), nil
	}

	resp, err := linudp.DecodeResponse(frame)
	if err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	out := linudp.FormatResponse(resp)
	for _, a := range linudp.ValidateResponse(resp, 0) {
		out += fmt.Sprintf("  Anomaly:   %s\n", a.Message)
	}
	return out, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	frame, err := parseHexFrame(args)
	if err != nil {
		return err
	}
	out, err := decodeFrame(frame, decodeRequest)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

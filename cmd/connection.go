// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Thermoquad/linstroke/pkg/source"
)

var (
	// Serial pendant flags
	serialPort string
	serialBaud int

	// HID pendant flag
	hidDevice string

	// WebSocket console flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("LINSTROKE_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// openSources opens every input source named by the flags. On error the
// sources opened so far are closed.
func openSources() ([]source.Source, *source.WebSocketSource, error) {
	var (
		sources []source.Source
		ws      *source.WebSocketSource
	)
	fail := func(err error) ([]source.Source, *source.WebSocketSource, error) {
		if cerr := source.CloseAll(sources); cerr != nil {
			logger.Warn("failed to close input sources", "error", cerr)
		}
		return nil, nil, err
	}

	if serialPort != "" {
		s, err := source.OpenSerial(serialPort, serialBaud, logger)
		if err != nil {
			return fail(err)
		}
		sources = append(sources, s)
	}

	if hidDevice != "" {
		vid, pid, err := source.ParseVIDPID(hidDevice)
		if err != nil {
			return fail(err)
		}
		h, err := source.OpenHID(vid, pid, logger)
		if err != nil {
			return fail(err)
		}
		sources = append(sources, h)
	}

	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return fail(err)
			}
		}

		var err error
		ws, err = source.NewWebSocket(source.WebSocketConfig{
			URL:           wsURL,
			Username:      wsUsername,
			Password:      password,
			SkipSSLVerify: wsNoSSLVerify,
		}, logger)
		if err != nil {
			return fail(err)
		}
		sources = append(sources, ws)
	}

	return sources, ws, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Linstroke - LinUDP Linear Motor Stroke Controller
//
// A CLI tool for driving a linear motor back and forth between two
// positions over the LinUDP protocol, and for monitoring and decoding
// LinUDP traffic.

package main

import (
	"os"

	"github.com/Thermoquad/linstroke/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/linstroke/pkg/source"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and HID devices usable as pendants",
	Long: `List the serial ports and USB HID devices present on this host.

Use a serial port name with run --serial-port and a HID device's VID:PID
with run --hid.`,
	Args: cobra.NoArgs,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	fmt.Printf("Serial ports:\n")
	ports, err := source.ListSerialPorts()
	if err != nil {
		fmt.Printf("  error: %v\n", err)
	} else if len(ports) == 0 {
		fmt.Printf("  (none)\n")
	}
	for _, p := range ports {
		if p.IsUSB {
			fmt.Printf("  %-20s USB %s:%s %s %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
		} else {
			fmt.Printf("  %s\n", p.Name)
		}
	}

	fmt.Printf("\nHID devices:\n")
	devices, err := source.ListHIDDevices()
	if err != nil {
		fmt.Printf("  error: %v\n", err)
	} else if len(devices) == 0 {
		fmt.Printf("  (none)\n")
	}
	for _, d := range devices {
		fmt.Printf("  %04x:%04x  %s %s (%s)\n", d.VendorID, d.ProductID, d.Manufacturer, d.Product, d.Path)
	}

	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package source

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"rafaelmartins.com/p/usbhid"

	"github.com/Thermoquad/linstroke/pkg/stroke"
)

// Pendant buttons, one bit each in the first byte of the input report
const (
	BUTTON_POWER       = 1 << 0
	BUTTON_SOFT_STOP   = 1 << 1
	BUTTON_ACKNOWLEDGE = 1 << 2
	BUTTON_RESET       = 1 << 3
)

var pendantButtons = []struct {
	mask    byte
	command string
}{
	{BUTTON_POWER, "p"},
	{BUTTON_SOFT_STOP, "f"},
	{BUTTON_ACKNOWLEDGE, "ack"},
	{BUTTON_RESET, "r"},
}

// decodePendantReport returns the commands for buttons pressed between two
// reports. Holding a button does not repeat it.
func decodePendantReport(prev, cur byte) []string {
	pressed := cur &^ prev
	var commands []string
	for _, b := range pendantButtons {
		if pressed&b.mask != 0 {
			commands = append(commands, b.command)
		}
	}
	return commands
}

// ParseVIDPID parses a "vid:pid" pair of hexadecimal USB ids
func ParseVIDPID(s string) (vid, pid uint16, err error) {
	vidStr, pidStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid USB id %q, expected VID:PID", s)
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(vidStr, "0x"), 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid vendor id %q: %w", vidStr, err)
	}
	p, err := strconv.ParseUint(strings.TrimPrefix(pidStr, "0x"), 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid product id %q: %w", pidStr, err)
	}
	return uint16(v), uint16(p), nil
}

// HIDSource turns button presses on a USB HID pendant into console commands
type HIDSource struct {
	vid, pid uint16
	device   *usbhid.Device
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// OpenHID opens the first HID device matching vid and pid
func OpenHID(vid, pid uint16, logger *slog.Logger) (*HIDSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	device, err := usbhid.Get(func(d *usbhid.Device) bool {
		return d.VendorId() == vid && d.ProductId() == pid
	}, true, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open HID device %04x:%04x: %w", vid, pid, err)
	}

	return &HIDSource{
		vid:    vid,
		pid:    pid,
		device: device,
		logger: logger.With("source", "hid", "device", fmt.Sprintf("%04x:%04x", vid, pid)),
	}, nil
}

func (h *HIDSource) Name() string {
	return fmt.Sprintf("HID: %04x:%04x %s", h.vid, h.pid, h.device.Product())
}

// Run reads input reports until ctx is done
func (h *HIDSource) Run(ctx context.Context, console *stroke.Console) error {
	stop := context.AfterFunc(ctx, func() { _ = h.Close() })
	defer stop()

	err := servePendant(func() ([]byte, error) {
		_, data, err := h.device.GetInputReport()
		return data, err
	}, console, h.logger)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (h *HIDSource) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.device.Close()
	})
	return h.closeErr
}

// servePendant executes the commands encoded in successive input reports
// until read fails
func servePendant(read func() ([]byte, error), console *stroke.Console, logger *slog.Logger) error {
	var prev byte
	for {
		report, err := read()
		if err != nil {
			return fmt.Errorf("failed to read input report: %w", err)
		}
		if len(report) == 0 {
			continue
		}

		for _, command := range decodePendantReport(prev, report[0]) {
			reply := execute(console, command, logger)
			logger.Info("pendant button", "command", command, "reply", reply)
		}
		prev = report[0]
	}
}

// HIDDeviceInfo describes a HID device found on the host
type HIDDeviceInfo struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
}

// ListHIDDevices returns the HID devices present on the host
func ListHIDDevices() ([]HIDDeviceInfo, error) {
	devices, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate HID devices: %w", err)
	}

	result := make([]HIDDeviceInfo, 0, len(devices))
	for _, d := range devices {
		result = append(result, HIDDeviceInfo{
			Path:         d.Path(),
			VendorID:     d.VendorId(),
			ProductID:    d.ProductId(),
			Manufacturer: d.Manufacturer(),
			Product:      d.Product(),
		})
	}
	return result, nil
}

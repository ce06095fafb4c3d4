// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/Thermoquad/linstroke/pkg/stroke"
)

// SerialSource reads console commands, one per line, from a serial pendant
// and writes the replies back
type SerialSource struct {
	portName string
	baudRate int
	port     serial.Port
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// OpenSerial opens a serial port at baudRate, 8N1
func OpenSerial(portName string, baudRate int, logger *slog.Logger) (*SerialSource, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialSource{
		portName: portName,
		baudRate: baudRate,
		port:     port,
		logger:   logger.With("source", "serial", "port", portName),
	}, nil
}

func (s *SerialSource) Name() string {
	return fmt.Sprintf("Serial: %s @ %d baud", s.portName, s.baudRate)
}

// Run serves commands until ctx is done. Cancellation closes the port to
// unblock the pending read.
func (s *SerialSource) Run(ctx context.Context, console *stroke.Console) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	err := serveLines(s.port, console, s.logger)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *SerialSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}

// SerialPortInfo describes a serial port found on the host
type SerialPortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// ListSerialPorts returns the serial ports present on the host
func ListSerialPorts() ([]SerialPortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	result := make([]SerialPortInfo, 0, len(ports))
	for _, p := range ports {
		result = append(result, SerialPortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return result, nil
}

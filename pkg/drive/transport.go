// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package drive

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// Transport carries one request/response exchange per tick
type Transport interface {
	Send(frame []byte) error
	// Receive blocks until a frame arrives or the deadline passes, in which
	// case it returns ErrReceiveTimeout
	Receive(buf []byte, deadline time.Time) (int, error)
	Close() error
}

// UDPTransport is a UDP socket bound to a fixed local port and connected to
// the drive
type UDPTransport struct {
	conn *net.UDPConn
}

// DialUDP binds localPort and connects to the drive. localPort 0 picks an
// ephemeral port.
func DialUDP(driveAddress string, localPort, drivePort int) (*UDPTransport, error) {
	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(driveAddress, strconv.Itoa(drivePort)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve drive address: %w", err)
	}

	laddr := &net.UDPAddr{Port: localPort}
	conn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", raddr, err)
	}

	return &UDPTransport{conn: conn}, nil
}

// LocalAddr returns the bound local address
func (t *UDPTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// RemoteAddr returns the drive address
func (t *UDPTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

func (t *UDPTransport) Send(frame []byte) error {
	_, err := t.conn.Write(frame)
	return err
}

func (t *UDPTransport) Receive(buf []byte, deadline time.Time) (int, error) {
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	n, err := t.conn.Read(buf)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return 0, ErrReceiveTimeout
	}
	return n, err
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

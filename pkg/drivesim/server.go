// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package drivesim

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/Thermoquad/linstroke/pkg/linudp"
)

// maxStep bounds the simulated time between two requests so a paused
// client does not teleport the slider
const maxStep = 50 * time.Millisecond

// Serve answers requests arriving on conn until ctx is done
func (d *Drive) Serve(ctx context.Context, conn net.PacketConn, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		in   [linudp.BUFFER_SIZE]byte
		out  [linudp.BUFFER_SIZE]byte
		last time.Time
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		// Wake up periodically to notice cancellation
		if err := conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
			return err
		}
		n, addr, err := conn.ReadFrom(in[:])
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		now := time.Now()
		var dt time.Duration
		if !last.IsZero() {
			dt = min(now.Sub(last), maxStep)
		}
		last = now

		m, err := d.Handle(in[:n], out[:], dt)
		if err != nil {
			logger.Warn("dropping request", "from", addr.String(), "error", err)
			continue
		}
		if _, err := conn.WriteTo(out[:m], addr); err != nil {
			logger.Warn("failed to send response", "to", addr.String(), "error", err)
		}
	}
}

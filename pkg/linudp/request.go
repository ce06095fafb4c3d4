// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package linudp implements the LinUDP request/response framing used to talk
// to a drive over UDP. Which optional fields a frame carries is declared by
// its leading flag words.
package linudp

import (
	"fmt"

	"github.com/Thermoquad/linstroke/pkg/mci"
	"github.com/Thermoquad/linstroke/pkg/wire"
)

// RealtimeConfiguration is the realtime configuration command block
type RealtimeConfiguration struct {
	Command    uint16
	Parameters [3]uint16
}

func (c RealtimeConfiguration) writeTo(w *wire.Writer) error {
	if err := w.WriteU16(c.Command); err != nil {
		return err
	}
	for _, p := range c.Parameters {
		if err := w.WriteU16(p); err != nil {
			return err
		}
	}
	return nil
}

func readRealtimeConfiguration(r *wire.Reader) (RealtimeConfiguration, error) {
	// Read as one block so a short buffer fails before anything is consumed
	b, err := r.ReadBytes(8)
	if err != nil {
		return RealtimeConfiguration{}, err
	}
	br := wire.NewReader(b)
	var c RealtimeConfiguration
	c.Command, _ = br.ReadU16()
	for i := range c.Parameters {
		c.Parameters[i], _ = br.ReadU16()
	}
	return c, nil
}

// Request is a frame sent to the drive. A nil field is absent from the wire.
type Request struct {
	ResponseFlags         ResponseFlags
	ControlFlags          *mci.ControlFlags
	MotionCommand         *mci.MotionCommand
	RealtimeConfiguration *RealtimeConfiguration
}

// Flags derives the request flag word from the populated fields
func (r *Request) Flags() RequestFlags {
	var f RequestFlags
	if r.ControlFlags != nil {
		f |= REQ_CONTROL_FLAGS
	}
	if r.MotionCommand != nil {
		f |= REQ_MOTION_COMMAND
	}
	if r.RealtimeConfiguration != nil {
		f |= REQ_REALTIME_CONFIGURATION
	}
	return f
}

// Encode writes the request into buf and returns the number of bytes used
func (r *Request) Encode(buf []byte) (int, error) {
	w := wire.NewWriter(buf)

	if err := w.WriteU32(uint32(r.Flags())); err != nil {
		return 0, fmt.Errorf("request flags: %w", err)
	}
	if err := w.WriteU32(uint32(r.ResponseFlags)); err != nil {
		return 0, fmt.Errorf("response flags: %w", err)
	}
	if r.ControlFlags != nil {
		if err := w.WriteU16(uint16(*r.ControlFlags)); err != nil {
			return 0, fmt.Errorf("control flags: %w", err)
		}
	}
	if r.MotionCommand != nil {
		if err := r.MotionCommand.WriteTo(w); err != nil {
			return 0, fmt.Errorf("motion command: %w", err)
		}
	}
	if r.RealtimeConfiguration != nil {
		if err := r.RealtimeConfiguration.writeTo(w); err != nil {
			return 0, fmt.Errorf("realtime configuration: %w", err)
		}
	}

	return w.Pos(), nil
}

// DecodeRequest parses a request as the drive sees it. Unknown flag bits
// are ignored.
func DecodeRequest(buf []byte) (*Request, error) {
	r := wire.NewReader(buf)

	reqFlags, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("request flags: %w", err)
	}
	respFlags, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("response flags: %w", err)
	}

	req := &Request{ResponseFlags: ResponseFlags(respFlags)}
	flags := RequestFlags(reqFlags)

	if flags&REQ_CONTROL_FLAGS != 0 {
		v, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("control flags: %w", err)
		}
		cf := mci.ControlFlags(v)
		req.ControlFlags = &cf
	}
	if flags&REQ_MOTION_COMMAND != 0 {
		mc, err := mci.ReadMotionCommand(r)
		if err != nil {
			return nil, fmt.Errorf("motion command: %w", err)
		}
		req.MotionCommand = &mc
	}
	if flags&REQ_REALTIME_CONFIGURATION != 0 {
		rc, err := readRealtimeConfiguration(r)
		if err != nil {
			return nil, fmt.Errorf("realtime configuration: %w", err)
		}
		req.RealtimeConfiguration = &rc
	}

	return req, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package linudp

import (
	"fmt"

	"github.com/Thermoquad/linstroke/pkg/mci"
	"github.com/Thermoquad/linstroke/pkg/wire"
)

// MonitoringChannel holds the four configurable monitoring values
type MonitoringChannel [4]uint32

// Response is a frame received from the drive. A nil field was not sent.
type Response struct {
	// Raw flag words as received, unknown bits included
	RequestFlags  RequestFlags
	ResponseFlags ResponseFlags

	StatusFlags           *mci.StatusFlags
	State                 mci.State
	ActualPosition        *mci.Position
	DemandPosition        *mci.Position
	Current               *mci.Current
	WarningFlags          *mci.WarningFlags
	ErrorCode             *mci.ErrorCode
	MonitoringChannel     *MonitoringChannel
	RealtimeConfiguration *RealtimeConfiguration
}

// DecodeResponse parses a response. Fields are read in flag bit order. The
// realtime configuration is only read when the echoed request flags carry
// it too, since drives set the response bit regardless. A short buffer fails
// the whole decode.
func DecodeResponse(buf []byte) (*Response, error) {
	r := wire.NewReader(buf)

	reqFlags, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("request flags: %w", err)
	}
	respFlags, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("response flags: %w", err)
	}

	resp := &Response{
		RequestFlags:  RequestFlags(reqFlags),
		ResponseFlags: ResponseFlags(respFlags),
	}
	flags := resp.ResponseFlags

	if flags&RESP_STATUS_FLAGS != 0 {
		v, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("status flags: %w", err)
		}
		sf := mci.StatusFlags(v)
		resp.StatusFlags = &sf
	}
	if flags&RESP_STATE != 0 {
		b, err := r.ReadBytes(2)
		if err != nil {
			return nil, fmt.Errorf("state: %w", err)
		}
		resp.State = mci.DecodeState(b[0], b[1])
	}
	if flags&RESP_ACTUAL_POSITION != 0 {
		v, err := r.ReadI32()
		if err != nil {
			return nil, fmt.Errorf("actual position: %w", err)
		}
		p := mci.Position(v)
		resp.ActualPosition = &p
	}
	if flags&RESP_DEMAND_POSITION != 0 {
		v, err := r.ReadI32()
		if err != nil {
			return nil, fmt.Errorf("demand position: %w", err)
		}
		p := mci.Position(v)
		resp.DemandPosition = &p
	}
	if flags&RESP_CURRENT != 0 {
		v, err := r.ReadI16()
		if err != nil {
			return nil, fmt.Errorf("current: %w", err)
		}
		c := mci.Current(v)
		resp.Current = &c
	}
	if flags&RESP_WARNING_FLAGS != 0 {
		v, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("warning flags: %w", err)
		}
		wf := mci.WarningFlags(v)
		resp.WarningFlags = &wf
	}
	if flags&RESP_ERROR_CODE != 0 {
		v, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("error code: %w", err)
		}
		ec := mci.ErrorCode(v)
		resp.ErrorCode = &ec
	}
	if flags&RESP_MONITORING_CHANNEL != 0 {
		v, err := r.ReadU32x4()
		if err != nil {
			return nil, fmt.Errorf("monitoring channel: %w", err)
		}
		mc := MonitoringChannel(v)
		resp.MonitoringChannel = &mc
	}
	if flags&RESP_REALTIME_CONFIGURATION != 0 && resp.RequestFlags&REQ_REALTIME_CONFIGURATION != 0 {
		rc, err := readRealtimeConfiguration(r)
		if err != nil {
			return nil, fmt.Errorf("realtime configuration: %w", err)
		}
		resp.RealtimeConfiguration = &rc
	}

	return resp, nil
}

// presence returns the response flag bits of the populated fields
func (resp *Response) presence() ResponseFlags {
	var f ResponseFlags
	if resp.StatusFlags != nil {
		f |= RESP_STATUS_FLAGS
	}
	if resp.State != nil {
		f |= RESP_STATE
	}
	if resp.ActualPosition != nil {
		f |= RESP_ACTUAL_POSITION
	}
	if resp.DemandPosition != nil {
		f |= RESP_DEMAND_POSITION
	}
	if resp.Current != nil {
		f |= RESP_CURRENT
	}
	if resp.WarningFlags != nil {
		f |= RESP_WARNING_FLAGS
	}
	if resp.ErrorCode != nil {
		f |= RESP_ERROR_CODE
	}
	if resp.MonitoringChannel != nil {
		f |= RESP_MONITORING_CHANNEL
	}
	if resp.RealtimeConfiguration != nil {
		f |= RESP_REALTIME_CONFIGURATION
	}
	return f
}

// Encode writes the response as a drive would. The flag word sent is
// ResponseFlags plus the bits of every populated field; a flagged field that
// is nil is written as its zero value. The realtime configuration payload is
// only written when RequestFlags carries its bit.
func (resp *Response) Encode(buf []byte) (int, error) {
	w := wire.NewWriter(buf)
	flags := resp.ResponseFlags | resp.presence()

	if err := w.WriteU32(uint32(resp.RequestFlags)); err != nil {
		return 0, fmt.Errorf("request flags: %w", err)
	}
	if err := w.WriteU32(uint32(flags)); err != nil {
		return 0, fmt.Errorf("response flags: %w", err)
	}

	if flags&RESP_STATUS_FLAGS != 0 {
		if err := w.WriteU16(uint16(deref(resp.StatusFlags))); err != nil {
			return 0, fmt.Errorf("status flags: %w", err)
		}
	}
	if flags&RESP_STATE != 0 {
		var sub, main uint8
		if resp.State != nil {
			sub, main = resp.State.Raw()
		}
		if err := w.WriteBytes([]byte{sub, main}); err != nil {
			return 0, fmt.Errorf("state: %w", err)
		}
	}
	if flags&RESP_ACTUAL_POSITION != 0 {
		if err := w.WriteI32(int32(deref(resp.ActualPosition))); err != nil {
			return 0, fmt.Errorf("actual position: %w", err)
		}
	}
	if flags&RESP_DEMAND_POSITION != 0 {
		if err := w.WriteI32(int32(deref(resp.DemandPosition))); err != nil {
			return 0, fmt.Errorf("demand position: %w", err)
		}
	}
	if flags&RESP_CURRENT != 0 {
		if err := w.WriteI16(int16(deref(resp.Current))); err != nil {
			return 0, fmt.Errorf("current: %w", err)
		}
	}
	if flags&RESP_WARNING_FLAGS != 0 {
		if err := w.WriteU16(uint16(deref(resp.WarningFlags))); err != nil {
			return 0, fmt.Errorf("warning flags: %w", err)
		}
	}
	if flags&RESP_ERROR_CODE != 0 {
		if err := w.WriteU16(uint16(deref(resp.ErrorCode))); err != nil {
			return 0, fmt.Errorf("error code: %w", err)
		}
	}
	if flags&RESP_MONITORING_CHANNEL != 0 {
		if err := w.WriteU32x4([4]uint32(deref(resp.MonitoringChannel))); err != nil {
			return 0, fmt.Errorf("monitoring channel: %w", err)
		}
	}
	if flags&RESP_REALTIME_CONFIGURATION != 0 && resp.RequestFlags&REQ_REALTIME_CONFIGURATION != 0 {
		if err := deref(resp.RealtimeConfiguration).writeTo(w); err != nil {
			return 0, fmt.Errorf("realtime configuration: %w", err)
		}
	}

	return w.Pos(), nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

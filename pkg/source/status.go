// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package source

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/linstroke/pkg/drive"
)

// Remote console message types. Messages are CBOR arrays: [msg_type, payload].
const (
	MSG_STATUS = 0x01
)

// Status is the snapshot pushed to remote consoles once per report window.
// Drive fields are absent until the first good response.
type Status struct {
	Time int64 `cbor:"0,keyasint"` // unix milliseconds

	State          string  `cbor:"1,keyasint,omitempty"`
	ActualPosition *int32  `cbor:"2,keyasint,omitempty"` // 0.1 µm
	DemandPosition *int32  `cbor:"3,keyasint,omitempty"` // 0.1 µm
	Current        *int16  `cbor:"4,keyasint,omitempty"` // mA
	ErrorCode      *uint16 `cbor:"5,keyasint,omitempty"`
	WarningFlags   *uint16 `cbor:"6,keyasint,omitempty"`

	ControlFlags   uint16 `cbor:"7,keyasint"`
	Mode           string `cbor:"8,keyasint"`
	Start          int32  `cbor:"9,keyasint"`  // 0.1 µm
	End            int32  `cbor:"10,keyasint"` // 0.1 µm
	MovingForwards bool   `cbor:"11,keyasint"`
	AckPending     bool   `cbor:"12,keyasint"`

	Ticks     uint64  `cbor:"13,keyasint"`
	Errors    uint64  `cbor:"14,keyasint"`
	Overruns  uint64  `cbor:"15,keyasint"`
	Anomalies uint64  `cbor:"16,keyasint"`
	Usage     float64 `cbor:"17,keyasint"` // percent of the tick interval
}

// NewStatus builds a snapshot from a loop report
func NewStatus(r drive.Report) Status {
	s := Status{
		Time:           r.Time.UnixMilli(),
		ControlFlags:   uint16(r.ControlFlags),
		Mode:           r.Params.Mode(),
		Start:          int32(r.Params.Start),
		End:            int32(r.Params.End),
		MovingForwards: r.MovingForwards,
		AckPending:     r.AckPending,
		Ticks:          r.Stats.Ticks,
		Errors:         r.Stats.Errors,
		Overruns:       r.Stats.Overruns,
		Anomalies:      r.Stats.Anomalies,
		Usage:          r.Usage,
	}

	resp := r.Response
	if resp == nil {
		return s
	}
	if resp.State != nil {
		s.State = resp.State.String()
	}
	if resp.ActualPosition != nil {
		v := int32(*resp.ActualPosition)
		s.ActualPosition = &v
	}
	if resp.DemandPosition != nil {
		v := int32(*resp.DemandPosition)
		s.DemandPosition = &v
	}
	if resp.Current != nil {
		v := int16(*resp.Current)
		s.Current = &v
	}
	if resp.ErrorCode != nil {
		v := uint16(*resp.ErrorCode)
		s.ErrorCode = &v
	}
	if resp.WarningFlags != nil {
		v := uint16(*resp.WarningFlags)
		s.WarningFlags = &v
	}
	return s
}

// EncodeStatus encodes a status message
func EncodeStatus(s Status) ([]byte, error) {
	return cbor.Marshal([]interface{}{uint64(MSG_STATUS), s})
}

// ParseStatus decodes a status message
func ParseStatus(data []byte) (*Status, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}

	var msg []cbor.RawMessage
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if len(msg) != 2 {
		return nil, fmt.Errorf("expected 2-element array, got %d elements", len(msg))
	}

	var msgType uint64
	if err := cbor.Unmarshal(msg[0], &msgType); err != nil {
		return nil, fmt.Errorf("expected uint for message type: %w", err)
	}
	if msgType != MSG_STATUS {
		return nil, fmt.Errorf("unexpected message type 0x%02X", msgType)
	}

	var s Status
	if err := cbor.Unmarshal(msg[1], &s); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return &s, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package linudp

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/Thermoquad/linstroke/pkg/mci"
	"github.com/Thermoquad/linstroke/pkg/wire"
)

// ============================================================
// Helpers
// ============================================================

func ptr[T any](v T) *T { return &v }

// responseWithFields populates the fields selected by mask (bit i = field i
// in response flag order)
func responseWithFields(mask ResponseFlags) *Response {
	r := &Response{RequestFlags: REQ_REALTIME_CONFIGURATION}
	if mask&RESP_STATUS_FLAGS != 0 {
		r.StatusFlags = ptr(mci.StatusOperationEnabled | mci.StatusHomed | mci.StatusFlags(1<<15))
	}
	if mask&RESP_STATE != 0 {
		r.State = mci.OperationEnabled{MotionCommandCount: 9, Homed: true, MotionActive: true}
	}
	if mask&RESP_ACTUAL_POSITION != 0 {
		r.ActualPosition = ptr(mci.PositionFromMillimeters(-12))
	}
	if mask&RESP_DEMAND_POSITION != 0 {
		r.DemandPosition = ptr(mci.PositionFromMillimeters(40))
	}
	if mask&RESP_CURRENT != 0 {
		r.Current = ptr(mci.Current(-1500))
	}
	if mask&RESP_WARNING_FLAGS != 0 {
		r.WarningFlags = ptr(mci.WarnDriveHot | mci.WarningFlags(1<<13))
	}
	if mask&RESP_ERROR_CODE != 0 {
		r.ErrorCode = ptr(mci.ErrorCode(0xBEEF))
	}
	if mask&RESP_MONITORING_CHANNEL != 0 {
		r.MonitoringChannel = &MonitoringChannel{1, 2, 0xFFFFFFFF, 4}
	}
	if mask&RESP_REALTIME_CONFIGURATION != 0 {
		r.RealtimeConfiguration = &RealtimeConfiguration{Command: 0x1234, Parameters: [3]uint16{5, 6, 7}}
	}
	return r
}

// ============================================================
// Request Tests
// ============================================================

func TestRequest_FlagsMatchPresence(t *testing.T) {
	cf := mci.SwitchOn
	mc := mci.MotionCommand{Command: mci.NoOperation{}}
	rc := RealtimeConfiguration{}

	for mask := 0; mask < 8; mask++ {
		req := &Request{}
		if mask&1 != 0 {
			req.ControlFlags = &cf
		}
		if mask&2 != 0 {
			req.MotionCommand = &mc
		}
		if mask&4 != 0 {
			req.RealtimeConfiguration = &rc
		}
		if got := req.Flags(); got != RequestFlags(mask) {
			t.Errorf("Flags() = %s, want %s", got, RequestFlags(mask))
		}

		buf := make([]byte, BUFFER_SIZE)
		n, err := req.Encode(buf)
		if err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
		reqFlags, _ := wire.NewReader(buf[:n]).ReadU32()
		if RequestFlags(reqFlags) != RequestFlags(mask) {
			t.Errorf("encoded request flags = 0x%X, want 0x%X", reqFlags, mask)
		}

		wantLen := 8
		if mask&1 != 0 {
			wantLen += 2
		}
		if mask&2 != 0 {
			wantLen += mci.MotionCommandSize
		}
		if mask&4 != 0 {
			wantLen += 8
		}
		if n != wantLen {
			t.Errorf("Encode() length = %d, want %d", n, wantLen)
		}
	}
}

func TestRequest_Encode_ControlOnly(t *testing.T) {
	cf := mci.SwitchOn
	req := &Request{ResponseFlags: DEFAULT_RESPONSE_FLAGS, ControlFlags: &cf}

	buf := make([]byte, BUFFER_SIZE)
	n, err := req.Encode(buf)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	want := []byte{0x01, 0, 0, 0, 0x7F, 0, 0, 0, 0x01, 0x00}
	if !bytes.Equal(buf[:n], want) {
		t.Errorf("Encode() = % X, want % X", buf[:n], want)
	}
}

func TestRequest_RoundTrip(t *testing.T) {
	cf := mci.SwitchOn | mci.Home
	mc := mci.MotionCommand{
		Count: 11,
		Command: mci.VAIGoToPos{
			TargetPosition:  mci.PositionFromMillimeters(25),
			MaximalVelocity: mci.VelocityFromMetersPerSecond(1),
			Acceleration:    mci.AccelerationFromMetersPerSecondSquared(2),
			Deceleration:    mci.AccelerationFromMetersPerSecondSquared(3),
		},
	}
	rc := RealtimeConfiguration{Command: 0x0101, Parameters: [3]uint16{1, 2, 3}}

	for mask := 0; mask < 8; mask++ {
		want := &Request{ResponseFlags: DEFAULT_RESPONSE_FLAGS | RESP_MONITORING_CHANNEL}
		if mask&1 != 0 {
			want.ControlFlags = &cf
		}
		if mask&2 != 0 {
			want.MotionCommand = &mc
		}
		if mask&4 != 0 {
			want.RealtimeConfiguration = &rc
		}

		buf := make([]byte, BUFFER_SIZE)
		n, err := want.Encode(buf)
		if err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
		got, err := DecodeRequest(buf[:n])
		if err != nil {
			t.Fatalf("DecodeRequest() error: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("mask %d: DecodeRequest() = %+v, want %+v", mask, got, want)
		}
	}
}

func TestRequest_EncodeOverflow(t *testing.T) {
	mc := mci.MotionCommand{Command: mci.NoOperation{}}
	req := &Request{MotionCommand: &mc}
	if _, err := req.Encode(make([]byte, 20)); !errors.Is(err, wire.ErrOverflow) {
		t.Errorf("Encode() error = %v, want ErrOverflow", err)
	}
}

// ============================================================
// Response Tests
// ============================================================

func TestResponse_RoundTripAllSubsets(t *testing.T) {
	all := RESP_REALTIME_CONFIGURATION<<1 - 1
	for mask := ResponseFlags(0); mask <= all; mask++ {
		orig := responseWithFields(mask)

		buf := make([]byte, BUFFER_SIZE)
		n, err := orig.Encode(buf)
		if err != nil {
			t.Fatalf("mask %s: Encode() error: %v", mask, err)
		}
		got, err := DecodeResponse(buf[:n])
		if err != nil {
			t.Fatalf("mask %s: DecodeResponse() error: %v", mask, err)
		}

		want := *orig
		want.ResponseFlags = mask
		if !reflect.DeepEqual(got, &want) {
			t.Fatalf("mask %s: DecodeResponse() = %+v, want %+v", mask, got, want)
		}
	}
}

func TestDecodeResponse_RealtimeConfigurationGating(t *testing.T) {
	w := wire.NewWriter(make([]byte, BUFFER_SIZE))
	_ = w.WriteU32(0)
	_ = w.WriteU32(uint32(RESP_REALTIME_CONFIGURATION))
	_ = w.WriteBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8})

	resp, err := DecodeResponse(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeResponse() error: %v", err)
	}
	if resp.RealtimeConfiguration != nil {
		t.Errorf("RealtimeConfiguration = %+v, want nil when not requested", resp.RealtimeConfiguration)
	}
	if resp.ResponseFlags != RESP_REALTIME_CONFIGURATION {
		t.Errorf("ResponseFlags = %s, raw bit should be kept", resp.ResponseFlags)
	}

	// The same bytes with the request bit echoed do carry the payload
	buf := w.Bytes()
	buf[0] = byte(REQ_REALTIME_CONFIGURATION)
	resp, err = DecodeResponse(buf)
	if err != nil {
		t.Fatalf("DecodeResponse() error: %v", err)
	}
	want := &RealtimeConfiguration{Command: 0x0201, Parameters: [3]uint16{0x0403, 0x0605, 0x0807}}
	if !reflect.DeepEqual(resp.RealtimeConfiguration, want) {
		t.Errorf("RealtimeConfiguration = %+v, want %+v", resp.RealtimeConfiguration, want)
	}
}

func TestResponse_EncodeSkipsUnrequestedRealtimeConfiguration(t *testing.T) {
	resp := &Response{
		ResponseFlags:         RESP_STATE,
		State:                 mci.ReadyToSwitchOn{},
		RealtimeConfiguration: &RealtimeConfiguration{Command: 1},
	}
	buf := make([]byte, BUFFER_SIZE)
	n, err := resp.Encode(buf)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if n != 10 {
		t.Errorf("Encode() length = %d, want 10 (header + state)", n)
	}

	got, err := DecodeResponse(buf[:n])
	if err != nil {
		t.Fatalf("DecodeResponse() error: %v", err)
	}
	if got.ResponseFlags&RESP_REALTIME_CONFIGURATION == 0 {
		t.Error("capability bit not echoed")
	}
	if got.RealtimeConfiguration != nil {
		t.Error("RealtimeConfiguration decoded without being requested")
	}
}

func TestDecodeResponse_TruncatedFails(t *testing.T) {
	full := responseWithFields(RESP_REALTIME_CONFIGURATION<<1 - 1)
	buf := make([]byte, BUFFER_SIZE)
	n, err := full.Encode(buf)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	for size := 0; size < n; size++ {
		resp, err := DecodeResponse(buf[:size])
		if !errors.Is(err, wire.ErrUnderflow) {
			t.Errorf("DecodeResponse(%d bytes) error = %v, want ErrUnderflow", size, err)
		}
		if resp != nil {
			t.Errorf("DecodeResponse(%d bytes) returned a partial response", size)
		}
	}
}

func TestDecodeResponse_UnknownBitsIgnored(t *testing.T) {
	w := wire.NewWriter(make([]byte, BUFFER_SIZE))
	_ = w.WriteU32(0x80000000)
	_ = w.WriteU32(uint32(RESP_CURRENT) | 0x40000000)
	_ = w.WriteI16(250)

	resp, err := DecodeResponse(w.Bytes())
	if err != nil {
		t.Fatalf("DecodeResponse() error: %v", err)
	}
	if resp.Current == nil || *resp.Current != 250 {
		t.Errorf("Current = %v, want 250", resp.Current)
	}
	if resp.RequestFlags != 0x80000000 || resp.ResponseFlags != RESP_CURRENT|0x40000000 {
		t.Errorf("raw flags not preserved: %08X %08X", uint32(resp.RequestFlags), uint32(resp.ResponseFlags))
	}
}

// ============================================================
// Formatter and Validator Tests
// ============================================================

func TestFormatResponse(t *testing.T) {
	resp := responseWithFields(RESP_STATE | RESP_ACTUAL_POSITION | RESP_CURRENT)
	out := FormatResponse(resp)

	for _, want := range []string{"OperationEnabled(count=9 homed moving)", "actual=-12mm", "demand=-", "-1.5A"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatResponse() missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatRequest(t *testing.T) {
	cf := mci.SwitchOn | mci.Home
	req := &Request{ResponseFlags: RESP_STATE, ControlFlags: &cf}
	out := FormatRequest(req)

	for _, want := range []string{"flags=CONTROL_FLAGS", "respond=STATE", "SWITCH_ON|HOME"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatRequest() missing %q in:\n%s", want, out)
		}
	}
}

func TestFlagWord_String(t *testing.T) {
	if got := (RESP_STATE | ResponseFlags(1<<20)).String(); got != "STATE|BIT_20" {
		t.Errorf("String() = %q, want STATE|BIT_20", got)
	}
	if got := RequestFlags(0).String(); got != "(none)" {
		t.Errorf("String() = %q, want (none)", got)
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name   string
		resp   *Response
		maxLag mci.Position
		want   []AnomalyType
	}{
		{
			name: "clean",
			resp: &Response{ErrorCode: ptr(mci.ErrNone), WarningFlags: ptr(mci.WarningFlags(0))},
			want: nil,
		},
		{
			name: "warning and error",
			resp: &Response{ErrorCode: ptr(mci.ErrNotHomed), WarningFlags: ptr(mci.WarnDriveHot)},
			want: []AnomalyType{ANOMALY_WARNING, ANOMALY_DRIVE_ERROR},
		},
		{
			name: "fatal status",
			resp: &Response{StatusFlags: ptr(mci.StatusError | mci.StatusFatalError)},
			want: []AnomalyType{ANOMALY_FATAL_ERROR},
		},
		{
			name: "unknown state",
			resp: &Response{State: mci.Unknown{Main: 99}},
			want: []AnomalyType{ANOMALY_UNKNOWN_STATE},
		},
		{
			name: "lag beyond limit",
			resp: &Response{
				ActualPosition: ptr(mci.PositionFromMillimeters(10)),
				DemandPosition: ptr(mci.PositionFromMillimeters(7)),
			},
			maxLag: mci.PositionFromMillimeters(2),
			want:   []AnomalyType{ANOMALY_POSITION_LAG},
		},
		{
			name: "lag check disabled",
			resp: &Response{
				ActualPosition: ptr(mci.PositionFromMillimeters(10)),
				DemandPosition: ptr(mci.PositionFromMillimeters(7)),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateResponse(tt.resp, tt.maxLag)
			var got []AnomalyType
			for _, e := range errs {
				got = append(got, e.Type)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ValidateResponse() types = %v, want %v", got, tt.want)
			}
		})
	}
}

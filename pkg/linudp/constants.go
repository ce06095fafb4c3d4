// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package linudp

// UDP Ports
const (
	MASTER_PORT = 0xA0B0 // local port of the controlling host
	DRIVE_PORT  = 0xC0D0 // port the drive listens on
)

// BUFFER_SIZE is the largest frame either side sends
const BUFFER_SIZE = 64

// RequestFlags declares which optional fields a request carries. The drive
// echoes the word back at the start of every response.
type RequestFlags uint32

const (
	REQ_CONTROL_FLAGS          RequestFlags = 1 << 0
	REQ_MOTION_COMMAND         RequestFlags = 1 << 1
	REQ_REALTIME_CONFIGURATION RequestFlags = 1 << 2
)

// ResponseFlags selects the response fields. Fields appear on the wire in
// ascending bit order.
type ResponseFlags uint32

const (
	RESP_STATUS_FLAGS           ResponseFlags = 1 << 0
	RESP_STATE                  ResponseFlags = 1 << 1
	RESP_ACTUAL_POSITION        ResponseFlags = 1 << 2
	RESP_DEMAND_POSITION        ResponseFlags = 1 << 3
	RESP_CURRENT                ResponseFlags = 1 << 4
	RESP_WARNING_FLAGS          ResponseFlags = 1 << 5
	RESP_ERROR_CODE             ResponseFlags = 1 << 6
	RESP_MONITORING_CHANNEL     ResponseFlags = 1 << 7
	RESP_REALTIME_CONFIGURATION ResponseFlags = 1 << 8
)

// DEFAULT_RESPONSE_FLAGS is the set the control loop asks for every tick
const DEFAULT_RESPONSE_FLAGS = RESP_STATUS_FLAGS | RESP_STATE | RESP_ACTUAL_POSITION |
	RESP_DEMAND_POSITION | RESP_CURRENT | RESP_WARNING_FLAGS | RESP_ERROR_CODE

var requestFlagNames = []string{"CONTROL_FLAGS", "MOTION_COMMAND", "REALTIME_CONFIGURATION"}

var responseFlagNames = []string{
	"STATUS_FLAGS", "STATE", "ACTUAL_POSITION", "DEMAND_POSITION", "CURRENT",
	"WARNING_FLAGS", "ERROR_CODE", "MONITORING_CHANNEL", "REALTIME_CONFIGURATION",
}

func (f RequestFlags) String() string  { return formatFlagWord(uint32(f), requestFlagNames) }
func (f ResponseFlags) String() string { return formatFlagWord(uint32(f), responseFlagNames) }

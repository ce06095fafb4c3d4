// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mci

import "fmt"

// ErrorCode is a drive error code. Codes outside the table below are kept as
// their raw value and render as Unknown(0x....).
type ErrorCode uint16

const (
	ErrNone                      ErrorCode = 0x00
	ErrLogicSupplyTooLow         ErrorCode = 0x01
	ErrLogicSupplyTooHigh        ErrorCode = 0x02
	ErrMotorSupplyTooLow         ErrorCode = 0x03
	ErrMotorSupplyTooHigh        ErrorCode = 0x04
	ErrMinPositionUndershot      ErrorCode = 0x07
	ErrMaxPositionOvershot       ErrorCode = 0x08
	ErrPositionLagAlwaysTooBig   ErrorCode = 0x0B
	ErrMotorHotSensor            ErrorCode = 0x20
	ErrMotorSliderMissing        ErrorCode = 0x22
	ErrMotorShortTimeOverload    ErrorCode = 0x23
	ErrMotorCommunicationLost    ErrorCode = 0x45
	ErrNotHomed                  ErrorCode = 0x80
	ErrUnknownMotionCommand      ErrorCode = 0x81
	ErrPVTBufferOverflow         ErrorCode = 0x82
	ErrPVTBufferUnderflow        ErrorCode = 0x83
	ErrPVTControllerTooFast      ErrorCode = 0x84
	ErrPVTControllerTooSlow      ErrorCode = 0x85
	ErrMotionCommandInWrongState ErrorCode = 0x86
)

var errorCodeNames = map[ErrorCode]string{
	ErrNone:                      "NoError",
	ErrLogicSupplyTooLow:         "LogicSupplyTooLow",
	ErrLogicSupplyTooHigh:        "LogicSupplyTooHigh",
	ErrMotorSupplyTooLow:         "MotorSupplyTooLow",
	ErrMotorSupplyTooHigh:        "MotorSupplyTooHigh",
	ErrMinPositionUndershot:      "MinPositionUndershot",
	ErrMaxPositionOvershot:       "MaxPositionOvershot",
	ErrPositionLagAlwaysTooBig:   "PositionLagAlwaysTooBig",
	ErrMotorHotSensor:            "MotorHotSensor",
	ErrMotorSliderMissing:        "MotorSliderMissing",
	ErrMotorShortTimeOverload:    "MotorShortTimeOverload",
	ErrMotorCommunicationLost:    "MotorCommunicationLost",
	ErrNotHomed:                  "NotHomed",
	ErrUnknownMotionCommand:      "UnknownMotionCommand",
	ErrPVTBufferOverflow:         "PvtBufferOverflow",
	ErrPVTBufferUnderflow:        "PvtBufferUnderflow",
	ErrPVTControllerTooFast:      "PvtControllerTooFast",
	ErrPVTControllerTooSlow:      "PvtControllerTooSlow",
	ErrMotionCommandInWrongState: "MotionCommandInWrongState",
}

// Known reports whether the code is part of the error table
func (c ErrorCode) Known() bool {
	_, ok := errorCodeNames[c]
	return ok
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%04X)", uint16(c))
}

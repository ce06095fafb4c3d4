// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mci implements the semantics of the LinMot Motion Command Interface
// carried inside LinUDP frames: control, status and warning words, the drive
// state machine encoding, error codes, physical units, and motion commands.
package mci

import (
	"fmt"
	"strings"
)

// ControlFlags is the control word sent to the drive
type ControlFlags uint16

const (
	SwitchOn            ControlFlags = 1 << 0
	VoltageEnable       ControlFlags = 1 << 1
	QuickStopDisable    ControlFlags = 1 << 2
	EnableOperation     ControlFlags = 1 << 3
	AbortDisable        ControlFlags = 1 << 4
	FreezeDisable       ControlFlags = 1 << 5
	GoToPositionFlag    ControlFlags = 1 << 6
	ErrorAcknowledge    ControlFlags = 1 << 7
	JogMovePositive     ControlFlags = 1 << 8
	JogMoveNegative     ControlFlags = 1 << 9
	SpecialMode         ControlFlags = 1 << 10
	Home                ControlFlags = 1 << 11
	ClearanceCheckFlag  ControlFlags = 1 << 12
	GoToInitialPosition ControlFlags = 1 << 13
	PhaseSearchFlag     ControlFlags = 1 << 15
)

var controlFlagNames = [16]string{
	"SWITCH_ON", "VOLTAGE_ENABLE", "QUICK_STOP_DISABLE", "ENABLE_OPERATION",
	"ABORT_DISABLE", "FREEZE_DISABLE", "GO_TO_POSITION", "ERROR_ACKNOWLEDGE",
	"JOG_MOVE_POSITIVE", "JOG_MOVE_NEGATIVE", "SPECIAL_MODE", "HOME",
	"CLEARANCE_CHECK", "GO_TO_INITIAL_POSITION", "", "PHASE_SEARCH",
}

// Has reports whether all bits of mask are set
func (f ControlFlags) Has(mask ControlFlags) bool { return f&mask == mask }

func (f ControlFlags) String() string { return formatFlags(uint16(f), &controlFlagNames) }

// StatusFlags is the status word reported by the drive
type StatusFlags uint16

const (
	StatusOperationEnabled    StatusFlags = 1 << 0
	StatusSwitchOnActive      StatusFlags = 1 << 1
	StatusEnableOperation     StatusFlags = 1 << 2
	StatusError               StatusFlags = 1 << 3
	StatusVoltageEnable       StatusFlags = 1 << 4
	StatusQuickStopDisable    StatusFlags = 1 << 5
	StatusSwitchOnLocked      StatusFlags = 1 << 6
	StatusWarning             StatusFlags = 1 << 7
	StatusEventHandlerActive  StatusFlags = 1 << 8
	StatusSpecialMotionActive StatusFlags = 1 << 9
	StatusInTargetPosition    StatusFlags = 1 << 10
	StatusHomed               StatusFlags = 1 << 11
	StatusFatalError          StatusFlags = 1 << 12
	StatusMotionActive        StatusFlags = 1 << 13
	StatusRangeIndicator1     StatusFlags = 1 << 14
	StatusRangeIndicator2     StatusFlags = 1 << 15
)

var statusFlagNames = [16]string{
	"OPERATION_ENABLED", "SWITCH_ON_ACTIVE", "ENABLE_OPERATION", "ERROR",
	"VOLTAGE_ENABLE", "QUICK_STOP_DISABLE", "SWITCH_ON_LOCKED", "WARNING",
	"EVENT_HANDLER_ACTIVE", "SPECIAL_MOTION_ACTIVE", "IN_TARGET_POSITION", "HOMED",
	"FATAL_ERROR", "MOTION_ACTIVE", "RANGE_INDICATOR_1", "RANGE_INDICATOR_2",
}

func (f StatusFlags) Has(mask StatusFlags) bool { return f&mask == mask }

func (f StatusFlags) String() string { return formatFlags(uint16(f), &statusFlagNames) }

// WarningFlags is the warning word reported by the drive
type WarningFlags uint16

const (
	WarnMotorHotSensor           WarningFlags = 1 << 0
	WarnMotorShortTimeOverload   WarningFlags = 1 << 1
	WarnMotorSupplyVoltageLow    WarningFlags = 1 << 2
	WarnMotorSupplyVoltageHigh   WarningFlags = 1 << 3
	WarnPositionLagAlways        WarningFlags = 1 << 4
	WarnDriveHot                 WarningFlags = 1 << 6
	WarnMotorNotHomed            WarningFlags = 1 << 7
	WarnPTCSensor1Hot            WarningFlags = 1 << 8
	WarnPTCSensor2Hot            WarningFlags = 1 << 9
	WarnRegenerativeTempOverload WarningFlags = 1 << 10
	WarnSpeedLagAlways           WarningFlags = 1 << 11
	WarnPositionSensor           WarningFlags = 1 << 12
	WarnInterface                WarningFlags = 1 << 14
	WarnApplication              WarningFlags = 1 << 15
)

var warningFlagNames = [16]string{
	"MOTOR_HOT_SENSOR", "MOTOR_SHORT_TIME_OVERLOAD", "MOTOR_SUPPLY_VOLTAGE_LOW",
	"MOTOR_SUPPLY_VOLTAGE_HIGH", "POSITION_LAG_ALWAYS", "", "DRIVE_HOT",
	"MOTOR_NOT_HOMED", "PTC_SENSOR_1_HOT", "PTC_SENSOR_2_HOT",
	"REGENERATIVE_TEMP_OVERLOAD", "SPEED_LAG_ALWAYS", "POSITION_SENSOR", "",
	"INTERFACE_WARN_FLAG", "APPLICATION_WARN_FLAG",
}

func (f WarningFlags) Has(mask WarningFlags) bool { return f&mask == mask }

func (f WarningFlags) String() string { return formatFlags(uint16(f), &warningFlagNames) }

// formatFlags renders the set bits by name, reserved bits as BIT_n
func formatFlags(v uint16, names *[16]string) string {
	if v == 0 {
		return "(none)"
	}
	parts := make([]string, 0, 4)
	for bit := 0; bit < 16; bit++ {
		if v&(1<<bit) == 0 {
			continue
		}
		if names[bit] != "" {
			parts = append(parts, names[bit])
		} else {
			parts = append(parts, fmt.Sprintf("BIT_%d", bit))
		}
	}
	return strings.Join(parts, "|")
}

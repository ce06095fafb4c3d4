// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mci

import (
	"fmt"
	"strings"
)

// Main state values of the drive state word (high byte)
const (
	MainNotReadyToSwitchOn     uint8 = 0
	MainSwitchOnDisabled       uint8 = 1
	MainReadyToSwitchOn        uint8 = 2
	MainSetupError             uint8 = 3
	MainError                  uint8 = 4
	MainHardwareTests          uint8 = 5
	MainReadyToOperate         uint8 = 6
	MainOperationEnabled       uint8 = 8
	MainHoming                 uint8 = 9
	MainClearanceCheck         uint8 = 10
	MainGoingToInitialPosition uint8 = 11
	MainAborting               uint8 = 12
	MainFreezing               uint8 = 13
	MainQuickStop              uint8 = 14
	MainGoingToPosition        uint8 = 15
	MainJoggingPositive        uint8 = 16
	MainJoggingNegative        uint8 = 17
	MainLinearizing            uint8 = 18
	MainPhaseSearch            uint8 = 19
	MainSpecialMode            uint8 = 20
	MainBrakeDelay             uint8 = 21
)

// subStateFinished marks a finished procedure in the sub state
const subStateFinished = 0x0F

// OperationEnabled sub state bits above the motion command count
const (
	opEventHandler     = 1 << 4
	opMotionActive     = 1 << 5
	opInTargetPosition = 1 << 6
	opHomed            = 1 << 7
)

// State is the decoded drive state. The set of implementations is closed:
// switch over the concrete types below.
type State interface {
	// Raw returns the (sub, main) state bytes that encode this state
	Raw() (sub, main uint8)
	String() string
	isState()
}

type NotReadyToSwitchOn struct{}
type SwitchOnDisabled struct{}
type ReadyToSwitchOn struct{}
type HardwareTests struct{}
type ReadyToOperate struct{}
type Aborting struct{}
type Freezing struct{}
type QuickStop struct{}
type Linearizing struct{}
type PhaseSearch struct{}
type SpecialModeState struct{}
type BrakeDelay struct{}

// SetupError is a configuration error; the code comes from the sub state
type SetupError struct{ Code ErrorCode }

// Error is a runtime error; the code comes from the sub state
type Error struct{ Code ErrorCode }

// OperationEnabled is the state in which motion commands are accepted
type OperationEnabled struct {
	MotionCommandCount uint8 // 4-bit echo of the last accepted command count
	EventHandler       bool
	MotionActive       bool
	InTargetPosition   bool
	Homed              bool
}

type Homing struct{ Finished bool }
type ClearanceCheck struct{ Finished bool }
type GoingToInitialPosition struct{ Finished bool }
type GoingToPosition struct{ Finished bool }
type JoggingPositive struct{ Finished bool }
type JoggingNegative struct{ Finished bool }

// Unknown preserves a main state this package does not model
type Unknown struct {
	Main uint8
	Sub  uint8
}

// DecodeState decodes the packed state word. It never fails: unrecognized
// main states decode to Unknown.
func DecodeState(sub, main uint8) State {
	finished := sub == subStateFinished

	switch main {
	case MainNotReadyToSwitchOn:
		return NotReadyToSwitchOn{}
	case MainSwitchOnDisabled:
		return SwitchOnDisabled{}
	case MainReadyToSwitchOn:
		return ReadyToSwitchOn{}
	case MainSetupError:
		return SetupError{Code: ErrorCode(sub)}
	case MainError:
		return Error{Code: ErrorCode(sub)}
	case MainHardwareTests:
		return HardwareTests{}
	case MainReadyToOperate:
		return ReadyToOperate{}
	case MainOperationEnabled:
		return OperationEnabled{
			MotionCommandCount: sub & 0x0F,
			EventHandler:       sub&opEventHandler != 0,
			MotionActive:       sub&opMotionActive != 0,
			InTargetPosition:   sub&opInTargetPosition != 0,
			Homed:              sub&opHomed != 0,
		}
	case MainHoming:
		return Homing{Finished: finished}
	case MainClearanceCheck:
		return ClearanceCheck{Finished: finished}
	case MainGoingToInitialPosition:
		return GoingToInitialPosition{Finished: finished}
	case MainAborting:
		return Aborting{}
	case MainFreezing:
		return Freezing{}
	case MainQuickStop:
		return QuickStop{}
	case MainGoingToPosition:
		return GoingToPosition{Finished: finished}
	case MainJoggingPositive:
		return JoggingPositive{Finished: finished}
	case MainJoggingNegative:
		return JoggingNegative{Finished: finished}
	case MainLinearizing:
		return Linearizing{}
	case MainPhaseSearch:
		return PhaseSearch{}
	case MainSpecialMode:
		return SpecialModeState{}
	case MainBrakeDelay:
		return BrakeDelay{}
	default:
		return Unknown{Main: main, Sub: sub}
	}
}

func finishedSub(finished bool) uint8 {
	if finished {
		return subStateFinished
	}
	return 0
}

func (NotReadyToSwitchOn) Raw() (uint8, uint8) { return 0, MainNotReadyToSwitchOn }
func (SwitchOnDisabled) Raw() (uint8, uint8)   { return 0, MainSwitchOnDisabled }
func (ReadyToSwitchOn) Raw() (uint8, uint8)    { return 0, MainReadyToSwitchOn }
func (HardwareTests) Raw() (uint8, uint8)      { return 0, MainHardwareTests }
func (ReadyToOperate) Raw() (uint8, uint8)     { return 0, MainReadyToOperate }
func (Aborting) Raw() (uint8, uint8)           { return 0, MainAborting }
func (Freezing) Raw() (uint8, uint8)           { return 0, MainFreezing }
func (QuickStop) Raw() (uint8, uint8)          { return 0, MainQuickStop }
func (Linearizing) Raw() (uint8, uint8)        { return 0, MainLinearizing }
func (PhaseSearch) Raw() (uint8, uint8)        { return 0, MainPhaseSearch }
func (SpecialModeState) Raw() (uint8, uint8)   { return 0, MainSpecialMode }
func (BrakeDelay) Raw() (uint8, uint8)         { return 0, MainBrakeDelay }

// The sub state is one byte wide, so only the low byte of the code survives
func (s SetupError) Raw() (uint8, uint8) { return uint8(s.Code), MainSetupError }
func (s Error) Raw() (uint8, uint8)      { return uint8(s.Code), MainError }

func (s OperationEnabled) Raw() (uint8, uint8) {
	sub := s.MotionCommandCount & 0x0F
	if s.EventHandler {
		sub |= opEventHandler
	}
	if s.MotionActive {
		sub |= opMotionActive
	}
	if s.InTargetPosition {
		sub |= opInTargetPosition
	}
	if s.Homed {
		sub |= opHomed
	}
	return sub, MainOperationEnabled
}

func (s Homing) Raw() (uint8, uint8) { return finishedSub(s.Finished), MainHoming }
func (s ClearanceCheck) Raw() (uint8, uint8) {
	return finishedSub(s.Finished), MainClearanceCheck
}
func (s GoingToInitialPosition) Raw() (uint8, uint8) {
	return finishedSub(s.Finished), MainGoingToInitialPosition
}
func (s GoingToPosition) Raw() (uint8, uint8) {
	return finishedSub(s.Finished), MainGoingToPosition
}
func (s JoggingPositive) Raw() (uint8, uint8) {
	return finishedSub(s.Finished), MainJoggingPositive
}
func (s JoggingNegative) Raw() (uint8, uint8) {
	return finishedSub(s.Finished), MainJoggingNegative
}
func (s Unknown) Raw() (uint8, uint8) { return s.Sub, s.Main }

func (NotReadyToSwitchOn) String() string { return "NotReadyToSwitchOn" }
func (SwitchOnDisabled) String() string   { return "SwitchOnDisabled" }
func (ReadyToSwitchOn) String() string    { return "ReadyToSwitchOn" }
func (HardwareTests) String() string      { return "HardwareTests" }
func (ReadyToOperate) String() string     { return "ReadyToOperate" }
func (Aborting) String() string           { return "Aborting" }
func (Freezing) String() string           { return "Freezing" }
func (QuickStop) String() string          { return "QuickStop" }
func (Linearizing) String() string        { return "Linearizing" }
func (PhaseSearch) String() string        { return "PhaseSearch" }
func (SpecialModeState) String() string   { return "SpecialMode" }
func (BrakeDelay) String() string         { return "BrakeDelay" }

func (s SetupError) String() string { return fmt.Sprintf("SetupError(%s)", s.Code) }
func (s Error) String() string      { return fmt.Sprintf("Error(%s)", s.Code) }

func (s OperationEnabled) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "OperationEnabled(count=%d", s.MotionCommandCount)
	if s.Homed {
		b.WriteString(" homed")
	}
	if s.MotionActive {
		b.WriteString(" moving")
	}
	if s.InTargetPosition {
		b.WriteString(" in-target")
	}
	if s.EventHandler {
		b.WriteString(" event-handler")
	}
	b.WriteString(")")
	return b.String()
}

func finishedString(name string, finished bool) string {
	if finished {
		return name + "(finished)"
	}
	return name
}

func (s Homing) String() string         { return finishedString("Homing", s.Finished) }
func (s ClearanceCheck) String() string { return finishedString("ClearanceCheck", s.Finished) }
func (s GoingToInitialPosition) String() string {
	return finishedString("GoingToInitialPosition", s.Finished)
}
func (s GoingToPosition) String() string { return finishedString("GoingToPosition", s.Finished) }
func (s JoggingPositive) String() string { return finishedString("JoggingPositive", s.Finished) }
func (s JoggingNegative) String() string { return finishedString("JoggingNegative", s.Finished) }

func (s Unknown) String() string {
	return fmt.Sprintf("Unknown(main=%d, sub=0x%02X)", s.Main, s.Sub)
}

func (NotReadyToSwitchOn) isState()     {}
func (SwitchOnDisabled) isState()       {}
func (ReadyToSwitchOn) isState()        {}
func (SetupError) isState()             {}
func (Error) isState()                  {}
func (HardwareTests) isState()          {}
func (ReadyToOperate) isState()         {}
func (OperationEnabled) isState()       {}
func (Homing) isState()                 {}
func (ClearanceCheck) isState()         {}
func (GoingToInitialPosition) isState() {}
func (Aborting) isState()               {}
func (Freezing) isState()               {}
func (QuickStop) isState()              {}
func (GoingToPosition) isState()        {}
func (JoggingPositive) isState()        {}
func (JoggingNegative) isState()        {}
func (Linearizing) isState()            {}
func (PhaseSearch) isState()            {}
func (SpecialModeState) isState()       {}
func (BrakeDelay) isState()             {}
func (Unknown) isState()                {}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package drivesim is a simulated LinUDP drive for development and tests.
// It runs a reduced version of the drive state machine (boot, switch on,
// homing, motion, error acknowledge) and integrates trapezoidal moves, so a
// controller can be exercised end to end without hardware.
package drivesim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Thermoquad/linstroke/pkg/linudp"
	"github.com/Thermoquad/linstroke/pkg/mci"
)

// Config configures the simulated drive
type Config struct {
	BootTicks    int           // requests answered in NotReadyToSwitchOn after power up
	HomingTicks  int           // requests the homing procedure takes
	HomePosition mci.Position  // position after homing
	StartError   mci.ErrorCode // error the drive reports once booted, 0 for none
	HoldCurrent  mci.Current   // current while standing still
	// Current per m/s² of acceleration, in mA
	CurrentPerAccel float64
}

// DefaultConfig returns a drive that boots in ten requests and homes in twenty
func DefaultConfig() Config {
	return Config{
		BootTicks:       10,
		HomingTicks:     20,
		HoldCurrent:     150,
		CurrentPerAccel: 80,
	}
}

// Drive is the simulated drive. It is safe for concurrent use.
type Drive struct {
	mu  sync.Mutex
	cfg Config

	state       mci.State
	bootLeft    int
	homingLeft  int
	homed       bool
	count       uint8 // last accepted motion command count
	haveCount   bool
	errorCode   mci.ErrorCode
	motion      profile
	lagPosition mci.Position // actual position trails demand by one request
}

// New creates a powered-up drive in NotReadyToSwitchOn
func New(cfg Config) *Drive {
	d := &Drive{cfg: cfg}
	d.reboot()
	d.motion.position = float64(cfg.HomePosition) * metersPerPosition
	return d
}

func (d *Drive) reboot() {
	d.state = mci.NotReadyToSwitchOn{}
	d.bootLeft = d.cfg.BootTicks
}

// State returns the current drive state
func (d *Drive) State() mci.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Position returns the demand position
func (d *Drive) Position() mci.Position {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.motion.positionUnits()
}

// InjectError puts the drive into the error state with code
func (d *Drive) InjectError(code mci.ErrorCode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail(code)
}

func (d *Drive) fail(code mci.ErrorCode) {
	d.errorCode = code
	d.state = mci.Error{Code: code}
	d.motion.active = false
	d.motion.velocity = 0
}

// Handle answers one request frame. dt is the time since the previous
// request and drives the motion simulation.
func (d *Drive) Handle(frame []byte, out []byte, dt time.Duration) (int, error) {
	req, err := linudp.DecodeRequest(frame)
	if err != nil {
		return 0, fmt.Errorf("bad request: %w", err)
	}
	resp := d.Step(req, dt)
	return resp.Encode(out)
}

// Step applies a decoded request and returns the response
func (d *Drive) Step(req *linudp.Request, dt time.Duration) *linudp.Response {
	d.mu.Lock()
	defer d.mu.Unlock()

	var flags mci.ControlFlags
	if req.ControlFlags != nil {
		flags = *req.ControlFlags
	}

	d.lagPosition = d.motion.positionUnits()
	d.advance(flags, req.MotionCommand)
	d.motion.step(dt.Seconds())

	// Motion status bits reflect the state after this step
	if _, ok := d.state.(mci.OperationEnabled); ok {
		d.state = d.operationEnabled()
	}

	return d.respond(req)
}

// advance runs one step of the drive state machine
func (d *Drive) advance(flags mci.ControlFlags, mc *mci.MotionCommand) {
	switchOn := flags.Has(mci.SwitchOn)

	switch s := d.state.(type) {
	case mci.NotReadyToSwitchOn:
		if d.bootLeft > 0 {
			d.bootLeft--
			return
		}
		if d.cfg.StartError != mci.ErrNone {
			d.fail(d.cfg.StartError)
			d.cfg.StartError = mci.ErrNone
			return
		}
		d.state = mci.ReadyToSwitchOn{}

	case mci.Error:
		if flags.Has(mci.ErrorAcknowledge) {
			d.errorCode = mci.ErrNone
			d.state = mci.NotReadyToSwitchOn{}
			d.bootLeft = 1
		}

	case mci.ReadyToSwitchOn:
		if switchOn {
			d.state = d.operationEnabled()
		}

	case mci.OperationEnabled:
		if !switchOn {
			d.motion.active = false
			d.motion.velocity = 0
			d.state = mci.ReadyToSwitchOn{}
			return
		}
		if flags.Has(mci.Home) {
			d.homingLeft = d.cfg.HomingTicks
			d.state = mci.Homing{}
			return
		}
		if mc != nil && (!d.haveCount || mc.Count&0x0F != d.count) {
			d.accept(*mc)
		}

	case mci.Homing:
		if !switchOn {
			d.state = mci.ReadyToSwitchOn{}
			return
		}
		if !s.Finished {
			if d.homingLeft > 0 {
				d.homingLeft--
				return
			}
			d.homed = true
			d.motion = profile{position: float64(d.cfg.HomePosition) * metersPerPosition}
			d.motion.target = d.motion.position
			d.state = mci.Homing{Finished: true}
			return
		}
		if !flags.Has(mci.Home) {
			d.state = d.operationEnabled()
		}
	}
}

// accept executes a motion command with a new count
func (d *Drive) accept(mc mci.MotionCommand) {
	d.count = mc.Count & 0x0F
	d.haveCount = true

	switch cmd := mc.Command.(type) {
	case mci.NoOperation, nil:
	case mci.VAIGoToPos:
		if !d.homed {
			d.fail(mci.ErrNotHomed)
			return
		}
		d.motion.goTo(cmd)
	case mci.VAIStop:
		d.motion.stop(cmd)
	default:
		d.fail(mci.ErrUnknownMotionCommand)
	}
}

func (d *Drive) operationEnabled() mci.OperationEnabled {
	return mci.OperationEnabled{
		MotionCommandCount: d.count,
		MotionActive:       d.motion.active,
		InTargetPosition:   d.homed && d.motion.inTarget(),
		Homed:              d.homed,
	}
}

func (d *Drive) statusFlags() mci.StatusFlags {
	var f mci.StatusFlags
	switch s := d.state.(type) {
	case mci.OperationEnabled:
		f |= mci.StatusOperationEnabled | mci.StatusSwitchOnActive | mci.StatusEnableOperation |
			mci.StatusVoltageEnable | mci.StatusQuickStopDisable
		if s.MotionActive {
			f |= mci.StatusMotionActive
		}
		if s.InTargetPosition {
			f |= mci.StatusInTargetPosition
		}
	case mci.Homing:
		f |= mci.StatusSwitchOnActive | mci.StatusVoltageEnable | mci.StatusSpecialMotionActive
	case mci.Error:
		f |= mci.StatusError
	case mci.NotReadyToSwitchOn:
		f |= mci.StatusSwitchOnLocked
	}
	if d.homed {
		f |= mci.StatusHomed
	}
	if !d.homed {
		f |= mci.StatusWarning
	}
	return f
}

func (d *Drive) warningFlags() mci.WarningFlags {
	if d.homed {
		return 0
	}
	return mci.WarnMotorNotHomed
}

func (d *Drive) current() mci.Current {
	mA := float64(d.cfg.HoldCurrent) + math.Abs(d.motion.accel)*d.cfg.CurrentPerAccel
	mA = math.Copysign(mA, d.motion.accel)
	return mci.Current(math.Max(math.Min(mA, math.MaxInt16), math.MinInt16))
}

// respond answers the requested fields. The realtime configuration bit is
// always set in the reply but only filled when the request carried one.
func (d *Drive) respond(req *linudp.Request) *linudp.Response {
	resp := &linudp.Response{
		RequestFlags:  req.Flags(),
		ResponseFlags: req.ResponseFlags | linudp.RESP_REALTIME_CONFIGURATION,
	}
	want := req.ResponseFlags

	if want&linudp.RESP_STATUS_FLAGS != 0 {
		v := d.statusFlags()
		resp.StatusFlags = &v
	}
	if want&linudp.RESP_STATE != 0 {
		resp.State = d.state
	}
	if want&linudp.RESP_ACTUAL_POSITION != 0 {
		v := d.lagPosition
		resp.ActualPosition = &v
	}
	if want&linudp.RESP_DEMAND_POSITION != 0 {
		v := d.motion.positionUnits()
		resp.DemandPosition = &v
	}
	if want&linudp.RESP_CURRENT != 0 {
		v := d.current()
		resp.Current = &v
	}
	if want&linudp.RESP_WARNING_FLAGS != 0 {
		v := d.warningFlags()
		resp.WarningFlags = &v
	}
	if want&linudp.RESP_ERROR_CODE != 0 {
		v := d.errorCode
		resp.ErrorCode = &v
	}
	if want&linudp.RESP_MONITORING_CHANNEL != 0 {
		resp.MonitoringChannel = &linudp.MonitoringChannel{
			uint32(int32(d.motion.positionUnits())),
			uint32(int32(d.motion.velocity / mpsPerVelocity)),
			uint32(int32(d.motion.accel / mps2PerAccel)),
			uint32(d.count),
		}
	}
	if req.RealtimeConfiguration != nil {
		rc := *req.RealtimeConfiguration
		resp.RealtimeConfiguration = &rc
	}

	return resp
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package drive

import (
	"log/slog"

	"github.com/Thermoquad/linstroke/pkg/linudp"
	"github.com/Thermoquad/linstroke/pkg/mci"
	"github.com/Thermoquad/linstroke/pkg/stroke"
)

// Controller walks the drive through power up, error acknowledge, homing and
// motion by reacting to the state it reports. It is owned by the loop
// goroutine and is not safe for concurrent use.
type Controller struct {
	limits stroke.Limits
	logger *slog.Logger

	flags mci.ControlFlags
	// Acknowledge the next drive error. Set at startup so a drive that comes
	// up in error is recovered once; afterwards it needs an explicit request.
	acknowledgeError bool
	movingForwards   bool
	lastState        mci.State
}

// NewController creates a controller with all control flags cleared
func NewController(limits stroke.Limits, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		limits:           limits,
		logger:           logger,
		acknowledgeError: true,
	}
}

// Flags returns the control flags to send this tick
func (c *Controller) Flags() mci.ControlFlags { return c.flags }

// MovingForwards reports the planner's current direction
func (c *Controller) MovingForwards() bool { return c.movingForwards }

// AcknowledgePending reports whether the next drive error will be acknowledged
func (c *Controller) AcknowledgePending() bool { return c.acknowledgeError }

// ArmAcknowledge makes the controller acknowledge the next drive error
func (c *Controller) ArmAcknowledge() {
	c.acknowledgeError = true
}

// Step evaluates the last response and updates the control flags. It
// returns the motion command to send this tick, or nil. Nothing happens
// until a response carrying both state and demand position has arrived.
func (c *Controller) Step(last *linudp.Response, params stroke.Params) *mci.MotionCommand {
	if last == nil || last.State == nil || last.DemandPosition == nil {
		return nil
	}
	state := last.State
	c.logTransition(state)

	switch s := state.(type) {
	case mci.NotReadyToSwitchOn:
		c.flags = 0

	case mci.ReadyToSwitchOn:
		c.acknowledgeError = false
		if params.Enabled {
			c.flags = mci.SwitchOn
		} else {
			c.flags &^= mci.SwitchOn
		}

	case mci.Error:
		if c.acknowledgeError {
			c.logger.Warn("acknowledging drive error", "code", s.Code.String(), "raw", uint16(s.Code))
			c.flags = mci.ErrorAcknowledge
		}

	case mci.OperationEnabled:
		if !s.Homed {
			c.flags |= mci.Home
			return nil
		}
		if !params.Enabled {
			c.flags &^= mci.SwitchOn
			return nil
		}
		var cmd mci.Command
		cmd, c.movingForwards = stroke.Plan(c.limits, params, c.movingForwards, *last.DemandPosition)
		return &mci.MotionCommand{
			Count:   (s.MotionCommandCount + 1) & 0x0F,
			Command: cmd,
		}

	case mci.Homing:
		if s.Finished {
			c.flags &^= mci.Home
		}
	}

	return nil
}

// logTransition logs state changes, ignoring OperationEnabled updates that
// only move the motion command count
func (c *Controller) logTransition(state mci.State) {
	if sameState(c.lastState, state) {
		return
	}
	c.logger.Debug("drive state changed", "from", stateName(c.lastState), "to", state.String())
	c.lastState = state
}

func sameState(a, b mci.State) bool {
	oa, okA := a.(mci.OperationEnabled)
	ob, okB := b.(mci.OperationEnabled)
	if okA && okB {
		oa.MotionCommandCount, ob.MotionCommandCount = 0, 0
		return oa == ob
	}
	return a == b
}

func stateName(s mci.State) string {
	if s == nil {
		return "(none)"
	}
	return s.String()
}

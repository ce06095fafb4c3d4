// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package stroke holds the back-and-forth motion profile: its parameters,
// the shared cell input sources publish them through, the text console that
// edits them, and the planner that turns them into motion commands.
package stroke

import (
	"fmt"
	"math"

	"github.com/Thermoquad/linstroke/pkg/mci"
)

// Profile is the motion profile for one direction of travel
type Profile struct {
	Velocity     mci.Velocity
	Acceleration mci.Acceleration
	Deceleration mci.Acceleration
}

// Params configures the stroke. A disabled stroke switches the drive off; a
// stopped one keeps it powered and brakes.
type Params struct {
	Enabled   bool
	Stopped   bool
	Start     mci.Position
	End       mci.Position
	Tolerance mci.Position // how close to an end point counts as arrived
	Forwards  Profile
	Backwards Profile
}

// DefaultParams returns the parameters used at startup and by the reset command
func DefaultParams() Params {
	profile := Profile{
		Velocity:     mci.VelocityFromMetersPerSecond(1),
		Acceleration: mci.AccelerationFromMetersPerSecondSquared(1),
		Deceleration: mci.AccelerationFromMetersPerSecondSquared(1),
	}
	return Params{
		Start:     mci.PositionFromMillimeters(0),
		End:       mci.PositionFromMillimeters(0),
		Tolerance: mci.PositionFromMillimeters(1),
		Forwards:  profile,
		Backwards: profile,
	}
}

// Length returns the distance between start and end
func (p Params) Length() mci.Position {
	return p.End - p.Start
}

// Mode returns a one-word summary of the enable/stop flags
func (p Params) Mode() string {
	switch {
	case !p.Enabled:
		return "off"
	case p.Stopped:
		return "stopped"
	default:
		return "active"
	}
}

func (p Params) String() string {
	return fmt.Sprintf("mode=%s start=%s end=%s tolerance=%s fwd=[%s] bwd=[%s]",
		p.Mode(), p.Start, p.End, p.Tolerance, p.Forwards, p.Backwards)
}

func (p Profile) String() string {
	return fmt.Sprintf("v=%s a=%s d=%s", p.Velocity, p.Acceleration, p.Deceleration)
}

// Limits are hard safety bounds applied on top of whatever the parameters say
type Limits struct {
	MaxPosition     mci.Position
	MaxVelocity     mci.Velocity
	MaxAcceleration mci.Acceleration
	MaxDeceleration mci.Acceleration
}

// NoLimits leaves every parameter unclamped
func NoLimits() Limits {
	return Limits{
		MaxPosition:     math.MaxInt32,
		MaxVelocity:     math.MaxInt32,
		MaxAcceleration: math.MaxInt32,
		MaxDeceleration: math.MaxInt32,
	}
}

// Clamp limits a profile to the configured maxima
func (l Limits) Clamp(p Profile) Profile {
	return Profile{
		Velocity:     min(p.Velocity, l.MaxVelocity),
		Acceleration: min(p.Acceleration, l.MaxAcceleration),
		Deceleration: min(p.Deceleration, l.MaxDeceleration),
	}
}

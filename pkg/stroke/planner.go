// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package stroke

import "github.com/Thermoquad/linstroke/pkg/mci"

// Plan returns the motion command for this tick and the updated direction.
//
// While stopped it brakes with the current direction's deceleration and keeps
// the direction. Otherwise it first checks whether the demand position has
// reached the current end point (within tolerance) and reverses if so, then
// commands a move to the end point of the resulting direction. Travel is
// capped at limits.MaxPosition.
func Plan(limits Limits, params Params, movingForwards bool, demand mci.Position) (mci.Command, bool) {
	forwards := limits.Clamp(params.Forwards)
	backwards := limits.Clamp(params.Backwards)

	if params.Stopped {
		if movingForwards {
			return mci.VAIStop{Deceleration: forwards.Deceleration}, movingForwards
		}
		return mci.VAIStop{Deceleration: backwards.Deceleration}, movingForwards
	}

	end := min(params.End, limits.MaxPosition)
	start := min(params.Start, limits.MaxPosition)

	if movingForwards {
		if demand >= end-params.Tolerance {
			movingForwards = false
		}
	} else {
		if demand <= start+params.Tolerance {
			movingForwards = true
		}
	}

	if movingForwards {
		return goTo(end, forwards), movingForwards
	}
	return goTo(start, backwards), movingForwards
}

func goTo(target mci.Position, p Profile) mci.VAIGoToPos {
	return mci.VAIGoToPos{
		TargetPosition:  target,
		MaximalVelocity: p.Velocity,
		Acceleration:    p.Acceleration,
		Deceleration:    p.Deceleration,
	}
}

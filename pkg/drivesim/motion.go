// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package drivesim

import (
	"math"

	"github.com/Thermoquad/linstroke/pkg/mci"
)

// Unit scale factors to SI
const (
	metersPerPosition = 1e-7
	mpsPerVelocity    = 1e-6
	mps2PerAccel      = 1e-5
)

// profile integrates a trapezoidal move in SI units
type profile struct {
	position float64 // m
	velocity float64 // m/s, signed
	accel    float64 // m/s², last applied, signed

	target   float64
	maxSpeed float64
	accelMax float64
	decelMax float64
	stopping bool
	active   bool
}

func (p *profile) goTo(cmd mci.VAIGoToPos) {
	p.target = float64(cmd.TargetPosition) * metersPerPosition
	p.maxSpeed = math.Abs(float64(cmd.MaximalVelocity) * mpsPerVelocity)
	p.accelMax = positiveOr(float64(cmd.Acceleration)*mps2PerAccel, math.Inf(1))
	p.decelMax = positiveOr(float64(cmd.Deceleration)*mps2PerAccel, math.Inf(1))
	p.stopping = false
	p.active = true
}

func (p *profile) stop(cmd mci.VAIStop) {
	p.decelMax = positiveOr(float64(cmd.Deceleration)*mps2PerAccel, math.Inf(1))
	p.stopping = true
	p.active = p.velocity != 0
}

func positiveOr(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}

// step advances the profile by dt seconds
func (p *profile) step(dt float64) {
	p.accel = 0
	if !p.active || dt <= 0 {
		return
	}

	if p.stopping {
		p.brake(dt)
		if p.velocity == 0 {
			p.active = false
		}
		p.position += p.velocity * dt
		return
	}

	diff := p.target - p.position
	if diff == 0 && p.velocity == 0 {
		p.active = false
		return
	}
	dir := math.Copysign(1, diff)

	if p.velocity*dir < 0 {
		// Moving away from the target
		p.brake(dt)
	} else {
		speed := math.Abs(p.velocity)
		stopDistance := speed * speed / (2 * p.decelMax)
		next := speed
		if math.Abs(diff) <= stopDistance {
			next = max(speed-p.decelMax*dt, 0)
		} else {
			next = min(speed+p.accelMax*dt, p.maxSpeed)
		}
		p.accel = dir * (next - speed) / dt
		p.velocity = dir * next
	}

	p.position += p.velocity * dt

	// Snap onto the target once it has been reached or crossed
	if math.Copysign(1, p.target-p.position) != dir || p.position == p.target {
		p.position = p.target
		p.velocity = 0
		p.active = false
	}
}

func (p *profile) brake(dt float64) {
	speed := math.Abs(p.velocity)
	next := max(speed-p.decelMax*dt, 0)
	if math.IsInf(p.decelMax, 1) {
		next = 0
	}
	dir := math.Copysign(1, p.velocity)
	p.accel = -dir * (speed - next) / dt
	p.velocity = dir * next
}

func (p *profile) inTarget() bool {
	return !p.active && !p.stopping && p.position == p.target
}

func (p *profile) positionUnits() mci.Position {
	return mci.Position(math.Round(p.position / metersPerPosition))
}

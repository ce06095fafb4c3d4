// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mci

import (
	"math"
	"strconv"
	"strings"
)

// Each physical quantity is its own integer type so that mixing dimensions
// requires an explicit conversion. Arithmetic uses the native integer
// operators and wraps on overflow. The float constructors truncate toward zero.

// Position in units of 0.1 µm
type Position int32

// Velocity in units of 1 µm/s
type Velocity int32

// Acceleration in units of 10 µm/s²
type Acceleration int32

// Jerk in units of 100 µm/s³
type Jerk int32

// Current in units of 1 mA
type Current int16

func PositionFromMillimeters(mm int32) Position { return Position(mm * 10_000) }
func PositionFromMillimetersFloat(mm float64) Position {
	return Position(mm * 10_000)
}
func PositionFromMicrometers(um int32) Position { return Position(um * 10) }

// Millimeters returns the position in mm
func (p Position) Millimeters() float64 { return float64(p) / 10_000 }

func VelocityFromMillimetersPerSecond(mmps int32) Velocity { return Velocity(mmps * 1_000) }
func VelocityFromMillimetersPerSecondFloat(mmps float64) Velocity {
	return Velocity(mmps * 1_000)
}
func VelocityFromMetersPerSecond(mps int32) Velocity { return Velocity(mps * 1_000_000) }
func VelocityFromMetersPerSecondFloat(mps float64) Velocity {
	return Velocity(mps * 1_000_000)
}

// MetersPerSecond returns the velocity in m/s
func (v Velocity) MetersPerSecond() float64 { return float64(v) / 1_000_000 }

func AccelerationFromMetersPerSecondSquared(mps2 int32) Acceleration {
	return Acceleration(mps2 * 100_000)
}
func AccelerationFromMetersPerSecondSquaredFloat(mps2 float64) Acceleration {
	return Acceleration(mps2 * 100_000)
}
func AccelerationFromMillimetersPerSecondSquared(mmps2 int32) Acceleration {
	return Acceleration(mmps2 * 100)
}
func AccelerationFromMillimetersPerSecondSquaredFloat(mmps2 float64) Acceleration {
	return Acceleration(mmps2 * 100)
}

// MetersPerSecondSquared returns the acceleration in m/s²
func (a Acceleration) MetersPerSecondSquared() float64 { return float64(a) / 100_000 }

func JerkFromMetersPerSecondCubed(mps3 int32) Jerk { return Jerk(mps3 * 10_000) }
func JerkFromMetersPerSecondCubedFloat(mps3 float64) Jerk {
	return Jerk(mps3 * 10_000)
}
func JerkFromMillimetersPerSecondCubed(mmps3 int32) Jerk { return Jerk(mmps3 * 10) }
func JerkFromMillimetersPerSecondCubedFloat(mmps3 float64) Jerk {
	return Jerk(mmps3 * 10)
}

// Amps returns the current in A
func (c Current) Amps() float64 { return float64(c) / 1_000 }

type unitScale struct {
	suffix string
	scale  float64
}

var (
	positionUnits     = []unitScale{{"m", 1}, {"mm", 1e-3}, {"μm", 1e-6}}
	velocityUnits     = []unitScale{{"m/s", 1}, {"mm/s", 1e-3}, {"μm/s", 1e-6}}
	accelerationUnits = []unitScale{{"m/s²", 1}, {"mm/s²", 1e-3}, {"μm/s²", 1e-6}}
	jerkUnits         = []unitScale{{"m/s³", 1}, {"mm/s³", 1e-3}, {"μm/s³", 1e-6}}
	currentUnits      = []unitScale{{"A", 1000}, {"mA", 1}}
)

func (p Position) String() string     { return formatScaled(float64(p)*1e-7, positionUnits) }
func (v Velocity) String() string     { return formatScaled(float64(v)*1e-6, velocityUnits) }
func (a Acceleration) String() string { return formatScaled(float64(a)*1e-5, accelerationUnits) }
func (j Jerk) String() string         { return formatScaled(float64(j)*1e-4, jerkUnits) }
func (c Current) String() string      { return formatScaled(float64(c), currentUnits) }

// formatScaled picks the first unit in which |value| is at least 1 (or the
// last unit) and prints up to three decimals with trailing zeros trimmed
func formatScaled(value float64, units []unitScale) string {
	chosen := units[len(units)-1]
	for _, u := range units {
		// Small epsilon so 1e-3 m lands on "1mm" rather than "1000μm"
		if math.Abs(value)/u.scale >= 1-1e-9 {
			chosen = u
			break
		}
	}

	s := strconv.FormatFloat(value/chosen.scale, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		s = "0"
	}
	return s + chosen.suffix
}

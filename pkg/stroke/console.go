// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package stroke

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/linstroke/pkg/mci"
)

// ErrUnknownCommand is returned for unrecognized commands or missing values
var ErrUnknownCommand = errors.New("unknown command or missing value, use 'h' for help")

// HelpText lists the console commands
const HelpText = `Available commands:
    p = Toggle power (hard stop)
    f = Toggle soft stop
    r = Reset parameters to default
  ack = Acknowledge the next drive error
    s = Set stroke start position in mm (end is kept)
    e = Set stroke end position in mm
    l = Set stroke end to start + length in mm
    t = Set direction change tolerance in mm
    v = Set velocity in m/s
    a = Set acceleration in m/s²
   fv = Set forwards velocity in m/s
   fa = Set forwards acceleration in m/s²
   fd = Set forwards deceleration in m/s²
   bv = Set backwards velocity in m/s
   ba = Set backwards acceleration in m/s²
   bd = Set backwards deceleration in m/s²`

// Console interprets text commands against a Cell. Every input source
// (terminal, TUI, serial, WebSocket, HID) funnels through one.
type Console struct {
	cell     *Cell
	defaults Params
}

// NewConsole creates a console editing cell; the reset command restores
// defaults
func NewConsole(cell *Cell, defaults Params) *Console {
	return &Console{cell: cell, defaults: defaults}
}

// Execute runs one command line and returns a short reply. On error nothing
// is published.
func (c *Console) Execute(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	command := fields[0]

	var (
		value    float64
		hasValue bool
	)
	if len(fields) > 1 {
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return "", fmt.Errorf("%w: invalid value %q", ErrUnknownCommand, fields[1])
		}
		value, hasValue = v, true
	}

	switch command {
	case "h", "help", "?":
		return HelpText, nil
	case "ack":
		c.cell.RequestAcknowledge()
		return "next drive error will be acknowledged", nil
	case "p":
		p := c.cell.Update(func(p *Params) {
			if p.Enabled {
				p.Enabled = false
			} else {
				p.Enabled = true
				p.Stopped = false
			}
		})
		return "mode " + p.Mode(), nil
	case "f":
		p := c.cell.Update(func(p *Params) {
			if p.Enabled {
				p.Stopped = !p.Stopped
			}
		})
		return "mode " + p.Mode(), nil
	case "r":
		p := c.cell.Update(func(p *Params) {
			enabled, stopped := p.Enabled, p.Stopped
			*p = c.defaults
			p.Enabled, p.Stopped = enabled, stopped
		})
		return p.String(), nil
	}

	if !hasValue {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}

	position := mci.PositionFromMillimetersFloat(value)
	velocity := mci.VelocityFromMetersPerSecondFloat(value)
	accel := mci.AccelerationFromMetersPerSecondSquaredFloat(value)

	var apply func(p *Params)
	switch command {
	case "s":
		apply = func(p *Params) { p.Start = position }
	case "e":
		apply = func(p *Params) { p.End = position }
	case "l":
		apply = func(p *Params) { p.End = p.Start + position }
	case "t":
		apply = func(p *Params) { p.Tolerance = position }
	case "v":
		apply = func(p *Params) {
			p.Forwards.Velocity = velocity
			p.Backwards.Velocity = velocity
		}
	case "a":
		apply = func(p *Params) {
			p.Forwards.Acceleration, p.Forwards.Deceleration = accel, accel
			p.Backwards.Acceleration, p.Backwards.Deceleration = accel, accel
		}
	case "fv":
		apply = func(p *Params) { p.Forwards.Velocity = velocity }
	case "fa":
		apply = func(p *Params) { p.Forwards.Acceleration = accel }
	case "fd":
		apply = func(p *Params) { p.Forwards.Deceleration = accel }
	case "bv":
		apply = func(p *Params) { p.Backwards.Velocity = velocity }
	case "ba":
		apply = func(p *Params) { p.Backwards.Acceleration = accel }
	case "bd":
		apply = func(p *Params) { p.Backwards.Deceleration = accel }
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, line)
	}

	return c.cell.Update(apply).String(), nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mci

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/linstroke/pkg/wire"
)

// MotionCommandSize is the fixed size of the motion command block
const MotionCommandSize = 32

// motionHeaderSize is the u16 opcode/count header
const motionHeaderSize = 2

// Motion command opcodes (12 bits)
const (
	OpNoOperation uint16 = 0x000
	OpVAIGoToPos  uint16 = 0x010
	OpVAIStop     uint16 = 0x017
)

// ErrCommandTooLarge is returned when the command parameters do not fit in
// the motion command block
var ErrCommandTooLarge = errors.New("motion command exceeds block size")

// Command is a motion command body. The concrete types in this package are
// the supported commands; RawCommand carries anything else.
type Command interface {
	// ID returns the 12-bit opcode
	ID() uint16
	writeParameters(w *wire.Writer) error
	String() string
}

// NoOperation does nothing; the count still advances
type NoOperation struct{}

// VAIGoToPos moves to an absolute position along a trapezoidal profile
type VAIGoToPos struct {
	TargetPosition  Position
	MaximalVelocity Velocity
	Acceleration    Acceleration
	Deceleration    Acceleration
}

// VAIStop brakes the running motion with the given deceleration
type VAIStop struct {
	Deceleration Acceleration
}

// RawCommand is a command with an opcode this package does not model
type RawCommand struct {
	Opcode     uint16
	Parameters []byte
}

func (NoOperation) ID() uint16  { return OpNoOperation }
func (VAIGoToPos) ID() uint16   { return OpVAIGoToPos }
func (VAIStop) ID() uint16      { return OpVAIStop }
func (c RawCommand) ID() uint16 { return c.Opcode & 0x0FFF }

func (NoOperation) writeParameters(*wire.Writer) error { return nil }

func (c VAIGoToPos) writeParameters(w *wire.Writer) error {
	if err := w.WriteI32(int32(c.TargetPosition)); err != nil {
		return err
	}
	if err := w.WriteU32(uint32(c.MaximalVelocity)); err != nil {
		return err
	}
	if err := w.WriteU32(uint32(c.Acceleration)); err != nil {
		return err
	}
	return w.WriteU32(uint32(c.Deceleration))
}

func (c VAIStop) writeParameters(w *wire.Writer) error {
	return w.WriteU32(uint32(c.Deceleration))
}

func (c RawCommand) writeParameters(w *wire.Writer) error {
	return w.WriteBytes(c.Parameters)
}

func (NoOperation) String() string { return "NoOperation" }

func (c VAIGoToPos) String() string {
	return fmt.Sprintf("VAIGoToPos(target=%s, v=%s, a=%s, d=%s)",
		c.TargetPosition, c.MaximalVelocity, c.Acceleration, c.Deceleration)
}

func (c VAIStop) String() string {
	return fmt.Sprintf("VAIStop(d=%s)", c.Deceleration)
}

func (c RawCommand) String() string {
	return fmt.Sprintf("Command(0x%03X, % X)", c.ID(), c.Parameters)
}

// MotionCommand is a command together with its 4-bit running count. The
// drive only executes a command when the count differs from the previous one.
type MotionCommand struct {
	Count   uint8
	Command Command
}

// Header returns the packed (opcode << 4) | count word
func (m MotionCommand) Header() uint16 {
	id := OpNoOperation
	if m.Command != nil {
		id = m.Command.ID()
	}
	return id<<4 | uint16(m.Count&0x0F)
}

// WriteTo encodes the 32-byte block. If the parameters do not fit the
// destination writer is left untouched.
func (m MotionCommand) WriteTo(w *wire.Writer) error {
	// Twice the block size so an oversized command is measured rather than
	// cut off by the scratch buffer
	var scratch [2 * MotionCommandSize]byte
	sw := wire.NewWriter(scratch[:])

	if err := sw.WriteU16(m.Header()); err != nil {
		return err
	}
	if m.Command != nil {
		if err := m.Command.writeParameters(sw); err != nil {
			if errors.Is(err, wire.ErrOverflow) {
				return fmt.Errorf("%w: %s", ErrCommandTooLarge, m.Command)
			}
			return err
		}
	}
	if sw.Pos() > MotionCommandSize {
		return fmt.Errorf("%w: %d bytes", ErrCommandTooLarge, sw.Pos())
	}
	if err := sw.WriteZeros(MotionCommandSize - sw.Pos()); err != nil {
		return err
	}
	return w.WriteBytes(sw.Bytes())
}

// ReadMotionCommand decodes a 32-byte block. Unknown opcodes are returned as
// RawCommand carrying the full parameter area.
func ReadMotionCommand(r *wire.Reader) (MotionCommand, error) {
	block, err := r.ReadBytes(MotionCommandSize)
	if err != nil {
		return MotionCommand{}, err
	}
	br := wire.NewReader(block)
	header, _ := br.ReadU16()

	m := MotionCommand{Count: uint8(header & 0x0F)}
	switch opcode := header >> 4; opcode {
	case OpNoOperation:
		m.Command = NoOperation{}
	case OpVAIGoToPos:
		target, _ := br.ReadI32()
		velocity, _ := br.ReadU32()
		accel, _ := br.ReadU32()
		decel, _ := br.ReadU32()
		m.Command = VAIGoToPos{
			TargetPosition:  Position(target),
			MaximalVelocity: Velocity(velocity),
			Acceleration:    Acceleration(accel),
			Deceleration:    Acceleration(decel),
		}
	case OpVAIStop:
		decel, _ := br.ReadU32()
		m.Command = VAIStop{Deceleration: Acceleration(decel)}
	default:
		params := make([]byte, MotionCommandSize-motionHeaderSize)
		copy(params, block[motionHeaderSize:])
		m.Command = RawCommand{Opcode: opcode, Parameters: params}
	}
	return m, nil
}

func (m MotionCommand) String() string {
	if m.Command == nil {
		return fmt.Sprintf("#%d NoOperation", m.Count&0x0F)
	}
	return fmt.Sprintf("#%d %s", m.Count&0x0F, m.Command)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrUnderflow matches any UnderflowError
	ErrUnderflow = errors.New("buffer underflow")
	// ErrOverflow matches any OverflowError
	ErrOverflow = errors.New("buffer overflow")
)

// UnderflowError is returned when a read needs more bytes than remain
type UnderflowError struct {
	Needed    int
	Available int
}

func (e *UnderflowError) Error() string {
	return fmt.Sprintf("buffer underflow while parsing (needed %d, have %d)", e.Needed, e.Available)
}

func (e *UnderflowError) Is(target error) bool {
	return target == ErrUnderflow
}

// OverflowError is returned when a write does not fit in the remaining space
type OverflowError struct {
	Needed    int
	Remaining int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("buffer overflow while serializing (need %d, have %d)", e.Needed, e.Remaining)
}

func (e *OverflowError) Is(target error) bool {
	return target == ErrOverflow
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package drive

import (
	"errors"
	"fmt"
)

var (
	// ErrAllTicksFailed is returned by Loop.Run when every tick of a report
	// window failed
	ErrAllTicksFailed = errors.New("every tick in the report window failed")

	// ErrReceiveTimeout is returned by a Transport when no response arrived
	// before the deadline
	ErrReceiveTimeout = errors.New("receive timeout")
)

// TickErrorKind classifies a failed tick
type TickErrorKind int

const (
	KindEncode TickErrorKind = iota
	KindTransport
	KindTimeout
	KindDecode
)

func (k TickErrorKind) String() string {
	switch k {
	case KindEncode:
		return "encode"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TickError wraps the failure of a single tick
type TickError struct {
	Kind TickErrorKind
	Err  error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick %s: %v", e.Kind, e.Err)
}

func (e *TickError) Unwrap() error {
	return e.Err
}

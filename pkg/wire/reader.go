// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package wire provides bounds-checked little-endian cursors over fixed byte
// buffers. Every read or write either fully succeeds and advances the cursor by
// the width of the value, or fails without moving the cursor.
package wire

import "encoding/binary"

// Reader is a little-endian cursor over a byte slice
type Reader struct {
	buf []byte
	pos int
}

// NewReader creates a reader positioned at the start of buf
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the number of bytes consumed so far
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// take returns the next n bytes and advances the cursor, or fails without
// moving it
func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, &UnderflowError{Needed: n, Available: r.Remaining()}
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadBytes returns the next n bytes. The returned slice aliases the buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.take(n)
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadU32x4 reads four consecutive u32 values
func (r *Reader) ReadU32x4() ([4]uint32, error) {
	var out [4]uint32
	if r.Remaining() < 16 {
		return out, &UnderflowError{Needed: 16, Available: r.Remaining()}
	}
	for i := range out {
		out[i], _ = r.ReadU32()
	}
	return out, nil
}

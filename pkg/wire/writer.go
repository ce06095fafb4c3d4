// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import "encoding/binary"

// Writer is a little-endian cursor over a preallocated byte slice
type Writer struct {
	buf []byte
	pos int
}

// NewWriter creates a writer positioned at the start of buf
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Pos returns the number of bytes written so far
func (w *Writer) Pos() int {
	return w.pos
}

// Remaining returns the free space left in the buffer
func (w *Writer) Remaining() int {
	return len(w.buf) - w.pos
}

// Bytes returns the written prefix of the buffer
func (w *Writer) Bytes() []byte {
	return w.buf[:w.pos]
}

// reserve returns the next n bytes of the buffer and advances the cursor, or
// fails without moving it
func (w *Writer) reserve(n int) ([]byte, error) {
	if n < 0 || n > w.Remaining() {
		return nil, &OverflowError{Needed: n, Remaining: w.Remaining()}
	}
	b := w.buf[w.pos : w.pos+n]
	w.pos += n
	return b, nil
}

func (w *Writer) WriteBytes(p []byte) error {
	b, err := w.reserve(len(p))
	if err != nil {
		return err
	}
	copy(b, p)
	return nil
}

// WriteZeros appends n zero bytes
func (w *Writer) WriteZeros(n int) error {
	b, err := w.reserve(n)
	if err != nil {
		return err
	}
	clear(b)
	return nil
}

func (w *Writer) WriteU8(v uint8) error {
	b, err := w.reserve(1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

func (w *Writer) WriteU16(v uint16) error {
	b, err := w.reserve(2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, v)
	return nil
}

func (w *Writer) WriteI16(v int16) error {
	return w.WriteU16(uint16(v))
}

func (w *Writer) WriteU32(v uint32) error {
	b, err := w.reserve(4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

func (w *Writer) WriteI32(v int32) error {
	return w.WriteU32(uint32(v))
}

// WriteU32x4 writes four consecutive u32 values. Nothing is written if the
// group does not fit.
func (w *Writer) WriteU32x4(v [4]uint32) error {
	b, err := w.reserve(16)
	if err != nil {
		return err
	}
	for i, x := range v {
		binary.LittleEndian.PutUint32(b[i*4:], x)
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestReader_LittleEndian(t *testing.T) {
	buf := []byte{
		0xAB,
		0x34, 0x12,
		0xFE, 0xFF,
		0x78, 0x56, 0x34, 0x12,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	r := NewReader(buf)

	u8, err := r.ReadU8()
	if err != nil || u8 != 0xAB {
		t.Fatalf("ReadU8() = 0x%02X, %v; want 0xAB", u8, err)
	}
	u16, err := r.ReadU16()
	if err != nil || u16 != 0x1234 {
		t.Fatalf("ReadU16() = 0x%04X, %v; want 0x1234", u16, err)
	}
	i16, err := r.ReadI16()
	if err != nil || i16 != -2 {
		t.Fatalf("ReadI16() = %d, %v; want -2", i16, err)
	}
	u32, err := r.ReadU32()
	if err != nil || u32 != 0x12345678 {
		t.Fatalf("ReadU32() = 0x%08X, %v; want 0x12345678", u32, err)
	}
	i32, err := r.ReadI32()
	if err != nil || i32 != -1 {
		t.Fatalf("ReadI32() = %d, %v; want -1", i32, err)
	}
	if r.Pos() != len(buf) || r.Remaining() != 0 {
		t.Errorf("Pos() = %d, Remaining() = %d; want %d, 0", r.Pos(), r.Remaining(), len(buf))
	}
}

func TestReader_UnderflowDoesNotAdvance(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})

	if _, err := r.ReadU8(); err != nil {
		t.Fatalf("ReadU8() error: %v", err)
	}

	_, err := r.ReadU32()
	if !errors.Is(err, ErrUnderflow) {
		t.Fatalf("ReadU32() error = %v, want ErrUnderflow", err)
	}

	var uerr *UnderflowError
	if !errors.As(err, &uerr) {
		t.Fatalf("error is %T, want *UnderflowError", err)
	}
	if uerr.Needed != 4 || uerr.Available != 2 {
		t.Errorf("UnderflowError = %+v, want needed 4, available 2", *uerr)
	}
	if r.Pos() != 1 {
		t.Errorf("Pos() after failed read = %d, want 1", r.Pos())
	}

	// The remaining bytes are still readable
	v, err := r.ReadU16()
	if err != nil || v != 0x0302 {
		t.Errorf("ReadU16() = 0x%04X, %v; want 0x0302", v, err)
	}
}

func TestReader_U32x4(t *testing.T) {
	w := NewWriter(make([]byte, 16))
	want := [4]uint32{1, 0xDEADBEEF, 3, 0xFFFFFFFF}
	if err := w.WriteU32x4(want); err != nil {
		t.Fatalf("WriteU32x4() error: %v", err)
	}

	got, err := NewReader(w.Bytes()).ReadU32x4()
	if err != nil {
		t.Fatalf("ReadU32x4() error: %v", err)
	}
	if got != want {
		t.Errorf("ReadU32x4() = %v, want %v", got, want)
	}

	r := NewReader(make([]byte, 15))
	if _, err := r.ReadU32x4(); !errors.Is(err, ErrUnderflow) {
		t.Errorf("ReadU32x4() on 15 bytes error = %v, want ErrUnderflow", err)
	}
	if r.Pos() != 0 {
		t.Errorf("Pos() after failed group read = %d, want 0", r.Pos())
	}
}

func TestWriter_LittleEndian(t *testing.T) {
	w := NewWriter(make([]byte, 13))

	steps := []func() error{
		func() error { return w.WriteU8(0xAB) },
		func() error { return w.WriteU16(0x1234) },
		func() error { return w.WriteI16(-2) },
		func() error { return w.WriteU32(0x12345678) },
		func() error { return w.WriteI32(-1) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d error: %v", i, err)
		}
	}

	want := []byte{
		0xAB,
		0x34, 0x12,
		0xFE, 0xFF,
		0x78, 0x56, 0x34, 0x12,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("Bytes() = % X, want % X", w.Bytes(), want)
	}
}

func TestWriter_OverflowDoesNotWrite(t *testing.T) {
	buf := []byte{0xEE, 0xEE, 0xEE}
	w := NewWriter(buf)

	if err := w.WriteU8(0x01); err != nil {
		t.Fatalf("WriteU8() error: %v", err)
	}

	err := w.WriteU32(0x02020202)
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("WriteU32() error = %v, want ErrOverflow", err)
	}

	var oerr *OverflowError
	if !errors.As(err, &oerr) {
		t.Fatalf("error is %T, want *OverflowError", err)
	}
	if oerr.Needed != 4 || oerr.Remaining != 2 {
		t.Errorf("OverflowError = %+v, want needed 4, remaining 2", *oerr)
	}
	if w.Pos() != 1 {
		t.Errorf("Pos() after failed write = %d, want 1", w.Pos())
	}
	if buf[1] != 0xEE || buf[2] != 0xEE {
		t.Errorf("failed write modified the buffer: % X", buf)
	}
}

func TestWriter_Zeros(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	w := NewWriter(buf)

	if err := w.WriteZeros(3); err != nil {
		t.Fatalf("WriteZeros() error: %v", err)
	}
	if !bytes.Equal(buf, []byte{0, 0, 0, 0xFF}) {
		t.Errorf("buffer = % X, want 00 00 00 FF", buf)
	}
	if err := w.WriteZeros(2); !errors.Is(err, ErrOverflow) {
		t.Errorf("WriteZeros(2) with 1 byte left error = %v, want ErrOverflow", err)
	}
}

func TestNegativeLengths(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	if _, err := r.ReadBytes(-1); !errors.Is(err, ErrUnderflow) {
		t.Errorf("ReadBytes(-1) error = %v, want ErrUnderflow", err)
	}
	if r.Pos() != 0 {
		t.Errorf("Pos() after failed read = %d, want 0", r.Pos())
	}

	buf := []byte{0xFF, 0xFF}
	w := NewWriter(buf)
	if err := w.WriteZeros(-1); !errors.Is(err, ErrOverflow) {
		t.Errorf("WriteZeros(-1) error = %v, want ErrOverflow", err)
	}
	if w.Pos() != 0 || !bytes.Equal(buf, []byte{0xFF, 0xFF}) {
		t.Errorf("writer moved or wrote after failure: pos %d, buffer % X", w.Pos(), buf)
	}
}

// Package bitio implements the continuous, LSB-first bit stream used by the
// wire protocol's payloads: a move-only, append-only Writer and a
// position-tracking Reader over a byte buffer, plus the handful of
// bit-accurate primitives (packed floats, length-prefixed wide strings) the
// protocol builds on top of them.
package bitio

import (
	"encoding/binary"
	"math"
)

// Writer accumulates bits into a byte buffer. The zero value is a writer
// positioned at the start of an empty buffer. A Writer must not be copied
// after use; callers thread the same *Writer through a chain of write_* calls
// the way the wire format itself threads a single continuous bit stream.
type Writer struct {
	buf     []byte
	partial byte // low bitPos bits already populated, high bits zero
	bitPos  uint8
}

// NewWriter returns an empty Writer ready to accept writes.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteBits appends the low n bits of value to the stream, LSB-first. n must
// be between 1 and 64 inclusive. value is masked to n bits first: passing a
// wider value never corrupts bits written after it.
func (w *Writer) WriteBits(value uint64, n int) *Writer {
	if n <= 0 {
		return w
	}
	if n > 64 {
		n = 64
	}
	if n < 64 {
		value &= (uint64(1) << uint(n)) - 1
	}
	remaining := n
	for remaining > 0 {
		free := 8 - int(w.bitPos)
		take := remaining
		if take > free {
			take = free
		}
		chunk := byte(value & ((1 << uint(take)) - 1))
		w.partial |= chunk << w.bitPos
		w.bitPos += uint8(take)
		value >>= uint(take)
		remaining -= take
		if w.bitPos == 8 {
			w.buf = append(w.buf, w.partial)
			w.partial = 0
			w.bitPos = 0
		}
	}
	return w
}

// WriteBit appends a single bit.
func (w *Writer) WriteBit(b bool) *Writer {
	if b {
		return w.WriteBits(1, 1)
	}
	return w.WriteBits(0, 1)
}

// WriteU8 appends an 8-bit unsigned value.
func (w *Writer) WriteU8(v uint8) *Writer { return w.WriteBits(uint64(v), 8) }

// WriteU16 appends a 16-bit unsigned value.
func (w *Writer) WriteU16(v uint16) *Writer { return w.WriteBits(uint64(v), 16) }

// WriteU32 appends a 32-bit unsigned value.
func (w *Writer) WriteU32(v uint32) *Writer { return w.WriteBits(uint64(v), 32) }

// WriteU64 appends a 64-bit unsigned value.
func (w *Writer) WriteU64(v uint64) *Writer { return w.WriteBits(v, 64) }

// WriteI32 appends the two's-complement encoding of a signed 32-bit value.
func (w *Writer) WriteI32(v int32) *Writer { return w.WriteBits(uint64(uint32(v)), 32) }

// WriteF32 appends the raw IEEE-754 bit pattern of a float32.
func (w *Writer) WriteF32(v float32) *Writer {
	return w.WriteBits(uint64(math.Float32bits(v)), 32)
}

// WritePackedFloat appends the 16-bit lossy half-float encoding of v. NaN and
// +/-Inf inputs are reduced to clamped finite values by this encoding, per
// spec: the branch that handles out-of-range magnitudes also catches them,
// since NaN/Inf bit patterns have an exponent field that always exceeds the
// overflow threshold.
func (w *Writer) WritePackedFloat(v float32) *Writer {
	return w.WriteBits(uint64(EncodePackedFloat(v)), 16)
}

// WritePackedVector3 appends three consecutive packed floats.
func (w *Writer) WritePackedVector3(x, y, z float32) *Writer {
	return w.WritePackedFloat(x).WritePackedFloat(y).WritePackedFloat(z)
}

// WriteVector3 appends three consecutive full-precision floats.
func (w *Writer) WriteVector3(x, y, z float32) *Writer {
	return w.WriteF32(x).WriteF32(y).WriteF32(z)
}

// WriteWideString appends a length-prefixed UTF-16LE string: a 1-bit
// extended flag, a 7-or-15-bit code-unit count, then each code unit written
// as a raw 8-bit chunk (low byte then high byte) through the bit stream. s
// must encode to at most 32767 UTF-16 code units.
func (w *Writer) WriteWideString(s string) *Writer {
	units := utf16Encode(s)
	n := len(units)
	extended := n > 0x7F
	w.WriteBit(extended)
	if extended {
		w.WriteBits(uint64(n&0x7FFF), 15)
	} else {
		w.WriteBits(uint64(n&0x7F), 7)
	}
	for _, u := range units {
		w.WriteU8(byte(u))
		w.WriteU8(byte(u >> 8))
	}
	return w
}

// FlushBits commits any partial byte, zero-padding its high bits, and
// realigns the writer to the next byte boundary. It is a no-op when the
// writer is already aligned.
func (w *Writer) FlushBits() *Writer {
	if w.bitPos == 0 {
		return w
	}
	w.buf = append(w.buf, w.partial)
	w.partial = 0
	w.bitPos = 0
	return w
}

// WriteBytesFlush flushes any partial byte, then appends p verbatim. It
// exists only for packet boundaries and non-bit protocol prefixes (e.g. the
// frame header); handlers building payload bodies should stick to the bit
// stream operations above.
func (w *Writer) WriteBytesFlush(p []byte) *Writer {
	w.FlushBits()
	w.buf = append(w.buf, p...)
	return w
}

// WriteU32Flush flushes, then appends v as 4 little-endian bytes.
func (w *Writer) WriteU32Flush(v uint32) *Writer {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return w.WriteBytesFlush(b[:])
}

// WriteU16Flush flushes, then appends v as 2 little-endian bytes.
func (w *Writer) WriteU16Flush(v uint16) *Writer {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return w.WriteBytesFlush(b[:])
}

// ToBytes materializes the accumulated buffer. It does not flush a pending
// partial byte; callers that rely on byte alignment must call FlushBits
// first. Calling ToBytes does not consume or reset the writer.
func (w *Writer) ToBytes() []byte {
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return out
}

// Len reports the number of fully committed bytes, excluding any pending
// partial byte.
func (w *Writer) Len() int { return len(w.buf) }

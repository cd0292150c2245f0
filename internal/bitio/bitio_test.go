package bitio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteBitsRoundTrip(t *testing.T) {
	cases := []struct {
		value uint64
		n     int
	}{
		{0, 1}, {1, 1}, {0x7F, 7}, {0xFF, 8}, {0x1FFF, 13},
		{0xFFFFFFFF, 32}, {0xFFFFFFFFFFFFFFFF, 64}, {12345, 20},
	}
	for _, c := range cases {
		w := NewWriter()
		w.WriteBits(c.value, c.n).FlushBits()
		r := NewReader(w.ToBytes())
		got, err := r.ReadBits(c.n)
		require.NoError(t, err)
		want := c.value
		if c.n < 64 {
			want &= (uint64(1) << uint(c.n)) - 1
		}
		require.Equal(t, want, got)
	}
}

func TestMixedSequenceRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteU32(0x11223344).WriteBits(0b10101, 5).WriteU8(0xFF).FlushBits()
	buf := w.ToBytes()
	require.Len(t, buf, 6) // 32 + 5 + 8 = 45 bits, flushed to 6 bytes
	require.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, buf[:4])

	r := NewReader(buf)
	v1, err := r.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x11223344), v1)

	v2, err := r.ReadBits(5)
	require.NoError(t, err)
	require.Equal(t, uint64(0b10101), v2)

	v3, err := r.ReadU8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xFF), v3)
}

func TestFlushBitsIdempotentWhenAligned(t *testing.T) {
	w := NewWriter()
	w.WriteU8(1).FlushBits()
	before := w.Len()
	w.FlushBits()
	require.Equal(t, before, w.Len())
}

func TestWideStringRoundTrip(t *testing.T) {
	cases := []string{"", "hello", "a", "the quick brown fox jumps"}
	for _, s := range cases {
		w := NewWriter()
		w.WriteWideString(s).FlushBits()
		r := NewReader(w.ToBytes())
		got, err := r.ReadWideString()
		require.NoError(t, err)
		require.Equal(t, s, got)
	}
}

func TestWideStringExtendedLength(t *testing.T) {
	s := make([]rune, 200)
	for i := range s {
		s[i] = 'a'
	}
	w := NewWriter()
	w.WriteWideString(string(s)).FlushBits()
	r := NewReader(w.ToBytes())
	got, err := r.ReadWideString()
	require.NoError(t, err)
	require.Equal(t, string(s), got)
}

func TestReadPastEOFDoesNotMutatePosition(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.ReadBits(9)
	require.ErrorIs(t, err, ErrEOF)
	require.Equal(t, 8, r.Remaining())
}

func TestPackedFloatSmallClampsToSignedZero(t *testing.T) {
	require.Equal(t, uint16(0), EncodePackedFloat(0))
	require.Equal(t, uint16(0x8000), EncodePackedFloat(float32(math.Copysign(0, -1))))
}

func TestPackedFloatOverflowClamps(t *testing.T) {
	require.Equal(t, uint16(0x43FF), EncodePackedFloat(1e30))
	require.Equal(t, uint16(0x8000|0x43FF), EncodePackedFloat(-1e30))
}

func TestPackedFloatNaNInfClamped(t *testing.T) {
	nan := EncodePackedFloat(float32(math.NaN()))
	require.Equal(t, uint16(0x43FF), nan&0x7FFF)

	posInf := EncodePackedFloat(float32(math.Inf(1)))
	require.Equal(t, uint16(0x43FF), posInf)

	negInf := EncodePackedFloat(float32(math.Inf(-1)))
	require.Equal(t, uint16(0x8000|0x43FF), negInf)
}

func TestPackedFloatRoundTripsNormal(t *testing.T) {
	for _, v := range []float32{1.0, -1.0, 3.14159, 100.5, -0.001, 1234.0} {
		encoded := EncodePackedFloat(v)
		decoded := DecodePackedFloat(encoded)
		reencoded := EncodePackedFloat(decoded)
		require.Equal(t, encoded, reencoded, "re-encoding decoded value must be stable for %v", v)
	}
}

func TestWriteBitsMasksWiderValue(t *testing.T) {
	w := NewWriter()
	w.WriteBits(0xFFFF, 4) // only low 4 bits should land
	w.WriteU8(0xAA)
	w.FlushBits()
	r := NewReader(w.ToBytes())
	v, err := r.ReadBits(4)
	require.NoError(t, err)
	require.Equal(t, uint64(0xF), v)
	v2, err := r.ReadU8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xAA), v2)
}

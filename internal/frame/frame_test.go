package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildParseIdempotence(t *testing.T) {
	payload := []byte("hello world")
	wire := Build(0x1234, payload)
	frames, rem, err := ParseFrames(wire)
	require.NoError(t, err)
	require.Empty(t, rem)
	require.Len(t, frames, 1)
	require.Equal(t, uint16(0x1234), frames[0].Opcode)
	require.Equal(t, payload, frames[0].Payload)
}

func TestParseFramesSplitting(t *testing.T) {
	p1 := make([]byte, 8)
	for i := range p1 {
		p1[i] = 0xAA
	}
	p2 := []byte{0x01, 0x02, 0x03}
	wire := append(Build(0x0003, p1), Build(0x0761, p2)...)
	partial := []byte{0x99}
	full := append(wire, partial...)

	frames, rem, err := ParseFrames(full)
	require.NoError(t, err)
	require.Equal(t, partial, rem)
	require.Len(t, frames, 2)
	require.Equal(t, uint16(0x0003), frames[0].Opcode)
	require.Equal(t, p1, frames[0].Payload)
	require.Equal(t, uint16(0x0761), frames[1].Opcode)
	require.Equal(t, p2, frames[1].Payload)
}

func TestParseFramesArbitrarySplit(t *testing.T) {
	p1 := []byte{1, 2, 3, 4, 5}
	p2 := []byte{6, 7}
	wire := append(Build(0x0001, p1), Build(0x0002, p2)...)

	for split := 0; split <= len(wire); split++ {
		first, second := wire[:split], wire[split:]
		frames1, rem1, err := ParseFrames(first)
		require.NoError(t, err)
		combined := append(append([]byte{}, rem1...), second...)
		frames2, rem2, err := ParseFrames(combined)
		require.NoError(t, err)
		require.Empty(t, rem2)
		all := append(frames1, frames2...)
		require.Len(t, all, 2)
		require.Equal(t, p1, all[0].Payload)
		require.Equal(t, p2, all[1].Payload)
	}
}

func TestParseFramesMalformedSize(t *testing.T) {
	buf := []byte{0x02, 0x00, 0x00, 0x00, 0xFF, 0xFF}
	_, rem, err := ParseFrames(buf)
	require.ErrorIs(t, err, ErrMalformed)
	require.Equal(t, buf, rem)
}

func TestParseFramesNoPartialDispatch(t *testing.T) {
	wire := Build(0x0001, []byte{1, 2, 3, 4})
	short := wire[:len(wire)-1]
	frames, rem, err := ParseFrames(short)
	require.NoError(t, err)
	require.Empty(t, frames)
	require.Equal(t, short, rem)
}

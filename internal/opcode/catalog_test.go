package opcode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBijection(t *testing.T) {
	for _, s := range All() {
		code := ToWire(s)
		resolved, ok := FromWire(code)
		require.True(t, ok)
		require.Equal(t, s, resolved)
		require.Equal(t, code, ToWire(resolved))
	}
}

func TestFromWireUnknownIsNotOk(t *testing.T) {
	_, ok := FromWire(0xFFFF)
	require.False(t, ok)
}

func TestToWireUnknownPanics(t *testing.T) {
	require.Panics(t, func() {
		ToWire("NOT_A_REAL_SYMBOL")
	})
}

func TestRegisterAddsEntry(t *testing.T) {
	Register("TEST_ONLY_OPCODE", 0xBEEF, "TestOnly")
	code := ToWire("test_only_opcode")
	require.Equal(t, uint16(0xBEEF), code)
	sym, ok := FromWire(0xBEEF)
	require.True(t, ok)
	require.Equal(t, Symbol("TEST_ONLY_OPCODE"), sym)
	require.Equal(t, "TestOnly", DisplayName(sym))
}

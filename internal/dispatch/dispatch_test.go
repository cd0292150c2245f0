package dispatch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"nexuscore/internal/opcode"
	"nexuscore/internal/session"
)

func TestRegisterLookupRoundTrip(t *testing.T) {
	r := New()
	called := false
	r.Register(opcode.ServerHello, func(payload []byte, s session.Session) Result {
		called = true
		return Continue(s)
	})

	h, ok := r.Lookup(opcode.ServerHello)
	require.True(t, ok)
	h(nil, session.New())
	require.True(t, called)
}

func TestLookupMissingReturnsFalse(t *testing.T) {
	r := New()
	_, ok := r.Lookup(opcode.Symbol("NOPE"))
	require.False(t, ok)
}

func TestAllReturnsEveryRegisteredSymbol(t *testing.T) {
	r := New()
	r.Register(opcode.ServerHello, func([]byte, session.Session) Result { return Result{} })
	r.Register(opcode.ClientHelloAuth, func([]byte, session.Session) Result { return Result{} })

	all := r.All()
	require.Len(t, all, 2)
	require.Contains(t, all, opcode.ServerHello)
	require.Contains(t, all, opcode.ClientHelloAuth)
}

func TestConcurrentLookupsAreSafe(t *testing.T) {
	r := New()
	r.Register(opcode.ServerHello, func([]byte, session.Session) Result { return Result{} })

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Lookup(opcode.ServerHello)
		}()
	}
	wg.Wait()
}

func TestReplyProducesSingleFrame(t *testing.T) {
	res := Reply(session.New(), opcode.ServerHello, []byte{1, 2, 3})
	require.Equal(t, VerdictReply, res.Verdict)
	require.Len(t, res.Frames, 1)
	require.Equal(t, opcode.ServerHello, res.Frames[0].Symbol)
}

func TestReplyManyPreservesOrder(t *testing.T) {
	frames := []Frame{
		{Symbol: opcode.ServerHello, Payload: []byte{1}},
		{Symbol: opcode.ClientHelloAuth, Payload: []byte{2}},
	}
	res := ReplyMany(session.New(), frames)
	require.Equal(t, VerdictReplyMany, res.Verdict)
	require.Equal(t, frames, res.Frames)
}

func TestFailCarriesReason(t *testing.T) {
	res := Fail("framing_error")
	require.Equal(t, VerdictFail, res.Verdict)
	require.Equal(t, "framing_error", res.Reason)
}

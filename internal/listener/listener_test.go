package listener

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nexuscore/internal/connrole"
	"nexuscore/internal/dispatch"
	"nexuscore/internal/frame"
	"nexuscore/internal/opcode"
)

func TestStartAcceptsAndSendsServerHello(t *testing.T) {
	reg := dispatch.New()
	l, err := Start(Config{
		Name:     "test-auth",
		Port:     0,
		Role:     connrole.Auth,
		Registry: reg,
	})
	require.NoError(t, err)
	defer l.Stop()

	require.NotZero(t, l.PortOf())

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(l.PortOf())))
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	frames, _, err := frame.ParseFrames(buf[:n])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, opcode.ToWire(opcode.ServerHello), frames[0].Opcode)

	require.Eventually(t, func() bool {
		return l.ConnectionCount() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestStopUnblocksAcceptLoop(t *testing.T) {
	reg := dispatch.New()
	l, err := Start(Config{Name: "test-stop", Port: 0, Role: connrole.World, Registry: reg})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

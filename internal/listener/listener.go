// Package listener implements the TCP accept loop that spawns a gameconn
// Connection actor per accepted socket (spec.md §4.7). Its shutdown
// pattern — a close-channel plus sync.WaitGroup drain — is grounded on the
// teacher's PaysysServer.Start/Stop (internal/server/server.go), adapted
// from a single handler-per-connection call to spawning an actor.
package listener

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"nexuscore/internal/connrole"
	"nexuscore/internal/crypto"
	"nexuscore/internal/dispatch"
	"nexuscore/internal/gameconn"
	"nexuscore/internal/logging"
	"nexuscore/internal/persistence"
)

// DefaultAcceptors is the default number of concurrent Accept calls
// (spec.md §4.7: "configured with a number of concurrent acceptors
// (default 10)"). A plain net.Listener's Accept is already safe to call
// from multiple goroutines, which is how this bounds concurrent accept
// throughput without a custom semaphore.
const DefaultAcceptors = 10

// Config parameterizes one named Listener instance.
type Config struct {
	Name        string
	Host        string // empty or unparsable falls back to all interfaces
	Port        int
	Role        connrole.Role
	Registry    *dispatch.Registry
	Handshake   gameconn.Handshake
	KeySource   crypto.BootstrapKeySource
	CryptoFor   func(connrole.Role) crypto.Context // optional; nil = gameconn default (NullContext)
	Persistence persistence.QuestPersistence
	Interval    time.Duration // persistence cadence override, 0 = persistence.DefaultInterval
	OnGameEvent gameconn.GameEventHandler
	Acceptors   int
	Logger      *zap.Logger
}

// Listener accepts connections for one role and spawns a Connection actor
// per socket.
type Listener struct {
	cfg Config
	ln  net.Listener

	connCount atomic.Int64

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
}

// Start binds cfg.Host:cfg.Port and begins accepting. An unparsable or
// empty Host falls back to all interfaces (spec.md §4.7).
func Start(cfg Config) (*Listener, error) {
	host := cfg.Host
	if host != "" {
		if ip := net.ParseIP(host); ip == nil {
			host = ""
		}
	}
	addr := net.JoinHostPort(host, strconv.Itoa(cfg.Port))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listener %s: listen %s: %w", cfg.Name, addr, err)
	}

	if cfg.Acceptors <= 0 {
		cfg.Acceptors = DefaultAcceptors
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	l := &Listener{cfg: cfg, ln: ln, stopped: make(chan struct{})}

	for i := 0; i < cfg.Acceptors; i++ {
		l.wg.Add(1)
		go l.acceptLoop()
	}
	return l, nil
}

// PortOf returns the bound TCP port, useful when Config.Port was 0.
func (l *Listener) PortOf() int {
	return l.ln.Addr().(*net.TCPAddr).Port
}

// ConnectionCount reports the number of currently live connection actors.
func (l *Listener) ConnectionCount() int {
	return int(l.connCount.Load())
}

// Stop closes the listening socket, unblocking every acceptLoop goroutine,
// then waits for them to return. It does not forcibly close already
// accepted connections; each Connection actor tears down on its own
// termination hook when its socket closes.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopped)
		_ = l.ln.Close()
	})
	l.wg.Wait()
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.stopped:
				return
			default:
				l.cfg.Logger.Warn("accept error", zap.String("listener", l.cfg.Name), zap.Error(err))
				continue
			}
		}
		l.spawn(conn)
	}
}

func (l *Listener) spawn(conn net.Conn) {
	l.connCount.Add(1)

	var cryptCtx crypto.Context
	if l.cfg.CryptoFor != nil {
		cryptCtx = l.cfg.CryptoFor(l.cfg.Role)
	}

	remote := conn.RemoteAddr().String()
	connLogger := logging.ForConnection(l.cfg.Logger, remote, l.cfg.Role.String(), remote)

	c := gameconn.New(conn, gameconn.Options{
		Role:        l.cfg.Role,
		Registry:    l.cfg.Registry,
		Crypto:      cryptCtx,
		KeySource:   l.cfg.KeySource,
		Handshake:   l.cfg.Handshake,
		Persistence: l.cfg.Persistence,
		Interval:    l.cfg.Interval,
		OnGameEvent: l.cfg.OnGameEvent,
		Logger:      connLogger,
	})

	go func() {
		defer l.connCount.Add(-1)
		c.Run(context.Background())
	}()
}

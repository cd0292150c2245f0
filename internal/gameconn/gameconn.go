// Package gameconn implements the per-connection actor that drives the
// Connection State Machine (spec.md §4.6): one goroutine per accepted TCP
// socket, cooperatively scheduled, processing its mailbox to completion
// between suspension points (spec.md §5).
//
// The mailbox shape is grounded on la2go's GameClient (sendCh/closeCh
// actor), adapted from a dedicated-writer-goroutine design to a single
// inbound mailbox so that socket bytes, GameEvent, PersistQuests, and
// SchedulePersistence interleave in FIFO arrival order, as spec.md §5
// requires ("GameEvent, PersistQuests, and inbound TCP data interleave in
// FIFO order on the connection's mailbox").
package gameconn

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"nexuscore/internal/connrole"
	"nexuscore/internal/crypto"
	"nexuscore/internal/dispatch"
	"nexuscore/internal/frame"
	"nexuscore/internal/opcode"
	"nexuscore/internal/persistence"
	"nexuscore/internal/session"
)

// State is one state of the Connection State Machine (spec.md §4.6).
type State int32

const (
	StateConnected State = iota
	StateAuthenticating
	StateAuthenticated
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// DefaultAuthMessage is the fixed auth-message token used by the reference
// protocol (spec.md §6) when configuration does not override it.
const DefaultAuthMessage uint32 = 0x097998A0

// Handshake carries the fixed fields a ServerHello advertises (spec.md §6).
type Handshake struct {
	AuthVersion  uint32
	RealmID      uint32
	RealmGroupID uint32
	AuthMessage  uint32 // fixed token, DefaultAuthMessage in the reference
}

// GameEvent is an external, non-socket message forwarded to the
// session-quest manager (spec.md §4.6).
type GameEvent struct {
	Type string
	Data []byte
}

// GameEventHandler folds a GameEvent into the current session, returning
// the updated session and zero or more outbound frames to send in order.
type GameEventHandler func(s session.Session, ev GameEvent) (session.Session, []dispatch.Frame, error)

// mailboxMsg is the sum type carried on the single mailbox channel: exactly
// one of its fields is meaningful.
type mailboxMsg struct {
	inbound         []byte // newly received socket bytes
	closed          bool   // socket read loop ended (EOF or error)
	closeErr        error
	gameEvent       *GameEvent
	persistQuests   bool
	schedulePersist bool
	persistTick     bool
}

// Options configures a Connection at construction time.
type Options struct {
	Role        connrole.Role
	Registry    *dispatch.Registry
	Crypto      crypto.Context
	KeySource   crypto.BootstrapKeySource
	Handshake   Handshake
	Persistence persistence.QuestPersistence
	Interval    time.Duration // persistence cadence override, 0 = default
	OnGameEvent GameEventHandler
	Logger      *zap.Logger
	MailboxSize int // 0 = default
}

const defaultMailboxSize = 64

// Connection is one accepted socket's actor. Exported fields are none;
// state is only observable through the accessor methods below, all of
// which are safe to call from other goroutines (e.g. the Listener's
// connection_count bookkeeping).
type Connection struct {
	conn      net.Conn
	role      connrole.Role
	registry  *dispatch.Registry
	crypto    crypto.Context
	keySource crypto.BootstrapKeySource
	handshake Handshake
	onEvent   GameEventHandler
	logger    *zap.Logger

	scheduler *persistence.Scheduler

	mailbox  chan mailboxMsg
	done     chan struct{}
	doneOnce sync.Once

	state  atomic.Int32
	buffer []byte
	sess   session.Session
}

// New constructs a Connection bound to conn, ready for Run. It does not
// start goroutines or write to the socket until Run is called.
func New(conn net.Conn, opts Options) *Connection {
	size := opts.MailboxSize
	if size <= 0 {
		size = defaultMailboxSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	crypt := opts.Crypto
	if crypt == nil {
		crypt = crypto.NullContext{}
	}

	c := &Connection{
		conn:      conn,
		role:      opts.Role,
		registry:  opts.Registry,
		crypto:    crypt,
		keySource: opts.KeySource,
		handshake: opts.Handshake,
		onEvent:   opts.OnGameEvent,
		logger:    logger,
		mailbox:   make(chan mailboxMsg, size),
		done:      make(chan struct{}),
	}
	c.sess = session.New()
	c.sess.RemoteAddr = conn.RemoteAddr().String()
	if opts.Persistence != nil {
		c.scheduler = persistence.NewScheduler(opts.Persistence, opts.Interval)
	}
	c.state.Store(int32(StateConnected))
	return c
}

// State reports the connection's current state (lock-free read).
func (c *Connection) State() State { return State(c.state.Load()) }

// RemoteAddr returns the underlying socket's remote address string.
func (c *Connection) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// SubmitGameEvent enqueues an external GameEvent for FIFO processing
// alongside inbound socket data (spec.md §4.6). It is non-blocking: a full
// mailbox is treated as backpressure and the event is dropped with a log;
// the connection stays open (unlike a failed outbound send, which closes it).
func (c *Connection) SubmitGameEvent(ev GameEvent) {
	select {
	case c.mailbox <- mailboxMsg{gameEvent: &ev}:
	default:
		c.logger.Warn("mailbox full, dropping game event", zap.String("type", ev.Type))
	}
}

// RequestPersistQuests enqueues a PersistQuests message (spec.md §4.6).
func (c *Connection) RequestPersistQuests() {
	select {
	case c.mailbox <- mailboxMsg{persistQuests: true}:
	default:
		c.logger.Warn("mailbox full, dropping persist_quests request")
	}
}

// SchedulePersistence enqueues the idempotent persistence-timer start
// message (spec.md §4.6).
func (c *Connection) SchedulePersistence() {
	select {
	case c.mailbox <- mailboxMsg{schedulePersist: true}:
	default:
		c.logger.Warn("mailbox full, dropping schedule_persistence request")
	}
}

// Close begins termination from outside the actor: it closes the
// underlying socket, which unblocks the read loop and lets Run's
// termination hook run. Safe to call multiple times and from any
// goroutine.
func (c *Connection) Close() {
	_ = c.conn.Close()
}

// Run drives the Connection for its entire lifetime: sends the initial
// ServerHello, starts the socket read loop, then processes the mailbox
// until termination. It returns once the connection is fully torn down
// (termination hook complete). Callers (the Listener) run this in its own
// goroutine per accepted socket.
func (c *Connection) Run(ctx context.Context) {
	defer c.terminate(ctx)

	if c.keySource != nil {
		if _, err := c.keySource.BootstrapKey(c.role); err != nil {
			c.logger.Warn("bootstrap key derivation failed", zap.Error(err))
		}
	}

	if err := c.sendServerHello(); err != nil {
		c.logger.Warn("failed to send server hello", zap.Error(err))
		return
	}
	c.state.Store(int32(StateAuthenticating))

	readerDone := make(chan struct{})
	go c.readLoop(readerDone)

	for {
		select {
		case msg := <-c.mailbox:
			if !c.handleMailboxMsg(msg) {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop is the only goroutine that calls conn.Read. It never interprets
// bytes itself; it hands them to the mailbox so all parsing happens on the
// single actor goroutine (spec.md §5 "all processing... runs to completion
// without yielding").
func (c *Connection) readLoop(done chan struct{}) {
	defer close(done)
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case c.mailbox <- mailboxMsg{inbound: chunk}:
			case <-c.done:
				return
			}
		}
		if err != nil {
			select {
			case c.mailbox <- mailboxMsg{closed: true, closeErr: err}:
			case <-c.done:
			}
			return
		}
	}
}

// handleMailboxMsg processes one mailbox message to completion. It returns
// false when the connection should terminate.
func (c *Connection) handleMailboxMsg(msg mailboxMsg) bool {
	switch {
	case msg.closed:
		if msg.closeErr != nil {
			c.logger.Debug("connection closed", zap.Error(msg.closeErr))
		}
		return false
	case msg.inbound != nil:
		return c.handleInbound(msg.inbound)
	case msg.gameEvent != nil:
		return c.handleGameEvent(*msg.gameEvent)
	case msg.persistQuests:
		return c.handlePersistTick()
	case msg.schedulePersist:
		c.startScheduler()
		return true
	case msg.persistTick:
		return c.handlePersistTick()
	default:
		return true
	}
}

// handleInbound implements the receive loop of spec.md §4.6 steps 1-6.
func (c *Connection) handleInbound(data []byte) bool {
	c.buffer = append(c.buffer, data...)

	frames, remainder, err := frame.ParseFrames(c.buffer)
	c.buffer = remainder
	if err != nil {
		c.logger.Warn("framing error", zap.Error(err))
		return false
	}

	for _, f := range frames {
		sym, ok := opcode.FromWire(f.Opcode)
		if !ok {
			c.logger.Debug("unknown opcode", zap.Uint16("opcode", f.Opcode))
			continue
		}
		handler, ok := c.registry.Lookup(sym)
		if !ok {
			c.logger.Debug("unregistered handler", zap.String("opcode", string(sym)))
			continue
		}
		decrypted, err := c.crypto.Decrypt(f.Payload)
		if err != nil {
			c.logger.Warn("decrypt failed", zap.String("opcode", string(sym)), zap.Error(err))
			return false
		}
		result := handler(decrypted, c.sess)
		if !c.applyResult(sym, result) {
			return false
		}
	}
	return true
}

// applyResult interprets a HandlerResult (spec.md §3) and advances the
// state machine: a non-fail verdict on ClientHelloAuth/ClientHelloRealm
// while authenticating promotes the connection to authenticated.
func (c *Connection) applyResult(sym opcode.Symbol, result dispatch.Result) bool {
	switch result.Verdict {
	case dispatch.VerdictFail:
		c.logger.Warn("handler fail", zap.String("opcode", string(sym)), zap.String("reason", result.Reason))
		return false
	case dispatch.VerdictReply:
		c.sess = result.Session
		if err := c.sendFrame(result.Frames[0].Symbol, result.Frames[0].Payload); err != nil {
			c.logger.Warn("send reply failed", zap.Error(err))
			return false
		}
	case dispatch.VerdictReplyMany:
		c.sess = result.Session
		for _, fr := range result.Frames {
			if err := c.sendFrame(fr.Symbol, fr.Payload); err != nil {
				c.logger.Warn("send reply failed", zap.Error(err))
				return false
			}
		}
	case dispatch.VerdictContinue:
		c.sess = result.Session
	}

	if c.State() == StateAuthenticating && (sym == opcode.ClientHelloAuth || sym == opcode.ClientHelloRealm) {
		c.state.Store(int32(StateAuthenticated))
	}

	if result.SchedulePersistence {
		c.startScheduler()
	}
	if result.RequestPersistQuests {
		return c.handlePersistTick()
	}
	return true
}

// handleGameEvent folds an external GameEvent into the session (spec.md
// §4.6: "forwarded to the session-quest manager, which returns an updated
// session and zero or more outbound frames; frames are sent in order").
func (c *Connection) handleGameEvent(ev GameEvent) bool {
	if c.onEvent == nil {
		return true
	}
	next, frames, err := c.onEvent(c.sess, ev)
	if err != nil {
		c.logger.Warn("game event handling failed", zap.String("type", ev.Type), zap.Error(err))
		return true
	}
	c.sess = next
	for _, fr := range frames {
		if err := c.sendFrame(fr.Symbol, fr.Payload); err != nil {
			c.logger.Warn("send game event reply failed", zap.Error(err))
			return false
		}
	}
	return true
}

// startScheduler idempotently arms the persistence timer (spec.md §4.8,
// §3 invariant 4). The fire callback re-enters the mailbox so the tick is
// processed with the same serialization guarantees as any other message.
func (c *Connection) startScheduler() {
	if c.scheduler == nil {
		return
	}
	c.scheduler.Start(func() {
		select {
		case c.mailbox <- mailboxMsg{persistTick: true}:
		case <-c.done:
		}
	})
}

func (c *Connection) handlePersistTick() bool {
	if c.scheduler == nil {
		return true
	}
	next, persisted, err := c.scheduler.Tick(context.Background(), c.sess)
	if err != nil {
		c.logger.Warn("persistence tick failed, retaining session", zap.Error(err))
	} else if persisted {
		c.sess = next
	}
	c.scheduler.Reschedule(func() {
		select {
		case c.mailbox <- mailboxMsg{persistTick: true}:
		case <-c.done:
		}
	})
	return true
}

// terminate runs the unconditional termination hook (spec.md §4.8): mark
// the state disconnected, stop the handler-scoped achievement worker (if
// any) so it cannot race the flush, cancel the persistence timer, flush
// dirty quests on logout best-effort, close the socket.
func (c *Connection) terminate(ctx context.Context) {
	c.doneOnce.Do(func() { close(c.done) })
	c.state.Store(int32(StateDisconnected))

	if c.sess.Achievement != nil && c.sess.Achievement.Stop != nil {
		c.sess.Achievement.Stop()
	}

	if c.scheduler != nil {
		c.scheduler.Stop()
		if err := c.scheduler.Logout(ctx, c.sess); err != nil {
			c.logger.Warn("logout flush failed", zap.Error(err))
		}
	}
	_ = c.conn.Close()
}

// sendServerHello builds and sends the handshake frame (spec.md §6).
func (c *Connection) sendServerHello() error {
	payload, err := buildServerHello(c.handshake, c.role)
	if err != nil {
		return err
	}
	return c.sendFrame(opcode.ServerHello, payload)
}

// sendFrame encrypts (if configured) and writes one framed message.
func (c *Connection) sendFrame(sym opcode.Symbol, payload []byte) error {
	encrypted, err := c.crypto.Encrypt(payload)
	if err != nil {
		return fmt.Errorf("gameconn: encrypt: %w", err)
	}
	wire := frame.Build(opcode.ToWire(sym), encrypted)
	_, err = c.conn.Write(wire)
	return err
}

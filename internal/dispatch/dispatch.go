// Package dispatch implements the process-wide Handler Registry and the
// HandlerResult sum type every handler returns (spec.md §3, §4.4).
//
// The registry is a plain map guarded by a RWMutex, the same shape as the
// teacher's protocol.Handler session map (internal/protocol/handler.go's
// sessionMutex sync.RWMutex over bishopSessions): writes are expected only
// at module-load time, reads are on the hot per-frame path.
package dispatch

import (
	"fmt"
	"sync"

	"nexuscore/internal/opcode"
	"nexuscore/internal/session"
)

// Frame is one outbound (opcode, payload) pair, as produced by ReplyMany.
type Frame struct {
	Symbol  opcode.Symbol
	Payload []byte
}

// Verdict discriminates the HandlerResult sum type (spec.md §3).
type Verdict int

const (
	// VerdictContinue carries no reply; only the session may have changed.
	VerdictContinue Verdict = iota
	// VerdictReply carries exactly one outbound frame.
	VerdictReply
	// VerdictReplyMany carries zero or more outbound frames, sent in order.
	VerdictReplyMany
	// VerdictFail terminates the connection after logging Reason.
	VerdictFail
)

// Result is the HandlerResult sum type. Exactly one of the following shapes
// is meaningful depending on Verdict:
//   - Continue:   Session only.
//   - Reply:      Session + single-element Frames.
//   - ReplyMany:  Session + Frames (possibly empty).
//   - Fail:       Reason.
//
// SchedulePersistence and RequestPersistQuests mirror the two external
// messages of the same name (spec.md §4.6): a handler that binds a
// character to the session sets SchedulePersistence so the connection
// actor arms its persistence timer (spec.md §4.8 "starting from when the
// connection enters the world"); RequestPersistQuests asks for an
// immediate out-of-cadence flush. Neither field requires the handler to
// hold a reference to the connection itself — the connection actor that
// called the handler applies them after interpreting Verdict.
type Result struct {
	Verdict              Verdict
	Session              session.Session
	Frames               []Frame
	Reason               string
	SchedulePersistence  bool
	RequestPersistQuests bool
}

// WithSchedulePersistence marks r as also requesting the persistence timer
// be armed (idempotent on the connection side).
func (r Result) WithSchedulePersistence() Result {
	r.SchedulePersistence = true
	return r
}

// WithRequestPersistQuests marks r as also requesting an immediate
// out-of-cadence persistence flush.
func (r Result) WithRequestPersistQuests() Result {
	r.RequestPersistQuests = true
	return r
}

// Continue returns a HandlerResult that replaces the session with no reply.
func Continue(s session.Session) Result {
	return Result{Verdict: VerdictContinue, Session: s}
}

// Reply returns a HandlerResult producing exactly one outbound frame.
func Reply(s session.Session, sym opcode.Symbol, payload []byte) Result {
	return Result{Verdict: VerdictReply, Session: s, Frames: []Frame{{Symbol: sym, Payload: payload}}}
}

// ReplyMany returns a HandlerResult producing frames in list order, all
// emitted before the connection's next inbound frame is dispatched
// (spec.md §4.6 "Reply ordering").
func ReplyMany(s session.Session, frames []Frame) Result {
	return Result{Verdict: VerdictReplyMany, Session: s, Frames: frames}
}

// Fail returns a HandlerResult that terminates the connection after Reason
// is logged (spec.md §3: "Fail(reason) — terminates the connection after
// logging").
func Fail(reason string) Result {
	return Result{Verdict: VerdictFail, Reason: reason}
}

// Handler processes one inbound opcode's payload against the connection's
// current session and returns the verdict to apply.
//
// Handlers own creating their own Bit Reader over payload (spec.md §6
// "Handler-facing contract": "handler must create its own Bit Reader") and
// must never block — long-running work is delegated to an external worker
// that later reports back via the connection's GameEvent channel.
type Handler func(payload []byte, s session.Session) Result

// Registry is a process-wide map from opcode symbol to Handler. The zero
// value is not usable; construct with New.
type Registry struct {
	mu       sync.RWMutex
	handlers map[opcode.Symbol]Handler
}

// New returns an empty Registry. Bootstrap handlers (hello/auth/realm
// handshake) are registered by internal/handlers at process startup, not
// baked into this constructor, so the registry stays reusable in tests.
func New() *Registry {
	return &Registry{handlers: make(map[opcode.Symbol]Handler)}
}

// Register binds sym to h, overwriting any existing binding. Intended for
// module-load time; concurrent calls serialize on the registry's write lock
// (spec.md §4.4: "writers may serialize"), and readers via Lookup/All wait
// only while a write is in progress.
func (r *Registry) Register(sym opcode.Symbol, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[sym] = h
}

// Lookup returns the handler bound to sym, if any. Safe for concurrent use
// from many connection actors.
func (r *Registry) Lookup(sym opcode.Symbol) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[sym]
	return h, ok
}

// All returns every registered symbol, for diagnostics.
func (r *Registry) All() []opcode.Symbol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]opcode.Symbol, 0, len(r.handlers))
	for sym := range r.handlers {
		out = append(out, sym)
	}
	return out
}

// String renders a Verdict for log lines.
func (v Verdict) String() string {
	switch v {
	case VerdictContinue:
		return "continue"
	case VerdictReply:
		return "reply"
	case VerdictReplyMany:
		return "reply_many"
	case VerdictFail:
		return "fail"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

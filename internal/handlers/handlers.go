// Package handlers provides the default bootstrap handler set the Handler
// Registry ships with (spec.md §4.4: "a small default set (auth, encryption
// handshake, realm handshake)"). Per spec.md §1's non-goals, this core does
// not define gameplay opcode semantics or an account database; these
// handlers validate wire shape, apply the pre-auth rate limit, and derive
// the connection's crypto context — enough to drive the Connection State
// Machine from authenticating to authenticated. Gameplay opcodes are
// registered by the embedding application, not here.
package handlers

import (
	"fmt"
	"sync"
	"time"

	"nexuscore/internal/bitio"
	"nexuscore/internal/connrole"
	"nexuscore/internal/crypto"
	"nexuscore/internal/dispatch"
	"nexuscore/internal/opcode"
	"nexuscore/internal/ratelimit"
	"nexuscore/internal/session"
	"nexuscore/internal/validation"
)

// RealmDescriptor is one entry of the realm list sent in reply to a
// ClientHelloRealm. Field shapes follow the same wide-string/u32 primitives
// as ServerHello; gameplay semantics beyond name/id/population are out of
// scope (spec.md §1).
type RealmDescriptor struct {
	ID         uint32
	Name       string
	Population uint32
}

// Deps bundles the shared services the default handlers close over. All
// fields are process-wide and safe for concurrent use from many connection
// actors (spec.md §5).
type Deps struct {
	Limiter      *ratelimit.Limiter
	KeySource    crypto.BootstrapKeySource
	Realms       []RealmDescriptor
	AuthWindowMs int64
	AuthLimit    int
}

// RegisterDefaults binds the bootstrap handshake handlers into reg. The
// embedding cmd/ binary calls this once at startup before the Listener
// begins accepting (spec.md §4.4: "rare... module load time").
func RegisterDefaults(reg *dispatch.Registry, deps Deps) {
	reg.Register(opcode.ClientHelloAuth, authHandler(deps))
	reg.Register(opcode.ClientHelloRealm, realmHandler(deps))
	reg.Register(opcode.EncryptionHandshake, encryptionHandler(deps))
	reg.Register(opcode.CharacterEnterWorld, characterEnterWorldHandler())
}

// authHandler validates the account-name format (validation.ValidateName)
// and applies the pre-auth rate limit keyed "auth:<client_ip>" (spec.md
// §4.5), reading the client address from the session's RemoteAddr (set
// once at accept time, the same for every handler invoked on this
// connection); it does not look up or verify credentials against any
// store, since an account database is explicitly out of scope (spec.md
// §1).
func authHandler(deps Deps) dispatch.Handler {
	return func(payload []byte, s session.Session) dispatch.Result {
		r := bitio.NewReader(payload)
		account, err := r.ReadWideString()
		if err != nil {
			return dispatch.Fail(fmt.Sprintf("auth: decode account: %v", err))
		}
		if _, err := r.ReadWideString(); err != nil { // password, opaque to this core
			return dispatch.Fail(fmt.Sprintf("auth: decode password: %v", err))
		}

		if err := validation.ValidateName(account); err != nil {
			return replyAuthDenied(s, err.Error())
		}

		window, limit := deps.AuthWindowMs, deps.AuthLimit
		if window <= 0 {
			window = 60000
		}
		if limit <= 0 {
			limit = 5
		}
		key := "auth:" + s.RemoteAddr
		if deps.Limiter != nil {
			if v := deps.Limiter.Hit(key, window, limit); !v.Allowed {
				return replyAuthDenied(s, "rate_limited")
			}
		}

		w := bitio.NewWriter()
		w.WriteU8(1) // accepted
		w.FlushBits()
		return dispatch.Reply(s, opcode.ClientHelloAuth, w.ToBytes())
	}
}

func replyAuthDenied(s session.Session, reason string) dispatch.Result {
	w := bitio.NewWriter()
	w.WriteU8(0) // denied
	w.WriteWideString(reason)
	w.FlushBits()
	return dispatch.Reply(s, opcode.ClientHelloAuth, w.ToBytes())
}

// realmHandler validates the requested account name and replies with the
// configured realm list, encoded as a count followed by (id, name,
// population) triples.
func realmHandler(deps Deps) dispatch.Handler {
	return func(payload []byte, s session.Session) dispatch.Result {
		r := bitio.NewReader(payload)
		account, err := r.ReadWideString()
		if err != nil {
			return dispatch.Fail(fmt.Sprintf("realm: decode account: %v", err))
		}
		if err := validation.ValidateName(account); err != nil {
			return dispatch.Fail(fmt.Sprintf("realm: %v", err))
		}

		w := bitio.NewWriter()
		w.WriteU16(uint16(len(deps.Realms)))
		for _, realm := range deps.Realms {
			w.WriteU32(realm.ID)
			w.WriteWideString(realm.Name)
			w.WriteU32(realm.Population)
		}
		w.FlushBits()
		return dispatch.Reply(s, opcode.RealmListRequest, w.ToBytes())
	}
}

// encryptionHandler derives a bootstrap key for the role named by the
// payload's first byte (1 = world, any other value = auth) and acknowledges
// the handshake. The actual cipher
// transform is out of scope (spec.md §1); this only exercises the seam
// where key material is bound (internal/crypto).
func encryptionHandler(deps Deps) dispatch.Handler {
	return func(payload []byte, s session.Session) dispatch.Result {
		r := bitio.NewReader(payload)
		roleByte, err := r.ReadU8()
		if err != nil {
			return dispatch.Fail(fmt.Sprintf("encryption: decode role: %v", err))
		}

		role := connrole.Auth
		if roleByte == 1 {
			role = connrole.World
		}
		if deps.KeySource != nil {
			if _, err := deps.KeySource.BootstrapKey(role); err != nil {
				return dispatch.Fail(fmt.Sprintf("encryption: bootstrap key: %v", err))
			}
		}

		w := bitio.NewWriter()
		w.WriteU8(1) // ack
		w.FlushBits()
		return dispatch.Reply(s, opcode.EncryptionHandshake, w.ToBytes())
	}
}

// characterEnterWorldHandler binds a character to the session — the event
// spec.md §4.8 calls "the connection enters the world" — and arms the
// persistence timer via SchedulePersistence. It also starts the
// handler-scoped achievement worker (spec.md §9's "optional
// achievement-worker handle"): a background goroutine whose Stop func is
// recorded on the session so Connection's termination hook can cancel it
// before the logout flush runs. Character selection itself (which
// character, drawn from which store) is out of scope (spec.md §1); this
// accepts whatever id/name the caller presents.
func characterEnterWorldHandler() dispatch.Handler {
	return func(payload []byte, s session.Session) dispatch.Result {
		r := bitio.NewReader(payload)
		id, err := r.ReadU64()
		if err != nil {
			return dispatch.Fail(fmt.Sprintf("character_enter_world: decode id: %v", err))
		}
		name, err := r.ReadWideString()
		if err != nil {
			return dispatch.Fail(fmt.Sprintf("character_enter_world: decode name: %v", err))
		}
		if err := validation.ValidateName(name); err != nil {
			return dispatch.Fail(fmt.Sprintf("character_enter_world: %v", err))
		}

		next := s.Clone()
		next.Character = &session.Character{ID: id, Name: name}
		next.Achievement = startAchievementWorker()

		w := bitio.NewWriter()
		w.WriteU8(1) // ack
		w.FlushBits()
		return dispatch.Reply(next, opcode.CharacterEnterWorld, w.ToBytes()).WithSchedulePersistence()
	}
}

// startAchievementWorker launches the handler-scoped background worker a
// bound character's achievement progress would be tracked on. It does no
// gameplay-specific work itself (out of scope, spec.md §1) — only
// demonstrates the stop-before-flush handle shape the termination hook
// relies on.
func startAchievementWorker() *session.Achievement {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
			case <-done:
				return
			}
		}
	}()
	return &session.Achievement{Stop: sync.OnceFunc(func() { close(done) })}
}

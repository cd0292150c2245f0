// Package crypto defines the seam where connection-lifecycle encryption is
// invoked, without implementing any cipher. Spec.md §1 explicitly excludes
// encryption primitives (AES/ARC4 variants) from this core's scope; what the
// core does own is where key material is bound to the connection and when
// the handshake invokes it (spec.md §9: "Crypto context lifetime... Key
// derivation is invoked by the handshake handlers, not by the codec.").
package crypto

import "nexuscore/internal/connrole"

// Context is the per-connection cryptographic state. It is exclusively
// owned by one Connection actor and is never shared across connections
// (spec.md §5). A concrete implementation (AES/ARC4/etc., supplied by the
// deployment, not this core) satisfies this interface.
type Context interface {
	// Encrypt transforms an outbound payload before it is handed to the
	// frame codec.
	Encrypt(payload []byte) ([]byte, error)
	// Decrypt transforms an inbound payload after the frame codec has
	// extracted it, before a handler sees it.
	Decrypt(payload []byte) ([]byte, error)
}

// BootstrapKeySource derives the initial key material for a freshly
// accepted connection, keyed by its role. The connection actor calls this
// at accept time (spec.md §4.6 "Accept sequence": "initialize crypto
// from a role-specific bootstrap key"), and the encryption-handshake
// handler calls it again when that message arrives.
type BootstrapKeySource interface {
	BootstrapKey(r connrole.Role) ([]byte, error)
}

// NullContext is a pass-through Context for deployments or tests that run
// the wire protocol unencrypted. It satisfies the "crypto present once
// handshake completes" invariant (spec.md §3) without performing any
// transform.
type NullContext struct{}

func (NullContext) Encrypt(payload []byte) ([]byte, error) { return payload, nil }
func (NullContext) Decrypt(payload []byte) ([]byte, error) { return payload, nil }

// Package connrole defines the fixed connection role chosen at accept time
// (spec.md §3: "role ∈ {auth, world} — chosen at accept time, fixed for the
// connection's lifetime").
package connrole

// Role is a connection's fixed identity for its whole lifetime.
type Role uint8

const (
	Auth Role = iota
	World
)

// String renders the role for logging.
func (r Role) String() string {
	switch r {
	case Auth:
		return "auth"
	case World:
		return "world"
	default:
		return "unknown"
	}
}

// ConnectionType is the 5-bit discriminant sent in ServerHello
// (spec.md §6: 3 for auth, 11 for world).
func (r Role) ConnectionType() uint8 {
	switch r {
	case Auth:
		return 3
	case World:
		return 11
	default:
		return 0
	}
}

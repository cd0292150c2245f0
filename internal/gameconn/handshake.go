package gameconn

import (
	"nexuscore/internal/bitio"
	"nexuscore/internal/connrole"
)

// buildServerHello encodes the handshake payload exactly as spec.md §6
// specifies: auth_version, realm_id, realm_group_id, auth_message, then a
// 5-bit connection-type discriminant and 11 bits of zero padding to align,
// flushed to a byte boundary.
func buildServerHello(hs Handshake, role connrole.Role) ([]byte, error) {
	w := bitio.NewWriter()
	w.WriteU32(hs.AuthVersion)
	w.WriteU32(hs.RealmID)
	w.WriteU32(hs.RealmGroupID)
	w.WriteU32(hs.AuthMessage)
	w.WriteBits(uint64(role.ConnectionType()), 5)
	w.WriteBits(0, 11)
	w.FlushBits()
	return w.ToBytes(), nil
}

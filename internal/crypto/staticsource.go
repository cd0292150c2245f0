package crypto

import "nexuscore/internal/connrole"

// StaticKeySource returns a fixed key per role, configured at process
// startup. It is the default BootstrapKeySource for deployments that do
// not rotate per-connection key material (cipher implementation itself
// remains out of scope, spec.md §1).
type StaticKeySource struct {
	AuthKey  []byte
	WorldKey []byte
}

// BootstrapKey returns the configured key for r.
func (s StaticKeySource) BootstrapKey(r connrole.Role) ([]byte, error) {
	if r == connrole.World {
		return s.WorldKey, nil
	}
	return s.AuthKey, nil
}

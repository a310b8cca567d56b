// Package randsrc implements the `random` collaborator contract from
// spec.md §6: a source for 32-bit nonces and the per-process session id,
// explicitly not required to be cryptographic strength.
package randsrc

import "math/rand/v2"

// Source generates the 32-bit values the core needs. It carries no state
// of its own beyond the underlying generator; safe for concurrent use
// since it only ever touches math/rand/v2's package-level generator.
type Source struct{}

// New returns a Source. There is nothing to configure: math/rand/v2's
// top-level functions are already safe for concurrent use and
// self-seeding, matching spec.md's "cryptographic strength not required".
func New() Source { return Source{} }

// Uint32 returns a new pseudo-random 32-bit value, used for query
// nonces (spec.md §3) and the registration session id (spec.md §4.5).
func (Source) Uint32() uint32 {
	return rand.Uint32()
}

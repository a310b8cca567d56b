// Package cage holds the core value types of the DTUN overlay: 160-bit
// identifiers, endpoints, and nodes. Everything here is a plain value type,
// freely copyable — no reference counting, matching the "systems
// reimplementation" guidance in spec.md §9.
package cage

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

// IdentifierLen is the width of the identifier space in bytes (160 bits).
const IdentifierLen = 20

// Identifier is a 160-bit opaque node name, big-endian.
type Identifier [IdentifierLen]byte

// ZeroIdentifier never names a real node; it is the bootstrap probe
// sentinel described in spec.md §3 and §9.
var ZeroIdentifier Identifier

// IsZero reports whether id is the all-zeros sentinel.
func (id Identifier) IsZero() bool {
	return id == ZeroIdentifier
}

func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// widen zero-extends id into the high bytes of a uint256, the corpus's
// idiomatic way of doing fixed-width unsigned arithmetic on hash-sized
// values (see ethereumproject-go-ethereum's common.Hash-based logdist).
func (id Identifier) widen() *uint256.Int {
	var buf [32]byte
	copy(buf[32-IdentifierLen:], id[:])
	return new(uint256.Int).SetBytes(buf[:])
}

// Distance computes the XOR distance d(a,b) = a^b.
func Distance(a, b Identifier) *uint256.Int {
	return new(uint256.Int).Xor(a.widen(), b.widen())
}

// Less reports whether a is strictly closer to target than b is,
// i.e. d(target,a) < d(target,b). This is the ordering used to keep the
// lookup engine's shortlist sorted (spec.md §3, §4.3.1).
func Less(target, a, b Identifier) bool {
	da := Distance(target, a)
	db := Distance(target, b)
	return da.Cmp(db) < 0
}

// ProbeKey identifies a pending probe: either a known node id, or the
// bootstrap sentinel. spec.md §9 calls out the original's conflation of
// "unknown peer identity" with the zero identifier as something a clean
// redesign should untangle; ProbeKey is that untangling, while §9 also
// requires that find-node datagrams with destination=zero are still
// accepted on the wire (handled in package wire/discover, not here).
type ProbeKey struct {
	ID         Identifier
	IsBootstrap bool
}

// ByID builds a ProbeKey addressing a known node.
func ByID(id Identifier) ProbeKey { return ProbeKey{ID: id} }

// Bootstrap is the probe key used for an endpoint-only initial probe.
var Bootstrap = ProbeKey{IsBootstrap: true}

func (k ProbeKey) String() string {
	if k.IsBootstrap {
		return "bootstrap"
	}
	return k.ID.String()
}

// MapKey returns a comparable value suitable for use as a Go map key.
// Identifier is already comparable ([20]byte), but ProbeKey needs an
// explicit canonical form so Bootstrap never aliases a real zero id.
type MapKey struct {
	id         Identifier
	isBootstrap bool
}

func (k ProbeKey) MapKey() MapKey {
	return MapKey{id: k.ID, isBootstrap: k.IsBootstrap}
}

// ValidateTarget reports an error if id is unusable as a target for a
// non-bootstrap lookup (it must not collide with the sentinel, since the
// sentinel is reserved internally).
func ValidateTarget(id Identifier) error {
	if id.IsZero() {
		return fmt.Errorf("cage: zero identifier is reserved as the bootstrap sentinel")
	}
	return nil
}

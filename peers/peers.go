// Package peers implements the peers-directory oracle from spec.md §1/§6:
// a cache of recently seen endpoints plus a "recently timed out"
// blacklist, consulted by the lookup engine when merging reply node
// lists (spec.md §4.3: "Records whose id is currently on the peers
// timeout blacklist are skipped").
package peers

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/dtun/cage"
)

// seenPeer is the cached observation for one identifier. The teacher's
// v4_udp.go keeps an equivalent bounded recency cache
// (`unsolicitedNodes *lru.Cache[enode.ID, *enode.Node]`) for a related
// purpose; this directory reuses the same library for the same "bounded
// cache of node identifiers" shape.
type seenPeer struct {
	node    cage.Node
	session *uint32
	seenAt  time.Time
}

// Directory is the concrete peers oracle.
type Directory struct {
	seen      *lru.Cache[cage.Identifier, seenPeer]
	blacklist *lru.Cache[cage.Identifier, time.Time]
	timeoutTTL time.Duration
}

// New creates a directory with the given cache sizes and blacklist TTL.
// A node dropped onto the timeout blacklist is forgiven again once TTL
// has elapsed — a repo-level addition beyond spec.md's core, which never
// specifies expiry of the blacklist itself.
func New(seenSize, blacklistSize int, timeoutTTL time.Duration) (*Directory, error) {
	seen, err := lru.New[cage.Identifier, seenPeer](seenSize)
	if err != nil {
		return nil, err
	}
	bl, err := lru.New[cage.Identifier, time.Time](blacklistSize)
	if err != nil {
		return nil, err
	}
	return &Directory{seen: seen, blacklist: bl, timeoutTTL: timeoutTTL}, nil
}

// AddNode records a sighting of n, optionally tagged with a register
// session (spec.md §4.4's register handler: "Also add to peers with the
// session tag").
func (d *Directory) AddNode(n cage.Node, session *uint32) {
	d.seen.Add(n.ID, seenPeer{node: n, session: session, seenAt: time.Now()})
}

// AddTimeout marks id as recently timed out (spec.md §4.3's ProbeTimeout
// handling: "notify the peers directory of a timeout").
func (d *Directory) AddTimeout(id cage.Identifier) {
	d.blacklist.Add(id, time.Now())
}

// IsTimeout reports whether id is currently blacklisted.
func (d *Directory) IsTimeout(id cage.Identifier) bool {
	at, ok := d.blacklist.Get(id)
	if !ok {
		return false
	}
	if time.Since(at) > d.timeoutTTL {
		d.blacklist.Remove(id)
		return false
	}
	return true
}

// Get returns the most recently seen node and session for id, if known.
func (d *Directory) Get(id cage.Identifier) (cage.Node, *uint32, bool) {
	p, ok := d.seen.Get(id)
	if !ok {
		return cage.Node{}, nil, false
	}
	return p.node, p.session, true
}

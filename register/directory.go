// Package register implements the registered-nodes directory (spec.md
// §4.6) and the registration loop that publishes this node's own
// endpoint to its K closest neighbors (spec.md §4.5).
package register

import (
	"sync"
	"time"

	"github.com/erigontech/dtun/cage"
)

// registration is the receiver-side record of one self-publication
// (spec.md §3: "Registration = (endpoint, session: u32, last_seen:
// timestamp)").
type registration struct {
	endpoint cage.Endpoint
	session  uint32
	lastSeen time.Time
}

// Directory is the registered-nodes directory: only mutated by the
// register handler, only read by the find-value handler (spec.md §4.6).
// It takes its own mutex for the same reason table.Table does
// (peers.Directory relies on its thread-safe LRU caches instead) — external inspection (metrics) from a second
// goroutine, never contended by the single dispatch goroutine itself.
type Directory struct {
	mu      sync.Mutex
	entries map[cage.Identifier]registration
}

// New creates an empty registered-nodes directory.
func New() *Directory {
	return &Directory{entries: make(map[cage.Identifier]registration)}
}

// Register applies spec.md §4.4's directory policy for an inbound
// register datagram naming id, and reports whether the entry was
// inserted or refreshed (false means the register was ignored — a
// different session claiming an id from a different endpoint).
func (d *Directory) Register(id cage.Identifier, ep cage.Endpoint, session uint32, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	prior, ok := d.entries[id]
	switch {
	case !ok:
		d.entries[id] = registration{endpoint: ep, session: session, lastSeen: now}
		return true
	case prior.session == session:
		d.entries[id] = registration{endpoint: ep, session: session, lastSeen: now}
		return true
	case sameEndpoint(prior.endpoint, ep):
		prior.lastSeen = now
		d.entries[id] = prior
		return true
	default:
		return false
	}
}

func sameEndpoint(a, b cage.Endpoint) bool {
	return a.Family == b.Family && a.Port == b.Port && a.IP.Equal(b.IP)
}

// Lookup returns the registered endpoint for id, if any (spec.md §4.4's
// find-value handler).
func (d *Directory) Lookup(id cage.Identifier) (cage.Endpoint, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.entries[id]
	if !ok {
		return cage.Endpoint{}, false
	}
	return r.endpoint, true
}

// Len reports the number of registered identifiers (diagnostics only).
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Package table implements the routing-table oracle that spec.md §1
// explicitly treats as an external collaborator: `lookup(target, k) ->
// []Node`, `add(node)`, plus ping/ping-reply forwarding (spec.md §6).
// Modeled on ethereumproject-go-ethereum's p2p/discover/table.go: a fixed
// array of buckets indexed by XOR log-distance to self, each bucket a
// bounded most-recently-seen-first slice.
package table

import (
	"sync"

	"github.com/erigontech/dtun/cage"
)

// numBuckets covers every possible log-distance in a 160-bit space
// (1..160), plus index 0 for distance zero. Only self is at distance
// zero and Add never stores self, so bucket 0 stays empty; close
// distances are not collapsed into a shared bucket.
const numBuckets = cage.IdentifierLen*8 + 1

type bucket struct {
	entries []cage.Node // most-recently-seen first
}

// Table is a k-bucket routing table keyed by XOR distance to self.
type Table struct {
	mu      sync.Mutex
	self    cage.Identifier
	k       int
	buckets [numBuckets]*bucket
}

// New creates an empty table for the given self identifier. k bounds
// both the bucket size and the width of a Lookup result, matching
// spec.md's glossary ("K ... also the number of neighbors...").
func New(self cage.Identifier, k int) *Table {
	t := &Table{self: self, k: k}
	for i := range t.buckets {
		t.buckets[i] = &bucket{}
	}
	return t
}

// logDistance returns the index of the bucket covering id, based on the
// position of the highest set bit of d(self,id).
func logDistance(self, id cage.Identifier) int {
	d := cage.Distance(self, id)
	if d.IsZero() {
		return 0
	}
	return d.BitLen()
}

// Add inserts or refreshes n in its bucket. If the bucket is already at
// capacity, n is dropped rather than displacing a live entry — bucket
// refresh/ping-based eviction is the routing table's own externally
// owned maintenance loop (out of the core's scope per spec.md §1); this
// is the simplest policy consistent with the `add(node) -> ()` contract
// the core actually calls.
func (t *Table) Add(n cage.Node) {
	if n.ID == t.self {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.buckets[logDistance(t.self, n.ID)]
	for i, e := range b.entries {
		if e.ID == n.ID {
			// bump to front
			copy(b.entries[1:i+1], b.entries[:i])
			b.entries[0] = n
			return
		}
	}
	if len(b.entries) >= t.k {
		return
	}
	b.entries = append([]cage.Node{n}, b.entries...)
}

// Remove evicts id from the table, if present.
func (t *Table) Remove(id cage.Identifier) {
	if id == t.self {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.buckets[logDistance(t.self, id)]
	for i, e := range b.entries {
		if e.ID == id {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return
		}
	}
}

// Lookup returns the k nodes in the table closest to target, sorted
// ascending by distance (spec.md §4.4's "routing_table.lookup(requested_id, K)").
func (t *Table) Lookup(target cage.Identifier, k int) []cage.Node {
	t.mu.Lock()
	var all []cage.Node
	for _, b := range t.buckets {
		all = append(all, b.entries...)
	}
	t.mu.Unlock()

	cage.SortByDistance(target, all)
	if len(all) > k {
		all = all[:k]
	}
	return all
}

// Len reports the total number of entries across all buckets.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, b := range t.buckets {
		n += len(b.entries)
	}
	return n
}

// RecvPingReply forwards a ping-reply observation to the table, per the
// §6 contract ("forwarded recv_ping_reply(node, nonce)"). The simplified
// table treats any successful reply the same as a fresh Add.
func (t *Table) RecvPingReply(n cage.Node, nonce uint32) {
	t.Add(n)
}

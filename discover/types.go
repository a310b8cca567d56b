package discover

import (
	"github.com/erigontech/dtun/cage"
	"github.com/erigontech/dtun/timer"
)

// findNodeCallback and findValueCallback are the two terminal shapes a
// query can complete with. spec.md §9 calls for a tagged sum rather than
// a runtime downcast ("Variant callbacks... implement as a tagged sum");
// continuation below is that sum.
type findNodeCallback func(nodes []cage.Node)
type findValueCallback func(found bool, node cage.Node)

type continuationKind int

const (
	continuationFindNode continuationKind = iota
	continuationFindValue
)

type continuation struct {
	kind      continuationKind
	findNode  findNodeCallback
	findValue findValueCallback
}

func continuationOfFindNode(cb findNodeCallback) continuation {
	return continuation{kind: continuationFindNode, findNode: cb}
}

func continuationOfFindValue(cb findValueCallback) continuation {
	return continuation{kind: continuationFindValue, findValue: cb}
}

// invokeFindNode fires the callback assuming it is the find-node variant.
// Panics if called against a find-value continuation — a query's kind
// never changes after creation, so a mismatch here is a logic bug, not a
// runtime condition to recover from.
func (c continuation) invokeFindNode(nodes []cage.Node) {
	if c.kind != continuationFindNode {
		panic("discover: invokeFindNode on a find-value continuation")
	}
	c.findNode(nodes)
}

func (c continuation) invokeFindValue(found bool, node cage.Node) {
	if c.kind != continuationFindValue {
		panic("discover: invokeFindValue on a find-node continuation")
	}
	c.findValue(found, node)
}

// query is the lookup engine's per-in-flight-lookup state (spec.md §3).
// It is only ever touched from the dispatch goroutine (spec.md §5), so
// it carries no lock of its own.
type query struct {
	nonce       uint32
	target      cage.Identifier
	isFindValue bool

	shortlist []cage.Node // sorted ascending by d(target,·), deduped, len<=K

	sent   map[cage.MapKey]struct{}
	timers map[cage.MapKey]timer.ID

	inFlight int
	cont     continuation
}

func newQuery(nonce uint32, target cage.Identifier, isFindValue bool, self cage.Identifier, cont continuation) *query {
	q := &query{
		nonce:       nonce,
		target:      target,
		isFindValue: isFindValue,
		sent:        make(map[cage.MapKey]struct{}),
		timers:      make(map[cage.MapKey]timer.ID),
		cont:        cont,
	}
	q.sent[cage.ByID(self).MapKey()] = struct{}{}
	return q
}

func (q *query) hasSent(pk cage.ProbeKey) bool {
	_, ok := q.sent[pk.MapKey()]
	return ok
}

func (q *query) markSent(pk cage.ProbeKey) {
	q.sent[pk.MapKey()] = struct{}{}
}

func (q *query) armTimer(pk cage.ProbeKey, id timer.ID) {
	q.timers[pk.MapKey()] = id
}

func (q *query) popTimer(pk cage.ProbeKey) (timer.ID, bool) {
	key := pk.MapKey()
	id, ok := q.timers[key]
	if ok {
		delete(q.timers, key)
	}
	return id, ok
}

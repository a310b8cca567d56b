package discover

import (
	"github.com/erigontech/dtun/cage"
	"github.com/erigontech/dtun/timer"
	"github.com/erigontech/dtun/wire"
)

// FindNode starts an iterative node lookup for target, or answers
// synchronously from the routing table when it already knows any
// candidate, returning up to K of them (spec.md §4.3 step 1's
// short-circuit).
func (e *Engine) FindNode(target cage.Identifier, cb func(nodes []cage.Node)) {
	e.submit(func() { e.doFindNode(target, cb) })
}

func (e *Engine) doFindNode(target cage.Identifier, cb func(nodes []cage.Node)) {
	if known := e.table.Lookup(target, e.cfg.K); len(known) > 0 {
		cb(known)
		return
	}
	q := newQuery(0, target, false, e.cfg.Self.ID, continuationOfFindNode(cb))
	e.queries.insert(e.random, q)
	e.sendFind(q)
}

// FindValue starts an iterative value lookup for target, or answers
// synchronously `(false, _)` when the routing table already knows any
// candidate near target (spec.md §4.3 step 1: "for find-value, with
// (found=false, empty) since no local value cache is kept").
func (e *Engine) FindValue(target cage.Identifier, cb func(found bool, node cage.Node)) {
	e.submit(func() { e.doFindValue(target, cb) })
}

func (e *Engine) doFindValue(target cage.Identifier, cb func(found bool, node cage.Node)) {
	if known := e.table.Lookup(target, e.cfg.K); len(known) > 0 {
		cb(false, cage.Node{})
		return
	}
	q := newQuery(0, target, true, e.cfg.Self.ID, continuationOfFindValue(cb))
	e.queries.insert(e.random, q)
	e.sendFind(q)
}

// FindNodeByEndpoint bootstraps a lookup against a node whose identifier
// is not yet known, probing ep directly with probe-id = the bootstrap
// sentinel (spec.md §4.3 step 3's endpoint-bootstrap seed path). The
// caller is expected to have already resolved host:port into ep — the
// engine itself never performs blocking resolution (spec.md §5: "no
// suspension points internal to a handler").
func (e *Engine) FindNodeByEndpoint(ep cage.Endpoint, cb func(nodes []cage.Node)) {
	e.submit(func() { e.doFindNodeByEndpoint(ep, cb) })
}

func (e *Engine) doFindNodeByEndpoint(ep cage.Endpoint, cb func(nodes []cage.Node)) {
	q := newQuery(0, e.cfg.Self.ID, false, e.cfg.Self.ID, continuationOfFindNode(cb))
	e.queries.insert(e.random, q)

	pk := cage.Bootstrap
	q.markSent(pk)
	q.inFlight++
	id := e.armProbeTimer(q, pk)
	q.armTimer(pk, id)

	buf := buildFindRequest(findKindNode, e.cfg.Self.ID, cage.ZeroIdentifier, q.nonce, e.send.GetDomain(), e.natState(), e.cfg.Self.ID)
	if err := e.send.Sendto(buf, ep); err != nil {
		e.log.Debugw("bootstrap find-node send failed", "err", err)
	}
}

// findKind distinguishes the two identically-shaped request messages.
// This, plus buildFindRequest below, is the generic `send_find<M>`
// helper spec.md §9 calls for in place of the original's macro-based
// builder: find-node and find-value already share one wire layout, so
// one function parameterized on kind covers both without reflection or
// codegen.
type findKind int

const (
	findKindNode findKind = iota
	findKindValue
)

func buildFindRequest(kind findKind, src, dst cage.Identifier, nonce uint32, domain cage.Domain, state wire.NodeState, target cage.Identifier) []byte {
	if kind == findKindValue {
		return wire.EncodeFindValue(src, dst, nonce, domain, state, target)
	}
	return wire.EncodeFindNode(src, dst, nonce, domain, state, target)
}

func (e *Engine) natState() wire.NodeState {
	if e.nat.IsGlobal() {
		return wire.StateGlobal
	}
	return wire.StateNAT
}

// armProbeTimer arms a query_timeout timer for pk, whose expiry posts
// back onto the dispatch channel via timerCh — satisfying spec.md §5's
// requirement that timer firing serialize with datagram arrival through
// one select, the same way the teacher drives reply timeouts through
// loop()'s own channel set.
func (e *Engine) armProbeTimer(q *query, pk cage.ProbeKey) timer.ID {
	nonce := q.nonce
	id := e.timers.Set(e.cfg.QueryTimeout, func() {
		select {
		case e.timerCh <- timerEvent{nonce: nonce, probe: pk}:
		case <-e.done:
		}
	})
	return id
}

// sendFind is the iteration step of spec.md §4.3 step 4: walk the
// shortlist, probing up to α unsent candidates.
func (e *Engine) sendFind(q *query) {
	for _, n := range q.shortlist {
		if q.inFlight >= e.cfg.Alpha {
			break
		}
		pk := cage.ByID(n.ID)
		if q.hasSent(pk) {
			continue
		}
		q.markSent(pk)
		q.inFlight++
		id := e.armProbeTimer(q, pk)
		q.armTimer(pk, id)

		kind := findKindNode
		if q.isFindValue {
			kind = findKindValue
		}
		buf := buildFindRequest(kind, e.cfg.Self.ID, n.ID, q.nonce, e.send.GetDomain(), e.natState(), q.target)
		if err := e.send.Sendto(buf, n.Endpoint); err != nil {
			e.log.Debugw("find send failed", "to", n.ID, "err", err)
		}
	}
	if q.inFlight == 0 {
		e.terminate(q)
	}
}

// terminate cancels any remaining timers, invokes the callback exactly
// once, and removes q from the query table (spec.md §4.3 step 5).
func (e *Engine) terminate(q *query) {
	for key, id := range q.timers {
		e.timers.Unset(id)
		delete(q.timers, key)
	}
	e.queries.remove(q.nonce)
	if q.isFindValue {
		q.cont.invokeFindValue(false, cage.Node{})
		return
	}
	q.cont.invokeFindNode(q.shortlist)
}

// succeedFindValue is the find-value success short-circuit of spec.md
// §4.3's reply handling: cancel all remaining timers, invoke the
// callback with the found value, remove the query.
func (e *Engine) succeedFindValue(q *query, node cage.Node) {
	for key, id := range q.timers {
		e.timers.Unset(id)
		delete(q.timers, key)
	}
	e.queries.remove(q.nonce)
	q.cont.invokeFindValue(true, node)
}

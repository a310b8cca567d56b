package discover

import (
	"github.com/erigontech/dtun/cage"
	"github.com/erigontech/dtun/wire"
)

// handleFindNodeReply implements spec.md §4.3's reply handling for the
// find-node variant, including the bootstrap-timer fallback.
func (e *Engine) handleFindNodeReply(msg *wire.FindNodeReply, from cage.Endpoint) {
	q, ok := e.queries.get(msg.Nonce)
	if !ok {
		e.countError("unsolicited_reply")
		return
	}
	if q.isFindValue || msg.Target != q.target {
		e.countError("unsolicited_reply")
		return
	}
	if !e.cancelReplyTimer(q, msg.Hdr.Src, true) {
		e.countError("unsolicited_reply")
		return
	}
	e.admitResponder(q, msg.Hdr.Src, from)

	nodes := e.resolveAndFilter(msg.Nodes, from)
	cage.SortByDistance(q.target, nodes)
	q.shortlist = cage.Merge(q.target, q.shortlist, nodes, e.cfg.K)

	e.sendFind(q)
}

// handleFindValueReply implements spec.md §4.3's reply handling for the
// find-value variant, including the found=1 success short-circuit.
func (e *Engine) handleFindValueReply(msg *wire.FindValueReply, from cage.Endpoint) {
	q, ok := e.queries.get(msg.Nonce)
	if !ok {
		e.countError("unsolicited_reply")
		return
	}
	if !q.isFindValue || msg.Target != q.target {
		e.countError("unsolicited_reply")
		return
	}
	if !e.cancelReplyTimer(q, msg.Hdr.Src, false) {
		e.countError("unsolicited_reply")
		return
	}
	e.admitResponder(q, msg.Hdr.Src, from)

	nodes := e.resolveAndFilter(msg.Nodes, from)
	if msg.Found && len(nodes) > 0 {
		e.succeedFindValue(q, nodes[0])
		return
	}

	cage.SortByDistance(q.target, nodes)
	q.shortlist = cage.Merge(q.target, q.shortlist, nodes, e.cfg.K)
	e.sendFind(q)
}

// cancelReplyTimer implements the timer-cancellation rule of spec.md
// §4.3: look up a timer keyed by the replying node's id; for find-node
// replies only, fall back to the bootstrap-keyed timer when no such
// entry exists. Reports whether a timer was found and canceled.
func (e *Engine) cancelReplyTimer(q *query, src cage.Identifier, allowBootstrapFallback bool) bool {
	pk := cage.ByID(src)
	if id, ok := q.popTimer(pk); ok {
		e.timers.Unset(id)
		return true
	}
	if !allowBootstrapFallback {
		return false
	}
	if id, ok := q.popTimer(cage.Bootstrap); ok {
		e.timers.Unset(id)
		return true
	}
	return false
}

// admitResponder inserts the responder into the routing table and peers
// directory, marks it sent, and decrements in_flight (spec.md §4.3).
func (e *Engine) admitResponder(q *query, src cage.Identifier, from cage.Endpoint) {
	n := cage.Node{ID: src, Endpoint: from}
	e.table.Add(n)
	e.peers.AddNode(n, nil)
	q.markSent(cage.ByID(src))
	if q.inFlight > 0 {
		q.inFlight--
	}
}

// resolveAndFilter rewrites zero-address records to the datagram source
// and drops any record whose id is currently peers-blacklisted
// (spec.md §4.3).
func (e *Engine) resolveAndFilter(nodes []cage.Node, from cage.Endpoint) []cage.Node {
	out := make([]cage.Node, 0, len(nodes))
	for _, n := range nodes {
		if e.peers.IsTimeout(n.ID) {
			continue
		}
		n.Endpoint = n.Endpoint.ResolveLoopback(from)
		out = append(out, n)
	}
	return out
}

// onProbeTimeout implements spec.md §4.3's timeout handler: mark the
// probed id sent (already true — it was marked when the probe was
// issued), remove the timer entry, decrement in_flight, and for a
// non-bootstrap probe demote the node from routing table/shortlist and
// mark it timed out in peers.
func (e *Engine) onProbeTimeout(nonce uint32, pk cage.ProbeKey) {
	q, ok := e.queries.get(nonce)
	if !ok {
		return // query already finished; stale timer, harmless no-op (spec.md §5)
	}
	if _, ok := q.popTimer(pk); !ok {
		return // already canceled by a race with the reply; no-op
	}
	if q.inFlight > 0 {
		q.inFlight--
	}
	if !pk.IsBootstrap {
		e.peers.AddTimeout(pk.ID)
		e.table.Remove(pk.ID)
		q.shortlist = removeByID(q.shortlist, pk.ID)
	}
	e.sendFind(q)
}

func removeByID(nodes []cage.Node, id cage.Identifier) []cage.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

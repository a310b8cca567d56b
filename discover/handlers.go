package discover

import (
	"time"

	"github.com/erigontech/dtun/cage"
	"github.com/erigontech/dtun/wire"
)

// handlePing answers a ping with a ping-reply echoing the nonce
// (spec.md §4.4).
func (e *Engine) handlePing(msg *wire.Ping, from cage.Endpoint) {
	buf := wire.EncodePingReply(e.cfg.Self.ID, msg.Hdr.Src, msg.Nonce)
	if err := e.send.Sendto(buf, from); err != nil {
		e.log.Debugw("ping-reply send failed", "err", err)
	}
}

// handlePingReply delegates processing to the routing-table oracle, per
// spec.md §4.4's "delegate ping-reply processing ... to the
// routing-table oracle".
func (e *Engine) handlePingReply(msg *wire.PingReply, from cage.Endpoint) {
	n := cage.Node{ID: msg.Hdr.Src, Endpoint: from}
	e.table.RecvPingReply(n, msg.Nonce)
}

// handleFindNodeRequest answers with the K nodes closest to the
// requested target (spec.md §4.4).
func (e *Engine) handleFindNodeRequest(msg *wire.FindNode, from cage.Endpoint) {
	if msg.Domain != e.send.GetDomain() {
		e.countError("domain_mismatch")
		return
	}
	nodes := e.table.Lookup(msg.Target, e.cfg.K)
	e.insertRequester(msg.Hdr.Src, msg.State, from)

	buf, err := wire.EncodeFindNodeReply(e.cfg.Self.ID, msg.Hdr.Src, msg.Nonce, msg.Domain, msg.Target, nodes)
	if err != nil {
		e.log.Debugw("find-node-reply encode failed", "err", err)
		return
	}
	if err := e.send.Sendto(buf, from); err != nil {
		e.log.Debugw("find-node-reply send failed", "err", err)
	}
}

// handleFindValueRequest answers with the registered endpoint if known,
// else with the K closest nodes, per spec.md §4.4.
func (e *Engine) handleFindValueRequest(msg *wire.FindValue, from cage.Endpoint) {
	if msg.Domain != e.send.GetDomain() {
		e.countError("domain_mismatch")
		return
	}
	e.insertRequester(msg.Hdr.Src, msg.State, from)

	var buf []byte
	var err error
	if e.registered != nil {
		if ep, ok := e.registered.Lookup(msg.Target); ok {
			buf, err = wire.EncodeFindValueReply(e.cfg.Self.ID, msg.Hdr.Src, msg.Nonce, msg.Domain, msg.Target, true, []cage.Node{{ID: msg.Target, Endpoint: ep}})
		}
	}
	if buf == nil && err == nil {
		nodes := e.table.Lookup(msg.Target, e.cfg.K)
		buf, err = wire.EncodeFindValueReply(e.cfg.Self.ID, msg.Hdr.Src, msg.Nonce, msg.Domain, msg.Target, false, nodes)
	}
	if err != nil {
		e.log.Debugw("find-value-reply encode failed", "err", err)
		return
	}
	if err := e.send.Sendto(buf, from); err != nil {
		e.log.Debugw("find-value-reply send failed", "err", err)
	}
}

// handleRegister applies the registration directory policy of
// spec.md §4.4 and forwards the sighting to the peers directory.
func (e *Engine) handleRegister(msg *wire.Register, from cage.Endpoint) {
	if e.registered != nil {
		e.registered.Register(msg.Hdr.Src, from, msg.Session, time.Now())
	}
	session := msg.Session
	e.peers.AddNode(cage.Node{ID: msg.Hdr.Src, Endpoint: from}, &session)
}

// insertRequester applies the "insert only if declared NAT state is
// global" rule of spec.md §4.4, and always records the sighting in
// peers regardless of state.
func (e *Engine) insertRequester(id cage.Identifier, state wire.NodeState, from cage.Endpoint) {
	n := cage.Node{ID: id, Endpoint: from}
	if state == wire.StateGlobal {
		e.table.Add(n)
	}
	e.peers.AddNode(n, nil)
}

// Package discover implements the iterative lookup engine and request
// handlers: the query table (spec.md §4.2), the lookup engine (§4.3),
// and the dispatch-on-type request handlers (§4.4). Modeled on the
// teacher's p2p/discover/v4_udp.go: one dispatch goroutine (Engine.Run)
// owns every piece of mutable state, fed by channels rather than a
// mutex, exactly like UDPv4.loop() fans in gotreply/addReplyMatcher/
// listUpdate onto one select.
package discover

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/erigontech/dtun/cage"
	"github.com/erigontech/dtun/timer"
	"github.com/erigontech/dtun/transport"
	"github.com/erigontech/dtun/wire"
)

// RoutingTable is the `routing_table` collaborator contract (spec.md §6).
type RoutingTable interface {
	Lookup(target cage.Identifier, k int) []cage.Node
	Add(n cage.Node)
	Remove(id cage.Identifier)
	RecvPingReply(n cage.Node, nonce uint32)
}

// PeersDirectory is the `peers` collaborator contract (spec.md §6).
type PeersDirectory interface {
	AddNode(n cage.Node, session *uint32)
	AddTimeout(id cage.Identifier)
	IsTimeout(id cage.Identifier) bool
}

// NatDetector is the `nat_detector` collaborator contract (spec.md §6).
type NatDetector interface {
	IsGlobal() bool
}

// Sender is the send-half of the `udp` collaborator contract consumed by
// the engine; Resolve lives on the concrete transport.UDP and is called
// directly by FindNodeByEndpoint's caller, not through this interface.
type Sender interface {
	Sendto(data []byte, to cage.Endpoint) error
	GetDomain() cage.Domain
}

// TimerWheel is the `timer` collaborator contract (spec.md §6).
type TimerWheel interface {
	Set(d time.Duration, fn func()) timer.ID
	Unset(id timer.ID)
}

// RandomSource is the `random` collaborator contract (spec.md §6).
type RandomSource interface {
	Uint32() uint32
}

// RegisteredDirectory is the registered-nodes directory contract
// (spec.md §4.4/§4.6) the find-value handler consults and the register
// handler mutates. Implemented by package register's Directory; kept as
// an interface here so the engine never imports package register
// (register imports discover instead, to drive find_node(self)).
type RegisteredDirectory interface {
	Register(id cage.Identifier, ep cage.Endpoint, session uint32, now time.Time) bool
	Lookup(id cage.Identifier) (cage.Endpoint, bool)
}

// Config carries the engine's fixed parameters (spec.md's K, α,
// query_timeout, and this node's own identity).
type Config struct {
	Self         cage.Node
	K            int
	Alpha        int
	QueryTimeout time.Duration
}

// Engine is the lookup engine and request-handler set. Every exported
// method that mutates engine state is dispatched onto the single
// goroutine running Run via submit. Apart from Errors, which reads
// errCounts directly without going through submit, Run is the only
// goroutine that ever touches queries, errCounts, or the collaborators.
type Engine struct {
	cfg Config

	table      RoutingTable
	peers      PeersDirectory
	nat        NatDetector
	send       Sender
	timers     TimerWheel
	random     RandomSource
	registered RegisteredDirectory
	log        *zap.SugaredLogger

	queries   *queryTable
	errCounts map[string]uint

	reqCh   chan func()
	timerCh chan timerEvent
	done    chan struct{}
}

type timerEvent struct {
	nonce uint32
	probe cage.ProbeKey
}

// NewEngine wires the engine to its collaborators. registered may be nil
// if this process never runs find-value/register handling (e.g. a
// pure-client embedding); handleFindValueRequest and handleRegister treat
// a nil registered directory as "nothing registered".
func NewEngine(cfg Config, table RoutingTable, peers PeersDirectory, nat NatDetector, send Sender, timers TimerWheel, random RandomSource, registered RegisteredDirectory, log *zap.SugaredLogger) *Engine {
	return &Engine{
		cfg:        cfg,
		table:      table,
		peers:      peers,
		nat:        nat,
		send:       send,
		timers:     timers,
		random:     random,
		registered: registered,
		log:        log,
		queries:    newQueryTable(),
		errCounts:  make(map[string]uint),
		reqCh:      make(chan func(), 64),
		timerCh:    make(chan timerEvent, 64),
		done:       make(chan struct{}),
	}
}

// Run is the single dispatch goroutine described in spec.md §5. It reads
// inbound datagrams, user-initiated requests, and timer expiries off one
// select, exactly the "event-loop FIFO... race-free with datagrams"
// guarantee §5 requires.
func (e *Engine) Run(ctx context.Context, inbound <-chan transport.Packet) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case pkt := <-inbound:
			e.handlePacket(pkt)
		case fn := <-e.reqCh:
			fn()
		case ev := <-e.timerCh:
			e.onProbeTimeout(ev.nonce, ev.probe)
		}
	}
}

// submit enqueues fn to run on the dispatch goroutine. Called by every
// exported request-initiating method (FindNode, FindValue, ...) so
// callers from other goroutines (register.Publisher, cmd/dtund's
// bootstrapOnce) never touch engine state directly.
func (e *Engine) submit(fn func()) {
	select {
	case e.reqCh <- fn:
	case <-e.done:
	}
}

func (e *Engine) countError(kind string) {
	e.errCounts[kind]++
	e.log.Debugw("dropped datagram", "reason", kind)
}

// Errors returns a snapshot of the drop-reason counters (SPEC_FULL.md
// §7), mirroring the teacher's UDPv4.errors map exposed for metrics.
func (e *Engine) Errors() map[string]uint {
	out := make(map[string]uint, len(e.errCounts))
	for k, v := range e.errCounts {
		out[k] = v
	}
	return out
}

func (e *Engine) handlePacket(pkt transport.Packet) {
	p, err := wire.Decode(pkt.Data)
	if err != nil {
		e.countError("malformed_frame")
		return
	}
	hdr := p.Header()
	if hdr.Dst != e.cfg.Self.ID && hdr.Dst != cage.ZeroIdentifier {
		e.countError("wrong_destination")
		return
	}
	if hdr.Dst == cage.ZeroIdentifier {
		if _, ok := p.(*wire.FindNode); !ok {
			e.countError("wrong_destination")
			return
		}
	}

	switch msg := p.(type) {
	case *wire.Ping:
		e.handlePing(msg, pkt.From)
	case *wire.PingReply:
		e.handlePingReply(msg, pkt.From)
	case *wire.FindNode:
		e.handleFindNodeRequest(msg, pkt.From)
	case *wire.FindValue:
		e.handleFindValueRequest(msg, pkt.From)
	case *wire.FindNodeReply:
		e.handleFindNodeReply(msg, pkt.From)
	case *wire.FindValueReply:
		e.handleFindValueReply(msg, pkt.From)
	case *wire.Register:
		e.handleRegister(msg, pkt.From)
	default:
		e.countError("unknown_type")
	}
}

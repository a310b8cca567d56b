package discover

import (
	"time"

	"github.com/erigontech/dtun/cage"
	"github.com/erigontech/dtun/timer"
)

// The collaborator fakes below are hand-written rather than generated by
// go.uber.org/mock: these interfaces are small and the engine's tests
// care about real stateful behavior (a routing table that actually
// tracks nodes, a sender that actually records datagrams) rather than
// call-count expectations, so a plain fake reads closer to the
// teacher's own table-driven test style than a generated expectation
// mock would. See natdetector_mock_test.go for a genuine
// go.uber.org/mock usage on the one collaborator where call expectations
// are the natural fit.

type fakeTable struct {
	nodes   map[cage.Identifier]cage.Node
	removed []cage.Identifier
}

func newFakeTable() *fakeTable {
	return &fakeTable{nodes: make(map[cage.Identifier]cage.Node)}
}

func (f *fakeTable) Lookup(target cage.Identifier, k int) []cage.Node {
	all := make([]cage.Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		all = append(all, n)
	}
	cage.SortByDistance(target, all)
	if len(all) > k {
		all = all[:k]
	}
	return all
}

func (f *fakeTable) Add(n cage.Node) { f.nodes[n.ID] = n }

func (f *fakeTable) Remove(id cage.Identifier) {
	delete(f.nodes, id)
	f.removed = append(f.removed, id)
}

func (f *fakeTable) RecvPingReply(n cage.Node, nonce uint32) { f.Add(n) }

type fakePeers struct {
	added     []cage.Node
	timedOut  map[cage.Identifier]bool
	blacklist map[cage.Identifier]bool
}

func newFakePeers() *fakePeers {
	return &fakePeers{timedOut: make(map[cage.Identifier]bool), blacklist: make(map[cage.Identifier]bool)}
}

func (f *fakePeers) AddNode(n cage.Node, session *uint32) { f.added = append(f.added, n) }
func (f *fakePeers) AddTimeout(id cage.Identifier)        { f.timedOut[id] = true }
func (f *fakePeers) IsTimeout(id cage.Identifier) bool    { return f.blacklist[id] }

type fakeSender struct {
	domain cage.Domain
	sent   []sentDatagram
}

type sentDatagram struct {
	data []byte
	to   cage.Endpoint
}

func (f *fakeSender) Sendto(data []byte, to cage.Endpoint) error {
	f.sent = append(f.sent, sentDatagram{data: data, to: to})
	return nil
}

func (f *fakeSender) GetDomain() cage.Domain { return f.domain }

// fakeTimers records Set/Unset calls but never fires on its own — tests
// drive probe-timeout behavior directly via Engine.onProbeTimeout rather
// than waiting on a real clock.
type fakeTimers struct {
	nextID  timer.ID
	pending map[timer.ID]func()
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{pending: make(map[timer.ID]func())}
}

func (f *fakeTimers) Set(d time.Duration, fn func()) timer.ID {
	f.nextID++
	f.pending[f.nextID] = fn
	return f.nextID
}

func (f *fakeTimers) Unset(id timer.ID) {
	delete(f.pending, id)
}

type fakeRandom struct {
	seq []uint32
	i   int
}

func (f *fakeRandom) Uint32() uint32 {
	v := f.seq[f.i%len(f.seq)]
	f.i++
	return v
}

type fakeRegistered struct {
	entries map[cage.Identifier]cage.Endpoint
}

func newFakeRegistered() *fakeRegistered {
	return &fakeRegistered{entries: make(map[cage.Identifier]cage.Endpoint)}
}

func (f *fakeRegistered) Register(id cage.Identifier, ep cage.Endpoint, session uint32, now time.Time) bool {
	f.entries[id] = ep
	return true
}

func (f *fakeRegistered) Lookup(id cage.Identifier) (cage.Endpoint, bool) {
	ep, ok := f.entries[id]
	return ep, ok
}

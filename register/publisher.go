package register

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/erigontech/dtun/cage"
	"github.com/erigontech/dtun/discover"
	"github.com/erigontech/dtun/timer"
	"github.com/erigontech/dtun/wire"
)

// Finder is the subset of discover.Engine the publisher drives: a
// find-node-against-self, per spec.md §4.5's rationale ("the find-node-
// to-self yields the K nodes closest to this node's id").
type Finder interface {
	FindNode(target cage.Identifier, cb func(nodes []cage.Node))
}

var _ Finder = (*discover.Engine)(nil)

// Sender is the send-half the publisher needs to emit register
// datagrams directly (bypassing the lookup engine, since a register
// datagram carries no query-table bookkeeping).
type Sender interface {
	Sendto(data []byte, to cage.Endpoint) error
}

// Publisher runs the registration loop of spec.md §4.5: periodically
// finds the K nodes closest to self and publishes this node's endpoint
// to each of them.
type Publisher struct {
	self         cage.Identifier
	session      uint32
	registerTTL  time.Duration
	finder       Finder
	send         Sender
	timers       *timer.Wheel
	fanout       *semaphore.Weighted
	log          *zap.SugaredLogger

	mu              sync.Mutex
	registering     bool
	registerTimerID timer.ID
}

// New creates a publisher with a session id chosen once for the process
// lifetime (spec.md §4.5/§glossary: "Session... distinguish restarts").
// alpha bounds the outbound register fan-out the same way it bounds
// in-flight lookup probes (SPEC_FULL.md §5).
func New(self cage.Identifier, session uint32, registerTimeout time.Duration, finder Finder, send Sender, timers *timer.Wheel, alpha int, log *zap.SugaredLogger) *Publisher {
	return &Publisher{
		self:        self,
		session:     session,
		registerTTL: registerTimeout,
		finder:      finder,
		send:        send,
		timers:      timers,
		fanout:      semaphore.NewWeighted(int64(alpha)),
		log:         log,
	}
}

// RegisterNode starts a registration cycle, debounced while one is
// already in flight (spec.md §4.5).
func (p *Publisher) RegisterNode() {
	p.mu.Lock()
	if p.registering {
		p.mu.Unlock()
		return
	}
	p.registering = true
	p.registerTimerID = p.timers.Set(p.registerTTL, p.onRegisterTimeout)
	p.mu.Unlock()

	p.finder.FindNode(p.self, p.onFindNodeComplete)
}

// onRegisterTimeout bounds how long a lost find-node callback can hold
// the registering flag (spec.md §4.5's 10-second guard).
func (p *Publisher) onRegisterTimeout() {
	p.mu.Lock()
	p.registering = false
	p.mu.Unlock()
}

// onFindNodeComplete is the find_node(self_id) continuation: cancel the
// guard timer, clear the debounce flag, and publish to every neighbor
// but self.
func (p *Publisher) onFindNodeComplete(nodes []cage.Node) {
	p.mu.Lock()
	p.timers.Unset(p.registerTimerID)
	p.registering = false
	p.mu.Unlock()

	ctx := context.Background()
	for _, n := range nodes {
		if n.ID == p.self {
			continue
		}
		if err := p.fanout.Acquire(ctx, 1); err != nil {
			continue
		}
		n := n
		go func() {
			defer p.fanout.Release(1)
			buf := wire.EncodeRegister(p.self, n.ID, p.session)
			if err := p.send.Sendto(buf, n.Endpoint); err != nil {
				p.log.Debugw("register send failed", "to", n.ID, "err", err)
			}
		}()
	}
}

// Run arms RegisterNode on a periodic ticker until ctx is canceled.
// SPEC_FULL.md's ambient addition: spec.md §4.5 describes the single
// cycle; a complete repo needs the driver that repeats it.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	p.RegisterNode()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RegisterNode()
		}
	}
}

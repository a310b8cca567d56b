package register

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erigontech/dtun/cage"
	"github.com/erigontech/dtun/timer"
)

func pubID(b byte) cage.Identifier {
	var i cage.Identifier
	i[cage.IdentifierLen-1] = b
	return i
}

type fakeFinder struct {
	calls  []cage.Identifier
	result []cage.Node
}

func (f *fakeFinder) FindNode(target cage.Identifier, cb func(nodes []cage.Node)) {
	f.calls = append(f.calls, target)
	cb(f.result)
}

type fakeRegisterSender struct {
	mu   sync.Mutex
	sent []cage.Endpoint
}

func (f *fakeRegisterSender) Sendto(data []byte, to cage.Endpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeRegisterSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestRegisterNodePublishesToEveryNeighborButSelf(t *testing.T) {
	self := pubID(1)
	n1 := cage.Node{ID: pubID(2), Endpoint: cage.Endpoint{Family: cage.FamilyIPv4, IP: net.IPv4(1, 2, 3, 4).To4(), Port: 10}}
	n2 := cage.Node{ID: pubID(3), Endpoint: cage.Endpoint{Family: cage.FamilyIPv4, IP: net.IPv4(1, 2, 3, 5).To4(), Port: 20}}
	selfAsNeighbor := cage.Node{ID: self, Endpoint: cage.Endpoint{Family: cage.FamilyIPv4, IP: net.IPv4(1, 2, 3, 6).To4(), Port: 30}}

	finder := &fakeFinder{result: []cage.Node{n1, selfAsNeighbor, n2}}
	sender := &fakeRegisterSender{}
	wheel := timer.New()
	log := zaptest.NewLogger(t).Sugar()

	p := New(self, 42, time.Second, finder, sender, wheel, 3, log)
	p.RegisterNode()

	require.Equal(t, []cage.Identifier{self}, finder.calls)
	require.Eventually(t, func() bool { return sender.sentCount() == 2 }, time.Second, 5*time.Millisecond,
		"must publish to n1 and n2 but skip self")
}

func TestRegisterNodeDebouncesWhileInFlight(t *testing.T) {
	self := pubID(1)
	sender := &fakeRegisterSender{}
	wheel := timer.New()
	log := zaptest.NewLogger(t).Sugar()

	blockingFinder := &blockingFinder{release: make(chan struct{})}
	p := New(self, 7, time.Second, blockingFinder, sender, wheel, 3, log)

	go p.RegisterNode()
	require.Eventually(t, func() bool { return blockingFinder.callCount() == 1 }, time.Second, 5*time.Millisecond)

	p.RegisterNode() // second call while the first is still pending must be a no-op
	require.Equal(t, 1, blockingFinder.callCount())

	close(blockingFinder.release)
}

// blockingFinder holds its callback until release is closed, so a test
// can assert the debounce guard actually blocks a concurrent call.
type blockingFinder struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (f *blockingFinder) FindNode(target cage.Identifier, cb func(nodes []cage.Node)) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	<-f.release
	cb(nil)
}

func (f *blockingFinder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

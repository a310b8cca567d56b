// Package transport implements the concrete `udp` oracle from spec.md §6
// (`sendto`, `get_domain`, `resolve`) plus the read loop that feeds the
// single dispatch goroutine (SPEC_FULL.md §4.10), modeled directly on the
// teacher's UDPv4 read-loop-plus-channel pattern in v4_udp.go.
package transport

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erigontech/dtun/cage"
)

// ErrClosed is returned by Sendto after Close.
var ErrClosed = errors.New("transport: closed")

// Packet is one inbound datagram, handed to the dispatch loop.
type Packet struct {
	Data []byte
	From cage.Endpoint
}

// UDP is the concrete socket oracle: a single *net.UDPConn, a read loop
// goroutine, and an inbound rate limiter — the only concurrency boundary
// besides the timer wheel (SPEC_FULL.md §4.10).
type UDP struct {
	conn   *net.UDPConn
	domain cage.Domain
	limit  *rate.Limiter
	log    *zap.SugaredLogger

	inbound chan Packet
	closed  chan struct{}
}

// Listen opens a UDP socket at addr (IPv4 or IPv6, selecting the domain
// returned by GetDomain) and starts its read loop. ratePerSec/burst bound
// inbound datagrams before they ever reach the wire codec — the cheapest
// place to shed load per SPEC_FULL.md §4.10.
func Listen(addr string, ratePerSec float64, burst int, log *zap.SugaredLogger) (*UDP, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	domain := cage.DomainInet
	if udpAddr.IP != nil && udpAddr.IP.To4() == nil {
		domain = cage.DomainInet6
	}
	u := &UDP{
		conn:    conn,
		domain:  domain,
		limit:   rate.NewLimiter(rate.Limit(ratePerSec), burst),
		log:     log,
		inbound: make(chan Packet, 256),
		closed:  make(chan struct{}),
	}
	go u.readLoop()
	return u, nil
}

// Inbound exposes the channel the dispatch loop selects on for arriving
// datagrams (SPEC_FULL.md §4.10: "feeding one select").
func (u *UDP) Inbound() <-chan Packet {
	return u.inbound
}

func (u *UDP) readLoop() {
	buf := make([]byte, 2048)
	for {
		n, from, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-u.closed:
				return
			default:
				u.log.Debugw("udp read error", "err", err)
				return
			}
		}
		if !u.limit.Allow() {
			continue // dropped before reaching the codec, per §4.10
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		pkt := Packet{Data: data, From: cage.EndpointFromUDPAddr(from)}
		select {
		case u.inbound <- pkt:
		case <-u.closed:
			return
		}
	}
}

// Sendto writes one datagram synchronously, per spec.md §6's `sendto`
// collaborator contract.
func (u *UDP) Sendto(data []byte, to cage.Endpoint) error {
	select {
	case <-u.closed:
		return ErrClosed
	default:
	}
	_, err := u.conn.WriteToUDP(data, to.UDPAddr())
	return err
}

// GetDomain reports whether this socket is bound to an IPv4 or IPv6
// address, per spec.md §6's `get_domain` contract.
func (u *UDP) GetDomain() cage.Domain {
	return u.domain
}

// Resolve looks up host:port into an Endpoint, per spec.md §6's
// `resolve(host, port) -> sockaddr?` contract (a zero Endpoint and
// false, spec.md's ResolveFailure, on failure).
func (u *UDP) Resolve(ctx context.Context, host string, port uint16) (cage.Endpoint, bool) {
	var resolver net.Resolver
	ips, err := resolver.LookupIP(ctx, "ip", host)
	if err != nil || len(ips) == 0 {
		return cage.Endpoint{}, false
	}
	ip := ips[0]
	if ip4 := ip.To4(); ip4 != nil {
		return cage.Endpoint{Family: cage.FamilyIPv4, IP: ip4, Port: port}, true
	}
	return cage.Endpoint{Family: cage.FamilyIPv6, IP: ip.To16(), Port: port}, true
}

// LocalAddr reports the bound local address.
func (u *UDP) LocalAddr() *net.UDPAddr {
	return u.conn.LocalAddr().(*net.UDPAddr)
}

// Close shuts the socket and read loop down.
func (u *UDP) Close() error {
	close(u.closed)
	return u.conn.Close()
}

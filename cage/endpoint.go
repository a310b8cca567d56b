package cage

import (
	"fmt"
	"net"
)

// Domain selects the address family carried by a datagram. A single
// datagram is either all-IPv4 or all-IPv6 (spec.md §4.1: "mutually
// exclusive per datagram, selected by a domain field").
type Domain uint16

const (
	DomainInet Domain = iota
	DomainInet6
)

func (d Domain) String() string {
	switch d {
	case DomainInet:
		return "inet"
	case DomainInet6:
		return "inet6"
	default:
		return fmt.Sprintf("domain(%d)", uint16(d))
	}
}

// AddressFamily distinguishes IPv4, IPv6, and loopback. Loopback is a
// wire-level shorthand (spec.md §3): it serializes as the all-zeros
// port+address of the active domain, and on read such a record means
// "the datagram's source address."
type AddressFamily uint8

const (
	FamilyIPv4 AddressFamily = iota
	FamilyIPv6
	FamilyLoopback
)

// Endpoint is an (address-family, socket-address) pair.
type Endpoint struct {
	Family AddressFamily
	IP     net.IP // always in the 4-byte or 16-byte form matching Family
	Port   uint16
}

// isAllZero reports whether e is the wire-level "loopback" sentinel: an
// all-zeros address and port for its family.
func (e Endpoint) isAllZero() bool {
	if e.Port != 0 {
		return false
	}
	for _, b := range e.IP {
		if b != 0 {
			return false
		}
	}
	return true
}

// ResolveLoopback rewrites e to src if e is the wire-level all-zeros
// sentinel, per spec.md §3 and the reply-handling rule in §4.3 ("each
// record with a zero port+address is rewritten to the datagram source
// address").
func (e Endpoint) ResolveLoopback(src Endpoint) Endpoint {
	if e.isAllZero() {
		resolved := src
		resolved.Family = e.Family
		return resolved
	}
	return e
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP.String(), e.Port)
}

// UDPAddr converts e to a *net.UDPAddr for use with the transport package.
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: e.IP, Port: int(e.Port)}
}

// EndpointFromUDPAddr builds an Endpoint from a resolved socket address.
func EndpointFromUDPAddr(a *net.UDPAddr) Endpoint {
	if ip4 := a.IP.To4(); ip4 != nil {
		return Endpoint{Family: FamilyIPv4, IP: ip4, Port: uint16(a.Port)}
	}
	return Endpoint{Family: FamilyIPv6, IP: a.IP.To16(), Port: uint16(a.Port)}
}

// DomainOf reports the wire Domain that carries an endpoint of family f.
func DomainOf(f AddressFamily) Domain {
	if f == FamilyIPv6 {
		return DomainInet6
	}
	return DomainInet
}

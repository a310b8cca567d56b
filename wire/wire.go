// Package wire packs and unpacks the fixed-layout DTUN UDP datagrams
// described in spec.md §4.1 and §6. All multi-byte integer fields use
// network byte order, including type/version/state/domain per the §9(c)
// byte-order mandate.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/erigontech/dtun/cage"
)

// ErrMalformedFrame is returned for any decode violation: bad magic,
// bad version, inconsistent length, or an unknown type. The destination
// id is not checked here (see parseHeader). Per spec.md §4.1/§7, the
// caller treats this as a silent drop.
var ErrMalformedFrame = errors.New("wire: malformed frame")

// Magic is the fixed two-byte constant every datagram begins with.
// spec.md §6 names it "CAGE"; we pack the first two bytes of that ASCII
// string as the u16 magic value, matching libcage's own 4-character tag
// truncated to the 16-bit field spec.md actually specifies.
const Magic uint16 = 0x4341 // "CA"

// Version is the wire protocol version carried in every header.
const Version uint16 = 1

// Type codes, network-order u16s, one per message kind (spec.md §6).
type Type uint16

const (
	TypePing Type = iota + 1
	TypePingReply
	TypeFindNode
	TypeFindNodeReply
	TypeFindValue
	TypeFindValueReply
	TypeRegister
)

func (t Type) String() string {
	switch t {
	case TypePing:
		return "ping"
	case TypePingReply:
		return "ping-reply"
	case TypeFindNode:
		return "find-node"
	case TypeFindNodeReply:
		return "find-node-reply"
	case TypeFindValue:
		return "find-value"
	case TypeFindValueReply:
		return "find-value-reply"
	case TypeRegister:
		return "register"
	default:
		return fmt.Sprintf("type(%d)", uint16(t))
	}
}

// NodeState is the declared NAT reachability of the sender, carried in
// find-node/find-value requests (spec.md §4.4: "Insert the requester
// into the routing table only if its declared NAT state is global").
type NodeState uint16

const (
	StateNAT NodeState = iota
	StateGlobal
)

const headerLen = 2 + 2 + 2 + cage.IdentifierLen + cage.IdentifierLen // magic,ver,type,src,dst

// Header is the common prefix of every datagram.
type Header struct {
	Type Type
	Src  cage.Identifier
	Dst  cage.Identifier
}

func putHeader(buf []byte, typ Type, src, dst cage.Identifier) {
	binary.BigEndian.PutUint16(buf[0:2], Magic)
	binary.BigEndian.PutUint16(buf[2:4], Version)
	binary.BigEndian.PutUint16(buf[4:6], uint16(typ))
	copy(buf[6:6+cage.IdentifierLen], src[:])
	copy(buf[6+cage.IdentifierLen:headerLen], dst[:])
}

// parseHeader validates magic/version and extracts Type/Src/Dst. It does
// not check the destination id against self — that policy depends on the
// message kind (find-node accepts the zero id too) and is applied by the
// discover package's dispatcher.
func parseHeader(buf []byte) (Header, error) {
	if len(buf) < headerLen {
		return Header{}, ErrMalformedFrame
	}
	if binary.BigEndian.Uint16(buf[0:2]) != Magic {
		return Header{}, ErrMalformedFrame
	}
	if binary.BigEndian.Uint16(buf[2:4]) != Version {
		return Header{}, ErrMalformedFrame
	}
	var h Header
	h.Type = Type(binary.BigEndian.Uint16(buf[4:6]))
	copy(h.Src[:], buf[6:6+cage.IdentifierLen])
	copy(h.Dst[:], buf[6+cage.IdentifierLen:headerLen])
	return h, nil
}

// nodeRecordLen returns the fixed per-node encoded length for a domain,
// per spec.md §4.1: IPv4 records are 26 bytes (port+addr+id), IPv6
// records are 38 bytes (port+addr+id).
func nodeRecordLen(d cage.Domain) int {
	if d == cage.DomainInet6 {
		return 2 + 16 + cage.IdentifierLen
	}
	return 2 + 4 + cage.IdentifierLen
}

func putNodeRecord(buf []byte, d cage.Domain, n cage.Node) {
	binary.BigEndian.PutUint16(buf[0:2], n.Endpoint.Port)
	if d == cage.DomainInet6 {
		ip := n.Endpoint.IP.To16()
		copy(buf[2:18], ip)
		copy(buf[18:18+cage.IdentifierLen], n.ID[:])
		return
	}
	ip := n.Endpoint.IP.To4()
	copy(buf[2:6], ip)
	copy(buf[6:6+cage.IdentifierLen], n.ID[:])
}

// parseNodeRecord decodes a single node record. Per §9(b) the record
// loop index underneath this must start at zero — enforced in the
// callers (decodeFindNodeReply/decodeFindValueReply) which range from i:=0.
func parseNodeRecord(buf []byte, d cage.Domain) cage.Node {
	var n cage.Node
	port := binary.BigEndian.Uint16(buf[0:2])
	if d == cage.DomainInet6 {
		ip := make(net.IP, 16)
		copy(ip, buf[2:18])
		n.Endpoint = cage.Endpoint{Family: cage.FamilyIPv6, IP: ip, Port: port}
		copy(n.ID[:], buf[18:18+cage.IdentifierLen])
		return n
	}
	ip := make(net.IP, 4)
	copy(ip, buf[2:6])
	n.Endpoint = cage.Endpoint{Family: cage.FamilyIPv4, IP: ip, Port: port}
	copy(n.ID[:], buf[6:6+cage.IdentifierLen])
	return n
}

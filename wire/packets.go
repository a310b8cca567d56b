package wire

import (
	"encoding/binary"

	"github.com/erigontech/dtun/cage"
)

// Packet is implemented by every decoded message kind.
type Packet interface {
	Kind() Type
	Header() Header
}

// Ping carries only a nonce beyond the header (spec.md §6).
type Ping struct {
	Hdr   Header
	Nonce uint32
}

func (p *Ping) Kind() Type      { return TypePing }
func (p *Ping) Header() Header  { return p.Hdr }

// PingReply echoes the nonce.
type PingReply struct {
	Hdr   Header
	Nonce uint32
}

func (p *PingReply) Kind() Type     { return TypePingReply }
func (p *PingReply) Header() Header { return p.Hdr }

// FindNode and FindValue share the identical layout (spec.md §6:
// "find-value: identical layout to find-node").
type FindNode struct {
	Hdr    Header
	Nonce  uint32
	Domain cage.Domain
	State  NodeState
	Target cage.Identifier
}

func (p *FindNode) Kind() Type     { return TypeFindNode }
func (p *FindNode) Header() Header { return p.Hdr }

type FindValue struct {
	Hdr    Header
	Nonce  uint32
	Domain cage.Domain
	State  NodeState
	Target cage.Identifier
}

func (p *FindValue) Kind() Type     { return TypeFindValue }
func (p *FindValue) Header() Header { return p.Hdr }

// FindNodeReply carries the embedded node list.
type FindNodeReply struct {
	Hdr    Header
	Nonce  uint32
	Domain cage.Domain
	Target cage.Identifier
	Nodes  []cage.Node
}

func (p *FindNodeReply) Kind() Type     { return TypeFindNodeReply }
func (p *FindNodeReply) Header() Header { return p.Hdr }

// FindValueReply additionally carries the value-present flag (spec.md §6).
type FindValueReply struct {
	Hdr    Header
	Nonce  uint32
	Domain cage.Domain
	Target cage.Identifier
	Found  bool
	Nodes  []cage.Node
}

func (p *FindValueReply) Kind() Type     { return TypeFindValueReply }
func (p *FindValueReply) Header() Header { return p.Hdr }

// Register carries the sender's per-process session id.
type Register struct {
	Hdr     Header
	Session uint32
}

func (p *Register) Kind() Type     { return TypeRegister }
func (p *Register) Header() Header { return p.Hdr }

const (
	nonceLen     = 4
	domainLen    = 2
	stateLen     = 2
	numLen       = 1
	flagLen      = 1
	sessionLen   = 4
)

// EncodePing packs a ping datagram.
func EncodePing(src, dst cage.Identifier, nonce uint32) []byte {
	buf := make([]byte, headerLen+nonceLen)
	putHeader(buf, TypePing, src, dst)
	binary.BigEndian.PutUint32(buf[headerLen:], nonce)
	return buf
}

// EncodePingReply packs a ping-reply datagram.
func EncodePingReply(src, dst cage.Identifier, nonce uint32) []byte {
	buf := make([]byte, headerLen+nonceLen)
	putHeader(buf, TypePingReply, src, dst)
	binary.BigEndian.PutUint32(buf[headerLen:], nonce)
	return buf
}

func encodeFindReq(typ Type, src, dst cage.Identifier, nonce uint32, d cage.Domain, st NodeState, target cage.Identifier) []byte {
	buf := make([]byte, headerLen+nonceLen+domainLen+stateLen+cage.IdentifierLen)
	putHeader(buf, typ, src, dst)
	off := headerLen
	binary.BigEndian.PutUint32(buf[off:], nonce)
	off += nonceLen
	binary.BigEndian.PutUint16(buf[off:], uint16(d))
	off += domainLen
	binary.BigEndian.PutUint16(buf[off:], uint16(st))
	off += stateLen
	copy(buf[off:], target[:])
	return buf
}

// EncodeFindNode packs a find-node request.
func EncodeFindNode(src, dst cage.Identifier, nonce uint32, d cage.Domain, st NodeState, target cage.Identifier) []byte {
	return encodeFindReq(TypeFindNode, src, dst, nonce, d, st, target)
}

// EncodeFindValue packs a find-value request (identical layout).
func EncodeFindValue(src, dst cage.Identifier, nonce uint32, d cage.Domain, st NodeState, target cage.Identifier) []byte {
	return encodeFindReq(TypeFindValue, src, dst, nonce, d, st, target)
}

// EncodeFindNodeReply packs a find-node reply carrying nodes (<=255 of them).
func EncodeFindNodeReply(src, dst cage.Identifier, nonce uint32, d cage.Domain, target cage.Identifier, nodes []cage.Node) ([]byte, error) {
	if len(nodes) > 255 {
		return nil, ErrMalformedFrame
	}
	recLen := nodeRecordLen(d)
	base := headerLen + nonceLen + domainLen + cage.IdentifierLen + numLen
	buf := make([]byte, base+len(nodes)*recLen)
	putHeader(buf, TypeFindNodeReply, src, dst)
	off := headerLen
	binary.BigEndian.PutUint32(buf[off:], nonce)
	off += nonceLen
	binary.BigEndian.PutUint16(buf[off:], uint16(d))
	off += domainLen
	copy(buf[off:], target[:])
	off += cage.IdentifierLen
	buf[off] = byte(len(nodes))
	off += numLen
	for i := 0; i < len(nodes); i++ {
		putNodeRecord(buf[off:off+recLen], d, nodes[i])
		off += recLen
	}
	return buf, nil
}

// EncodeFindValueReply packs a find-value reply: either flag=0 with up to
// K closest nodes, or flag=1 with exactly one record (spec.md §4.4/§6).
func EncodeFindValueReply(src, dst cage.Identifier, nonce uint32, d cage.Domain, target cage.Identifier, found bool, nodes []cage.Node) ([]byte, error) {
	if len(nodes) > 255 {
		return nil, ErrMalformedFrame
	}
	recLen := nodeRecordLen(d)
	base := headerLen + nonceLen + domainLen + cage.IdentifierLen + numLen + flagLen
	buf := make([]byte, base+len(nodes)*recLen)
	putHeader(buf, TypeFindValueReply, src, dst)
	off := headerLen
	binary.BigEndian.PutUint32(buf[off:], nonce)
	off += nonceLen
	binary.BigEndian.PutUint16(buf[off:], uint16(d))
	off += domainLen
	copy(buf[off:], target[:])
	off += cage.IdentifierLen
	buf[off] = byte(len(nodes))
	off += numLen
	if found {
		buf[off] = 1
	}
	off += flagLen
	for i := 0; i < len(nodes); i++ {
		putNodeRecord(buf[off:off+recLen], d, nodes[i])
		off += recLen
	}
	return buf, nil
}

// EncodeRegister packs a register datagram.
func EncodeRegister(src, dst cage.Identifier, session uint32) []byte {
	buf := make([]byte, headerLen+sessionLen)
	putHeader(buf, TypeRegister, src, dst)
	binary.BigEndian.PutUint32(buf[headerLen:], session)
	return buf
}

// Decode parses buf into a concrete Packet, or ErrMalformedFrame if any
// structural check fails (bad magic/version/length, or an unrecognized
// type). Callers must still apply destination-id policy themselves (it
// differs per message kind, see spec.md §4.1/§4.4).
func Decode(buf []byte) (Packet, error) {
	hdr, err := parseHeader(buf)
	if err != nil {
		return nil, err
	}
	body := buf[headerLen:]
	switch hdr.Type {
	case TypePing:
		if len(body) != nonceLen {
			return nil, ErrMalformedFrame
		}
		return &Ping{Hdr: hdr, Nonce: binary.BigEndian.Uint32(body)}, nil

	case TypePingReply:
		if len(body) != nonceLen {
			return nil, ErrMalformedFrame
		}
		return &PingReply{Hdr: hdr, Nonce: binary.BigEndian.Uint32(body)}, nil

	case TypeFindNode, TypeFindValue:
		if len(body) != nonceLen+domainLen+stateLen+cage.IdentifierLen {
			return nil, ErrMalformedFrame
		}
		nonce := binary.BigEndian.Uint32(body)
		off := nonceLen
		d := cage.Domain(binary.BigEndian.Uint16(body[off:]))
		off += domainLen
		st := NodeState(binary.BigEndian.Uint16(body[off:]))
		off += stateLen
		var target cage.Identifier
		copy(target[:], body[off:off+cage.IdentifierLen])
		if hdr.Type == TypeFindNode {
			return &FindNode{Hdr: hdr, Nonce: nonce, Domain: d, State: st, Target: target}, nil
		}
		return &FindValue{Hdr: hdr, Nonce: nonce, Domain: d, State: st, Target: target}, nil

	case TypeFindNodeReply:
		return decodeFindNodeReply(hdr, body)

	case TypeFindValueReply:
		return decodeFindValueReply(hdr, body)

	case TypeRegister:
		if len(body) != sessionLen {
			return nil, ErrMalformedFrame
		}
		return &Register{Hdr: hdr, Session: binary.BigEndian.Uint32(body)}, nil

	default:
		return nil, ErrMalformedFrame
	}
}

func decodeFindNodeReply(hdr Header, body []byte) (*FindNodeReply, error) {
	minLen := nonceLen + domainLen + cage.IdentifierLen + numLen
	if len(body) < minLen {
		return nil, ErrMalformedFrame
	}
	nonce := binary.BigEndian.Uint32(body)
	off := nonceLen
	d := cage.Domain(binary.BigEndian.Uint16(body[off:]))
	off += domainLen
	var target cage.Identifier
	copy(target[:], body[off:off+cage.IdentifierLen])
	off += cage.IdentifierLen
	num := int(body[off])
	off += numLen

	recLen := nodeRecordLen(d)
	if off+num*recLen != len(body) {
		return nil, ErrMalformedFrame
	}
	nodes := make([]cage.Node, num)
	for i := 0; i < num; i++ {
		nodes[i] = parseNodeRecord(body[off:off+recLen], d)
		off += recLen
	}
	return &FindNodeReply{Hdr: hdr, Nonce: nonce, Domain: d, Target: target, Nodes: nodes}, nil
}

func decodeFindValueReply(hdr Header, body []byte) (*FindValueReply, error) {
	minLen := nonceLen + domainLen + cage.IdentifierLen + numLen + flagLen
	if len(body) < minLen {
		return nil, ErrMalformedFrame
	}
	nonce := binary.BigEndian.Uint32(body)
	off := nonceLen
	d := cage.Domain(binary.BigEndian.Uint16(body[off:]))
	off += domainLen
	var target cage.Identifier
	copy(target[:], body[off:off+cage.IdentifierLen])
	off += cage.IdentifierLen
	num := int(body[off])
	off += numLen
	found := body[off] != 0
	off += flagLen

	recLen := nodeRecordLen(d)
	if off+num*recLen != len(body) {
		return nil, ErrMalformedFrame
	}
	nodes := make([]cage.Node, num)
	for i := 0; i < num; i++ {
		nodes[i] = parseNodeRecord(body[off:off+recLen], d)
		off += recLen
	}
	return &FindValueReply{Hdr: hdr, Nonce: nonce, Domain: d, Target: target, Found: found, Nodes: nodes}, nil
}

package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/dtun/cage"
)

func id(b byte) cage.Identifier {
	var i cage.Identifier
	i[cage.IdentifierLen-1] = b
	return i
}

func TestPingRoundTrip(t *testing.T) {
	buf := EncodePing(id(1), id(2), 0xdeadbeef)
	p, err := Decode(buf)
	require.NoError(t, err)
	ping, ok := p.(*Ping)
	require.True(t, ok)
	require.Equal(t, uint32(0xdeadbeef), ping.Nonce)
	require.Equal(t, id(1), ping.Hdr.Src)
	require.Equal(t, id(2), ping.Hdr.Dst)
}

func TestFindNodeRoundTrip(t *testing.T) {
	buf := EncodeFindNode(id(1), id(2), 42, cage.DomainInet, StateGlobal, id(9))
	p, err := Decode(buf)
	require.NoError(t, err)
	fn, ok := p.(*FindNode)
	require.True(t, ok)
	require.Equal(t, uint32(42), fn.Nonce)
	require.Equal(t, cage.DomainInet, fn.Domain)
	require.Equal(t, StateGlobal, fn.State)
	require.Equal(t, id(9), fn.Target)
}

func TestFindNodeReplyRoundTripIPv4(t *testing.T) {
	nodes := []cage.Node{
		{ID: id(3), Endpoint: cage.Endpoint{Family: cage.FamilyIPv4, IP: net.IPv4(10, 0, 0, 1).To4(), Port: 30303}},
		{ID: id(4), Endpoint: cage.Endpoint{Family: cage.FamilyIPv4, IP: net.IPv4(10, 0, 0, 2).To4(), Port: 30304}},
	}
	buf, err := EncodeFindNodeReply(id(1), id(2), 7, cage.DomainInet, id(9), nodes)
	require.NoError(t, err)

	p, err := Decode(buf)
	require.NoError(t, err)
	reply, ok := p.(*FindNodeReply)
	require.True(t, ok)
	require.Equal(t, id(9), reply.Target)
	require.Len(t, reply.Nodes, 2)
	require.Equal(t, nodes[0].ID, reply.Nodes[0].ID)
	require.Equal(t, nodes[0].Endpoint.Port, reply.Nodes[0].Endpoint.Port)
	require.True(t, nodes[1].Endpoint.IP.Equal(reply.Nodes[1].Endpoint.IP))
}

func TestFindNodeReplyRoundTripIPv6(t *testing.T) {
	ip6 := net.ParseIP("2001:db8::1")
	nodes := []cage.Node{{ID: id(5), Endpoint: cage.Endpoint{Family: cage.FamilyIPv6, IP: ip6, Port: 9000}}}
	buf, err := EncodeFindNodeReply(id(1), id(2), 7, cage.DomainInet6, id(9), nodes)
	require.NoError(t, err)

	p, err := Decode(buf)
	require.NoError(t, err)
	reply := p.(*FindNodeReply)
	require.Len(t, reply.Nodes, 1)
	require.True(t, ip6.Equal(reply.Nodes[0].Endpoint.IP))
}

func TestFindValueReplyFoundFlag(t *testing.T) {
	nodes := []cage.Node{{ID: id(3), Endpoint: cage.Endpoint{Family: cage.FamilyIPv4, IP: net.IPv4(1, 2, 3, 4).To4(), Port: 1}}}
	buf, err := EncodeFindValueReply(id(1), id(2), 7, cage.DomainInet, id(9), true, nodes)
	require.NoError(t, err)

	p, err := Decode(buf)
	require.NoError(t, err)
	reply := p.(*FindValueReply)
	require.True(t, reply.Found)
	require.Len(t, reply.Nodes, 1)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := EncodePing(id(1), id(2), 1)
	buf[0] ^= 0xFF
	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecodeRejectsTruncatedBody(t *testing.T) {
	buf := EncodePing(id(1), id(2), 1)
	_, err := Decode(buf[:len(buf)-1])
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecodeRejectsInconsistentReplyLength(t *testing.T) {
	nodes := []cage.Node{{ID: id(3), Endpoint: cage.Endpoint{Family: cage.FamilyIPv4, IP: net.IPv4(1, 2, 3, 4).To4(), Port: 1}}}
	buf, err := EncodeFindNodeReply(id(1), id(2), 7, cage.DomainInet, id(9), nodes)
	require.NoError(t, err)

	truncated := buf[:len(buf)-1]
	_, err = Decode(truncated)
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestRegisterRoundTrip(t *testing.T) {
	buf := EncodeRegister(id(1), id(2), 0x1234)
	p, err := Decode(buf)
	require.NoError(t, err)
	reg := p.(*Register)
	require.Equal(t, uint32(0x1234), reg.Session)
}

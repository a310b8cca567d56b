package cage

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func nodeFrom(b byte) Node {
	var id Identifier
	id[IdentifierLen-1] = b
	return Node{ID: id, Endpoint: Endpoint{Family: FamilyIPv4, IP: net.IPv4(127, 0, 0, 1).To4(), Port: uint16(b)}}
}

func TestMergeIdempotent(t *testing.T) {
	target := idFrom(0)
	list := []Node{nodeFrom(1), nodeFrom(2), nodeFrom(3)}
	SortByDistance(target, list)

	out := Merge(target, list, list, 6)
	require.Equal(t, list, out)
}

func TestMergeAgainstEmpty(t *testing.T) {
	target := idFrom(0)
	list := []Node{nodeFrom(1), nodeFrom(2), nodeFrom(3), nodeFrom(4)}
	SortByDistance(target, list)

	out := Merge(target, list, nil, 2)
	require.Equal(t, list[:2], out)
}

func TestMergeDedupesAndCapsAtK(t *testing.T) {
	target := idFrom(0)
	a := []Node{nodeFrom(1), nodeFrom(2)}
	b := []Node{nodeFrom(2), nodeFrom(3), nodeFrom(4)}
	SortByDistance(target, a)
	SortByDistance(target, b)

	out := Merge(target, a, b, 3)
	require.Len(t, out, 3)
	seen := map[Identifier]bool{}
	for _, n := range out {
		require.False(t, seen[n.ID], "duplicate id in merge output")
		seen[n.ID] = true
	}
	for i := 1; i < len(out); i++ {
		require.True(t, Less(target, out[i-1].ID, out[i].ID) || out[i-1].ID == out[i].ID)
	}
}

func TestDedupByIDPreservesFirstOccurrence(t *testing.T) {
	n1, n2 := nodeFrom(1), nodeFrom(1)
	n2.Endpoint.Port = 9999
	out := DedupByID([]Node{n1, n2, nodeFrom(2)})
	require.Len(t, out, 2)
	require.Equal(t, n1, out[0])
}

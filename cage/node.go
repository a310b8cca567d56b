package cage

// Node is an (identifier, endpoint) pair. spec.md §3: two node records
// with the same identifier but different endpoints are different for
// equality in the registration directory; the routing table treats
// identifier as the primary key.
type Node struct {
	ID       Identifier
	Endpoint Endpoint
}

// SameIdentity reports whether two nodes name the same routing-table
// entry (identifier only).
func (n Node) SameIdentity(o Node) bool {
	return n.ID == o.ID
}

// Equal reports full equality, including endpoint — the notion used by
// the registration directory (spec.md §3).
func (n Node) Equal(o Node) bool {
	return n.ID == o.ID &&
		n.Endpoint.Family == o.Endpoint.Family &&
		n.Endpoint.Port == o.Endpoint.Port &&
		n.Endpoint.IP.Equal(o.Endpoint.IP)
}

// SortByDistance sorts nodes ascending by XOR distance to target, the
// ordering spec.md §3 requires of a shortlist.
func SortByDistance(target Identifier, nodes []Node) {
	// Small, fixed-bound slices (shortlists cap at K=6); insertion sort
	// avoids pulling in sort.Slice's reflection-based comparator for
	// something this small.
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && Less(target, nodes[j].ID, nodes[j-1].ID); j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

// DedupByID removes nodes sharing an identifier with an earlier node in
// the slice, preserving order.
func DedupByID(nodes []Node) []Node {
	seen := make(map[Identifier]struct{}, len(nodes))
	out := nodes[:0]
	for _, n := range nodes {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	return out
}

package discover

// queryTable is the `u32 -> Query` mapping of spec.md §4.2. It is
// logically single-threaded (spec.md §5: owned by the dispatch
// goroutine only), so unlike table.Table and peers.Directory it carries
// no mutex.
type queryTable struct {
	byNonce map[uint32]*query
}

func newQueryTable() *queryTable {
	return &queryTable{byNonce: make(map[uint32]*query)}
}

// insert picks a nonce via random, retrying on collision against the
// live table (spec.md §4.2/§3: "chosen uniformly at random, retried on
// collision"), and stores q under it.
func (t *queryTable) insert(random RandomSource, q *query) uint32 {
	for {
		nonce := random.Uint32()
		if _, taken := t.byNonce[nonce]; taken {
			continue
		}
		q.nonce = nonce
		t.byNonce[nonce] = q
		return nonce
	}
}

func (t *queryTable) get(nonce uint32) (*query, bool) {
	q, ok := t.byNonce[nonce]
	return q, ok
}

func (t *queryTable) remove(nonce uint32) {
	delete(t.byNonce, nonce)
}

func (t *queryTable) len() int {
	return len(t.byNonce)
}

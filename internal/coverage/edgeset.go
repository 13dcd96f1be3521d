// Package coverage implements the EdgeSet/Fingerprint value types and the
// novelty filter (spec §3, §4.E, §9's Design Notes on fingerprint
// hashing): edge ids are stored as a sorted slice with a cached hash so
// equality and hashing never re-sort on the hot path.
package coverage

import (
	"hash/fnv"
	"sort"
)

const fnvPrime64 = 1099511628211

// EdgeSet is the set of control-flow edges one target exercised on one
// input. Equality and hashing are value-based, per spec §3.
type EdgeSet struct {
	edges []uint32
	hash  uint64
}

// NewEdgeSet builds an EdgeSet from (possibly unsorted, possibly
// duplicated) edge ids, deduplicating and sorting once.
func NewEdgeSet(ids []uint32) EdgeSet {
	dedup := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		dedup[id] = struct{}{}
	}
	sorted := make([]uint32, 0, len(dedup))
	for id := range dedup {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return EdgeSet{edges: sorted, hash: hashEdges(sorted)}
}

func hashEdges(sorted []uint32) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 4)
	for _, id := range sorted {
		buf[0] = byte(id)
		buf[1] = byte(id >> 8)
		buf[2] = byte(id >> 16)
		buf[3] = byte(id >> 24)
		h.Write(buf)
	}
	return h.Sum64()
}

// Len reports the number of distinct edges.
func (s EdgeSet) Len() int { return len(s.edges) }

// Edges returns the sorted edge ids. Callers must not mutate the result.
func (s EdgeSet) Edges() []uint32 { return s.edges }

// Hash returns the cached FNV-1a hash of the sorted edge set.
func (s EdgeSet) Hash() uint64 { return s.hash }

// Equal reports value equality between two edge sets.
func (s EdgeSet) Equal(o EdgeSet) bool {
	if s.hash != o.hash || len(s.edges) != len(o.edges) {
		return false
	}
	for i := range s.edges {
		if s.edges[i] != o.edges[i] {
			return false
		}
	}
	return true
}

// Union returns the set union of edges seen so far, used to build the
// report's cumulative coverage samples (spec §4.I).
func Union(sets ...EdgeSet) EdgeSet {
	seen := map[uint32]struct{}{}
	for _, s := range sets {
		for _, e := range s.edges {
			seen[e] = struct{}{}
		}
	}
	ids := make([]uint32, 0, len(seen))
	for e := range seen {
		ids = append(ids, e)
	}
	return NewEdgeSet(ids)
}

package coverage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kenballus/url-differential-fuzzing/internal/coverage"
)

func fp(edgeLists ...[]uint32) coverage.Fingerprint {
	f := make(coverage.Fingerprint, len(edgeLists))
	for i, ids := range edgeLists {
		f[i] = coverage.NewEdgeSet(ids)
	}
	return f
}

func TestFingerprintEqual(t *testing.T) {
	a := fp([]uint32{1, 2}, []uint32{3})
	b := fp([]uint32{2, 1}, []uint32{3})
	c := fp([]uint32{1, 2}, []uint32{4})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestFingerprintHashIsOrderSensitiveAcrossPositions(t *testing.T) {
	a := fp([]uint32{1}, []uint32{2})
	b := fp([]uint32{2}, []uint32{1})
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestNoveltySetFirstSeenIsNovel(t *testing.T) {
	ns := coverage.NewNoveltySet()
	f := fp([]uint32{1, 2})
	assert.True(t, ns.CheckAndAdd(f))
	assert.False(t, ns.CheckAndAdd(f))
	assert.Equal(t, 1, ns.Len())
}

func TestNoveltySetDistinctFingerprintsBothNovel(t *testing.T) {
	ns := coverage.NewNoveltySet()
	a := fp([]uint32{1})
	b := fp([]uint32{2})
	assert.True(t, ns.CheckAndAdd(a))
	assert.True(t, ns.CheckAndAdd(b))
	assert.Equal(t, 2, ns.Len())
}

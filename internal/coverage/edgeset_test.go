package coverage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kenballus/url-differential-fuzzing/internal/coverage"
)

func TestNewEdgeSetDedupesAndSorts(t *testing.T) {
	a := coverage.NewEdgeSet([]uint32{3, 1, 2, 1, 3})
	b := coverage.NewEdgeSet([]uint32{1, 2, 3})
	assert.True(t, a.Equal(b))
	assert.Equal(t, 3, a.Len())
}

func TestEdgeSetEqualIsValueBased(t *testing.T) {
	a := coverage.NewEdgeSet([]uint32{1, 2})
	b := coverage.NewEdgeSet([]uint32{2, 1})
	c := coverage.NewEdgeSet([]uint32{1, 2, 3})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestUnion(t *testing.T) {
	a := coverage.NewEdgeSet([]uint32{1, 2})
	b := coverage.NewEdgeSet([]uint32{2, 3})
	u := coverage.Union(a, b)
	assert.Equal(t, 3, u.Len())
	assert.True(t, u.Equal(coverage.NewEdgeSet([]uint32{1, 2, 3})))
}

func TestUnionOfNothingIsEmpty(t *testing.T) {
	u := coverage.Union()
	assert.Equal(t, 0, u.Len())
}

func TestHashStableAcrossInputOrder(t *testing.T) {
	a := coverage.NewEdgeSet([]uint32{5, 1, 9})
	b := coverage.NewEdgeSet([]uint32{9, 5, 1})
	assert.Equal(t, a.Hash(), b.Hash())
}

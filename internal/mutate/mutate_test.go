package mutate_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kenballus/url-differential-fuzzing/internal/grammar"
	"github.com/kenballus/url-differential-fuzzing/internal/mutate"
)

func TestByteInsertGrowsByOne(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	out := mutate.ByteInsert(r, []byte("ab"))
	assert.Len(t, out, 3)
}

func TestByteChangeKeepsLength(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	in := []byte("abc")
	out := mutate.ByteChange(r, in)
	assert.Len(t, out, len(in))
}

func TestByteDeleteShrinksByOne(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	out := mutate.ByteDelete(r, []byte("abcd"))
	assert.Len(t, out, 3)
}

func TestMutateEmptyInputDegeneratesToInsert(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	m := &mutate.Mutator{}
	out := m.Mutate(r, nil)
	assert.Len(t, out, 1)
}

func TestMutateSingleByteNeverDeletes(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	m := &mutate.Mutator{}
	for i := 0; i < 200; i++ {
		out := m.Mutate(r, []byte("x"))
		assert.NotEmpty(t, out)
	}
}

func TestMutateDeterministicUnderSeededRand(t *testing.T) {
	m := &mutate.Mutator{}
	in := []byte("hello")
	a := m.Mutate(rand.New(rand.NewSource(42)), in)
	b := m.Mutate(rand.New(rand.NewSource(42)), in)
	assert.Equal(t, a, b)
}

// fakeGrammar always matches a single named group spanning the whole
// input and regenerates it as a fixed replacement, so grammarMutate's
// splice logic can be exercised without a real regex grammar.
type fakeGrammar struct {
	replacement []byte
}

func (g *fakeGrammar) MatchTop(b []byte) (*grammar.Match, bool) {
	return &grammar.Match{Groups: map[string]grammar.Span{"whole": {Start: 0, End: len(b)}}}, true
}

func (g *fakeGrammar) Generate(rule string, r *rand.Rand) ([]byte, error) {
	return g.replacement, nil
}

func TestMutateUsesGrammarMutateWhenAvailable(t *testing.T) {
	g := &fakeGrammar{replacement: []byte("XYZ")}
	m := &mutate.Mutator{Grammar: g}
	seen := map[string]bool{}
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		out := m.Mutate(r, []byte("abc"))
		seen[string(out)] = true
	}
	assert.True(t, seen["XYZ"], "grammar-based replacement should appear among mutation outcomes")
}

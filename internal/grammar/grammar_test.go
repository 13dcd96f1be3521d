package grammar_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenballus/url-differential-fuzzing/internal/grammar"
)

func TestCompileRejectsAnchors(t *testing.T) {
	_, err := grammar.Compile(`^(?P<whole>abc)$`)
	assert.Error(t, err)
}

func TestMatchTopReturnsNamedSpans(t *testing.T) {
	g, err := grammar.Compile(`(?P<host>[a-z]+)\.(?P<tld>[a-z]+)`)
	require.NoError(t, err)

	m, ok := g.MatchTop([]byte("example.com"))
	require.True(t, ok)
	require.Contains(t, m.Groups, "host")
	require.Contains(t, m.Groups, "tld")

	host := m.Groups["host"]
	assert.Equal(t, "example", string([]byte("example.com")[host.Start:host.End]))
}

func TestMatchTopNoMatch(t *testing.T) {
	g, err := grammar.Compile(`(?P<digits>[0-9]+)`)
	require.NoError(t, err)

	_, ok := g.MatchTop([]byte("abc"))
	assert.False(t, ok)
}

func TestGenerateProducesMatchingString(t *testing.T) {
	g, err := grammar.Compile(`(?P<word>[a-c]{3})`)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(1))
	out, err := g.Generate("word", r)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	for _, b := range out {
		assert.Contains(t, []byte("abc"), b)
	}
}

func TestGenerateUnknownRule(t *testing.T) {
	g, err := grammar.Compile(`(?P<word>[a-c]{3})`)
	require.NoError(t, err)

	_, err = g.Generate("nonexistent", rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestGenerateDeterministicUnderSameSeed(t *testing.T) {
	g, err := grammar.Compile(`(?P<word>[a-z]{5})`)
	require.NoError(t, err)

	a, err := g.Generate("word", rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	b, err := g.Generate("word", rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

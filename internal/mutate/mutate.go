// Package mutate implements the byte-level and grammar-aware mutation
// operators (component C), selecting uniformly at random among whichever
// operators are applicable to the current input, per spec §4.C.
package mutate

import (
	"math/rand"
	"sort"

	"github.com/kenballus/url-differential-fuzzing/internal/grammar"
)

// Operator produces one mutated child from a non-empty input.
type Operator func(r *rand.Rand, b []byte) []byte

// ByteInsert is always applicable: insert a uniformly random byte at a
// uniformly random position, including at either end.
func ByteInsert(r *rand.Rand, b []byte) []byte {
	index := r.Intn(len(b) + 1)
	out := make([]byte, 0, len(b)+1)
	out = append(out, b[:index]...)
	out = append(out, byte(r.Intn(256)))
	out = append(out, b[index:]...)
	return out
}

// ByteChange is applicable when len(b) >= 1: replace one byte.
func ByteChange(r *rand.Rand, b []byte) []byte {
	index := r.Intn(len(b))
	out := append([]byte{}, b...)
	out[index] = byte(r.Intn(256))
	return out
}

// ByteDelete is applicable when len(b) >= 2 so the result is never empty.
func ByteDelete(r *rand.Rand, b []byte) []byte {
	index := r.Intn(len(b))
	out := make([]byte, 0, len(b)-1)
	out = append(out, b[:index]...)
	out = append(out, b[index+1:]...)
	return out
}

// Grammar wraps a grammar so it can supply a grammar_mutate operator.
type Grammar interface {
	MatchTop(b []byte) (*grammar.Match, bool)
	Generate(rule string, r *rand.Rand) ([]byte, error)
}

// Mutator selects one operator uniformly at random from those applicable
// to b and applies it. Empty input degenerates to ByteInsert, matching
// spec §4.C's empty-input special case.
type Mutator struct {
	Grammar Grammar // nil disables grammar_mutate
}

// Mutate returns one mutated child of b.
func (m *Mutator) Mutate(r *rand.Rand, b []byte) []byte {
	if len(b) == 0 {
		return ByteInsert(r, b)
	}

	ops := []Operator{ByteInsert, ByteChange}
	if len(b) >= 2 {
		ops = append(ops, ByteDelete)
	}

	var gm *grammar.Match
	if m.Grammar != nil {
		if match, ok := m.Grammar.MatchTop(b); ok && len(match.Groups) > 0 {
			gm = match
		}
	}
	if gm != nil {
		ops = append(ops, m.grammarMutate(gm))
	}

	return ops[r.Intn(len(ops))](r, b)
}

// grammarMutate picks one matched named subgroup uniformly at random,
// regenerates a random string matching that subgroup's sub-pattern, and
// splices it in place of the original match (spec §4.C).
func (m *Mutator) grammarMutate(match *grammar.Match) Operator {
	return func(r *rand.Rand, b []byte) []byte {
		names := make([]string, 0, len(match.Groups))
		for name, span := range match.Groups {
			if span.Start >= 0 {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return ByteInsert(r, b)
		}
		sort.Strings(names)
		name := names[r.Intn(len(names))]
		span := match.Groups[name]

		replacement, err := m.Grammar.Generate(name, r)
		if err != nil {
			return ByteInsert(r, b)
		}

		out := make([]byte, 0, len(b)-(span.End-span.Start)+len(replacement))
		out = append(out, b[:span.Start]...)
		out = append(out, replacement...)
		out = append(out, b[span.End:]...)
		return out
	}
}

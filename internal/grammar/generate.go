package grammar

import (
	"math/rand"
	"regexp/syntax"
)

// generate walks a compiled regex AST and emits one sampled byte string,
// mirroring the original grammar generator's node-by-node recursion:
// literals reproduce themselves, classes and ANY sample uniformly from
// their alphabet, repeats emit exactly their minimum count, captures
// recurse, and alternation picks one branch uniformly.
func generate(n *syntax.Regexp, alphabet []byte, r *rand.Rand) []byte {
	switch n.Op {
	case syntax.OpLiteral:
		out := make([]byte, len(n.Rune))
		for i, ru := range n.Rune {
			out[i] = byte(ru)
		}
		return out

	case syntax.OpCharClass:
		return []byte{sampleClass(n.Rune, alphabet, r)}

	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return []byte{alphabet[r.Intn(len(alphabet))]}

	case syntax.OpStar:
		return repeat(n.Sub[0], 0, alphabet, r)
	case syntax.OpPlus:
		return repeat(n.Sub[0], 1, alphabet, r)
	case syntax.OpQuest:
		return repeat(n.Sub[0], 0, alphabet, r)
	case syntax.OpRepeat:
		return repeat(n.Sub[0], n.Min, alphabet, r)

	case syntax.OpCapture:
		return generate(n.Sub[0], alphabet, r)

	case syntax.OpConcat:
		var out []byte
		for _, sub := range n.Sub {
			out = append(out, generate(sub, alphabet, r)...)
		}
		return out

	case syntax.OpAlternate:
		if len(n.Sub) == 0 {
			return nil
		}
		return generate(n.Sub[r.Intn(len(n.Sub))], alphabet, r)

	case syntax.OpEmptyMatch, syntax.OpNoMatch:
		return nil

	default:
		return nil
	}
}

func repeat(sub *syntax.Regexp, minReps int, alphabet []byte, r *rand.Rand) []byte {
	var out []byte
	for i := 0; i < minReps; i++ {
		out = append(out, generate(sub, alphabet, r)...)
	}
	return out
}

// sampleClass uniformly samples one byte from the ranges packed into
// runePairs (lo, hi, lo, hi, ...), clamped to the fixed 256-byte
// alphabet, since this grammar never supports Unicode beyond a byte.
func sampleClass(runePairs []rune, alphabet []byte, r *rand.Rand) byte {
	var candidates []byte
	for i := 0; i+1 < len(runePairs); i += 2 {
		lo, hi := runePairs[i], runePairs[i+1]
		if lo > 255 {
			continue
		}
		if hi > 255 {
			hi = 255
		}
		for c := lo; c <= hi; c++ {
			candidates = append(candidates, byte(c))
		}
	}
	if len(candidates) == 0 {
		return alphabet[r.Intn(len(alphabet))]
	}
	return candidates[r.Intn(len(candidates))]
}

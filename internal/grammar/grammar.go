// Package grammar implements the optional grammar module (component D):
// parsing a regex AST and generating random matching byte strings, and
// matching the top rule against an input to find named subgroups the
// mutation engine can regenerate.
package grammar

import (
	"math/rand"
	"regexp"
	"regexp/syntax"

	"github.com/kenballus/url-differential-fuzzing/internal/ferrors"
)

// Span is a byte range within a matched input, exclusive of End.
type Span struct {
	Start, End int
}

// Match is the result of MatchTop: a name -> byte-span map for every
// named rule in the pattern; a rule that did not participate in the
// match has Start == -1.
type Match struct {
	Groups map[string]Span
}

// Grammar exposes the top regex (for matching) and the compiled AST of
// each named rule (for generation), per spec §4.D.
type Grammar struct {
	top      *regexp.Regexp
	topAST   *syntax.Regexp
	subexps  []string // SubexpNames(), index-aligned with topAST capture order
	ruleAST  map[string]*syntax.Regexp
	alphabet []byte
}

// fixedAlphabet is the 256-byte alphabet used to sample unconstrained
// bytes (ANY, negated classes), per spec §4.D.
func fixedAlphabet() []byte {
	alphabet := make([]byte, 256)
	for i := range alphabet {
		alphabet[i] = byte(i)
	}
	return alphabet
}

// Compile parses pattern (the top rule, with named capturing groups for
// every rule the grammar exposes) into a Grammar. Anchors and word
// boundaries are rejected, matching spec §4.D's "not supported" note.
func Compile(pattern string) (*Grammar, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.CategoryGrammar, "PARSE_FAILED", "failed to compile grammar pattern", nil, err)
	}
	ast, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.CategoryGrammar, "PARSE_FAILED", "failed to parse grammar AST", nil, err)
	}
	if err := checkSupported(ast); err != nil {
		return nil, err
	}

	g := &Grammar{
		top:      re,
		topAST:   ast,
		subexps:  re.SubexpNames(),
		ruleAST:  collectNamedSubexprs(ast),
		alphabet: fixedAlphabet(),
	}
	return g, nil
}

func checkSupported(ast *syntax.Regexp) error {
	switch ast.Op {
	case syntax.OpBeginLine, syntax.OpEndLine, syntax.OpBeginText, syntax.OpEndText, syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return ferrors.UnsupportedGrammarOp(ast.Op.String())
	}
	for _, sub := range ast.Sub {
		if err := checkSupported(sub); err != nil {
			return err
		}
	}
	return nil
}

// collectNamedSubexprs walks the AST collecting the sub-AST rooted at
// every named capture group, so Generate can walk just that subtree.
func collectNamedSubexprs(ast *syntax.Regexp) map[string]*syntax.Regexp {
	out := map[string]*syntax.Regexp{}
	var walk func(n *syntax.Regexp)
	walk = func(n *syntax.Regexp) {
		if n.Op == syntax.OpCapture && n.Name != "" {
			out[n.Name] = n.Sub[0]
		}
		for _, sub := range n.Sub {
			walk(sub)
		}
	}
	walk(ast)
	return out
}

// MatchTop matches the top regex against b and, if it matches, returns a
// Match whose Groups map every named rule present in the pattern to the
// byte span it captured (Start == -1 when that group did not
// participate in the match).
func (g *Grammar) MatchTop(b []byte) (*Match, bool) {
	locs := g.top.FindSubmatchIndex(b)
	if locs == nil {
		return nil, false
	}
	groups := make(map[string]Span, len(g.subexps))
	for i, name := range g.subexps {
		if name == "" {
			continue
		}
		start, end := locs[2*i], locs[2*i+1]
		groups[name] = Span{Start: start, End: end}
	}
	return &Match{Groups: groups}, true
}

// Generate produces a random byte string matching the sub-pattern
// associated with rule, walking its captured AST subtree using r. Taking
// the RNG explicitly (rather than seeding a fresh one internally) keeps
// a single seeded top-level *rand.Rand in control of every byte the
// mutator produces, per spec §4.F's determinism note.
func (g *Grammar) Generate(rule string, r *rand.Rand) ([]byte, error) {
	ast, ok := g.ruleAST[rule]
	if !ok {
		return nil, ferrors.New(ferrors.CategoryGrammar, "UNKNOWN_RULE", "no such grammar rule: "+rule, map[string]interface{}{"rule": rule})
	}
	return generate(ast, g.alphabet, r), nil
}

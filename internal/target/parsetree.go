// Package target holds the data model shared by every parser under test:
// its static configuration, its structured output ("parse tree"), the
// wire-format normalization spec §6 requires, and the field-wise
// comparison rules the differential detector and minimizer both use.
package target

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/kenballus/url-differential-fuzzing/internal/config"
)

// ParseTree is an immutable record of named byte fields. A nil ParseTree
// represents "absent": either the target exited nonzero, or stdout did
// not parse as the configured JSON object.
type ParseTree struct {
	Fields map[string][]byte
}

// Get returns the named field and whether it was present on this tree.
func (t *ParseTree) Get(name string) ([]byte, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.Fields[name]
	return v, ok
}

// Compare is a field comparator: true means the fields are equivalent.
type Compare func(a, b []byte) bool

// Field pairs a configured parse-tree field name with its comparator, the
// "dynamic parse-tree schema" spec §9's Design Notes call for instead of
// hard-coding URL-specific field names into the core.
type Field struct {
	Name    string
	Compare Compare
}

// Schema is the ordered, user-configured set of ParseTree fields.
type Schema []Field

// BuildSchema assembles a Schema from config, resolving each field's
// comparator from its configured FieldComparison (defaulting to exact).
func BuildSchema(cfg *config.Config) Schema {
	schema := make(Schema, 0, len(cfg.ParseTreeFields))
	for _, name := range cfg.ParseTreeFields {
		cmpName := cfg.FieldComparisons[name]
		schema = append(schema, Field{Name: name, Compare: resolveComparator(cmpName)})
	}
	return schema
}

func resolveComparator(c config.FieldComparison) Compare {
	switch c {
	case config.CompareCaseInsensitive:
		return func(a, b []byte) bool { return strings.EqualFold(string(a), string(b)) }
	case config.CompareEmptyEqualsSlash:
		return func(a, b []byte) bool {
			return canonicalizeEmptySlash(a) == canonicalizeEmptySlash(b)
		}
	case config.CompareTrailingSlashInsensitive:
		return func(a, b []byte) bool {
			return strings.TrimRight(string(a), "/") == strings.TrimRight(string(b), "/")
		}
	default:
		return bytes.Equal
	}
}

func canonicalizeEmptySlash(b []byte) string {
	s := string(b)
	if s == "" {
		return "/"
	}
	return s
}

// Compare returns the field-wise equivalence tuple between two (possibly
// absent) parse trees, per spec §4.G/§4.H: two absent trees are equal,
// a present tree never equals an absent one, and reflexivity holds for
// equal pointers.
func (s Schema) Compare(a, b *ParseTree) []bool {
	result := make([]bool, len(s))
	switch {
	case a == nil && b == nil:
		for i := range result {
			result[i] = true
		}
	case a == nil || b == nil:
		// already false for every field
	default:
		for i, f := range s {
			av, aok := a.Get(f.Name)
			bv, bok := b.Get(f.Name)
			if !aok && !bok {
				result[i] = true
			} else if aok && bok {
				result[i] = f.Compare(av, bv)
			}
		}
	}
	return result
}

// AllTrue reports whether every entry of a comparison tuple is true.
func AllTrue(cmp []bool) bool {
	for _, v := range cmp {
		if !v {
			return false
		}
	}
	return true
}

// DecodeField resolves the bytes of a field emitted with the given output
// encoding label into the UTF-8-ish byte representation the rest of the
// system works with. "UTF-8"/"ASCII" pass through unchanged; anything
// else is resolved through golang.org/x/text/encoding/htmlindex, since the
// encoding label is user-configured per target rather than fixed.
func DecodeField(label string, raw []byte) ([]byte, error) {
	switch strings.ToUpper(label) {
	case "", "UTF-8", "UTF8", "ASCII", "US-ASCII":
		return raw, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Bytes(raw)
}

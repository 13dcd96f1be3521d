// Package differ implements the differential detector (component G) and
// the Signature type shared with the minimizer (component H), so the
// "suppress parse-tree comparison whenever any status is nonzero" rule
// (spec §9's Design Notes) lives in exactly one place.
package differ

import (
	"github.com/kenballus/url-differential-fuzzing/internal/runner"
	"github.com/kenballus/url-differential-fuzzing/internal/target"
)

// Signature is the tuple a minimization step must preserve: the
// canonicalized status vector, plus the pairwise parse-tree comparison
// matrix when (and only when) it is meaningful.
type Signature struct {
	Statuses       []int
	TreeComparison [][]bool // one tuple per unordered pair, omitted when suppressed
}

// Equal reports whether two signatures match exactly.
func (s Signature) Equal(o Signature) bool {
	if len(s.Statuses) != len(o.Statuses) {
		return false
	}
	for i := range s.Statuses {
		if s.Statuses[i] != o.Statuses[i] {
			return false
		}
	}
	if len(s.TreeComparison) != len(o.TreeComparison) {
		return false
	}
	for i := range s.TreeComparison {
		if len(s.TreeComparison[i]) != len(o.TreeComparison[i]) {
			return false
		}
		for j := range s.TreeComparison[i] {
			if s.TreeComparison[i][j] != o.TreeComparison[i][j] {
				return false
			}
		}
	}
	return true
}

// ComputeSignature builds the Signature for one set of per-target
// results, per spec §4.H: parse-tree comparison is included only when
// every status is zero.
func ComputeSignature(results []runner.Result, schema target.Schema) Signature {
	statuses := make([]int, len(results))
	for i, r := range results {
		statuses[i] = r.Status
	}

	if !allZero(statuses) {
		return Signature{Statuses: statuses}
	}

	var comparisons [][]bool
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			comparisons = append(comparisons, schema.Compare(results[i].ParseTree, results[j].ParseTree))
		}
	}
	return Signature{Statuses: statuses, TreeComparison: comparisons}
}

func allZero(statuses []int) bool {
	for _, s := range statuses {
		if s != 0 {
			return false
		}
	}
	return true
}

// IsDifferential applies spec §4.G's two-tier rule: a status-set
// cardinality disagreement always counts; when all statuses are zero and
// output-differential mode is enabled, a parse-tree disagreement counts
// too.
func IsDifferential(results []runner.Result, schema target.Schema, detectOutputDifferentials bool) bool {
	statusSet := map[int]struct{}{}
	for _, r := range results {
		statusSet[r.Status] = struct{}{}
	}
	if len(statusSet) > 1 {
		return true
	}
	if !detectOutputDifferentials {
		return false
	}
	if _, zero := statusSet[0]; !zero || len(statusSet) != 1 {
		return false
	}
	return treesDisagree(results, schema)
}

func treesDisagree(results []runner.Result, schema target.Schema) bool {
	if len(results) < 2 {
		return false
	}
	first := results[0].ParseTree
	for _, r := range results[1:] {
		cmp := schema.Compare(first, r.ParseTree)
		if !target.AllTrue(cmp) {
			return true
		}
	}
	return false
}

// Package minimize implements the delta-debugging minimizer (component
// H): shrink a differential witness without changing its disagreement
// signature, trying progressively shorter deletion lengths so multi-byte
// boundaries are not corrupted before single-byte trims are attempted.
package minimize

import (
	"context"

	"github.com/kenballus/url-differential-fuzzing/internal/differ"
)

// Compute runs the target under test and returns its disagreement
// signature for candidate bytes. Implementations run untraced, since no
// fingerprint is needed for the minimizer's predicate (spec §4.H).
type Compute func(ctx context.Context, candidate []byte) differ.Signature

// Minimize reduces x to a locally minimal witness whose signature equals
// sig, using the outer-loop-over-lengths / inner-deletion algorithm from
// spec §4.H.
func Minimize(ctx context.Context, x []byte, sig differ.Signature, compute Compute, deletionLengths []int) []byte {
	result := append([]byte{}, x...)
	for _, length := range deletionLengths {
		i := len(result) - length
		for i >= 0 {
			candidate := make([]byte, 0, len(result)-length)
			candidate = append(candidate, result[:i]...)
			candidate = append(candidate, result[i+length:]...)

			if compute(ctx, candidate).Equal(sig) {
				result = candidate
				i -= length
			} else {
				i--
			}
		}
	}
	return result
}

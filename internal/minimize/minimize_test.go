package minimize_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kenballus/url-differential-fuzzing/internal/differ"
	"github.com/kenballus/url-differential-fuzzing/internal/minimize"
)

// signatureFor treats any candidate containing the marker byte 'B' as
// the "bug" signature and everything else as the "no bug" signature, so
// minimization has a well-defined, deterministic target to shrink to.
func signatureFor(candidate []byte) differ.Signature {
	if bytes.ContainsRune(candidate, 'B') {
		return differ.Signature{Statuses: []int{1}}
	}
	return differ.Signature{Statuses: []int{0}}
}

func TestMinimizeShrinksToJustTheMarker(t *testing.T) {
	compute := func(_ context.Context, candidate []byte) differ.Signature {
		return signatureFor(candidate)
	}

	x := []byte("xxxxBxxxx")
	sig := signatureFor(x)
	result := minimize.Minimize(context.Background(), x, sig, compute, []int{4, 3, 2, 1})

	assert.Equal(t, "B", string(result))
}

func TestMinimizeNoShrinkWhenAlreadyMinimal(t *testing.T) {
	compute := func(_ context.Context, candidate []byte) differ.Signature {
		return signatureFor(candidate)
	}

	x := []byte("B")
	sig := signatureFor(x)
	result := minimize.Minimize(context.Background(), x, sig, compute, []int{4, 3, 2, 1})

	assert.Equal(t, "B", string(result))
}

func TestMinimizePreservesSignatureWithMultipleMarkers(t *testing.T) {
	signatureForTwo := func(candidate []byte) differ.Signature {
		count := bytes.Count(candidate, []byte("B"))
		return differ.Signature{Statuses: []int{count}}
	}
	compute := func(_ context.Context, candidate []byte) differ.Signature {
		return signatureForTwo(candidate)
	}

	x := []byte("aBbBc")
	sig := signatureForTwo(x)
	result := minimize.Minimize(context.Background(), x, sig, compute, []int{2, 1})

	assert.Equal(t, sig, signatureForTwo(result))
	assert.LessOrEqual(t, len(result), len(x))
}

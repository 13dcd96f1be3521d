package analyze

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kenballus/url-differential-fuzzing/internal/config"
	"github.com/kenballus/url-differential-fuzzing/internal/ferrors"
	"github.com/kenballus/url-differential-fuzzing/internal/tracer"
)

// runFingerprints maps each run name to its fingerprint -> example bytes
// table, built by re-tracing that run's persisted differentials through
// a uniform tracer instrumentation (spec §4.J).
type runFingerprints map[string]map[uint64][]byte

// traceRunDifferentials re-traces every differential_* file under
// resultsDir/runID and returns a fingerprint -> bytes map for that run.
func traceRunDifferentials(ctx context.Context, trc *tracer.Adapter, cfg *config.Config, resultsDir, runID string) (map[uint64][]byte, error) {
	runDir := filepath.Join(resultsDir, runID)
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.CategoryAnalyze, "RESULTS_MISSING", "failed to read results directory", map[string]interface{}{"run": runID}, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	inputs := make([][]byte, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(runDir, name))
		if err != nil {
			return nil, ferrors.Wrap(ferrors.CategoryAnalyze, "DIFFERENTIAL_READ_FAILED", "failed to read differential file", map[string]interface{}{"file": name}, err)
		}
		inputs = append(inputs, data)
	}
	if len(inputs) == 0 {
		return map[uint64][]byte{}, nil
	}

	scratchDir := filepath.Join(cfg.ExecutionDir, "analyzer-"+runID)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratchDir)

	// A tracer crash on one target still leaves the other positions usable,
	// so a non-nil error here does not abort the re-trace.
	fingerprints, _ := trc.TraceBatch(ctx, scratchDir, inputs, cfg.Targets)

	out := make(map[uint64][]byte, len(inputs))
	for i, fp := range fingerprints {
		h := fp.Hash()
		if _, ok := out[h]; ok {
			continue // keep the first seen occurrence, per spec §8 scenario 6
		}
		out[h] = inputs[i]
	}
	return out, nil
}

// BuildOverlap re-traces every named run's differentials (in parallel)
// and returns the fingerprint table per run.
func BuildOverlap(ctx context.Context, trc *tracer.Adapter, cfg *config.Config, resultsDir string, runs map[string]string) (runFingerprints, error) {
	out := make(runFingerprints, len(runs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for name, runID := range runs {
		name, runID := name, runID
		g.Go(func() error {
			fps, err := traceRunDifferentials(gctx, trc, cfg, resultsDir, runID)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = fps
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteOverlapCSV computes, for every nonempty subset of the ordered run
// names (largest subset first per spec §9's Design Notes), the plain
// intersection of that subset's fingerprint sets, and writes (subset-
// label, count) rows to path. Per spec §4.J point 3 and §8 scenario 6,
// each row reports the full intersection count — a fingerprint shared by
// R1 and R2 counts toward both R1/R2 and the R1, R2 singleton rows, it is
// not subtracted out once a larger subset has claimed it. The per-subset
// example bytes (drawn from the first trace's first-seen occurrence of
// each fingerprint, per the same scenario) are written to examplesOut.
func WriteOverlapCSV(path string, orderedNames []string, fps runFingerprints, examplesOut io.Writer) error {
	f, err := os.Create(path)
	if err != nil {
		return ferrors.Wrap(ferrors.CategoryAnalyze, "OVERLAP_WRITE_FAILED", "failed to create overlap csv", map[string]interface{}{"path": path}, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	for _, subset := range nonEmptySubsets(orderedNames) {
		common := commonFingerprints(subset, fps)
		label := subsetLabel(subset)
		if err := w.Write([]string{label, strconv.Itoa(len(common))}); err != nil {
			return err
		}
		writeExamples(examplesOut, label, common)
	}
	return nil
}

// writeExamples prints one line per fingerprint in a subset's intersection
// to examplesOut, in a deterministic (hash-sorted) order.
func writeExamples(examplesOut io.Writer, label string, common map[uint64][]byte) {
	hashes := make([]uint64, 0, len(common))
	for h := range common {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	for _, h := range hashes {
		fmt.Fprintf(examplesOut, "%s: %q\n", label, common[h])
	}
}

func subsetLabel(subset []string) string {
	label := ""
	for i, name := range subset {
		if i > 0 {
			label += "/"
		}
		label += name
	}
	return label
}

func commonFingerprints(subset []string, fps runFingerprints) map[uint64][]byte {
	if len(subset) == 0 {
		return nil
	}
	first := fps[subset[0]]
	common := make(map[uint64][]byte, len(first))
	for h, b := range first {
		common[h] = b
	}
	for _, name := range subset[1:] {
		other := fps[name]
		for h := range common {
			if _, ok := other[h]; !ok {
				delete(common, h)
			}
		}
	}
	return common
}

// nonEmptySubsets returns every nonempty subset of names, ordered
// largest-first, preserving the input order within equal-size subsets
// (spec §9: "produce the subset label from the ordered run list").
func nonEmptySubsets(names []string) [][]string {
	n := len(names)
	var subsets [][]string
	for mask := 1; mask < (1 << n); mask++ {
		var subset []string
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				subset = append(subset, names[i])
			}
		}
		subsets = append(subsets, subset)
	}
	sort.SliceStable(subsets, func(i, j int) bool {
		return len(subsets[i]) > len(subsets[j])
	})
	return subsets
}

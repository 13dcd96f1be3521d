// Package sched implements the generational scheduler (component F): the
// supervisor that owns the input queue, partitions it into CPU-sized
// batches, drives the tracer and runner in parallel, filters novel
// inputs, detects and minimizes differentials, and repopulates the queue
// with mutated offspring.
package sched

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/kenballus/url-differential-fuzzing/internal/config"
	"github.com/kenballus/url-differential-fuzzing/internal/coverage"
	"github.com/kenballus/url-differential-fuzzing/internal/differ"
	"github.com/kenballus/url-differential-fuzzing/internal/logger"
	"github.com/kenballus/url-differential-fuzzing/internal/minimize"
	"github.com/kenballus/url-differential-fuzzing/internal/mutate"
	"github.com/kenballus/url-differential-fuzzing/internal/report"
	"github.com/kenballus/url-differential-fuzzing/internal/runner"
	"github.com/kenballus/url-differential-fuzzing/internal/target"
	"github.com/kenballus/url-differential-fuzzing/internal/tracer"
)

// evaluation is one input's observed behavior for a generation.
type evaluation struct {
	input       []byte
	fingerprint coverage.Fingerprint
	results     []runner.Result
}

// Supervisor owns the fuzzing loop's mutable state. Per spec §5, only the
// supervisor mutates seenFingerprints, minimizedFingerprints, and
// inputQueue, and only between parallel phases.
type Supervisor struct {
	cfg     *config.Config
	schema  target.Schema
	trc     *tracer.Adapter
	mutator *mutate.Mutator
	writer  *report.Writer

	inputQueue             [][]byte
	generation             int
	minimizedDifferentials [][]byte
	seenFingerprints       *coverage.NoveltySet
	minimizedFingerprints  *coverage.NoveltySet
	cumulativeEdges        []coverage.EdgeSet

	rep       *report.Report
	startTime time.Time
	rng       *rand.Rand
}

// New constructs a Supervisor ready to run, loading the initial queue
// from cfg.SeedDir.
func New(cfg *config.Config, schema target.Schema, mutator *mutate.Mutator, writer *report.Writer, seed int64) (*Supervisor, error) {
	seeds, err := loadSeeds(cfg.SeedDir)
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		cfg:                    cfg,
		schema:                 schema,
		trc:                    tracer.New(cfg),
		mutator:                mutator,
		writer:                 writer,
		inputQueue:             seeds,
		seenFingerprints:       coverage.NewNoveltySet(),
		minimizedFingerprints:  coverage.NewNoveltySet(),
		cumulativeEdges:        make([]coverage.EdgeSet, len(cfg.Targets)),
		rep:                    report.New(),
		startTime:              time.Now(),
		rng:                    rand.New(rand.NewSource(seed)),
	}, nil
}

func loadSeeds(seedDir string) ([][]byte, error) {
	entries, err := os.ReadDir(seedDir)
	if err != nil {
		return nil, fmt.Errorf("sched: reading seed dir: %w", err)
	}
	var seeds [][]byte
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(seedDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("sched: reading seed %q: %w", e.Name(), err)
		}
		seeds = append(seeds, data)
	}
	return seeds, nil
}

// RunUUID returns the run's report UUID.
func (s *Supervisor) RunUUID() string { return s.rep.UUID }

// SetWriter attaches a report.Writer once the caller has created the
// run's results/report directories using RunUUID(). A nil writer makes
// Run a dry run that never persists anything.
func (s *Supervisor) SetWriter(w *report.Writer) { s.writer = w }

// Run drives generations until the queue is empty or ctx is cancelled.
// On cancellation it stops starting new generations, persists whatever
// was minimized so far, and returns nil unless writing the report fails
// (spec §5's cancellation policy: soft-stop, exit 0, the run UUID is
// still printed by the caller).
func (s *Supervisor) Run(ctx context.Context) error {
	for len(s.inputQueue) != 0 {
		select {
		case <-ctx.Done():
			logger.Info("interrupted, writing report for run %s", s.rep.UUID)
			return s.flush()
		default:
		}

		if err := s.runGeneration(ctx); err != nil {
			logger.Error("generation %d: %v", s.generation, err)
		}
		s.generation++
	}
	return s.flush()
}

func (s *Supervisor) flush() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.WriteReport(s.rep)
}

func (s *Supervisor) runGeneration(ctx context.Context) error {
	batches := partition(s.inputQueue, runtime.NumCPU())

	evaluations := make([]evaluation, len(s.inputQueue))

	g, gctx := errgroup.WithContext(ctx)
	offset := 0
	var errMu sync.Mutex
	var allErrs *multierror.Error
	for _, batch := range batches {
		batch := batch
		start := offset
		offset += len(batch)
		if len(batch) == 0 {
			continue
		}
		g.Go(func() error {
			results, err := s.evaluateBatch(gctx, batch)
			if err != nil {
				errMu.Lock()
				allErrs = multierror.Append(allErrs, err)
				errMu.Unlock()
			}
			copy(evaluations[start:start+len(batch)], results)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var differentials [][]byte
	var mutationCandidates [][]byte
	for _, ev := range evaluations {
		if !s.seenFingerprints.CheckAndAdd(ev.fingerprint) {
			continue
		}
		s.recordCoverage(ev.fingerprint)
		if differ.IsDifferential(ev.results, s.schema, s.cfg.DetectOutputDifferentials) {
			differentials = append(differentials, ev.input)
		} else {
			mutationCandidates = append(mutationCandidates, ev.input)
		}
	}

	s.minimizeAndReport(ctx, differentials)

	s.inputQueue = nil
	for len(mutationCandidates) != 0 && len(s.inputQueue) < s.cfg.RoughDesiredQueueLen {
		for _, c := range mutationCandidates {
			s.inputQueue = append(s.inputQueue, s.mutator.Mutate(s.rng, c))
			if len(s.inputQueue) >= s.cfg.RoughDesiredQueueLen {
				break
			}
		}
	}

	s.recordCoverageSample()
	logger.Info("end of generation %d: differentials=%d candidates=%d queue=%d",
		s.generation, len(s.minimizedDifferentials), len(mutationCandidates), len(s.inputQueue))

	if allErrs != nil {
		return allErrs
	}
	return nil
}

func (s *Supervisor) evaluateBatch(ctx context.Context, batch [][]byte) ([]evaluation, error) {
	scratchDir := filepath.Join(s.cfg.ExecutionDir, uuid.NewString())
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("sched: creating scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	fingerprints, traceErr := s.trc.TraceBatch(ctx, scratchDir, batch, s.cfg.Targets)

	out := make([]evaluation, len(batch))
	for i, in := range batch {
		results := runner.Run(ctx, s.cfg, s.schema, in)
		out[i] = evaluation{input: in, fingerprint: fingerprints[i], results: results}
	}
	return out, traceErr
}

func (s *Supervisor) recordCoverage(fp coverage.Fingerprint) {
	for i, edges := range fp {
		s.cumulativeEdges[i] = coverage.Union(s.cumulativeEdges[i], edges)
	}
}

func (s *Supervisor) recordCoverageSample() {
	elapsed := time.Since(s.startTime).Seconds()
	for i, t := range s.cfg.Targets {
		s.rep.Coverage[t.Name] = append(s.rep.Coverage[t.Name], report.CoverageSample{
			Edges:      s.cumulativeEdges[i].Len(),
			Time:       elapsed,
			Generation: s.generation,
		})
	}
}

func (s *Supervisor) minimizeAndReport(ctx context.Context, differentials [][]byte) {
	for _, d := range differentials {
		sig := s.computeSignature(ctx, d)
		minimized := minimize.Minimize(ctx, d, sig, s.computeSignature, s.cfg.DeletionLengths)

		fp := s.computeFingerprint(ctx, minimized)
		if !s.minimizedFingerprints.CheckAndAdd(fp) {
			continue
		}

		s.minimizedDifferentials = append(s.minimizedDifferentials, minimized)
		k := len(s.minimizedDifferentials) - 1

		if s.writer == nil {
			continue
		}
		path, err := s.writer.WriteDifferential(s.rep.UUID, k, minimized)
		if err != nil {
			logger.Error("failed to persist differential %d: %v", k, err)
			continue
		}
		s.rep.Differentials = append(s.rep.Differentials, report.DifferentialEntry{
			Path:       path,
			Time:       time.Since(s.startTime).Seconds(),
			Generation: s.generation,
		})
	}
}

func (s *Supervisor) computeSignature(ctx context.Context, candidate []byte) differ.Signature {
	results := runner.Run(ctx, s.cfg, s.schema, candidate)
	return differ.ComputeSignature(results, s.schema)
}

func (s *Supervisor) computeFingerprint(ctx context.Context, candidate []byte) coverage.Fingerprint {
	scratchDir := filepath.Join(s.cfg.ExecutionDir, uuid.NewString())
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return make(coverage.Fingerprint, len(s.cfg.Targets))
	}
	defer os.RemoveAll(scratchDir)

	fps, err := s.trc.TraceBatch(ctx, scratchDir, [][]byte{candidate}, s.cfg.Targets)
	if err != nil {
		logger.Warn("re-trace for minimized fingerprint reported errors: %v", err)
	}
	if len(fps) == 0 {
		return make(coverage.Fingerprint, len(s.cfg.Targets))
	}
	return fps[0]
}

// partition splits queue into n roughly equal contiguous batches, per
// spec §4.F step 1.
func partition(queue [][]byte, n int) [][][]byte {
	if n < 1 {
		n = 1
	}
	batches := make([][][]byte, 0, n)
	perBatch := len(queue)/n + 1
	pos := 0
	for cpu := 0; cpu < n; cpu++ {
		end := pos + perBatch
		if end > len(queue) {
			end = len(queue)
		}
		if pos >= len(queue) {
			break
		}
		batches = append(batches, queue[pos:end])
		pos = end
	}
	return batches
}

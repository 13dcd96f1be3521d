// Package tracer adapts the external edge-coverage tool (component A):
// it writes a batch of inputs to a scratch directory, invokes the tracer
// once per target, and assembles per-input Fingerprints from the
// edge:hit-count files it produces.
package tracer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/kenballus/url-differential-fuzzing/internal/config"
	"github.com/kenballus/url-differential-fuzzing/internal/coverage"
	"github.com/kenballus/url-differential-fuzzing/internal/logger"
)

// Adapter invokes an external AFL-style showmap tool.
type Adapter struct {
	TracerExecutable string
	TimeoutMS        int
}

// New builds an Adapter from configuration.
func New(cfg *config.Config) *Adapter {
	return &Adapter{TracerExecutable: cfg.TracerExecutable, TimeoutMS: cfg.TimeoutMS}
}

// TraceBatch runs every configured (traceable) target once over the whole
// batch of inputs and returns one Fingerprint per input, in input order.
// A tracer crash on one target does not abort the batch: it is recorded
// as an empty edge set for that target, and the failure is folded into
// the returned multierror so the generation report can still mention it
// (spec §4.A, §7).
func (a *Adapter) TraceBatch(ctx context.Context, scratchDir string, inputs [][]byte, targets []config.TargetConfig) ([]coverage.Fingerprint, error) {
	inDir := filepath.Join(scratchDir, "in")
	if err := os.MkdirAll(inDir, 0o755); err != nil {
		return nil, fmt.Errorf("tracer: creating input dir: %w", err)
	}
	for i, in := range inputs {
		path := filepath.Join(inDir, strconv.Itoa(i))
		if err := os.WriteFile(path, in, 0o644); err != nil {
			return nil, fmt.Errorf("tracer: writing input %d: %w", i, err)
		}
	}

	perTargetEdges := make([][]coverage.EdgeSet, len(targets))

	var errs *multierror.Error
	for ti, t := range targets {
		edges := make([]coverage.EdgeSet, len(inputs))
		if !t.NeedsTracing {
			perTargetEdges[ti] = edges
			continue
		}
		outDir := filepath.Join(scratchDir, "out", strconv.Itoa(ti))
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("target %s: creating output dir: %w", t.Name, err))
			perTargetEdges[ti] = edges
			continue
		}

		if err := a.runOnce(ctx, t, inDir, outDir); err != nil {
			logger.Error("tracer crashed for target %s: %v", t.Name, err)
			errs = multierror.Append(errs, fmt.Errorf("target %s: %w", t.Name, err))
			// Missing output files below will yield empty sets, which is
			// the defined failure semantics for a missing trace file.
		}

		for i := range inputs {
			outPath := filepath.Join(outDir, strconv.Itoa(i))
			edges[i] = readEdgeSet(outPath)
		}
		perTargetEdges[ti] = edges
	}

	fingerprints := make([]coverage.Fingerprint, len(inputs))
	for i := range inputs {
		fp := make(coverage.Fingerprint, len(targets))
		for ti := range targets {
			fp[ti] = perTargetEdges[ti][i]
		}
		fingerprints[i] = fp
	}

	if errs != nil {
		return fingerprints, errs
	}
	return fingerprints, nil
}

func (a *Adapter) runOnce(ctx context.Context, t config.TargetConfig, inDir, outDir string) error {
	args := []string{}
	if t.NeedsQEMU {
		args = append(args, "-Q")
	}
	args = append(args, "-i", inDir, "-o", outDir, "-e", "-t", strconv.Itoa(a.TimeoutMS), "--")
	if t.NeedsInterpreterTracer {
		args = append(args, "python3")
	}
	args = append(args, t.Executable)
	args = append(args, t.CliArgs...)

	cmd := exec.CommandContext(ctx, a.TracerExecutable, args...)
	cmd.Env = envSlice(t.Env)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return os.Environ()
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// readEdgeSet reads an edge_id:hit_count file into an EdgeSet. A missing
// file yields the empty set (spec §4.A's defined failure semantics for
// empty inputs and tracer crashes alike).
func readEdgeSet(path string) coverage.EdgeSet {
	f, err := os.Open(path)
	if err != nil {
		return coverage.NewEdgeSet(nil)
	}
	defer f.Close()

	var ids []uint32
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := bytes.IndexByte([]byte(line), ':')
		if idx < 0 {
			continue
		}
		edgeStr := line[:idx]
		edge, err := strconv.ParseUint(edgeStr, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(edge))
	}
	return coverage.NewEdgeSet(ids)
}

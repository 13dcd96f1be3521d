// Command urlfuzz-analyze runs a queue of prior urlfuzz invocations
// (optionally across different commits/configs) and produces bug-count
// plots, edge-count plots, and/or a fingerprint overlap report across
// the resulting runs.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kenballus/url-differential-fuzzing/internal/analyze"
	"github.com/kenballus/url-differential-fuzzing/internal/cliutil"
	"github.com/kenballus/url-differential-fuzzing/internal/config"
	"github.com/kenballus/url-differential-fuzzing/internal/ferrors"
	"github.com/kenballus/url-differential-fuzzing/internal/logger"
	"github.com/kenballus/url-differential-fuzzing/internal/report"
	"github.com/kenballus/url-differential-fuzzing/internal/tracer"
)

func main() {
	var bugCount, edgeCount, bugOverlap, showVersion, jsonVersion bool
	var configPath, repoDir, fuzzerBin string

	cmd := &cobra.Command{
		Use:   "urlfuzz-analyze <name> <queue_file>",
		Short: "Run a queue of fuzzer invocations and analyze the resulting runs.",
		Long: `urlfuzz-analyze reads a CSV queue file (name,commit,timeout_seconds[,config_file]
per row), runs urlfuzz once per row, and produces the requested analysis
artifacts under analyses/<name>-<uuid>/: bug_graph.png, edges_<target>.png
per target, and/or overlap.csv.

At least one of --bug-count, --edge-count, --bug-overlap is required.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				cliutil.PrintVersion("urlfuzz-analyze", jsonVersion)
				return nil
			}
			if len(args) != 2 {
				return ferrors.New(ferrors.CategoryAnalyze, "ARGS_REQUIRED", "expected exactly <name> <queue_file>", nil)
			}
			if !bugCount && !edgeCount && !bugOverlap {
				return ferrors.New(ferrors.CategoryAnalyze, "NO_ANALYSIS_REQUESTED",
					"at least one of --bug-count, --edge-count, --bug-overlap is required", nil)
			}
			return run(args[0], args[1], configPath, repoDir, fuzzerBin, bugCount, edgeCount, bugOverlap)
		},
	}
	cmd.SilenceUsage = true

	cmd.Flags().BoolVar(&bugCount, "bug-count", false, "plot cumulative differential count over time")
	cmd.Flags().BoolVar(&edgeCount, "edge-count", false, "plot cumulative edge coverage per target over time")
	cmd.Flags().BoolVar(&bugOverlap, "bug-overlap", false, "write a fingerprint-overlap CSV across runs")
	cmd.Flags().StringVar(&configPath, "config", "", "config file describing targets/fields for re-tracing differentials")
	cmd.Flags().StringVar(&repoDir, "repo", ".", "working tree to check out each row's commit in")
	cmd.Flags().StringVar(&fuzzerBin, "fuzzer", "urlfuzz", "path to the urlfuzz binary to invoke per row")
	cmd.Flags().BoolVar(&showVersion, "version", false, "print version information and exit")
	cmd.Flags().BoolVar(&jsonVersion, "json", false, "with --version, print as JSON")

	if err := cmd.Execute(); err != nil {
		cliutil.ExitWithError("%v", err)
	}
}

func run(name, queueFile, configPath, repoDir, fuzzerBin string, bugCount, edgeCount, bugOverlap bool) error {
	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return err
	}

	rows, err := analyze.LoadQueue(queueFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	results, err := analyze.RunAll(ctx, repoDir, fuzzerBin, rows)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return ferrors.New(ferrors.CategoryAnalyze, "NO_RUNS_COMPLETED", "every queued invocation failed", nil)
	}

	analysisID := name + "-" + uuid.NewString()
	outDir := filepath.Join(cfg.AnalysesDir, analysisID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return ferrors.Wrap(ferrors.CategoryAnalyze, "OUTPUT_DIR_FAILED", "failed to create analysis output dir", map[string]interface{}{"dir": outDir}, err)
	}

	reader := report.NewReader(cfg.ReportsDir)
	var runs []analyze.RunReport
	runIDs := map[string]string{}
	for _, res := range results {
		rep, err := reader.Read(res.RunID)
		if err != nil {
			logger.Error("skipping run %q (%s): %v", res.Row.Name, res.RunID, err)
			continue
		}
		runs = append(runs, analyze.RunReport{Name: res.Row.Name, Report: rep})
		runIDs[res.Row.Name] = res.RunID
	}
	if len(runs) == 0 {
		return ferrors.New(ferrors.CategoryAnalyze, "NO_REPORTS_LOADED", "no run reports could be loaded", nil)
	}

	if bugCount {
		path := filepath.Join(outDir, "bug_graph.png")
		if err := analyze.PlotBugCounts(path, runs); err != nil {
			return err
		}
		fmt.Println(path)
	}

	if edgeCount {
		for _, t := range cfg.Targets {
			path := filepath.Join(outDir, "edges_"+t.Name+".png")
			if err := analyze.PlotEdgeCounts(path, t.Name, runs); err != nil {
				return err
			}
			fmt.Println(path)
		}
	}

	if bugOverlap {
		trc := tracer.New(cfg)
		fps, err := analyze.BuildOverlap(ctx, trc, cfg, cfg.ResultsDir, runIDs)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(runs))
		for _, r := range runs {
			names = append(names, r.Name)
		}
		path := filepath.Join(outDir, "overlap.csv")
		if err := analyze.WriteOverlapCSV(path, names, fps, os.Stderr); err != nil {
			return err
		}
		fmt.Println(path)
	}

	fmt.Println(analysisID)
	return nil
}

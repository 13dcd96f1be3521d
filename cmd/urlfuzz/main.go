// Command urlfuzz runs the coverage-guided differential fuzzer: it loads
// ./urlfuzz.yaml (or URLFUZZ_* environment overrides), seeds a
// generational scheduler, and runs generations until the seed queue is
// exhausted or it is interrupted.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kenballus/url-differential-fuzzing/internal/cliutil"
	"github.com/kenballus/url-differential-fuzzing/internal/config"
	"github.com/kenballus/url-differential-fuzzing/internal/grammar"
	"github.com/kenballus/url-differential-fuzzing/internal/logger"
	"github.com/kenballus/url-differential-fuzzing/internal/mutate"
	"github.com/kenballus/url-differential-fuzzing/internal/report"
	"github.com/kenballus/url-differential-fuzzing/internal/sched"
	"github.com/kenballus/url-differential-fuzzing/internal/target"
)

// defaultConfigPath is read when present; its absence just means every
// Config field falls back to internal/config.Defaults() and env vars.
const defaultConfigPath = "./urlfuzz.yaml"

func main() {
	var showVersion, jsonVersion bool

	cmd := &cobra.Command{
		Use:   "urlfuzz",
		Short: "Coverage-guided differential fuzzer for URL parsers.",
		Long: `urlfuzz runs a generational, coverage-guided differential fuzzer
across a configured set of URL parser targets, detecting disagreements in
exit status or structured parse output, minimizing any it finds, and
persisting the run under a fresh UUID.

Interrupting the run (SIGINT) stops new generations and flushes whatever
was minimized so far before exiting 0. Configuration is read from
./urlfuzz.yaml if present, with URLFUZZ_* environment overrides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				cliutil.PrintVersion("urlfuzz", jsonVersion)
				return nil
			}
			return run()
		},
	}
	cmd.SilenceUsage = true
	cmd.Flags().BoolVar(&showVersion, "version", false, "print version information and exit")
	cmd.Flags().BoolVar(&jsonVersion, "json", false, "with --version, print as JSON")

	if err := cmd.Execute(); err != nil {
		cliutil.ExitWithError("%v", err)
	}
}

func run() error {
	configPath := ""
	if _, err := os.Stat(defaultConfigPath); err == nil {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath, nil)
	if err != nil {
		return err
	}

	schema := target.BuildSchema(cfg)

	var mutatorGrammar mutate.Grammar
	if cfg.UseGrammarMutations && cfg.GrammarFile != "" {
		g, err := loadGrammar(cfg.GrammarFile)
		if err != nil {
			return err
		}
		mutatorGrammar = g
	}
	mutator := &mutate.Mutator{Grammar: mutatorGrammar}

	seed := int64(os.Getpid())*31 + int64(len(cfg.Targets))

	supervisor, err := sched.New(cfg, schema, mutator, nil, seed)
	if err != nil {
		return err
	}

	writer, err := report.NewWriter(cfg.ResultsDir, cfg.ReportsDir, supervisor.RunUUID())
	if err != nil {
		return err
	}
	supervisor.SetWriter(writer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := supervisor.Run(ctx); err != nil {
		logger.Error("run %s ended with errors: %v", supervisor.RunUUID(), err)
	}

	fmt.Println(supervisor.RunUUID())
	return nil
}

func loadGrammar(path string) (*grammarAdapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := grammar.Compile(string(data))
	if err != nil {
		return nil, err
	}
	return &grammarAdapter{g: g}, nil
}

// grammarAdapter narrows *grammar.Grammar to the mutate.Grammar interface.
type grammarAdapter struct {
	g *grammar.Grammar
}

func (a *grammarAdapter) MatchTop(b []byte) (*grammar.Match, bool) { return a.g.MatchTop(b) }

func (a *grammarAdapter) Generate(rule string, r *rand.Rand) ([]byte, error) {
	return a.g.Generate(rule, r)
}

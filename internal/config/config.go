// Package config loads and validates the fuzzer's configuration surface
// (spec field names from the original Python config.py, mapped onto
// Go-idiomatic structures) through viper so the same file, environment
// variables, and CLI flags can all feed it.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kenballus/url-differential-fuzzing/internal/ferrors"
)

// TargetConfig is one parser under test.
type TargetConfig struct {
	Name                   string            `mapstructure:"name"`
	Executable             string            `mapstructure:"executable"`
	CliArgs                []string          `mapstructure:"cli_args"`
	NeedsTracing           bool              `mapstructure:"needs_tracing"`
	NeedsQEMU              bool              `mapstructure:"needs_qemu"`
	NeedsInterpreterTracer bool              `mapstructure:"needs_interpreter_tracer"`
	Env                    map[string]string `mapstructure:"env"`
	OutputEncoding         string            `mapstructure:"output_encoding"`
}

// FieldComparison names one of the built-in per-field comparators. This
// supplements the original's opaque compare_parse_trees predicate with a
// small closed set that a compiled binary can select from config, instead
// of loading arbitrary user code.
type FieldComparison string

const (
	CompareExact                     FieldComparison = "exact"
	CompareCaseInsensitive           FieldComparison = "case_insensitive"
	CompareEmptyEqualsSlash          FieldComparison = "empty_equals_slash"
	CompareTrailingSlashInsensitive  FieldComparison = "trailing_slash_insensitive"
)

// Config is the full, validated configuration surface from spec §6.
type Config struct {
	SeedDir      string `mapstructure:"seed_dir"`
	ResultsDir   string `mapstructure:"results_dir"`
	ExecutionDir string `mapstructure:"execution_dir"`
	ReportsDir   string `mapstructure:"reports_dir"`
	AnalysesDir  string `mapstructure:"analyses_dir"`

	TimeoutMS                       int   `mapstructure:"timeout_ms"`
	DetectOutputDifferentials       bool  `mapstructure:"detect_output_differentials"`
	UseGrammarMutations              bool  `mapstructure:"use_grammar_mutations"`
	DifferentiateNonzeroExitStatuses bool  `mapstructure:"differentiate_nonzero_exit_statuses"`
	RoughDesiredQueueLen             int   `mapstructure:"rough_desired_queue_len"`
	DeletionLengths                  []int `mapstructure:"deletion_lengths"`

	Targets []TargetConfig `mapstructure:"targets"`

	ParseTreeFields  []string                   `mapstructure:"parse_tree_fields"`
	FieldComparisons map[string]FieldComparison `mapstructure:"field_comparisons"`

	GrammarFile    string `mapstructure:"grammar_file"`
	GrammarTopRule string `mapstructure:"grammar_top_rule"`

	TracerExecutable string `mapstructure:"tracer_executable"`
}

// Defaults mirrors the defaults from the original config.py, translated
// into this system's units and names.
func Defaults() Config {
	return Config{
		SeedDir:                          "./seeds",
		ResultsDir:                       "./results",
		ExecutionDir:                     "./execution",
		ReportsDir:                       "./reports",
		AnalysesDir:                      "./analyses",
		TimeoutMS:                        100000,
		DetectOutputDifferentials:        true,
		UseGrammarMutations:              false,
		DifferentiateNonzeroExitStatuses: false,
		RoughDesiredQueueLen:             100,
		DeletionLengths:                  []int{4, 3, 2, 1},
		ParseTreeFields:                  []string{"scheme", "host", "path", "port", "query", "userinfo", "fragment"},
		FieldComparisons:                 map[string]FieldComparison{},
		TracerExecutable:                 "afl-showmap",
	}
}

// Load reads configuration from an optional file path, environment
// variables prefixed URLFUZZ_, and any flags already registered on fs,
// then validates the result.
func Load(configPath string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	def := Defaults()
	v.SetDefault("seed_dir", def.SeedDir)
	v.SetDefault("results_dir", def.ResultsDir)
	v.SetDefault("execution_dir", def.ExecutionDir)
	v.SetDefault("reports_dir", def.ReportsDir)
	v.SetDefault("analyses_dir", def.AnalysesDir)
	v.SetDefault("timeout_ms", def.TimeoutMS)
	v.SetDefault("detect_output_differentials", def.DetectOutputDifferentials)
	v.SetDefault("use_grammar_mutations", def.UseGrammarMutations)
	v.SetDefault("differentiate_nonzero_exit_statuses", def.DifferentiateNonzeroExitStatuses)
	v.SetDefault("rough_desired_queue_len", def.RoughDesiredQueueLen)
	v.SetDefault("deletion_lengths", def.DeletionLengths)
	v.SetDefault("parse_tree_fields", def.ParseTreeFields)
	v.SetDefault("tracer_executable", def.TracerExecutable)

	v.SetEnvPrefix("URLFUZZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, ferrors.InvalidConfig("failed to bind flags", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, ferrors.InvalidConfig(fmt.Sprintf("failed to read config file %q", configPath), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ferrors.InvalidConfig("failed to unmarshal configuration", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the fatal-at-startup conditions from spec §7.
func Validate(cfg *Config) error {
	if cfg.SeedDir == "" {
		return ferrors.InvalidConfig("seed_dir must be set", nil)
	}
	info, err := os.Stat(cfg.SeedDir)
	if err != nil || !info.IsDir() {
		return ferrors.MissingSeedDir(cfg.SeedDir)
	}
	if len(cfg.Targets) == 0 {
		return ferrors.NoTargets()
	}
	if len(cfg.ParseTreeFields) == 0 {
		return ferrors.InvalidConfig("parse_tree_fields must be non-empty", nil)
	}
	if len(cfg.DeletionLengths) == 0 {
		return ferrors.InvalidConfig("deletion_lengths must be non-empty", nil)
	}
	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		if t.Executable == "" {
			return ferrors.InvalidConfig(fmt.Sprintf("target %d is missing an executable", i), nil)
		}
		if t.OutputEncoding == "" {
			t.OutputEncoding = "UTF-8"
		}
		if t.Name == "" {
			t.Name = t.Executable
		}
	}
	return nil
}

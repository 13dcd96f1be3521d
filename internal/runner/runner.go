// Package runner implements the untraced target runner (component B):
// one subprocess per target per input, stdin from the input bytes,
// stdout captured only when differential-output mode is on, exit status
// canonicalized per config.
package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kenballus/url-differential-fuzzing/internal/config"
	"github.com/kenballus/url-differential-fuzzing/internal/target"
)

// Result is one target's observed behavior on one input.
type Result struct {
	Status    int
	ParseTree *target.ParseTree
}

// Run spawns one subprocess per target, feeding input on stdin, and
// returns one Result per target in target order. Each subprocess gets a
// timeout equal to the tracer's per-process timeout, since spec §5
// requires a timeout on the untraced path too even though the OS default
// alone would otherwise apply. A target that forks children is killed by
// its whole process group so no descendant survives the timeout.
func Run(ctx context.Context, cfg *config.Config, schema target.Schema, input []byte) []Result {
	results := make([]Result, len(cfg.Targets))
	for i, t := range cfg.Targets {
		results[i] = runOne(ctx, cfg, t, schema, input)
	}
	return results
}

func runOne(ctx context.Context, cfg *config.Config, t config.TargetConfig, schema target.Schema, input []byte) Result {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{}, t.CliArgs...)
	argv0 := t.Executable
	if t.NeedsInterpreterTracer {
		args = append([]string{t.Executable}, t.CliArgs...)
		argv0 = "python3"
	}

	cmd := exec.CommandContext(runCtx, argv0, args...)
	cmd.Env = envSlice(t.Env)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// On timeout, kill the whole group at once: a descendant still holding
	// the stdout pipe would otherwise keep Wait from returning.
	cmd.Cancel = func() error { return unix.Kill(-cmd.Process.Pid, unix.SIGKILL) }

	var stdout bytes.Buffer
	if cfg.DetectOutputDifferentials {
		cmd.Stdout = &stdout
	} else {
		cmd.Stdout = io.Discard
	}

	err := cmd.Start()
	if err != nil {
		return Result{Status: nonzeroStatus(cfg), ParseTree: nil}
	}

	waitErr := cmd.Wait()
	if runCtx.Err() == context.DeadlineExceeded && cmd.Process != nil {
		killGroup(cmd.Process.Pid)
	}

	status := exitStatus(waitErr)
	status = canonicalize(cfg, status)

	if status != 0 || !cfg.DetectOutputDifferentials {
		return Result{Status: status, ParseTree: nil}
	}

	pt, ok := target.ParseStdout(stdout.Bytes(), t.OutputEncoding, schema)
	if !ok {
		return Result{Status: status, ParseTree: nil}
	}
	return Result{Status: status, ParseTree: pt}
}

func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func canonicalize(cfg *config.Config, status int) int {
	if cfg.DifferentiateNonzeroExitStatuses {
		return status
	}
	if status != 0 {
		return 1
	}
	return 0
}

func nonzeroStatus(cfg *config.Config) int {
	return canonicalize(cfg, 1)
}

func killGroup(pid int) {
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		pgid = pid
	}
	_ = unix.Kill(-pgid, unix.SIGKILL)
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

// Package process runs external programs to completion and captures their output.
package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// waitDelay bounds how long Wait lingers on inherited pipes after the process is killed.
const waitDelay = 2 * time.Second

// Runner executes invocations.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// ExecRunner runs invocations as real child processes.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	return Run(ctx, inv)
}

// Run executes inv and blocks until the program exits or its timeout elapses.
// A non-zero exit is a normal Result; only a failure to start returns an *ExecutionError.
func Run(ctx context.Context, inv Invocation) (Result, error) {
	if inv.Executable == "" {
		return Result{}, &ExecutionError{Path: inv.Executable, Err: errors.New("empty executable")}
	}
	if inv.Dir != "" {
		info, err := os.Stat(inv.Dir)
		if err != nil {
			return Result{}, &ExecutionError{Path: inv.Executable, Err: err}
		}
		if !info.IsDir() {
			return Result{}, &ExecutionError{Path: inv.Executable, Err: errors.New(inv.Dir + " is not a directory")}
		}
	}

	runCtx := ctx
	cancel := func() {}
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, inv.Executable, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = mergeEnv(os.Environ(), inv.Env)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	result := Result{
		RunID:    uuid.New().String(),
		Stdout:   decode(stdout.Bytes()),
		Stderr:   decode(stderr.Bytes()),
		Duration: elapsed,
	}

	if timedOut(ctx, runCtx, inv.Timeout, runErr) {
		result.TimedOut = true
		result.ExitCode = TimeoutExitCode
		return result, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return Result{}, &ExecutionError{Path: inv.Executable, Err: runErr}
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}

// timedOut reports whether the run was cut short by its own deadline. A process
// that exits cleanly as the deadline passes still counts as finished, and a
// canceled parent context is not a timeout.
func timedOut(parent, runCtx context.Context, timeout time.Duration, runErr error) bool {
	if runErr == nil || timeout <= 0 || parent.Err() != nil {
		return false
	}
	return errors.Is(runCtx.Err(), context.DeadlineExceeded)
}

// mergeEnv appends overrides after the inherited entries in a stable order.
// exec keeps the last value for duplicate keys, so overrides win.
func mergeEnv(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	env = append(env, base...)

	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, key+"="+overrides[key])
	}
	return env
}

// decode converts captured bytes to text, replacing invalid UTF-8 with U+FFFD.
func decode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return string(bytes.ToValidUTF8(b, []byte("\uFFFD")))
	}
	return string(out)
}

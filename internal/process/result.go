package process

import (
	"fmt"
	"time"
)

// TimeoutExitCode is reported as the exit code of a process killed for exceeding its timeout.
const TimeoutExitCode = -1

// Invocation describes a single program execution.
type Invocation struct {
	Executable string
	Args       []string
	// Env is merged over the inherited environment; entries here win.
	Env map[string]string
	Dir string
	// Timeout bounds the run. Zero means unbounded.
	Timeout time.Duration
}

// Result holds the captured outcome of an invocation.
type Result struct {
	RunID    string
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// ExecutionError reports that a program could not be started at all.
type ExecutionError struct {
	Path string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s: %v", e.Path, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Success(t *testing.T) {
	res, err := Run(context.Background(), Invocation{Executable: "echo", Args: []string{"hello"}})
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.NotEmpty(t, res.RunID)
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	res, err := Run(context.Background(), Invocation{
		Executable: "sh",
		Args:       []string{"-c", "exit 3"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)
}

func TestRun_CapturesStderrExactly(t *testing.T) {
	res, err := Run(context.Background(), Invocation{
		Executable: "sh",
		Args:       []string{"-c", "printf 'tf validate: bad block\\nline two' >&2; exit 1"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "tf validate: bad block\nline two", res.Stderr)
	assert.Empty(t, res.Stdout)
}

func TestRun_InvalidUTF8IsReplaced(t *testing.T) {
	res, err := Run(context.Background(), Invocation{
		Executable: "sh",
		Args:       []string{"-c", "printf 'ok\\377\\376done' >&2"},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Stderr, "ok"))
	assert.True(t, strings.HasSuffix(res.Stderr, "done"))
	assert.Contains(t, res.Stderr, "�")
}

func TestRun_TimeoutKillsProcess(t *testing.T) {
	start := time.Now()
	res, err := Run(context.Background(), Invocation{
		Executable: "sleep",
		Args:       []string{"5"},
		Timeout:    100 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.True(t, res.TimedOut)
	assert.Equal(t, TimeoutExitCode, res.ExitCode)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRun_FastProcessDoesNotTimeOut(t *testing.T) {
	res, err := Run(context.Background(), Invocation{
		Executable: "true",
		Timeout:    5 * time.Second,
	})
	require.NoError(t, err)

	assert.False(t, res.TimedOut)
	assert.Equal(t, 0, res.ExitCode)
}

func TestTimedOut_CleanExitAtDeadline(t *testing.T) {
	parent := context.Background()
	expired, cancel := context.WithTimeout(parent, time.Nanosecond)
	defer cancel()
	<-expired.Done()

	killed := errors.New("signal: killed")

	assert.False(t, timedOut(parent, expired, time.Nanosecond, nil), "clean exit after the deadline is not a timeout")
	assert.True(t, timedOut(parent, expired, time.Nanosecond, killed))
	assert.False(t, timedOut(parent, expired, 0, killed), "no timeout configured")
	assert.False(t, timedOut(parent, parent, time.Second, killed), "deadline not reached")

	canceled, stop := context.WithCancel(parent)
	stop()
	assert.False(t, timedOut(canceled, expired, time.Nanosecond, killed), "parent cancellation is not a timeout")
}

func TestRun_EnvOverrideWins(t *testing.T) {
	t.Setenv("PS_PROCESS_TEST", "inherited")
	t.Setenv("PS_PROCESS_KEEP", "kept")

	res, err := Run(context.Background(), Invocation{
		Executable: "sh",
		Args:       []string{"-c", "printf '%s %s' \"$PS_PROCESS_TEST\" \"$PS_PROCESS_KEEP\""},
		Env:        map[string]string{"PS_PROCESS_TEST": "override"},
	})
	require.NoError(t, err)

	assert.Equal(t, "override kept", res.Stdout)
}

func TestRun_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.tf"), []byte("# empty"), 0o600))

	res, err := Run(context.Background(), Invocation{Executable: "ls", Dir: dir})
	require.NoError(t, err)

	assert.Contains(t, res.Stdout, "main.tf")
}

func TestRun_MissingExecutable(t *testing.T) {
	_, err := Run(context.Background(), Invocation{Executable: "nonexistent-binary-xyz-123"})
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "nonexistent-binary-xyz-123", execErr.Path)
	assert.Contains(t, err.Error(), "nonexistent-binary-xyz-123")
}

func TestRun_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores execute permission bits")
	}
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o600))

	_, err := Run(context.Background(), Invocation{Executable: path})

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.True(t, errors.Is(err, os.ErrPermission))
}

func TestRun_MissingWorkingDirectory(t *testing.T) {
	_, err := Run(context.Background(), Invocation{
		Executable: "true",
		Dir:        filepath.Join(t.TempDir(), "terraform"),
	})

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
}

func TestMergeEnv_OverridesAppendedSorted(t *testing.T) {
	env := mergeEnv([]string{"A=1"}, map[string]string{"C": "3", "B": "2"})

	assert.Equal(t, []string{"A=1", "B=2", "C=3"}, env)
}

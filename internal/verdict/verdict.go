// Package verdict turns captured probe results into pass, fail, or skip outcomes.
package verdict

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nholik/probe-sentinel/internal/probe"
	"github.com/nholik/probe-sentinel/internal/process"
)

// Excerpt lengths used in failure messages.
const (
	StderrExcerpt = 400
	BodyExcerpt   = 200
)

// Status is the outcome of evaluating a check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// Verdict is a status plus a human-readable, bounded diagnostic.
type Verdict struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Passed reports whether the verdict is a pass.
func (v Verdict) Passed() bool { return v.Status == StatusPass }

// Skipped reports whether the verdict is neutral.
func (v Verdict) Skipped() bool { return v.Status == StatusSkip }

// Failed reports whether the verdict is a failure.
func (v Verdict) Failed() bool { return v.Status == StatusFail }

func Pass(message string) Verdict {
	return Verdict{Status: StatusPass, Message: message}
}

func Fail(format string, args ...any) Verdict {
	return Verdict{Status: StatusFail, Message: fmt.Sprintf(format, args...)}
}

func Skip(reason string) Verdict {
	return Verdict{Status: StatusSkip, Message: reason}
}

// ExecutionFailed reports a program that could not be started. It is always a failure.
func ExecutionFailed(label string, err error) Verdict {
	var execErr *process.ExecutionError
	if errors.As(err, &execErr) {
		return Fail("%s could not start %s: %v", label, execErr.Path, execErr.Err)
	}
	return Fail("%s could not start: %v", label, err)
}

// ExitExpectation describes the acceptable outcomes of a process step.
type ExitExpectation struct {
	Label string
	// Accept lists allowed exit codes. Empty means only 0.
	Accept []int
	// Excerpt bounds the stderr excerpt. Zero uses StderrExcerpt.
	Excerpt int
}

// ExitCode passes iff the process finished in time with an accepted exit code.
func ExitCode(res process.Result, exp ExitExpectation) Verdict {
	label := exp.Label
	if label == "" {
		label = "command"
	}
	excerpt := exp.Excerpt
	if excerpt <= 0 {
		excerpt = StderrExcerpt
	}
	accept := exp.Accept
	if len(accept) == 0 {
		accept = []int{0}
	}

	if res.TimedOut {
		return Fail("%s timed out after %s:\n%s", label, res.Duration.Round(time.Millisecond), Truncate(res.Stderr, excerpt))
	}
	if !slices.Contains(accept, res.ExitCode) {
		return Fail("%s failed: exit code %d (accepted %s):\n%s", label, res.ExitCode, formatCodes(accept), Truncate(res.Stderr, excerpt))
	}
	return Pass(fmt.Sprintf("%s exited %d", label, res.ExitCode))
}

// StatusCode passes iff a response arrived with the expected status.
// A transport failure is a failure, never a skip.
func StatusCode(res probe.Result, expected int) Verdict {
	if !res.Received() {
		reason := res.TransportError
		if reason == "" {
			reason = "no response"
		}
		return Fail("request failed: %s", Truncate(reason, BodyExcerpt))
	}
	if res.StatusCode != expected {
		return Fail("status %d: %s", res.StatusCode, Truncate(res.RawBody, BodyExcerpt))
	}
	return Pass(fmt.Sprintf("status %d", res.StatusCode))
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func formatCodes(codes []int) string {
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = strconv.Itoa(code)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

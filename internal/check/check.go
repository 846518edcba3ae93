// Package check runs environment-gated probes and converts their results into verdicts.
package check

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nholik/probe-sentinel/internal/gate"
	"github.com/nholik/probe-sentinel/internal/probe"
	"github.com/nholik/probe-sentinel/internal/process"
	"github.com/nholik/probe-sentinel/internal/verdict"
)

var gatedRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Check is a single independent verification.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// Result is the outcome of running one check.
type Result struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Verdict     verdict.Verdict `json:"verdict"`
	StartedAt   time.Time       `json:"started_at"`
	Duration    time.Duration   `json:"duration"`
}

// Prober sends HTTP probes.
type Prober interface {
	Do(ctx context.Context, req probe.Request) probe.Result
}

// Options carries the collaborators a check uses.
type Options struct {
	Logger zerolog.Logger
	// Lookup reads gate variables. Nil reads the process environment.
	Lookup    gate.LookupFunc
	Processes process.Runner
	Prober    Prober
	// Root anchors relative file paths and step directories.
	Root string
	// CommandTimeout applies to steps without their own timeout. Zero is unbounded.
	CommandTimeout time.Duration
}

type definitionCheck struct {
	def  Definition
	opts Options
}

// New builds a Check from a definition.
func New(def Definition, opts Options) Check {
	if opts.Processes == nil {
		opts.Processes = process.ExecRunner{}
	}
	if opts.Prober == nil {
		opts.Prober = probe.NewClient(opts.Logger)
	}
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}
	return &definitionCheck{def: def, opts: opts}
}

// Build constructs checks for all enabled definitions, preserving order.
func Build(defs []Definition, opts Options) []Check {
	checks := make([]Check, 0, len(defs))
	for _, def := range defs {
		if def.Disabled {
			continue
		}
		checks = append(checks, New(def, opts))
	}
	return checks
}

func (c *definitionCheck) Name() string {
	return c.def.Name
}

func (c *definitionCheck) Run(ctx context.Context) Result {
	start := time.Now()
	v := c.evaluate(ctx)
	result := Result{
		Name:        c.def.Name,
		Description: c.def.Description,
		Verdict:     v,
		StartedAt:   start.UTC(),
		Duration:    time.Since(start),
	}

	event := c.opts.Logger.Info()
	if v.Failed() {
		event = c.opts.Logger.Warn()
	}
	event.
		Str("check", c.def.Name).
		Str("status", string(v.Status)).
		Dur("duration", result.Duration).
		Str("message", verdict.Truncate(v.Message, verdict.BodyExcerpt)).
		Msg("check finished")

	return result
}

func (c *definitionCheck) evaluate(ctx context.Context) verdict.Verdict {
	g := gate.ProbeWith(c.opts.Lookup, c.def.RequiredEnv()...)
	if !g.Run() {
		return verdict.Skip(g.Reason)
	}

	var passed []string

	for _, file := range c.def.Files {
		info, err := os.Stat(c.resolve(file))
		if err != nil || info.IsDir() {
			return verdict.Fail("%s missing", file)
		}
		passed = append(passed, file+" present")
	}

	for _, step := range c.def.Steps {
		v := c.runStep(ctx, g, step)
		if !v.Passed() {
			return v
		}
		passed = append(passed, v.Message)
	}

	if c.def.HTTP != nil {
		v := c.runHTTP(ctx, g, *c.def.HTTP)
		if !v.Passed() {
			return v
		}
		passed = append(passed, v.Message)
	}

	return verdict.Pass(strings.Join(passed, "; "))
}

func (c *definitionCheck) runStep(ctx context.Context, g gate.Gate, step StepSpec) verdict.Verdict {
	timeout := step.Timeout
	if timeout == 0 {
		timeout = c.opts.CommandTimeout
	}

	env := make(map[string]string, len(step.Env))
	for key, value := range step.Env {
		env[key] = expandGated(value, g)
	}

	inv := process.Invocation{
		Executable: step.Executable,
		Args:       step.Args,
		Env:        env,
		Dir:        c.resolve(step.Dir),
		Timeout:    timeout,
	}

	c.opts.Logger.Debug().
		Str("check", c.def.Name).
		Str("step", step.label()).
		Str("executable", inv.Executable).
		Strs("args", inv.Args).
		Str("dir", inv.Dir).
		Msg("running step")

	res, err := c.opts.Processes.Run(ctx, inv)
	if err != nil {
		return verdict.ExecutionFailed(step.label(), err)
	}

	c.opts.Logger.Debug().
		Str("check", c.def.Name).
		Str("step", step.label()).
		Str("run_id", res.RunID).
		Int("exit_code", res.ExitCode).
		Bool("timed_out", res.TimedOut).
		Dur("duration", res.Duration).
		Msg("step finished")

	return verdict.ExitCode(res, verdict.ExitExpectation{
		Label:   step.label(),
		Accept:  step.AcceptExitCodes,
		Excerpt: step.Excerpt,
	})
}

func (c *definitionCheck) runHTTP(ctx context.Context, g gate.Gate, spec HTTPSpec) verdict.Verdict {
	url := spec.URL
	if spec.URLEnv != "" {
		url = strings.TrimRight(g.Value(spec.URLEnv), "/") + spec.Path
	}

	headers := make(map[string]string, len(spec.Headers))
	for key, value := range spec.Headers {
		headers[key] = expandGated(value, g)
	}

	res := c.opts.Prober.Do(ctx, probe.Request{
		Method:  spec.Method,
		URL:     url,
		Body:    spec.Body,
		Header:  headers,
		Timeout: spec.Timeout,
	})

	expected := spec.ExpectStatus
	if expected == 0 {
		expected = http.StatusOK
	}
	v := verdict.StatusCode(res, expected)
	if !v.Passed() {
		return v
	}

	for _, field := range spec.RequireFields {
		fv := verdict.FieldPresent(res, field)
		if !fv.Passed() {
			return fv
		}
	}

	if len(spec.RequireFields) > 0 {
		return verdict.Pass(fmt.Sprintf("%s; %d field(s) present", v.Message, len(spec.RequireFields)))
	}
	return v
}

func (c *definitionCheck) resolve(path string) string {
	if path == "" {
		return c.opts.Root
	}
	if filepath.IsAbs(path) || c.opts.Root == "" {
		return path
	}
	return filepath.Join(c.opts.Root, path)
}

// expandGated substitutes ${NAME} for variables resolved by the gate. Other
// references and bare $ characters are passed through unchanged.
func expandGated(value string, g gate.Gate) string {
	if !strings.Contains(value, "${") {
		return value
	}
	return gatedRef.ReplaceAllStringFunc(value, func(ref string) string {
		if resolved, ok := g.Resolved[ref[2:len(ref)-1]]; ok {
			return resolved
		}
		return ref
	})
}

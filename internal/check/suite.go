package check

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nholik/probe-sentinel/internal/verdict"
)

// Suite runs checks one after another.
type Suite struct {
	logger zerolog.Logger
	checks []Check
}

// NewSuite returns a suite running checks in the given order.
func NewSuite(logger zerolog.Logger, checks ...Check) *Suite {
	return &Suite{logger: logger, checks: checks}
}

// Checks returns the checks in run order.
func (s *Suite) Checks() []Check {
	return append([]Check(nil), s.checks...)
}

// Select returns a suite restricted to the named checks. Unknown names are an error.
func (s *Suite) Select(names ...string) (*Suite, error) {
	if len(names) == 0 {
		return s, nil
	}
	byName := make(map[string]Check, len(s.checks))
	for _, c := range s.checks {
		byName[c.Name()] = c
	}

	selected := make([]Check, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		c, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown check %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		selected = append(selected, c)
	}
	return &Suite{logger: s.logger, checks: selected}, nil
}

// Run executes every check sequentially. Checks left unrun because ctx ended are failures.
func (s *Suite) Run(ctx context.Context) Report {
	report := Report{StartedAt: time.Now().UTC()}
	start := time.Now()

	for _, c := range s.checks {
		var result Result
		if err := ctx.Err(); err != nil {
			result = Result{
				Name:      c.Name(),
				Verdict:   verdict.Fail("not run: %v", err),
				StartedAt: time.Now().UTC(),
			}
		} else {
			result = c.Run(ctx)
		}
		report.add(result)
	}

	report.Duration = time.Since(start)
	s.logger.Info().
		Int("passed", report.Passed).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("duration", report.Duration).
		Msg("suite finished")

	return report
}

// Report aggregates the results of a suite run.
type Report struct {
	Results   []Result      `json:"results"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

func (r *Report) add(result Result) {
	r.Results = append(r.Results, result)
	switch result.Verdict.Status {
	case verdict.StatusPass:
		r.Passed++
	case verdict.StatusSkip:
		r.Skipped++
	default:
		r.Failed++
	}
}

// OK reports whether no check failed.
func (r Report) OK() bool {
	return r.Failed == 0
}

// ExitCode is 0 when no check failed and 1 otherwise.
func (r Report) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}

// Summary returns a human-readable summary of the results.
func (r Report) Summary() string {
	if len(r.Results) == 0 {
		return "No checks run"
	}
	if r.Failed == 0 && r.Passed > 0 {
		if r.Skipped > 0 {
			return fmt.Sprintf("All %d checks passed, %d skipped", r.Passed, r.Skipped)
		}
		return fmt.Sprintf("All %d checks passed", r.Passed)
	}
	parts := []string{}
	if r.Passed > 0 {
		parts = append(parts, fmt.Sprintf("%d passed", r.Passed))
	}
	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}
	if r.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", r.Skipped))
	}
	return strings.Join(parts, ", ")
}

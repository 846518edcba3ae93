package state

import (
	"context"
	"time"

	"github.com/nholik/probe-sentinel/internal/verdict"
)

// CheckRecord is the last reported verdict for a single check.
type CheckRecord struct {
	Name    string         `json:"name"`
	Status  verdict.Status `json:"status"`
	Message string         `json:"message,omitempty"`
}

// SuiteSnapshot captures the persisted verdicts for a suite.
type SuiteSnapshot struct {
	Fingerprint string                 `json:"fingerprint"`
	Checks      map[string]CheckRecord `json:"checks"`
	EvaluatedAt time.Time              `json:"evaluated_at"`
}

// State stores snapshots for all suites.
type State struct {
	Suites map[string]SuiteSnapshot `json:"suites"`
}

// Store defines the interface for persisting state.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

package transition

import (
	"sort"

	"github.com/nholik/probe-sentinel/internal/check"
	"github.com/nholik/probe-sentinel/internal/state"
	"github.com/nholik/probe-sentinel/internal/verdict"
)

// CheckTransition captures a verdict status change for one check.
type CheckTransition struct {
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	PreviousStatus verdict.Status `json:"previous_status"`
	CurrentStatus  verdict.Status `json:"current_status"`
	Message        string         `json:"message,omitempty"`
}

// Recovered reports whether the check moved back to passing.
func (t CheckTransition) Recovered() bool {
	return t.CurrentStatus == verdict.StatusPass && t.PreviousStatus == verdict.StatusFail
}

// Detect compares a previous snapshot with the current report and emits transitions.
// On the first run only failing checks are reported.
func Detect(prev *state.SuiteSnapshot, report check.Report) []CheckTransition {
	prevChecks := map[string]state.CheckRecord{}
	if prev != nil && prev.Checks != nil {
		prevChecks = prev.Checks
	}
	firstRun := len(prevChecks) == 0

	transitions := make([]CheckTransition, 0)
	for _, result := range report.Results {
		current := result.Verdict.Status
		prevRecord, hadPrev := prevChecks[result.Name]
		prevStatus := prevRecord.Status

		switch {
		case firstRun || !hadPrev:
			if current != verdict.StatusFail {
				continue
			}
		case prevStatus == current:
			continue
		}

		transitions = append(transitions, CheckTransition{
			Name:           result.Name,
			Description:    result.Description,
			PreviousStatus: prevStatus,
			CurrentStatus:  current,
			Message:        result.Verdict.Message,
		})
	}

	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].Name < transitions[j].Name
	})

	return transitions
}

// Snapshot converts a report into the persisted form. Checks whose transition
// could not be delivered keep their previous record, or are left out when they
// had none, so the transition is detected again on the next cycle.
func Snapshot(fingerprint string, report check.Report, undelivered []CheckTransition, prev *state.SuiteSnapshot) state.SuiteSnapshot {
	pending := make(map[string]bool, len(undelivered))
	for _, t := range undelivered {
		pending[t.Name] = true
	}

	snapshot := state.SuiteSnapshot{
		Fingerprint: fingerprint,
		Checks:      make(map[string]state.CheckRecord, len(report.Results)),
		EvaluatedAt: report.StartedAt.Add(report.Duration),
	}
	for _, result := range report.Results {
		if pending[result.Name] {
			if prev != nil {
				if old, ok := prev.Checks[result.Name]; ok {
					snapshot.Checks[result.Name] = old
				}
			}
			continue
		}
		snapshot.Checks[result.Name] = state.CheckRecord{
			Name:    result.Name,
			Status:  result.Verdict.Status,
			Message: result.Verdict.Message,
		}
	}
	return snapshot
}

package transition

import (
	"testing"
	"time"

	"github.com/nholik/probe-sentinel/internal/check"
	"github.com/nholik/probe-sentinel/internal/state"
	"github.com/nholik/probe-sentinel/internal/verdict"
)

func result(name string, v verdict.Verdict) check.Result {
	return check.Result{Name: name, Verdict: v}
}

func TestDetect_FirstRun(t *testing.T) {
	report := check.Report{
		Results: []check.Result{
			result("terraform-plan", verdict.Pass("plan ok")),
			result("inference-endpoint", verdict.Fail("status 503: overloaded")),
			result("train-script", verdict.Skip("HF_TOKEN not set")),
		},
	}

	transitions := Detect(nil, report)

	if len(transitions) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(transitions))
	}
	if transitions[0].Name != "inference-endpoint" {
		t.Fatalf("expected transition for inference-endpoint, got %s", transitions[0].Name)
	}
	if transitions[0].CurrentStatus != verdict.StatusFail {
		t.Fatalf("expected fail status, got %s", transitions[0].CurrentStatus)
	}
	if transitions[0].PreviousStatus != "" {
		t.Fatalf("expected empty previous status, got %s", transitions[0].PreviousStatus)
	}
	if transitions[0].Message != "status 503: overloaded" {
		t.Fatalf("unexpected message: %s", transitions[0].Message)
	}
}

func TestDetect_NoOp(t *testing.T) {
	prev := &state.SuiteSnapshot{
		Checks: map[string]state.CheckRecord{
			"deploy-script": {Name: "deploy-script", Status: verdict.StatusFail},
		},
	}
	report := check.Report{
		Results: []check.Result{result("deploy-script", verdict.Fail("scripts/deploy_model.sh missing"))},
	}

	transitions := Detect(prev, report)
	if len(transitions) != 0 {
		t.Fatalf("expected no transitions, got %d", len(transitions))
	}
}

func TestDetect_Mixed(t *testing.T) {
	prev := &state.SuiteSnapshot{
		Checks: map[string]state.CheckRecord{
			"inference-endpoint": {Name: "inference-endpoint", Status: verdict.StatusPass},
			"terraform-plan":     {Name: "terraform-plan", Status: verdict.StatusFail},
			"deploy-script":      {Name: "deploy-script", Status: verdict.StatusPass},
			"train-script":       {Name: "train-script", Status: verdict.StatusPass},
		},
	}
	report := check.Report{
		Results: []check.Result{
			result("inference-endpoint", verdict.Fail("request failed: connection refused")),
			result("terraform-plan", verdict.Pass("terraform plan exited 0")),
			result("deploy-script", verdict.Pass("scripts/deploy_model.sh present")),
			result("train-script", verdict.Skip("HF_TOKEN not set")),
			result("vllm-import", verdict.Fail("vLLM not installed")),
			result("new-passing", verdict.Pass("ok")),
		},
	}

	transitions := Detect(prev, report)
	if len(transitions) != 4 {
		t.Fatalf("expected 4 transitions, got %d: %+v", len(transitions), transitions)
	}

	names := []string{"inference-endpoint", "terraform-plan", "train-script", "vllm-import"}
	for i, name := range names {
		if transitions[i].Name != name {
			t.Fatalf("expected sorted transition %d to be %s, got %s", i, name, transitions[i].Name)
		}
	}

	found := map[string]CheckTransition{}
	for _, change := range transitions {
		found[change.Name] = change
	}

	endpoint := found["inference-endpoint"]
	if endpoint.PreviousStatus != verdict.StatusPass || endpoint.CurrentStatus != verdict.StatusFail {
		t.Fatalf("unexpected endpoint transition: %+v", endpoint)
	}

	tf := found["terraform-plan"]
	if !tf.Recovered() {
		t.Fatalf("expected terraform-plan to be a recovery: %+v", tf)
	}

	train := found["train-script"]
	if train.CurrentStatus != verdict.StatusSkip {
		t.Fatalf("unexpected train transition: %+v", train)
	}

	vllm := found["vllm-import"]
	if vllm.PreviousStatus != "" || vllm.CurrentStatus != verdict.StatusFail {
		t.Fatalf("unexpected vllm transition: %+v", vllm)
	}
}

func TestSnapshot_KeepsUndeliveredTransitionsPending(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	prev := &state.SuiteSnapshot{
		Checks: map[string]state.CheckRecord{
			"terraform-plan": {Name: "terraform-plan", Status: verdict.StatusPass, Message: "terraform plan exited 0"},
		},
	}
	report := check.Report{
		StartedAt: started,
		Duration:  3 * time.Second,
		Results: []check.Result{
			result("inference-endpoint", verdict.Fail("status 503: overloaded")),
			result("terraform-plan", verdict.Fail("terraform plan failed: exit code 1")),
			result("deploy-script", verdict.Pass("present")),
		},
	}
	undelivered := Detect(prev, report)

	snapshot := Snapshot("fp", report, undelivered, prev)

	if snapshot.Fingerprint != "fp" {
		t.Fatalf("unexpected fingerprint: %s", snapshot.Fingerprint)
	}
	if !snapshot.EvaluatedAt.Equal(started.Add(3 * time.Second)) {
		t.Fatalf("unexpected evaluated time: %s", snapshot.EvaluatedAt)
	}
	if _, ok := snapshot.Checks["inference-endpoint"]; ok {
		t.Fatalf("expected new undelivered check to be left out")
	}
	if got := snapshot.Checks["terraform-plan"].Status; got != verdict.StatusPass {
		t.Fatalf("expected previous record to be kept, got %s", got)
	}
	if got := snapshot.Checks["deploy-script"].Status; got != verdict.StatusPass {
		t.Fatalf("expected deploy-script to be recorded, got %s", got)
	}

	again := Detect(&snapshot, report)
	if len(again) != 2 {
		t.Fatalf("expected both transitions to be detected again, got %+v", again)
	}
}

func TestSnapshot_RecordsDeliveredVerdicts(t *testing.T) {
	report := check.Report{
		Results: []check.Result{
			result("inference-endpoint", verdict.Fail("status 503: overloaded")),
		},
	}

	snapshot := Snapshot("fp", report, nil, nil)

	record := snapshot.Checks["inference-endpoint"]
	if record.Status != verdict.StatusFail || record.Message != "status 503: overloaded" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if again := Detect(&snapshot, report); len(again) != 0 {
		t.Fatalf("expected no transitions after delivery, got %+v", again)
	}
}

//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nholik/probe-sentinel/internal/check"
	"github.com/nholik/probe-sentinel/internal/logging"
	"github.com/nholik/probe-sentinel/internal/verdict"
)

// TestIntegrationBuiltinSuite runs the built-in suite against the real environment.
//
// Prerequisites (each one only un-skips its own check):
//   - VLLM_ENDPOINT_URL pointing at a running model server
//   - terraform on PATH and a terraform/ directory under TEST_PROJECT_ROOT
//   - scripts/deploy_model.sh and scripts/train_model.sh under TEST_PROJECT_ROOT
//
// Run with: go test -tags=integration -v ./test/integration/...
func TestIntegrationBuiltinSuite(t *testing.T) {
	root := getEnv("TEST_PROJECT_ROOT", "../..")
	logger := logging.NewWithLevel(getEnv("TEST_LOG_LEVEL", "info"))

	defs := check.Builtin(check.BuiltinOptions{
		TerraformBin: getEnv("TEST_TERRAFORM_BIN", "terraform"),
		PythonBin:    getEnv("TEST_PYTHON_BIN", "python3"),
	})
	suite := check.NewSuite(logger, check.Build(defs, check.Options{
		Logger:         logger,
		Root:           root,
		CommandTimeout: 10 * time.Minute,
	})...)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	report := suite.Run(ctx)
	if len(report.Results) != len(defs) {
		t.Fatalf("expected %d results, got %d", len(defs), len(report.Results))
	}

	for _, result := range report.Results {
		result := result
		t.Run(result.Name, func(t *testing.T) {
			switch result.Verdict.Status {
			case verdict.StatusSkip:
				t.Skip(result.Verdict.Message)
			case verdict.StatusFail:
				t.Fatal(result.Verdict.Message)
			default:
				t.Logf("%s (%s)", result.Verdict.Message, result.Duration)
			}
		})
	}
}

// TestIntegrationEndpointUnreachable points the endpoint check at a closed port
// and expects a failure rather than a skip or a hang.
func TestIntegrationEndpointUnreachable(t *testing.T) {
	logger := logging.NewWithLevel("warn")
	defs := check.Builtin(check.BuiltinOptions{HTTPTimeout: 2 * time.Second})

	var endpoint check.Definition
	for _, def := range defs {
		if def.Name == "inference-endpoint" {
			endpoint = def
		}
	}

	c := check.New(endpoint, check.Options{
		Logger: logger,
		Lookup: func(name string) (string, bool) {
			if name == check.EndpointEnv {
				return "http://127.0.0.1:1", true
			}
			return "", false
		},
	})

	result := c.Run(context.Background())
	if result.Verdict.Status != verdict.StatusFail {
		t.Fatalf("expected fail, got %s: %s", result.Verdict.Status, result.Verdict.Message)
	}
	if result.Duration > 5*time.Second {
		t.Fatalf("expected the probe to give up within its timeout, took %s", result.Duration)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

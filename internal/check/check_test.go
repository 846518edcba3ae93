package check

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nholik/probe-sentinel/internal/gate"
	"github.com/nholik/probe-sentinel/internal/probe"
	"github.com/nholik/probe-sentinel/internal/process"
	"github.com/nholik/probe-sentinel/internal/verdict"
)

// scriptedRunner returns canned results keyed by the first argument.
type scriptedRunner struct {
	results map[string]process.Result
	errs    map[string]error
	calls   []process.Invocation
}

func (r *scriptedRunner) Run(_ context.Context, inv process.Invocation) (process.Result, error) {
	r.calls = append(r.calls, inv)
	key := inv.Executable
	if len(inv.Args) > 0 {
		key = inv.Args[0]
	}
	if err, ok := r.errs[key]; ok {
		return process.Result{}, err
	}
	return r.results[key], nil
}

type countingProber struct {
	calls  int32
	result probe.Result
}

func (p *countingProber) Do(context.Context, probe.Request) probe.Result {
	atomic.AddInt32(&p.calls, 1)
	return p.result
}

func builtinByName(t *testing.T, name string) Definition {
	t.Helper()
	for _, def := range Builtin(BuiltinOptions{}) {
		if def.Name == name {
			return def
		}
	}
	t.Fatalf("builtin %q not found", name)
	return Definition{}
}

func TestInferenceCheck_SkipsWithoutEndpoint(t *testing.T) {
	prober := &countingProber{}
	c := New(builtinByName(t, "inference-endpoint"), Options{
		Logger: zerolog.Nop(),
		Lookup: gate.MapLookup(map[string]string{}),
		Prober: prober,
	})

	res := c.Run(context.Background())

	assert.Equal(t, verdict.StatusSkip, res.Verdict.Status)
	assert.Contains(t, res.Verdict.Message, EndpointEnv)
	assert.Equal(t, int32(0), atomic.LoadInt32(&prober.calls), "skipped check must not issue a request")
}

func TestInferenceCheck_PassesAgainstLiveServer(t *testing.T) {
	var gotPath string
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"pong"}}]}`))
	}))
	defer server.Close()

	c := New(builtinByName(t, "inference-endpoint"), Options{
		Logger: zerolog.Nop(),
		Lookup: gate.MapLookup(map[string]string{EndpointEnv: server.URL + "/"}),
	})

	res := c.Run(context.Background())

	assert.True(t, res.Verdict.Passed(), res.Verdict.Message)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Contains(t, gotBody, `"model":"test-model"`)
	assert.Contains(t, gotBody, `"max_tokens":8`)
	assert.Contains(t, gotBody, `"content":"ping"`)
}

func TestInferenceCheck_EmptyCompletionFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
	}))
	defer server.Close()

	c := New(builtinByName(t, "inference-endpoint"), Options{
		Logger: zerolog.Nop(),
		Lookup: gate.MapLookup(map[string]string{EndpointEnv: server.URL}),
	})

	res := c.Run(context.Background())

	assert.True(t, res.Verdict.Failed())
	assert.Contains(t, res.Verdict.Message, "choices[0].message.content")
}

func TestInferenceCheck_WrongStatusFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"model test-model not found"}`))
	}))
	defer server.Close()

	c := New(builtinByName(t, "inference-endpoint"), Options{
		Logger: zerolog.Nop(),
		Lookup: gate.MapLookup(map[string]string{EndpointEnv: server.URL}),
	})

	res := c.Run(context.Background())

	assert.True(t, res.Verdict.Failed())
	assert.Contains(t, res.Verdict.Message, "status 404")
	assert.Contains(t, res.Verdict.Message, "not found")
}

func TestInferenceCheck_TransportErrorFails(t *testing.T) {
	c := New(builtinByName(t, "inference-endpoint"), Options{
		Logger: zerolog.Nop(),
		Lookup: gate.MapLookup(map[string]string{EndpointEnv: "http://unreachable.invalid"}),
		Prober: &countingProber{result: probe.Result{TransportError: "dial tcp: lookup unreachable.invalid: no such host"}},
	})

	res := c.Run(context.Background())

	assert.True(t, res.Verdict.Failed())
	assert.Contains(t, res.Verdict.Message, "no such host")
}

func TestTerraformCheck_AllStepsPass(t *testing.T) {
	runner := &scriptedRunner{results: map[string]process.Result{
		"init":     {ExitCode: 0},
		"validate": {ExitCode: 0},
		"plan":     {ExitCode: 0},
	}}
	root := t.TempDir()

	c := New(builtinByName(t, "terraform-plan"), Options{
		Logger:    zerolog.Nop(),
		Processes: runner,
		Root:      root,
	})

	res := c.Run(context.Background())

	require.True(t, res.Verdict.Passed(), res.Verdict.Message)
	require.Len(t, runner.calls, 3)
	assert.Equal(t, []string{"plan", "-input=false", "-refresh=false", "-no-color", "-lock=false"}, runner.calls[2].Args)
	for _, call := range runner.calls {
		assert.Equal(t, "terraform", call.Executable)
		assert.Equal(t, filepath.Join(root, "terraform"), call.Dir)
	}
}

func TestTerraformCheck_ValidateFailureStopsSequence(t *testing.T) {
	runner := &scriptedRunner{results: map[string]process.Result{
		"init":     {ExitCode: 0},
		"validate": {ExitCode: 1, Stderr: "Error: Missing required argument \"region\""},
		"plan":     {ExitCode: 0},
	}}

	c := New(builtinByName(t, "terraform-plan"), Options{
		Logger:    zerolog.Nop(),
		Processes: runner,
	})

	res := c.Run(context.Background())

	assert.True(t, res.Verdict.Failed())
	assert.Contains(t, res.Verdict.Message, "tf validate failed")
	assert.Contains(t, res.Verdict.Message, `Missing required argument "region"`)
	assert.Len(t, runner.calls, 2, "plan must not run after validate fails")
}

func TestTerraformCheck_MissingBinaryIsHardFailure(t *testing.T) {
	runner := &scriptedRunner{errs: map[string]error{
		"init": &process.ExecutionError{Path: "terraform", Err: exec.ErrNotFound},
	}}

	c := New(builtinByName(t, "terraform-plan"), Options{
		Logger:    zerolog.Nop(),
		Processes: runner,
	})

	res := c.Run(context.Background())

	assert.True(t, res.Verdict.Failed())
	assert.Contains(t, res.Verdict.Message, "terraform")
	assert.Contains(t, res.Verdict.Message, "could not start")
}

func TestTerraformCheck_TimeoutReported(t *testing.T) {
	runner := &scriptedRunner{results: map[string]process.Result{
		"init": {ExitCode: process.TimeoutExitCode, TimedOut: true, Duration: time.Minute},
	}}

	c := New(builtinByName(t, "terraform-plan"), Options{
		Logger:         zerolog.Nop(),
		Processes:      runner,
		CommandTimeout: time.Minute,
	})

	res := c.Run(context.Background())

	assert.True(t, res.Verdict.Failed())
	assert.Contains(t, res.Verdict.Message, "timed out")
	require.Len(t, runner.calls, 1)
	assert.Equal(t, time.Minute, runner.calls[0].Timeout)
}

func TestTrainCheck_AcceptsGracefulExit(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "scripts/train_model.sh", "#!/bin/bash\nexit 1\n")

	runner := &scriptedRunner{results: map[string]process.Result{
		"scripts/train_model.sh": {ExitCode: 1, Stderr: "CUDA not available"},
	}}

	c := New(builtinByName(t, "train-script"), Options{
		Logger:    zerolog.Nop(),
		Processes: runner,
		Root:      root,
	})

	res := c.Run(context.Background())

	require.True(t, res.Verdict.Passed(), res.Verdict.Message)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "bash", runner.calls[0].Executable)
	assert.Equal(t, map[string]string{"DRY_RUN": "1", "HF_MODEL_PATH": "/tmp", "DATASET_PATH": "/tmp"}, runner.calls[0].Env)
}

func TestTrainCheck_RejectsOtherExitCodes(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "scripts/train_model.sh", "#!/bin/bash\nexit 2\n")

	runner := &scriptedRunner{results: map[string]process.Result{
		"scripts/train_model.sh": {ExitCode: 2, Stderr: strings.Repeat("x", 300)},
	}}

	c := New(builtinByName(t, "train-script"), Options{
		Logger:    zerolog.Nop(),
		Processes: runner,
		Root:      root,
	})

	res := c.Run(context.Background())

	assert.True(t, res.Verdict.Failed())
	assert.Contains(t, res.Verdict.Message, strings.Repeat("x", 200))
	assert.NotContains(t, res.Verdict.Message, strings.Repeat("x", 201))
}

func TestTrainCheck_RealScriptDryRun(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	root := t.TempDir()
	writeScript(t, root, "scripts/train_model.sh",
		"#!/bin/bash\nif [ \"$DRY_RUN\" = \"1\" ]; then echo \"dry run with $HF_MODEL_PATH\"; exit 0; fi\nexit 3\n")

	c := New(builtinByName(t, "train-script"), Options{Logger: zerolog.Nop(), Root: root})

	res := c.Run(context.Background())

	assert.True(t, res.Verdict.Passed(), res.Verdict.Message)
}

func TestFileCheck_MissingScriptFails(t *testing.T) {
	c := New(builtinByName(t, "deploy-script"), Options{Logger: zerolog.Nop(), Root: t.TempDir()})

	res := c.Run(context.Background())

	assert.True(t, res.Verdict.Failed())
	assert.Contains(t, res.Verdict.Message, "deploy_model.sh missing")
}

func TestFileCheck_PresentScriptPasses(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "scripts/deploy_model.sh", "#!/bin/bash\n")

	c := New(builtinByName(t, "deploy-script"), Options{Logger: zerolog.Nop(), Root: root})

	res := c.Run(context.Background())

	assert.True(t, res.Verdict.Passed(), res.Verdict.Message)
	assert.Equal(t, "deploy-script", res.Name)
}

func TestStepEnvExpandsGatedVariables(t *testing.T) {
	runner := &scriptedRunner{results: map[string]process.Result{}}
	def := Definition{
		Name:       "model-path",
		RequireEnv: []string{"HF_MODEL_PATH"},
		Steps: []StepSpec{{
			Executable: "ls",
			Env:        map[string]string{"MODEL": "${HF_MODEL_PATH}/weights"},
		}},
	}

	c := New(def, Options{
		Logger:    zerolog.Nop(),
		Lookup:    gate.MapLookup(map[string]string{"HF_MODEL_PATH": "/models/llama"}),
		Processes: runner,
	})

	res := c.Run(context.Background())

	require.True(t, res.Verdict.Passed(), res.Verdict.Message)
	assert.Equal(t, "/models/llama/weights", runner.calls[0].Env["MODEL"])
}

func TestStepEnvKeepsLiteralDollarsAndUndeclaredReferences(t *testing.T) {
	runner := &scriptedRunner{results: map[string]process.Result{}}
	def := Definition{
		Name:       "db-migrate",
		RequireEnv: []string{"HF_MODEL_PATH"},
		Steps: []StepSpec{{
			Executable: "migrate",
			Env: map[string]string{
				"PASS":       "pa$$word",
				"PRICE":      "$5",
				"BARE":       "$HF_MODEL_PATH",
				"UNDECLARED": "${HOME}/x",
				"MIXED":      "${HF_MODEL_PATH}:$$",
			},
		}},
	}

	c := New(def, Options{
		Logger:    zerolog.Nop(),
		Lookup:    gate.MapLookup(map[string]string{"HF_MODEL_PATH": "/models", "HOME": "/root"}),
		Processes: runner,
	})

	res := c.Run(context.Background())

	require.True(t, res.Verdict.Passed(), res.Verdict.Message)
	assert.Equal(t, map[string]string{
		"PASS":       "pa$$word",
		"PRICE":      "$5",
		"BARE":       "$HF_MODEL_PATH",
		"UNDECLARED": "${HOME}/x",
		"MIXED":      "/models:$$",
	}, runner.calls[0].Env)
}

func TestHTTPHeadersKeepUndeclaredReferences(t *testing.T) {
	var gotAuth, gotTrace string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTrace = r.Header.Get("X-Trace")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	def := Definition{
		Name:       "models-endpoint",
		RequireEnv: []string{"VLLM_API_KEY"},
		HTTP: &HTTPSpec{
			URL:    server.URL,
			Method: http.MethodGet,
			Headers: map[string]string{
				"Authorization": "Bearer ${VLLM_API_KEY}",
				"X-Trace":       "${TRACE_ID}-$1",
			},
		},
	}

	c := New(def, Options{
		Logger: zerolog.Nop(),
		Lookup: gate.MapLookup(map[string]string{"VLLM_API_KEY": "s3cr$t", "TRACE_ID": "abc"}),
	})

	res := c.Run(context.Background())

	require.True(t, res.Verdict.Passed(), res.Verdict.Message)
	assert.Equal(t, "Bearer s3cr$t", gotAuth)
	assert.Equal(t, "${TRACE_ID}-$1", gotTrace)
}

func TestStepSkippedGateRunsNothing(t *testing.T) {
	runner := &scriptedRunner{}
	def := Definition{
		Name:       "gpu-train",
		RequireEnv: []string{"CUDA_VISIBLE_DEVICES"},
		Steps:      []StepSpec{{Executable: "nvidia-smi"}},
	}

	c := New(def, Options{
		Logger:    zerolog.Nop(),
		Lookup:    gate.MapLookup(nil),
		Processes: runner,
	})

	res := c.Run(context.Background())

	assert.True(t, res.Verdict.Skipped())
	assert.Empty(t, runner.calls)
}

func TestBuild_DropsDisabled(t *testing.T) {
	defs := []Definition{
		{Name: "a", Files: []string{"x"}},
		{Name: "b", Disabled: true},
	}

	checks := Build(defs, Options{Logger: zerolog.Nop()})

	require.Len(t, checks, 1)
	assert.Equal(t, "a", checks[0].Name())
}

func writeScript(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
}

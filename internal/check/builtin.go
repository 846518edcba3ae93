package check

import "time"

// EndpointEnv gates the live inference check.
const EndpointEnv = "VLLM_ENDPOINT_URL"

const vllmImportScript = `import importlib.util, sys
if importlib.util.find_spec("vllm") is None:
    sys.exit("vLLM not installed")
`

// BuiltinOptions tunes the built-in suite.
type BuiltinOptions struct {
	TerraformBin string
	PythonBin    string
	HTTPTimeout  time.Duration
}

// Builtin returns the default suite: the live inference endpoint, the terraform
// plan, and the deployment and training scripts.
func Builtin(opts BuiltinOptions) []Definition {
	terraform := opts.TerraformBin
	if terraform == "" {
		terraform = "terraform"
	}
	python := opts.PythonBin
	if python == "" {
		python = "python3"
	}

	return []Definition{
		{
			Name:        "inference-endpoint",
			Description: "live chat completion against the model server",
			HTTP: &HTTPSpec{
				URLEnv: EndpointEnv,
				Path:   "/v1/chat/completions",
				Body: map[string]any{
					"model": "test-model",
					"messages": []map[string]string{
						{"role": "user", "content": "ping"},
					},
					"max_tokens":  8,
					"temperature": 0.0,
				},
				ExpectStatus:  200,
				RequireFields: []string{"choices[0].message.content"},
				Timeout:       opts.HTTPTimeout,
			},
		},
		{
			Name:        "terraform-plan",
			Description: "terraform configuration initializes, validates and plans",
			Steps: []StepSpec{
				{
					Name:       "tf init",
					Executable: terraform,
					Args:       []string{"init", "-input=false", "-no-color"},
					Dir:        "terraform",
				},
				{
					Name:       "tf validate",
					Executable: terraform,
					Args:       []string{"validate", "-no-color"},
					Dir:        "terraform",
				},
				{
					Name:       "tf plan",
					Executable: terraform,
					Args:       []string{"plan", "-input=false", "-refresh=false", "-no-color", "-lock=false"},
					Dir:        "terraform",
				},
			},
		},
		{
			Name:        "deploy-script",
			Description: "model deployment script is present",
			Files:       []string{"scripts/deploy_model.sh"},
		},
		{
			Name:        "vllm-import",
			Description: "vLLM is importable by the python interpreter",
			Steps: []StepSpec{
				{
					Name:       "import vllm",
					Executable: python,
					Args:       []string{"-c", vllmImportScript},
				},
			},
		},
		{
			Name:        "train-script",
			Description: "training wrapper exits gracefully in dry-run mode",
			Files:       []string{"scripts/train_model.sh"},
			Steps: []StepSpec{
				{
					Name:       "train dry-run",
					Executable: "bash",
					Args:       []string{"scripts/train_model.sh"},
					Env: map[string]string{
						"DRY_RUN":       "1",
						"HF_MODEL_PATH": "/tmp",
						"DATASET_PATH":  "/tmp",
					},
					AcceptExitCodes: []int{0, 1},
					Excerpt:         200,
				},
			},
		},
	}
}

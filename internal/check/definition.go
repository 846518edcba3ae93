package check

import "time"

// Definition declares a check. Evaluation runs the environment gate first, then
// file existence, then command steps in order, then the HTTP probe. The first
// failure ends the check.
type Definition struct {
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Disabled    bool       `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	RequireEnv  []string   `yaml:"require_env,omitempty" json:"require_env,omitempty"`
	Files       []string   `yaml:"files,omitempty" json:"files,omitempty"`
	Steps       []StepSpec `yaml:"steps,omitempty" json:"steps,omitempty"`
	HTTP        *HTTPSpec  `yaml:"http,omitempty" json:"http,omitempty"`
}

// StepSpec is one external program invocation within a check.
type StepSpec struct {
	Name       string   `yaml:"name,omitempty" json:"name,omitempty"`
	Executable string   `yaml:"executable" json:"executable"`
	Args       []string `yaml:"args,omitempty" json:"args,omitempty"`
	// Dir is relative to the project root unless absolute.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`
	// Env values may reference gated variables as ${NAME}.
	Env             map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	AcceptExitCodes []int             `yaml:"accept_exit_codes,omitempty" json:"accept_exit_codes,omitempty"`
	Excerpt         int               `yaml:"excerpt,omitempty" json:"excerpt,omitempty"`
	Timeout         time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// HTTPSpec is a single HTTP probe within a check.
type HTTPSpec struct {
	// URL is used as-is. When URLEnv is set, the gated variable's value
	// (trailing slashes trimmed) followed by Path is used instead.
	URL    string `yaml:"url,omitempty" json:"url,omitempty"`
	URLEnv string `yaml:"url_env,omitempty" json:"url_env,omitempty"`
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
	Method string `yaml:"method,omitempty" json:"method,omitempty"`
	Body   any    `yaml:"body,omitempty" json:"body,omitempty"`
	// Header values may reference gated variables as ${NAME}.
	Headers       map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	ExpectStatus  int               `yaml:"expect_status,omitempty" json:"expect_status,omitempty"`
	RequireFields []string          `yaml:"require_fields,omitempty" json:"require_fields,omitempty"`
	Timeout       time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// label names a step in messages.
func (s StepSpec) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Executable
}

// RequiredEnv returns every variable the definition needs before it may run.
func (d Definition) RequiredEnv() []string {
	vars := append([]string(nil), d.RequireEnv...)
	if d.HTTP != nil && d.HTTP.URLEnv != "" {
		vars = append(vars, d.HTTP.URLEnv)
	}
	return vars
}

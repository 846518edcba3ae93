package check

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SuiteFile is the parsed YAML structure of a suite file:
// checks: [{name, require_env, files, steps, http}]
type SuiteFile struct {
	Checks []Definition `yaml:"checks"`
}

// LoadFile parses check definitions from the YAML file at path.
// Returns nil if path is empty (no suite file).
func LoadFile(path string) ([]Definition, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite file: %w", err)
	}

	var sf SuiteFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse suite file: %w", err)
	}
	if len(sf.Checks) == 0 {
		return nil, fmt.Errorf("suite file contains no checks")
	}

	if err := Validate(sf.Checks); err != nil {
		return nil, err
	}

	return sf.Checks, nil
}

// Validate ensures all definitions are well formed and uniquely named.
func Validate(defs []Definition) error {
	seen := make(map[string]bool, len(defs))

	for i, d := range defs {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("check %d: name is required", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("check %q: duplicate name", d.Name)
		}
		seen[d.Name] = true

		if d.Disabled {
			continue
		}
		if len(d.Files) == 0 && len(d.Steps) == 0 && d.HTTP == nil {
			return fmt.Errorf("check %q: at least one of files, steps or http is required", d.Name)
		}

		for j, step := range d.Steps {
			if step.Executable == "" {
				return fmt.Errorf("check %q: step %d: executable is required", d.Name, j)
			}
			if step.Timeout < 0 {
				return fmt.Errorf("check %q: step %d: timeout cannot be negative", d.Name, j)
			}
		}

		if d.HTTP != nil {
			if err := validateHTTP(*d.HTTP); err != nil {
				return fmt.Errorf("check %q: %w", d.Name, err)
			}
		}
	}

	return nil
}

func validateHTTP(spec HTTPSpec) error {
	switch {
	case spec.URL == "" && spec.URLEnv == "":
		return fmt.Errorf("http: one of url or url_env is required")
	case spec.URL != "" && spec.URLEnv != "":
		return fmt.Errorf("http: url and url_env are mutually exclusive")
	}
	if spec.URL != "" {
		parsed, err := url.Parse(spec.URL)
		if err != nil {
			return fmt.Errorf("http: invalid url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("http: invalid url: must include scheme and host")
		}
	}
	if spec.Timeout < 0 {
		return fmt.Errorf("http: timeout cannot be negative")
	}
	if spec.ExpectStatus != 0 && (spec.ExpectStatus < 100 || spec.ExpectStatus > 599) {
		return fmt.Errorf("http: expect_status %d out of range", spec.ExpectStatus)
	}
	return nil
}

// Merge overlays definitions onto base. An overlay with the same name replaces the
// base entry in place; new names are appended.
func Merge(base, overlay []Definition) []Definition {
	merged := append([]Definition(nil), base...)
	index := make(map[string]int, len(merged))
	for i, d := range merged {
		index[d.Name] = i
	}
	for _, d := range overlay {
		if i, ok := index[d.Name]; ok {
			merged[i] = d
			continue
		}
		index[d.Name] = len(merged)
		merged = append(merged, d)
	}
	return merged
}

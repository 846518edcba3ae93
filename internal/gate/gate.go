// Package gate decides whether a check may run based on the process environment.
package gate

import (
	"fmt"
	"os"
	"strings"
)

// Decision is the two-state outcome of probing the environment.
type Decision string

const (
	DecisionRun  Decision = "RUN"
	DecisionSkip Decision = "SKIP"
)

// LookupFunc reads a single environment variable.
type LookupFunc func(key string) (string, bool)

// Gate records which variables a check needs and what the environment held for them.
// A Gate is built once per check invocation and not modified afterwards.
type Gate struct {
	Required []string
	Resolved map[string]string
	Decision Decision
	Reason   string
}

// Probe inspects the process environment for the required variables.
func Probe(required ...string) Gate {
	return ProbeWith(os.LookupEnv, required...)
}

// ProbeWith inspects required variables through lookup. Each name is read once; an empty
// value counts as unset. Any missing variable yields DecisionSkip with a reason naming it.
func ProbeWith(lookup LookupFunc, required ...string) Gate {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	g := Gate{
		Required: make([]string, 0, len(required)),
		Resolved: make(map[string]string, len(required)),
		Decision: DecisionRun,
	}

	seen := make(map[string]struct{}, len(required))
	var missing []string
	for _, name := range required {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		g.Required = append(g.Required, name)

		value, ok := lookup(name)
		if !ok || value == "" {
			missing = append(missing, name)
			continue
		}
		g.Resolved[name] = value
	}

	if len(missing) > 0 {
		g.Decision = DecisionSkip
		g.Reason = fmt.Sprintf("%s not set", strings.Join(missing, ", "))
	}
	return g
}

// Run reports whether the check may proceed.
func (g Gate) Run() bool {
	return g.Decision == DecisionRun
}

// Value returns the resolved value for name, or "" when it was not set.
func (g Gate) Value(name string) string {
	return g.Resolved[name]
}

// MapLookup adapts a map to a LookupFunc.
func MapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

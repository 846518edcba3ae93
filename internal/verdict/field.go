package verdict

import (
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/nholik/probe-sentinel/internal/probe"
)

// FieldPresent passes iff path resolves to a non-empty value in the parsed body.
// Paths use jq syntax with the leading dot optional, e.g. choices[0].message.content.
func FieldPresent(res probe.Result, path string) Verdict {
	if !res.Received() {
		return StatusCode(res, 0)
	}
	if res.Body == nil {
		return Fail("field %s: response body is not JSON: %s", path, Truncate(res.RawBody, BodyExcerpt))
	}

	value, err := Lookup(res.Body, path)
	if err != nil {
		return Fail("field %s: %v", path, err)
	}
	if isEmpty(value) {
		return Fail("field %s is empty", path)
	}
	return Pass(fmt.Sprintf("field %s present", path))
}

// Lookup resolves a jq-style path against a decoded JSON value.
func Lookup(body any, path string) (any, error) {
	query, err := gojq.Parse(normalizePath(path))
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	iter := query.Run(body)
	value, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, isErr := value.(error); isErr {
		return nil, err
	}
	return value, nil
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, ".") {
		return path
	}
	return "." + path
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

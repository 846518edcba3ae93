package runner

import "fmt"

// Operations a cycle can fail in without stopping the loop.
const (
	OpRunSuite  = "run suite"
	OpLoadState = "load state"
	OpSaveState = "save state"
	OpNotify    = "notify"
)

// RuntimeError is a cycle failure. The loop logs it and waits for the next tick.
type RuntimeError struct {
	Op  string
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func wrapRuntime(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RuntimeError{Op: op, Err: err}
}

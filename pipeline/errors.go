package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph = errors.New("invalid task graph")
	ErrTaskNotFound = errors.New("task not found")
	ErrCycle        = errors.New("cycle detected")
)

// GraphError wraps task graph validation failures.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func notFound(name, referrer string) error {
	if referrer == "" {
		return &GraphError{Kind: ErrTaskNotFound, Msg: fmt.Sprintf("%q", name)}
	}
	return &GraphError{Kind: ErrTaskNotFound, Msg: fmt.Sprintf("%q (referenced by %q)", name, referrer)}
}

func cycleError(path []string) error {
	return &GraphError{Kind: ErrCycle, Msg: strings.Join(path, " -> ")}
}

// TaskError reports the failure of a single task action.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string { return fmt.Sprintf("task %q failed: %v", e.Task, e.Err) }

func (e *TaskError) Unwrap() error { return e.Err }

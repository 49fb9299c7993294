package main

import (
	"errors"

	"github.com/nimec77/deepseek-agents/internal/app/pipeline"
	"github.com/nimec77/deepseek-agents/internal/delivery/console"
	dserrors "github.com/nimec77/deepseek-agents/internal/shared/errors"
)

// Process exit codes. Scripts rely on these staying stable.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitStageFailed = 3
	exitInterrupted = 130
)

// ExitCodeError wraps an error with a specific process exit code.
// Reported is set once the renderer has shown the failure to the user.
type ExitCodeError struct {
	Code     int
	Err      error
	Reported bool
}

// reported wraps err, keeping its exit code, and marks it as already shown.
func reported(err error) error {
	return &ExitCodeError{Code: exitCodeFor(err), Err: err, Reported: true}
}

// alreadyReported reports whether the renderer has shown err.
func alreadyReported(err error) bool {
	var coded *ExitCodeError
	return errors.As(err, &coded) && coded.Reported
}

func (e *ExitCodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// exitCodeFor maps a command error onto a process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	var coded *ExitCodeError
	if errors.As(err, &coded) {
		return coded.Code
	}
	if errors.Is(err, console.ErrAborted) {
		return exitInterrupted
	}
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		if stageErr.Kind == dserrors.KindCancelled {
			return exitInterrupted
		}
		return exitStageFailed
	}
	switch dserrors.KindOf(err) {
	case dserrors.KindInvalidRequest:
		return exitUsage
	case dserrors.KindCancelled:
		return exitInterrupted
	default:
		return exitFailure
	}
}

package main

import (
	"context"
	"errors"
	"fmt"

	"e6pools/pkg/pipeline"
	"e6pools/pkg/session"
)

const (
	exitOK             = 0
	exitPartialFailure = 1
	exitBadCredentials = 2
	exitFatal          = 3
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps a command error to the process exit code. Errors without a
// code are usage or configuration problems.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitPartialFailure
}

// runExitCode decides the exit code of a download run.
func runExitCode(report *pipeline.Report, err error) int {
	switch {
	case errors.Is(err, session.ErrIncorrectCredentials):
		return exitBadCredentials
	case errors.Is(err, context.Canceled):
		return exitPartialFailure
	case err != nil:
		return exitFatal
	case report != nil && report.Failed():
		return exitPartialFailure
	}
	return exitOK
}

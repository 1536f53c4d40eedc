// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package bridge

import (
	"context"
	"strings"
	"sync"
	"time"
)

// FakeRunner is an in-memory Runner for tests and dry runs. Handler decides
// the outcome of each call; a nil Handler succeeds with empty output.
type FakeRunner struct {
	Handler func(args []string) (Result, error)

	mu    sync.Mutex
	calls [][]string
}

// Run implements Runner.
func (f *FakeRunner) Run(ctx context.Context, timeout time.Duration, args ...string) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	handler := f.Handler
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		res := Result{ExitCode: -1}
		return res, NewToolError(ErrToolInvocationFailed, args, res, timeout, err)
	}
	if handler == nil {
		return Result{Success: true}, nil
	}
	return handler(args)
}

// Calls returns a copy of every argument list seen so far.
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallLines returns each call joined with spaces, handy for assertions.
func (f *FakeRunner) CallLines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = strings.Join(c, " ")
	}
	return lines
}

// Reset forgets recorded calls.
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// Failed builds the failure a real runner returns for a non-zero exit.
func Failed(args []string, exitCode int, stderr string) (Result, error) {
	res := Result{ExitCode: exitCode, Stderr: stderr}
	return res, NewToolError(ErrToolInvocationFailed, args, res, 0, nil)
}

// TimedOut builds the failure a real runner returns for a hung command.
func TimedOut(args []string, timeout time.Duration) (Result, error) {
	res := Result{ExitCode: -1}
	return res, NewToolError(ErrToolTimeout, args, res, timeout, context.DeadlineExceeded)
}

// Succeeded builds a successful result with stdout.
func Succeeded(stdout string) (Result, error) {
	return Result{Success: true, Stdout: stdout}, nil
}

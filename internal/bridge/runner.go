// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

// Package bridge invokes the external device-bridge tool (adb).
//
// The tool is opaque: it takes an argument list and returns an exit code with
// stdout and stderr, and it may hang. Every invocation runs under a
// caller-supplied timeout after which the process is killed and the call fails
// with ErrToolTimeout.
//
// Bridge adds per-device fault isolation on top of a Runner: a circuit breaker
// that opens after repeated timeouts against the same device, and optional
// command pacing.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/tomtom215/tvshim/internal/logging"
	"github.com/tomtom215/tvshim/internal/metrics"
)

// waitDelay bounds how long Wait blocks on inherited pipes after the process
// exits. `adb start-server` forks a daemon that keeps them open.
const waitDelay = 500 * time.Millisecond

// Result is the outcome of one invocation.
type Result struct {
	Success  bool          `json:"success"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"-"`
}

// Runner runs the device-bridge tool with args under timeout.
// A failed invocation returns a *ToolError alongside the partial Result.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, args ...string) (Result, error)
}

// ExecRunner runs the tool as a child process.
type ExecRunner struct {
	path string
}

// NewExecRunner creates a runner for the tool at path (resolved through PATH
// when it has no separator).
func NewExecRunner(path string) *ExecRunner {
	return &ExecRunner{path: path}
}

// Path returns the configured tool path.
func (r *ExecRunner) Path() string {
	return r.path
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, timeout time.Duration, args ...string) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, r.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	command := commandName(args)

	// The process exited cleanly but a forked child still held the pipes.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		err = nil
	}

	switch {
	case err == nil:
		res.Success = true
		res.ExitCode = 0
		metrics.RecordBridgeInvocation(command, metrics.OutcomeSuccess, res.Duration)
		logging.Debug().Strs("args", args).Dur("duration", res.Duration).Msg("bridge command succeeded")
		return res, nil

	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.ExitCode = -1
		metrics.RecordBridgeInvocation(command, metrics.OutcomeTimeout, res.Duration)
		logging.Warn().Strs("args", args).Dur("timeout", timeout).Msg("bridge command timed out")
		return res, NewToolError(ErrToolTimeout, args, res, timeout, runCtx.Err())
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	metrics.RecordBridgeInvocation(command, metrics.OutcomeFailure, res.Duration)
	logging.Debug().Strs("args", args).Int("exit_code", res.ExitCode).Str("stderr", res.Stderr).Msg("bridge command failed")
	return res, NewToolError(ErrToolInvocationFailed, args, res, timeout, err)
}

// commandName picks the tool subcommand for metric labels, skipping a leading -s <serial>.
func commandName(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-s" {
			i++
			continue
		}
		return args[i]
	}
	return "none"
}

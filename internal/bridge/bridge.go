// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tvshim/internal/logging"
	"github.com/tomtom215/tvshim/internal/metrics"
)

// BreakerOptions configures the per-device circuit breaker.
type BreakerOptions struct {
	Enabled          bool
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// Options configures a Bridge.
type Options struct {
	// DefaultTimeout applies to ordinary commands.
	DefaultTimeout time.Duration

	// LongTimeout applies to connect and video playback.
	LongTimeout time.Duration

	// CommandsPerSecond paces commands per device; 0 disables pacing.
	CommandsPerSecond float64
	CommandBurst      int

	Breaker BreakerOptions
}

// Bridge runs device-bridge commands with per-device fault isolation.
//
// Only timeouts count as breaker failures: a device that stops answering makes
// every command hang for the full timeout, while a command that exits non-zero
// (for example a player activity that is not installed) says nothing about
// reachability.
type Bridge struct {
	runner Runner
	opts   Options

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[Result]
	limiters map[string]*rate.Limiter
}

// New creates a Bridge around runner.
func New(runner Runner, opts Options) *Bridge {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 10 * time.Second
	}
	if opts.LongTimeout <= 0 {
		opts.LongTimeout = 15 * time.Second
	}
	if opts.CommandBurst < 1 {
		opts.CommandBurst = 1
	}
	return &Bridge{
		runner:   runner,
		opts:     opts,
		breakers: make(map[string]*gobreaker.CircuitBreaker[Result]),
		limiters: make(map[string]*rate.Limiter),
	}
}

// DefaultTimeout returns the timeout for ordinary commands.
func (b *Bridge) DefaultTimeout() time.Duration { return b.opts.DefaultTimeout }

// LongTimeout returns the timeout for connect and playback commands.
func (b *Bridge) LongTimeout() time.Duration { return b.opts.LongTimeout }

// Run invokes a command that is not bound to one device (devices, connect,
// kill-server, version).
func (b *Bridge) Run(ctx context.Context, timeout time.Duration, args ...string) (Result, error) {
	return b.runner.Run(ctx, timeout, args...)
}

// RunOn invokes a command against one device, prefixing "-s serial".
func (b *Bridge) RunOn(ctx context.Context, serial string, timeout time.Duration, args ...string) (Result, error) {
	full := make([]string, 0, len(args)+2)
	full = append(full, "-s", serial)
	full = append(full, args...)

	if limiter := b.limiter(serial); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return Result{ExitCode: -1}, NewToolError(ErrToolInvocationFailed, full, Result{ExitCode: -1}, timeout, err)
		}
	}

	cb := b.breaker(serial)
	if cb == nil {
		return b.runner.Run(ctx, timeout, full...)
	}

	name := cb.Name()
	res, err := cb.Execute(func() (Result, error) {
		return b.runner.Run(ctx, timeout, full...)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(name, metrics.OutcomeRejected).Inc()
		metrics.RecordBridgeInvocation(commandName(full), metrics.OutcomeRejected, 0)
		logging.Warn().Str("serial", serial).Err(err).Msg("bridge command rejected by circuit breaker")
		rejected := Result{ExitCode: -1}
		return rejected, NewToolError(ErrToolInvocationFailed, full, rejected, timeout, fmt.Errorf("device %s: %w", serial, err))
	case err != nil:
		metrics.CircuitBreakerRequests.WithLabelValues(name, metrics.OutcomeFailure).Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(name, metrics.OutcomeSuccess).Inc()
	}
	return res, err
}

// BreakerState reports the breaker state for serial ("closed" when none exists).
func (b *Bridge) BreakerState(serial string) string {
	b.mu.Lock()
	cb, ok := b.breakers[serial]
	b.mu.Unlock()
	if !ok {
		return stateToString(gobreaker.StateClosed)
	}
	return stateToString(cb.State())
}

func (b *Bridge) limiter(serial string) *rate.Limiter {
	if b.opts.CommandsPerSecond <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.limiters[serial]
	if !ok {
		l = rate.NewLimiter(rate.Limit(b.opts.CommandsPerSecond), b.opts.CommandBurst)
		b.limiters[serial] = l
	}
	return l
}

func (b *Bridge) breaker(serial string) *gobreaker.CircuitBreaker[Result] {
	if !b.opts.Breaker.Enabled {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[serial]; ok {
		return cb
	}

	name := "bridge:" + serial
	threshold := b.opts.Breaker.FailureThreshold
	metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        name,
		MaxRequests: b.opts.Breaker.MaxRequests,
		Interval:    b.opts.Breaker.Interval,
		Timeout:     b.opts.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrToolTimeout)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})
	b.breakers[serial] = cb
	return cb
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

// Package monitor implements the rental timeout monitor: one delayed,
// cancellable timeout action per rental, with the outcome pushed to that
// rental's event subscription.
//
// # Tables
//
// A Monitor owns two keyed tables, live timers and subscriptions, both guarded
// by one mutex. Mutation points are Start, Stop, Subscribe, Unsubscribe,
// Trigger and the firing path.
//
// # Cancellation
//
// A timer is live while it is the entry stored under its rental in the timer
// table. Firing claims the timer by removing that exact entry under the mutex;
// Stop, a replacing Start and a subscriber disconnect cancel it by removing the
// same entry. Whichever removes the entry first decides the outcome:
//
//   - Stop first: the action never runs and no timeout event is published.
//   - Firing first: the action runs and its event is published. A Stop that
//     arrives meanwhile finds no timer; the subscription it would have closed
//     is closed after the timeout event is delivered.
//
// Trigger counts as an in-flight action in the same way.
//
// # Journal
//
// With a Journal configured, live timers are persisted so Restore can re-arm
// them after a restart. Stopped, cancelled and fired timers are removed from
// the journal; timers abandoned by Shutdown are kept. Journal writes are queued
// under the mutex and applied in order after it is released.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/tvshim/internal/logging"
	"github.com/tomtom215/tvshim/internal/metrics"
)

var (
	// ErrClosed is returned by Start once the monitor has shut down.
	ErrClosed = errors.New("monitor closed")

	// ErrInvalidDelay is returned by Start for a negative delay.
	ErrInvalidDelay = errors.New("delay must not be negative")
)

// Action performs the timeout action for a rental. It must honour ctx.
type Action func(ctx context.Context, rentalID int64, target string) Outcome

// Observer receives every published event except heartbeats. It must not block.
type Observer func(Event)

// Observers fans each event out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	return func(ev Event) {
		for _, o := range observers {
			if o != nil {
				o(ev)
			}
		}
	}
}

// Entry is a persisted live timer.
type Entry struct {
	RentalID     int64     `json:"rental_id"`
	Target       string    `json:"tv_ip"`
	DelaySeconds int       `json:"timeout_seconds"`
	Deadline     time.Time `json:"deadline"`
}

// Journal persists live timers.
type Journal interface {
	Save(ctx context.Context, e Entry) error
	Delete(ctx context.Context, rentalID int64) error
	List(ctx context.Context) ([]Entry, error)
}

// Options configures a Monitor.
type Options struct {
	// HeartbeatInterval is the idle period after which Next yields a heartbeat.
	HeartbeatInterval time.Duration

	// ActionTimeout bounds one timeout action.
	ActionTimeout time.Duration

	// EventBuffer is the per-subscription channel capacity.
	EventBuffer int

	// DelayUnit is the length of one delay step; defaults to one second.
	DelayUnit time.Duration

	Journal  Journal
	Observer Observer
}

// TimerInfo describes a live timer.
type TimerInfo struct {
	RentalID     int64     `json:"rental_id"`
	Target       string    `json:"tv_ip"`
	DelaySeconds int       `json:"timeout_seconds"`
	Deadline     time.Time `json:"deadline"`
	Remaining    float64   `json:"remaining_seconds"`
	Subscribed   bool      `json:"subscribed"`
}

type rentalTimer struct {
	rentalID     int64
	target       string
	delaySeconds int
	deadline     time.Time
	cancel       context.CancelFunc
}

type journalOp struct {
	entry  Entry
	delete bool
}

// Monitor is the rental timeout monitor.
type Monitor struct {
	action Action
	opts   Options

	mu     sync.Mutex
	timers map[int64]*rentalTimer
	subs   map[int64]*Subscription
	closed bool

	// inFlight counts running timeout actions per rental. closeAfter holds
	// subscriptions a Stop closed while an action was running.
	inFlight   map[int64]int
	closeAfter map[int64]*Subscription

	// pending is guarded by mu; journalMu serializes applying it.
	pending   []journalOp
	journalMu sync.Mutex

	wg         sync.WaitGroup
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// New creates a Monitor that runs action when a timer fires.
func New(action Action, opts Options) *Monitor {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 2 * time.Minute
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 16
	}
	if opts.DelayUnit <= 0 {
		opts.DelayUnit = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		action:     action,
		opts:       opts,
		timers:     make(map[int64]*rentalTimer),
		subs:       make(map[int64]*Subscription),
		inFlight:   make(map[int64]int),
		closeAfter: make(map[int64]*Subscription),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Start schedules the timeout action for rentalID after delaySeconds,
// replacing any live timer for the rental. It returns immediately.
func (m *Monitor) Start(rentalID int64, target string, delaySeconds int) error {
	if delaySeconds < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDelay, delaySeconds)
	}
	deadline := time.Now().Add(time.Duration(delaySeconds) * m.opts.DelayUnit)
	ev, err := m.arm(rentalID, target, delaySeconds, deadline)
	m.flushJournal()
	if err != nil {
		return err
	}
	metrics.MonitorTimersStarted.Inc()
	logging.Info().Int64("rental_id", rentalID).Str("tv_ip", target).Int("timeout_seconds", delaySeconds).
		Msg("rental timeout monitor started")
	m.observe(ev)
	return nil
}

func (m *Monitor) arm(rentalID int64, target string, delaySeconds int, deadline time.Time) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return Event{}, ErrClosed
	}
	if prev, ok := m.timers[rentalID]; ok {
		m.cancelLocked(prev, "replaced")
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	t := &rentalTimer{
		rentalID:     rentalID,
		target:       target,
		delaySeconds: delaySeconds,
		deadline:     deadline,
		cancel:       cancel,
	}
	m.timers[rentalID] = t
	metrics.MonitorActiveTimers.Set(float64(len(m.timers)))
	m.journalSaveLocked(t)

	m.wg.Add(1)
	go m.run(ctx, t)

	ev := startedEvent(rentalID, target, delaySeconds)
	m.publishLocked(m.subs[rentalID], ev)
	return ev, nil
}

// Stop cancels the rental's timer if one is live and tears down its
// subscription. It is idempotent and reports whether a timer was cancelled.
func (m *Monitor) Stop(rentalID int64) bool {
	m.mu.Lock()
	t, live := m.timers[rentalID]
	var ev Event
	if live {
		m.cancelLocked(t, "stopped")
		ev = stoppedEvent(rentalID, t.target)
	}

	if sub, ok := m.subs[rentalID]; ok {
		if live {
			m.publishLocked(sub, ev)
		}
		if m.inFlight[rentalID] > 0 {
			m.closeAfter[rentalID] = sub
		} else {
			m.closeSubLocked(sub)
		}
	}
	m.mu.Unlock()
	m.flushJournal()

	if live {
		logging.Info().Int64("rental_id", rentalID).Msg("rental timeout monitor stopped")
		m.observe(ev)
	}
	return live
}

// Subscribe opens the event stream for rentalID, replacing any earlier
// subscription for it. The first event is always EventConnected.
func (m *Monitor) Subscribe(rentalID int64) *Subscription {
	sub := &Subscription{
		rentalID:  rentalID,
		events:    make(chan Event, m.opts.EventBuffer),
		heartbeat: m.opts.HeartbeatInterval,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		sub.closed = true
		close(sub.events)
		return sub
	}
	if old, ok := m.subs[rentalID]; ok {
		m.closeSubLocked(old)
	}
	m.subs[rentalID] = sub
	metrics.MonitorSubscriptions.Set(float64(len(m.subs)))
	m.publishLocked(sub, connectedEvent(rentalID))
	return sub
}

// Unsubscribe handles a listener disconnect. When sub is still the rental's
// subscription it is removed and any live timer for the rental is cancelled.
func (m *Monitor) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	m.mu.Lock()
	if m.subs[sub.rentalID] != sub {
		m.closeSubLocked(sub)
		m.mu.Unlock()
		return
	}
	m.closeSubLocked(sub)
	t, live := m.timers[sub.rentalID]
	if live {
		m.cancelLocked(t, "disconnected")
	}
	m.mu.Unlock()

	if live {
		m.flushJournal()
		logging.Info().Int64("rental_id", sub.rentalID).Msg("listener disconnected, rental timeout monitor cancelled")
	}
}

// Trigger runs the timeout action for rentalID now, cancelling any live
// timer for it, and publishes the outcome.
func (m *Monitor) Trigger(ctx context.Context, rentalID int64, target string) Outcome {
	m.mu.Lock()
	delay := 0
	if t, ok := m.timers[rentalID]; ok {
		delay = t.delaySeconds
		m.cancelLocked(t, "triggered")
	}
	m.inFlight[rentalID]++
	m.mu.Unlock()
	m.flushJournal()

	out := m.runAction(ctx, rentalID, target)
	ev := firedEvent(rentalID, target, delay, out)

	m.mu.Lock()
	m.finishActionLocked(rentalID, ev)
	m.mu.Unlock()
	m.observe(ev)
	return out
}

// Active lists live timers ordered by rental.
func (m *Monitor) Active() []TimerInfo {
	now := time.Now()
	m.mu.Lock()
	out := make([]TimerInfo, 0, len(m.timers))
	for id, t := range m.timers {
		_, subscribed := m.subs[id]
		remaining := t.deadline.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, TimerInfo{
			RentalID:     id,
			Target:       t.target,
			DelaySeconds: t.delaySeconds,
			Deadline:     t.deadline.UTC(),
			Remaining:    remaining.Seconds(),
			Subscribed:   subscribed,
		})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].RentalID < out[j].RentalID })
	return out
}

// ActiveCount returns the number of live timers.
func (m *Monitor) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Restore re-arms every journaled timer with its remaining time. Entries whose
// deadline passed while the process was down fire immediately.
func (m *Monitor) Restore(ctx context.Context) (int, error) {
	if m.opts.Journal == nil {
		return 0, nil
	}
	entries, err := m.opts.Journal.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list journal: %w", err)
	}
	restored := 0
	for _, e := range entries {
		_, err := m.arm(e.RentalID, e.Target, e.DelaySeconds, e.Deadline)
		m.flushJournal()
		if err != nil {
			return restored, err
		}
		restored++
		logging.Info().Int64("rental_id", e.RentalID).Time("deadline", e.Deadline).Msg("rental timeout monitor restored")
	}
	return restored, nil
}

// Serve restores the journal, then blocks until ctx is cancelled and shuts
// the monitor down. It implements suture.Service.
func (m *Monitor) Serve(ctx context.Context) error {
	n, err := m.Restore(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("failed to restore rental timeout monitors")
	} else if n > 0 {
		logging.Info().Int("count", n).Msg("restored rental timeout monitors from journal")
	}

	<-ctx.Done()
	m.Shutdown()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (m *Monitor) String() string {
	return "rental-monitor"
}

// Shutdown cancels every timer without touching the journal, closes every
// subscription and waits for in-flight actions to return.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	m.closed = true
	for id, t := range m.timers {
		t.cancel()
		delete(m.timers, id)
	}
	for _, sub := range m.subs {
		m.closeSubLocked(sub)
	}
	metrics.MonitorActiveTimers.Set(0)
	m.mu.Unlock()

	m.baseCancel()
	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context, t *rentalTimer) {
	defer m.wg.Done()

	timer := time.NewTimer(time.Until(t.deadline))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	m.fire(t)
}

func (m *Monitor) fire(t *rentalTimer) {
	m.mu.Lock()
	if m.timers[t.rentalID] != t {
		m.mu.Unlock()
		return
	}
	delete(m.timers, t.rentalID)
	m.inFlight[t.rentalID]++
	metrics.MonitorActiveTimers.Set(float64(len(m.timers)))
	m.journalDeleteLocked(t.rentalID)
	m.mu.Unlock()
	t.cancel()
	m.flushJournal()

	logging.Info().Int64("rental_id", t.rentalID).Str("tv_ip", t.target).Msg("rental timed out, running timeout action")
	out := m.runAction(m.baseCtx, t.rentalID, t.target)
	metrics.RecordTimeoutFired(out.Success)
	ev := firedEvent(t.rentalID, t.target, t.delaySeconds, out)

	m.mu.Lock()
	m.finishActionLocked(t.rentalID, ev)
	m.mu.Unlock()
	m.observe(ev)
}

// finishActionLocked publishes the outcome of one in-flight action. When it
// was the last one for the rental, a subscription deferred by Stop is closed.
// Callers hold m.mu.
func (m *Monitor) finishActionLocked(rentalID int64, ev Event) {
	m.publishLocked(m.subs[rentalID], ev)

	m.inFlight[rentalID]--
	if m.inFlight[rentalID] > 0 {
		return
	}
	delete(m.inFlight, rentalID)
	if sub, ok := m.closeAfter[rentalID]; ok {
		delete(m.closeAfter, rentalID)
		if m.subs[rentalID] == sub {
			m.closeSubLocked(sub)
		}
	}
}

func (m *Monitor) runAction(ctx context.Context, rentalID int64, target string) (out Outcome) {
	ctx, cancel := context.WithTimeout(logging.ContextWithRentalID(ctx, rentalID), m.opts.ActionTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logging.Error().Int64("rental_id", rentalID).Interface("panic", r).Msg("timeout action panicked")
			out = Outcome{Success: false, Message: fmt.Sprintf("timeout action panicked: %v", r)}
		}
	}()
	return m.action(ctx, rentalID, target)
}

// cancelLocked removes t from the timer table and cancels it. Callers hold m.mu.
func (m *Monitor) cancelLocked(t *rentalTimer, reason string) {
	t.cancel()
	delete(m.timers, t.rentalID)
	metrics.MonitorActiveTimers.Set(float64(len(m.timers)))
	metrics.MonitorTimersCancelled.WithLabelValues(reason).Inc()
	m.journalDeleteLocked(t.rentalID)
}

// publishLocked delivers ev without blocking; a full buffer drops it.
// Callers hold m.mu.
func (m *Monitor) publishLocked(sub *Subscription, ev Event) {
	if sub == nil || sub.closed {
		return
	}
	select {
	case sub.events <- ev:
	default:
		metrics.MonitorEventsDropped.Inc()
		logging.Warn().Int64("rental_id", sub.rentalID).Str("type", string(ev.Type)).Msg("subscription buffer full, event dropped")
	}
}

// closeSubLocked closes sub and removes it if it is still registered.
// Callers hold m.mu.
func (m *Monitor) closeSubLocked(sub *Subscription) {
	if cur, ok := m.subs[sub.rentalID]; ok && cur == sub {
		delete(m.subs, sub.rentalID)
		metrics.MonitorSubscriptions.Set(float64(len(m.subs)))
	}
	if !sub.closed {
		sub.closed = true
		close(sub.events)
	}
}

func (m *Monitor) observe(ev Event) {
	if m.opts.Observer != nil {
		m.opts.Observer(ev)
	}
}

// journalSaveLocked queues t for persisting. Callers hold m.mu.
func (m *Monitor) journalSaveLocked(t *rentalTimer) {
	if m.opts.Journal == nil {
		return
	}
	m.pending = append(m.pending, journalOp{entry: Entry{
		RentalID:     t.rentalID,
		Target:       t.target,
		DelaySeconds: t.delaySeconds,
		Deadline:     t.deadline.UTC(),
	}})
}

// journalDeleteLocked queues removal of rentalID. Callers hold m.mu.
func (m *Monitor) journalDeleteLocked(rentalID int64) {
	if m.opts.Journal == nil {
		return
	}
	m.pending = append(m.pending, journalOp{entry: Entry{RentalID: rentalID}, delete: true})
}

// flushJournal applies queued journal writes in the order they were queued.
// Callers must not hold m.mu. When it returns, every write queued before the
// call has been applied.
func (m *Monitor) flushJournal() {
	if m.opts.Journal == nil {
		return
	}
	m.journalMu.Lock()
	defer m.journalMu.Unlock()

	for {
		m.mu.Lock()
		ops := m.pending
		m.pending = nil
		m.mu.Unlock()
		if len(ops) == 0 {
			return
		}
		for _, op := range ops {
			m.applyJournal(op)
		}
	}
}

func (m *Monitor) applyJournal(op journalOp) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := op.entry.RentalID
	if op.delete {
		if err := m.opts.Journal.Delete(ctx, id); err != nil {
			logging.Warn().Err(err).Int64("rental_id", id).Msg("failed to remove rental timer from journal")
		}
		return
	}
	if err := m.opts.Journal.Save(ctx, op.entry); err != nil {
		logging.Warn().Err(err).Int64("rental_id", id).Msg("failed to journal rental timer")
	}
}

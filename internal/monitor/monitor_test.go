// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// unit keeps delays short: a delay of 10 means 100ms.
const unit = 10 * time.Millisecond

type recorder struct {
	mu      sync.Mutex
	targets []string
	fired   chan string
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan string, 64)}
}

func (r *recorder) action(_ context.Context, _ int64, target string) Outcome {
	r.mu.Lock()
	r.targets = append(r.targets, target)
	r.mu.Unlock()
	r.fired <- target
	return Outcome{Success: true, Message: "played " + target}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.targets)
}

func newTestMonitor(t *testing.T, action Action, opts Options) *Monitor {
	t.Helper()
	if opts.DelayUnit == 0 {
		opts.DelayUnit = unit
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = time.Minute
	}
	m := New(action, opts)
	t.Cleanup(m.Shutdown)
	return m
}

func next(t *testing.T, sub *Subscription) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	return ev
}

func expectClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	if !errors.Is(err, ErrSubscriptionClosed) {
		t.Fatalf("expected closed subscription, got event %+v err %v", ev, err)
	}
}

func TestStartThenStop_NoAction(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	m := newTestMonitor(t, rec.action, Options{})

	sub := m.Subscribe(1)
	if err := m.Start(1, "10.0.0.20", 5); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !m.Stop(1) {
		t.Fatal("Stop() should report a cancelled timer")
	}

	if ev := next(t, sub); ev.Type != EventConnected {
		t.Fatalf("first event = %s, want connected", ev.Type)
	}
	if ev := next(t, sub); ev.Type != EventMonitorStarted || ev.TimeoutSeconds != 5 {
		t.Fatalf("second event = %+v, want monitor_started", ev)
	}
	if ev := next(t, sub); ev.Type != EventMonitorStopped {
		t.Fatalf("third event = %s, want monitor_stopped", ev.Type)
	}
	expectClosed(t, sub)

	time.Sleep(15 * unit)
	if n := rec.count(); n != 0 {
		t.Errorf("action ran %d times after stop", n)
	}
	if m.ActiveCount() != 0 {
		t.Error("timer leaked after stop")
	}
}

func TestStop_Idempotent(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(t, newRecorder().action, Options{})

	if m.Stop(7) {
		t.Error("Stop() on unknown rental should report false")
	}
	if err := m.Start(7, "10.0.0.20", 100); err != nil {
		t.Fatal(err)
	}
	if !m.Stop(7) {
		t.Error("first Stop() should report true")
	}
	if m.Stop(7) {
		t.Error("second Stop() should report false")
	}
}

func TestStart_ReplacesTimer(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	m := newTestMonitor(t, rec.action, Options{})

	if err := m.Start(2, "first", 30); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(2, "second", 5); err != nil {
		t.Fatal(err)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", m.ActiveCount())
	}

	select {
	case target := <-rec.fired:
		if target != "second" {
			t.Fatalf("fired with %q, want second", target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("replacement timer never fired")
	}

	time.Sleep(40 * unit)
	if n := rec.count(); n != 1 {
		t.Errorf("action ran %d times, want exactly 1", n)
	}
}

func TestFire_PublishesOutcome(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	var observed []Event
	var obsMu sync.Mutex
	m := newTestMonitor(t, rec.action, Options{Observer: func(ev Event) {
		obsMu.Lock()
		observed = append(observed, ev)
		obsMu.Unlock()
	}})

	sub := m.Subscribe(3)
	if err := m.Start(3, "10.0.0.20", 1); err != nil {
		t.Fatal(err)
	}

	next(t, sub) // connected
	next(t, sub) // monitor_started
	ev := next(t, sub)
	if ev.Type != EventTimeoutVideoPlayed {
		t.Fatalf("event = %s, want timeout_video_played", ev.Type)
	}
	if !ev.Success || ev.TVIP != "10.0.0.20" || ev.RentalID != 3 || ev.Message != "played 10.0.0.20" {
		t.Errorf("unexpected event %+v", ev)
	}
	if m.ActiveCount() != 0 {
		t.Error("fired timer still listed")
	}

	// The observer runs after the subscriber is served.
	deadline := time.Now().Add(2 * time.Second)
	for {
		obsMu.Lock()
		n := len(observed)
		obsMu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	obsMu.Lock()
	defer obsMu.Unlock()
	if len(observed) != 2 || observed[0].Type != EventMonitorStarted || observed[1].Type != EventTimeoutVideoPlayed {
		t.Errorf("observer saw %+v", observed)
	}
}

func TestFire_FailedOutcome(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(t, func(context.Context, int64, string) Outcome {
		return Outcome{Success: false, Message: "All commands failed"}
	}, Options{})

	sub := m.Subscribe(4)
	if err := m.Start(4, "10.0.0.21", 0); err != nil {
		t.Fatal(err)
	}
	next(t, sub)
	next(t, sub)
	ev := next(t, sub)
	if ev.Success || ev.Message != "All commands failed" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestStopAfterClaim_FiredWins(t *testing.T) {
	t.Parallel()
	entered := make(chan struct{})
	release := make(chan struct{})
	m := newTestMonitor(t, func(context.Context, int64, string) Outcome {
		close(entered)
		<-release
		return Outcome{Success: true}
	}, Options{})

	sub := m.Subscribe(5)
	if err := m.Start(5, "10.0.0.20", 0); err != nil {
		t.Fatal(err)
	}
	<-entered

	if m.Stop(5) {
		t.Error("Stop() after the claim must not find a timer")
	}
	close(release)

	next(t, sub) // connected
	next(t, sub) // monitor_started
	if ev := next(t, sub); ev.Type != EventTimeoutVideoPlayed {
		t.Fatalf("event = %s, want timeout_video_played", ev.Type)
	}
	expectClosed(t, sub)
}

func TestStopFireRace_ExactlyOneOutcome(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(t, func(context.Context, int64, string) Outcome {
		return Outcome{Success: true}
	}, Options{})

	const rentals = 200
	var wg sync.WaitGroup
	for i := int64(0); i < rentals; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			sub := m.Subscribe(id)
			if err := m.Start(id, "10.0.0.20", 0); err != nil {
				t.Errorf("Start(%d) error = %v", id, err)
				return
			}
			m.Stop(id)

			var stopped, fired int
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				ev, err := sub.Next(ctx)
				if err != nil {
					if !errors.Is(err, ErrSubscriptionClosed) {
						t.Errorf("rental %d: %v", id, err)
					}
					break
				}
				switch ev.Type {
				case EventMonitorStopped:
					stopped++
				case EventTimeoutVideoPlayed:
					fired++
				}
			}
			if stopped+fired != 1 {
				t.Errorf("rental %d: stopped=%d fired=%d, want exactly one outcome", id, stopped, fired)
			}
		}(i)
	}
	wg.Wait()

	if m.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d after race, want 0", m.ActiveCount())
	}
}

func TestHeartbeat_OnePerInterval(t *testing.T) {
	t.Parallel()
	const interval = 60 * time.Millisecond
	m := newTestMonitor(t, newRecorder().action, Options{HeartbeatInterval: interval})

	sub := m.Subscribe(6)
	if ev := next(t, sub); ev.Type != EventConnected {
		t.Fatalf("first event = %s, want connected", ev.Type)
	}

	for i := 0; i < 3; i++ {
		start := time.Now()
		ev := next(t, sub)
		elapsed := time.Since(start)
		if ev.Type != EventHeartbeat {
			t.Fatalf("event %d = %s, want heartbeat", i, ev.Type)
		}
		if ev.RentalID != 6 {
			t.Errorf("heartbeat rental = %d, want 6", ev.RentalID)
		}
		if elapsed < interval-5*time.Millisecond {
			t.Errorf("heartbeat %d after %v, before the %v interval", i, elapsed, interval)
		}
	}
}

func TestUnsubscribe_CancelsTimer(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	m := newTestMonitor(t, rec.action, Options{})

	sub := m.Subscribe(8)
	if err := m.Start(8, "10.0.0.20", 5); err != nil {
		t.Fatal(err)
	}
	m.Unsubscribe(sub)

	if m.ActiveCount() != 0 {
		t.Error("timer not cancelled on disconnect")
	}
	next(t, sub)
	next(t, sub)
	expectClosed(t, sub)

	time.Sleep(15 * unit)
	if rec.count() != 0 {
		t.Error("action ran after listener disconnected")
	}
}

func TestUnsubscribe_ReplacedSubscriptionKeepsTimer(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(t, newRecorder().action, Options{})

	old := m.Subscribe(9)
	current := m.Subscribe(9)
	if err := m.Start(9, "10.0.0.20", 100); err != nil {
		t.Fatal(err)
	}

	next(t, old) // connected
	expectClosed(t, old)

	m.Unsubscribe(old)
	if m.ActiveCount() != 1 {
		t.Error("stale listener disconnect cancelled the timer")
	}
	active := m.Active()
	if len(active) != 1 || !active[0].Subscribed {
		t.Errorf("Active() = %+v, want one subscribed timer", active)
	}

	m.Unsubscribe(current)
	if m.ActiveCount() != 0 {
		t.Error("current listener disconnect should cancel the timer")
	}
}

func TestTrigger(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	m := newTestMonitor(t, rec.action, Options{})

	sub := m.Subscribe(10)
	if err := m.Start(10, "10.0.0.20", 100); err != nil {
		t.Fatal(err)
	}

	out := m.Trigger(context.Background(), 10, "10.0.0.21")
	if !out.Success {
		t.Errorf("Trigger() = %+v", out)
	}
	if m.ActiveCount() != 0 {
		t.Error("Trigger() should cancel the live timer")
	}

	next(t, sub)
	next(t, sub)
	ev := next(t, sub)
	if ev.Type != EventTimeoutVideoPlayed || ev.TVIP != "10.0.0.21" || ev.TimeoutSeconds != 100 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestTrigger_RecoversPanic(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(t, func(context.Context, int64, string) Outcome {
		panic("device exploded")
	}, Options{})

	out := m.Trigger(context.Background(), 11, "10.0.0.20")
	if out.Success {
		t.Error("panicking action must report failure")
	}
}

func TestStart_Errors(t *testing.T) {
	t.Parallel()
	m := New(newRecorder().action, Options{DelayUnit: unit})

	if err := m.Start(12, "10.0.0.20", -1); !errors.Is(err, ErrInvalidDelay) {
		t.Errorf("expected ErrInvalidDelay, got %v", err)
	}
	m.Shutdown()
	if err := m.Start(12, "10.0.0.20", 1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	expectClosed(t, m.Subscribe(12))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	m := New(rec.action, Options{DelayUnit: unit})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	sub := m.Subscribe(13)
	if err := m.Start(13, "10.0.0.20", 100); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return")
	}
	next(t, sub)
	next(t, sub)
	expectClosed(t, sub)
	if m.ActiveCount() != 0 {
		t.Error("timers left after shutdown")
	}
}

func TestObservers_FanOut(t *testing.T) {
	t.Parallel()

	var got []string
	obs := Observers(
		func(ev Event) { got = append(got, "first:"+string(ev.Type)) },
		nil,
		func(ev Event) { got = append(got, "second:"+string(ev.Type)) },
	)
	obs(Event{Type: EventMonitorStopped, RentalID: 1})

	want := []string{"first:monitor_stopped", "second:monitor_stopped"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("observed %v, want %v", got, want)
	}
}

func TestStopDuringTrigger_DeliversOutcome(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	release := make(chan struct{})
	m := newTestMonitor(t, func(context.Context, int64, string) Outcome {
		close(started)
		<-release
		return Outcome{Success: true, Message: "played"}
	}, Options{})

	sub := m.Subscribe(14)
	next(t, sub) // connected

	done := make(chan Outcome, 1)
	go func() { done <- m.Trigger(context.Background(), 14, "10.0.0.20") }()
	<-started

	if m.Stop(14) {
		t.Error("Stop() reported a live timer during Trigger")
	}
	close(release)
	if out := <-done; !out.Success {
		t.Errorf("Trigger() = %+v", out)
	}

	ev := next(t, sub)
	if ev.Type != EventTimeoutVideoPlayed || !ev.Success {
		t.Errorf("unexpected event %+v", ev)
	}
	expectClosed(t, sub)
}

// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package monitor

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

type memJournal struct {
	mu      sync.Mutex
	entries map[int64]Entry
}

func newMemJournal(entries ...Entry) *memJournal {
	j := &memJournal{entries: make(map[int64]Entry)}
	for _, e := range entries {
		j.entries[e.RentalID] = e
	}
	return j
}

func (j *memJournal) Save(_ context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[e.RentalID] = e
	return nil
}

func (j *memJournal) Delete(_ context.Context, rentalID int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.entries, rentalID)
	return nil
}

func (j *memJournal) List(context.Context) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].RentalID < out[b].RentalID })
	return out, nil
}

func (j *memJournal) has(rentalID int64) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.entries[rentalID]
	return ok
}

func TestJournal_TracksLifecycle(t *testing.T) {
	t.Parallel()
	j := newMemJournal()
	rec := newRecorder()
	m := newTestMonitor(t, rec.action, Options{Journal: j})

	if err := m.Start(20, "10.0.0.20", 100); err != nil {
		t.Fatal(err)
	}
	if !j.has(20) {
		t.Fatal("started timer not journaled")
	}
	m.Stop(20)
	if j.has(20) {
		t.Error("stopped timer still journaled")
	}

	if err := m.Start(21, "10.0.0.20", 1); err != nil {
		t.Fatal(err)
	}
	select {
	case <-rec.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
	if j.has(21) {
		t.Error("fired timer still journaled")
	}

	if err := m.Start(22, "10.0.0.20", 100); err != nil {
		t.Fatal(err)
	}
	m.Shutdown()
	if !j.has(22) {
		t.Error("shutdown must keep live timers in the journal")
	}
}

func TestRestore(t *testing.T) {
	t.Parallel()
	now := time.Now()
	j := newMemJournal(
		Entry{RentalID: 30, Target: "10.0.0.20", DelaySeconds: 60, Deadline: now.Add(-time.Minute)},
		Entry{RentalID: 31, Target: "10.0.0.21", DelaySeconds: 3600, Deadline: now.Add(time.Hour)},
	)
	rec := newRecorder()
	m := newTestMonitor(t, rec.action, Options{Journal: j})

	n, err := m.Restore(context.Background())
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Restore() = %d, want 2", n)
	}

	select {
	case target := <-rec.fired:
		if target != "10.0.0.20" {
			t.Errorf("expired entry fired with %q", target)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expired entry did not fire immediately")
	}

	active := m.Active()
	if len(active) != 1 || active[0].RentalID != 31 {
		t.Fatalf("Active() = %+v, want rental 31 only", active)
	}
	if active[0].Remaining < 3500 {
		t.Errorf("Remaining = %v, want about an hour", active[0].Remaining)
	}
	if j.has(30) || !j.has(31) {
		t.Error("journal should hold only the re-armed timer")
	}
}

// slowJournal blocks Save until released.
type slowJournal struct {
	*memJournal
	entered chan struct{}
	release chan struct{}
}

func (j *slowJournal) Save(ctx context.Context, e Entry) error {
	j.entered <- struct{}{}
	<-j.release
	return j.memJournal.Save(ctx, e)
}

func TestJournal_WritesDoNotBlockMonitor(t *testing.T) {
	t.Parallel()
	j := &slowJournal{memJournal: newMemJournal(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	m := newTestMonitor(t, newRecorder().action, Options{Journal: j})

	started := make(chan error, 1)
	go func() { started <- m.Start(40, "10.0.0.20", 100) }()
	<-j.entered

	counted := make(chan int, 1)
	go func() { counted <- m.ActiveCount() }()
	select {
	case n := <-counted:
		if n != 1 {
			t.Errorf("ActiveCount() = %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ActiveCount() blocked behind a journal write")
	}

	close(j.release)
	if err := <-started; err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !j.has(40) {
		t.Error("timer not journaled once Start returned")
	}
}

func TestJournal_KeepsWriteOrder(t *testing.T) {
	t.Parallel()
	j := newMemJournal()
	m := newTestMonitor(t, newRecorder().action, Options{Journal: j})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Start(41, "10.0.0.20", 100)
			m.Stop(41)
		}()
	}
	wg.Wait()

	if m.ActiveCount() == 0 && j.has(41) {
		t.Error("journal holds a timer the monitor no longer runs")
	}
	if m.ActiveCount() == 1 && !j.has(41) {
		t.Error("live timer missing from journal")
	}
}

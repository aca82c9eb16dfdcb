package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func mustDescriptor(t *testing.T, raw string) *Descriptor {
	t.Helper()

	desc, err := ParseDescriptor([]byte(raw))
	if err != nil {
		t.Fatalf("ParseDescriptor(%s) error = %v", raw, err)
	}
	return desc
}

// collectFires returns a callback that sends each fired workflow ID on the
// returned channel.
func collectFires() (FireCallback, chan int64) {
	fired := make(chan int64, 16)
	return func(workflowID int64) {
		fired <- workflowID
	}, fired
}

func waitFire(t *testing.T, fired chan int64) int64 {
	t.Helper()

	select {
	case id := <-fired:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fire callback")
		return 0
	}
}

func assertNoFire(t *testing.T, fired chan int64) {
	t.Helper()

	select {
	case id := <-fired:
		t.Fatalf("unexpected fire for workflow %d", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil)
	defer r.Shutdown() //nolint:errcheck

	callback, _ := collectFires()
	next, err := r.Register(3, "daily-report", mustDescriptor(t, `{"type":"cron","expression":"0 9 * * *"}`), callback)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if next == nil {
		t.Fatal("Register() next = nil, want a time")
	}
	if next.Hour() != 9 || next.Minute() != 0 || next.Second() != 0 {
		t.Errorf("Register() next = %v, want a 09:00:00 boundary", next)
	}
	if !next.After(time.Now().UTC().Add(-time.Second)) {
		t.Errorf("Register() next = %v, in the past", next)
	}
}

func TestRegistry_Register_ReplacesExisting(t *testing.T) {
	r := NewRegistry(nil)
	defer r.Shutdown() //nolint:errcheck

	callback, fired := collectFires()

	if _, err := r.Register(7, "first", mustDescriptor(t, `{"type":"interval","hours":6}`), callback); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := r.Register(7, "second", mustDescriptor(t, `{"type":"interval","minutes":1}`), callback); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	infos := r.List()
	if len(infos) != 1 {
		t.Fatalf("List() count = %d, want 1", len(infos))
	}
	if infos[0].Name != "second" {
		t.Errorf("List() name = %q, want %q", infos[0].Name, "second")
	}
	if infos[0].Summary != "every 1m0s" {
		t.Errorf("List() summary = %q, want the replacement config", infos[0].Summary)
	}

	// Only the replacement schedule fires: one minute due, not six hours.
	now := time.Now().UTC()
	if n := r.processDue(now.Add(61 * time.Second)); n != 1 {
		t.Errorf("processDue() = %d, want 1", n)
	}
	if id := waitFire(t, fired); id != 7 {
		t.Errorf("fired workflow = %d, want 7", id)
	}
	assertNoFire(t, fired)
}

func TestRegistry_Unregister_UnknownIsNoop(t *testing.T) {
	r := NewRegistry(nil)
	defer r.Shutdown() //nolint:errcheck

	// Must not panic or error.
	r.Unregister(404)

	if got := len(r.List()); got != 0 {
		t.Errorf("List() count = %d, want 0", got)
	}
}

func TestRegistry_List_InsertionOrder(t *testing.T) {
	r := NewRegistry(nil)
	defer r.Shutdown() //nolint:errcheck

	callback, _ := collectFires()
	for _, id := range []int64{5, 1, 9} {
		if _, err := r.Register(id, "wf", mustDescriptor(t, `{"type":"interval","minutes":10}`), callback); err != nil {
			t.Fatalf("Register(%d) error = %v", id, err)
		}
	}

	infos := r.List()
	want := []int64{5, 1, 9}
	if len(infos) != len(want) {
		t.Fatalf("List() count = %d, want %d", len(infos), len(want))
	}
	for i, info := range infos {
		if info.WorkflowID != want[i] {
			t.Errorf("List()[%d] = %d, want %d", i, info.WorkflowID, want[i])
		}
	}
}

func TestRegistry_ProcessDue_IntervalFire(t *testing.T) {
	r := NewRegistry(nil)
	defer r.Shutdown() //nolint:errcheck

	callback, fired := collectFires()
	registeredAt := time.Now().UTC()

	if _, err := r.Register(7, "minutely", mustDescriptor(t, `{"type":"interval","minutes":1}`), callback); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Not due yet.
	if n := r.processDue(registeredAt.Add(30 * time.Second)); n != 0 {
		t.Errorf("processDue(+30s) = %d, want 0", n)
	}
	assertNoFire(t, fired)

	// 61 seconds in: exactly one fire.
	if n := r.processDue(registeredAt.Add(61 * time.Second)); n != 1 {
		t.Errorf("processDue(+61s) = %d, want 1", n)
	}
	if id := waitFire(t, fired); id != 7 {
		t.Errorf("fired workflow = %d, want 7", id)
	}

	// Same instant again: already re-anchored, nothing due.
	if n := r.processDue(registeredAt.Add(61 * time.Second)); n != 0 {
		t.Errorf("repeated processDue(+61s) = %d, want 0", n)
	}
	assertNoFire(t, fired)
}

func TestRegistry_PauseResume(t *testing.T) {
	r := NewRegistry(nil)
	defer r.Shutdown() //nolint:errcheck

	callback, fired := collectFires()
	start := time.Now().UTC()

	if _, err := r.Register(2, "pausable", mustDescriptor(t, `{"type":"interval","minutes":1}`), callback); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	r.Pause(2)

	if n := r.processDue(start.Add(2 * time.Minute)); n != 0 {
		t.Errorf("processDue() while paused = %d, want 0", n)
	}
	assertNoFire(t, fired)

	infos := r.List()
	if len(infos) != 1 || !infos[0].Paused {
		t.Errorf("List() = %+v, want one paused handle", infos)
	}

	r.Resume(2)

	// Resume re-anchors to now, so the handle is due one period later.
	if n := r.processDue(time.Now().UTC().Add(61 * time.Second)); n != 1 {
		t.Errorf("processDue() after resume = %d, want 1", n)
	}
	if id := waitFire(t, fired); id != 2 {
		t.Errorf("fired workflow = %d, want 2", id)
	}

	// Pause/resume of unknown IDs are no-ops.
	r.Pause(404)
	r.Resume(404)
}

func TestRegistry_OverlapSkipped(t *testing.T) {
	r := NewRegistry(nil)
	defer r.Shutdown() //nolint:errcheck

	release := make(chan struct{})
	started := make(chan struct{}, 4)
	callback := func(workflowID int64) {
		started <- struct{}{}
		<-release
	}

	start := time.Now().UTC()
	if _, err := r.Register(1, "slow", mustDescriptor(t, `{"type":"interval","seconds":30}`), callback); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if n := r.processDue(start.Add(31 * time.Second)); n != 1 {
		t.Fatalf("first processDue() = %d, want 1", n)
	}
	<-started

	// Second period elapses while the first fire is still running: skipped,
	// not queued.
	if n := r.processDue(start.Add(62 * time.Second)); n != 0 {
		t.Errorf("overlapping processDue() = %d, want 0", n)
	}

	close(release)

	// After the execution finishes the next period fires again. Every
	// skipped attempt re-anchors the next fire, so each probe moves past
	// the previous anchor.
	deadline := time.Now().Add(2 * time.Second)
	probe := start.Add(95 * time.Second)
	for {
		if n := r.processDue(probe); n == 1 {
			break
		}
		probe = probe.Add(31 * time.Second)
		if time.Now().After(deadline) {
			t.Fatal("schedule never fired after slow execution finished")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRegistry_UnregisterDuringInflightFire(t *testing.T) {
	r := NewRegistry(&RegistryConfig{ShutdownTimeout: 2 * time.Second})

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	callback := func(workflowID int64) {
		started <- struct{}{}
		<-release
	}

	start := time.Now().UTC()
	if _, err := r.Register(6, "inflight", mustDescriptor(t, `{"type":"interval","seconds":10}`), callback); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if n := r.processDue(start.Add(11 * time.Second)); n != 1 {
		t.Fatalf("processDue() = %d, want 1", n)
	}
	<-started

	// Unregister must return immediately, without waiting for the callback.
	done := make(chan struct{})
	go func() {
		r.Unregister(6)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Unregister() blocked on in-flight fire")
	}

	if got := len(r.List()); got != 0 {
		t.Errorf("List() count = %d, want 0", got)
	}

	// Shutdown waits for the still-running callback.
	close(release)
	if err := r.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestRegistry_Shutdown_Idempotent(t *testing.T) {
	r := NewRegistry(nil)

	callback, _ := collectFires()
	if _, err := r.Register(1, "wf", mustDescriptor(t, `{"type":"interval","minutes":1}`), callback); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := r.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if got := len(r.List()); got != 0 {
		t.Errorf("List() after shutdown = %d, want 0", got)
	}

	if err := r.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
	if got := len(r.List()); got != 0 {
		t.Errorf("List() after second shutdown = %d, want 0", got)
	}

	if _, err := r.Register(2, "late", mustDescriptor(t, `{"type":"interval","minutes":1}`), callback); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("Register() after shutdown error = %v, want ErrRegistryClosed", err)
	}
}

func TestRegistry_Shutdown_TimesOutOnStuckFire(t *testing.T) {
	r := NewRegistry(&RegistryConfig{ShutdownTimeout: 100 * time.Millisecond})

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	callback := func(workflowID int64) {
		started <- struct{}{}
		<-release
	}
	defer close(release)

	start := time.Now().UTC()
	if _, err := r.Register(1, "stuck", mustDescriptor(t, `{"type":"interval","seconds":5}`), callback); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if n := r.processDue(start.Add(6 * time.Second)); n != 1 {
		t.Fatalf("processDue() = %d, want 1", n)
	}
	<-started

	if err := r.Shutdown(); err == nil {
		t.Error("Shutdown() error = nil, want timeout error")
	}
}

func TestRegistry_StartShutdown(t *testing.T) {
	r := NewRegistry(&RegistryConfig{PollInterval: 20 * time.Millisecond})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Start(context.Background()); err == nil {
		t.Error("second Start() error = nil, want already-started error")
	}

	callback, fired := collectFires()
	if _, err := r.Register(9, "fast", mustDescriptor(t, `{"type":"interval","seconds":1}`), callback); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// The poll loop picks the schedule up on its own.
	if id := waitFire(t, fired); id != 9 {
		t.Errorf("fired workflow = %d, want 9", id)
	}

	if err := r.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	if err := r.Start(context.Background()); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("Start() after shutdown error = %v, want ErrRegistryClosed", err)
	}
}

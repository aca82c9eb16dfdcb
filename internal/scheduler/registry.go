package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thornlabs/pulse/internal/metrics"
)

// ErrRegistryClosed is returned when the registry has been shut down and
// can no longer accept registrations or start its poll loop.
var ErrRegistryClosed = errors.New("schedule registry is closed")

// FireCallback runs every time a registered workflow's schedule fires.
type FireCallback func(workflowID int64)

// handle is the process-local state for one registered workflow. At most
// one handle exists per workflow ID.
type handle struct {
	workflowID int64
	name       string
	desc       *Descriptor
	callback   FireCallback
	nextFire   time.Time // zero means the schedule can never fire again
	paused     bool
}

// HandleInfo is a read-only snapshot of a registered schedule.
type HandleInfo struct {
	WorkflowID int64
	Name       string
	NextFire   *time.Time
	Paused     bool
	Summary    string
}

// RegistryConfig holds configuration for Registry.
type RegistryConfig struct {
	// PollInterval is how often to check for due schedules (default: 1 second).
	PollInterval time.Duration

	// ShutdownTimeout bounds how long Shutdown waits for in-flight fires
	// (default: 30 seconds).
	ShutdownTimeout time.Duration
}

// Registry is the in-memory mapping from workflow ID to active schedule
// handle. All mutations go through a single mutex so register/unregister
// calls and the background firing mechanism never race.
type Registry struct {
	mu      sync.Mutex
	handles map[int64]*handle
	order   []int64        // registration order, for deterministic listings
	running map[int64]bool // workflow IDs with an in-flight fire

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
	closed  bool

	pollInterval    time.Duration
	shutdownTimeout time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry(config *RegistryConfig) *Registry {
	if config == nil {
		config = &RegistryConfig{}
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	return &Registry{
		handles:         make(map[int64]*handle),
		running:         make(map[int64]bool),
		pollInterval:    config.PollInterval,
		shutdownTimeout: config.ShutdownTimeout,
	}
}

// Start begins the background poll loop. It fails with ErrRegistryClosed
// after Shutdown, which the owning process treats as fatal to the
// scheduling subsystem.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if r.started {
		return fmt.Errorf("schedule registry already started")
	}
	r.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.pollLoop(loopCtx)

	log.Info().
		Dur("poll_interval", r.pollInterval).
		Msg("Schedule registry started")

	return nil
}

func (r *Registry) pollLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.processDue(time.Now().UTC())
		}
	}
}

// Register binds a workflow to a schedule descriptor. If the workflow is
// already registered the previous handle is replaced, never duplicated.
// It returns the computed next-fire time, or nil if the descriptor can
// never fire (logged, not an error).
func (r *Registry) Register(workflowID int64, name string, desc *Descriptor, callback FireCallback) (*time.Time, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	if _, exists := r.handles[workflowID]; exists {
		r.removeLocked(workflowID)
		log.Debug().
			Int64("workflow_id", workflowID).
			Msg("Replacing existing schedule registration")
	}

	h := &handle{
		workflowID: workflowID,
		name:       name,
		desc:       desc,
		callback:   callback,
		nextFire:   desc.Next(now),
	}
	r.handles[workflowID] = h
	r.order = append(r.order, workflowID)
	metrics.SetRegisteredSchedules(len(r.handles))

	if h.nextFire.IsZero() {
		log.Warn().
			Int64("workflow_id", workflowID).
			Str("workflow_name", name).
			Str("schedule", desc.Summary()).
			Msg("Schedule will never fire")
		return nil, nil
	}

	log.Info().
		Int64("workflow_id", workflowID).
		Str("workflow_name", name).
		Str("schedule", desc.Summary()).
		Time("next_fire", h.nextFire).
		Msg("Schedule registered")

	next := h.nextFire
	return &next, nil
}

// Unregister removes a workflow's handle. Unknown IDs are a no-op. An
// in-flight fire for the workflow is not interrupted; it just has no next
// fire.
func (r *Registry) Unregister(workflowID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[workflowID]; !exists {
		return
	}

	r.removeLocked(workflowID)
	metrics.SetRegisteredSchedules(len(r.handles))

	log.Info().
		Int64("workflow_id", workflowID).
		Msg("Schedule unregistered")
}

// removeLocked deletes the handle and its insertion-order entry. Caller
// holds the mutex.
func (r *Registry) removeLocked(workflowID int64) {
	delete(r.handles, workflowID)
	for i, id := range r.order {
		if id == workflowID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Pause suspends firing without discarding the handle. No-op for unknown
// IDs.
func (r *Registry) Pause(workflowID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, exists := r.handles[workflowID]
	if !exists || h.paused {
		return
	}
	h.paused = true

	log.Info().
		Int64("workflow_id", workflowID).
		Str("workflow_name", h.name).
		Msg("Schedule paused")
}

// Resume reactivates a paused handle. The next fire is recomputed from the
// current time so fires missed while paused are not replayed.
func (r *Registry) Resume(workflowID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, exists := r.handles[workflowID]
	if !exists || !h.paused {
		return
	}
	h.paused = false
	h.nextFire = h.desc.Next(time.Now().UTC())

	log.Info().
		Int64("workflow_id", workflowID).
		Str("workflow_name", h.name).
		Time("next_fire", h.nextFire).
		Msg("Schedule resumed")
}

// List returns a snapshot of every registered handle in registration
// order.
func (r *Registry) List() []HandleInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]HandleInfo, 0, len(r.order))
	for _, id := range r.order {
		h := r.handles[id]
		info := HandleInfo{
			WorkflowID: h.workflowID,
			Name:       h.name,
			Paused:     h.paused,
			Summary:    h.desc.Summary(),
		}
		if !h.nextFire.IsZero() {
			next := h.nextFire
			info.NextFire = &next
		}
		infos = append(infos, info)
	}

	return infos
}

// processDue fires every handle whose next-fire time is at or before now,
// and returns how many fires were dispatched. A workflow whose previous
// fire is still running is skipped, not queued; its next fire is advanced
// anyway so the schedule keeps its cadence.
func (r *Registry) processDue(now time.Time) int {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return 0
	}

	var due []*handle
	for _, id := range r.order {
		h := r.handles[id]
		if h.paused || h.nextFire.IsZero() || h.nextFire.After(now) {
			continue
		}

		h.nextFire = h.desc.Next(now)

		if r.running[id] {
			metrics.RecordOverlapSkip()
			log.Debug().
				Int64("workflow_id", id).
				Str("workflow_name", h.name).
				Msg("Skipping fire, previous execution still running")
			continue
		}

		r.running[id] = true
		r.wg.Add(1)
		due = append(due, h)
	}

	r.mu.Unlock()

	// Each fire gets its own goroutine so one slow execution never holds
	// up another workflow's schedule.
	for _, h := range due {
		go r.fire(h)
	}

	return len(due)
}

func (r *Registry) fire(h *handle) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		delete(r.running, h.workflowID)
		r.mu.Unlock()
	}()

	h.callback(h.workflowID)
}

// Shutdown cancels the poll loop, discards all handles, and waits up to
// the configured timeout for in-flight fires to finish. Safe to call more
// than once.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		if r.cancel != nil {
			r.cancel()
		}
	}
	r.handles = make(map[int64]*handle)
	r.order = nil
	r.mu.Unlock()

	metrics.SetRegisteredSchedules(0)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Schedule registry stopped")
		return nil
	case <-time.After(r.shutdownTimeout):
		log.Warn().
			Dur("timeout", r.shutdownTimeout).
			Msg("Shutdown timed out waiting for in-flight fires")
		return fmt.Errorf("shutdown timed out after %s waiting for in-flight fires", r.shutdownTimeout)
	}
}

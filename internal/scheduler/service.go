package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thornlabs/pulse/internal/workflows"
)

var (
	// ErrNotSchedulable is returned when a workflow's trigger type is not
	// "schedule".
	ErrNotSchedulable = errors.New("workflow does not have a schedule trigger")
	// ErrWorkflowDisabled is returned when registering a disabled workflow.
	ErrWorkflowDisabled = errors.New("workflow is disabled")
)

// Service is the administrative surface over the registry, for callers
// like the CLI: register-from-definition, unregister, pause, resume,
// list-active. The registry itself stays oblivious to storage; keeping it
// synchronized with the workflows table is this layer's job.
type Service struct {
	store      *workflows.Store
	registry   *Registry
	dispatcher *Dispatcher
}

// NewService creates the administrative service.
func NewService(store *workflows.Store, registry *Registry, dispatcher *Dispatcher) *Service {
	return &Service{
		store:      store,
		registry:   registry,
		dispatcher: dispatcher,
	}
}

// RegisterFromDefinition (re)registers a workflow from its stored
// definition, replacing any existing registration. Call it whenever a
// workflow's trigger changes.
func (s *Service) RegisterFromDefinition(ctx context.Context, workflowID int64) (*time.Time, error) {
	def, err := s.store.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if def.TriggerType != workflows.TriggerTypeSchedule {
		return nil, fmt.Errorf("%w: %d has trigger type %q", ErrNotSchedulable, workflowID, def.TriggerType)
	}
	if !def.Enabled {
		return nil, fmt.Errorf("%w: %d", ErrWorkflowDisabled, workflowID)
	}

	desc, err := ParseDescriptor(def.TriggerConfig)
	if err != nil {
		return nil, err
	}

	return s.registry.Register(def.ID, def.Name, desc, s.dispatcher.Fire)
}

// Unregister removes a workflow's schedule. Unknown IDs are a no-op.
func (s *Service) Unregister(workflowID int64) {
	s.registry.Unregister(workflowID)
}

// Pause suspends a workflow's schedule without discarding it.
func (s *Service) Pause(workflowID int64) {
	s.registry.Pause(workflowID)
}

// Resume reactivates a paused schedule.
func (s *Service) Resume(workflowID int64) {
	s.registry.Resume(workflowID)
}

// ListActive returns a snapshot of every registered schedule.
func (s *Service) ListActive() []HandleInfo {
	return s.registry.List()
}

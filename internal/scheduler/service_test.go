package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/thornlabs/pulse/internal/workflows"
)

func newTestService(t *testing.T) (*Service, *workflows.Store, *Registry) {
	t.Helper()

	db := testDB(t)
	store := workflows.NewStore(db)

	r := NewRegistry(nil)
	t.Cleanup(func() {
		r.Shutdown() //nolint:errcheck
	})

	d := NewDispatcher(newRecordingExecutor(), nil, nil)

	return NewService(store, r, d), store, r
}

func TestService_RegisterFromDefinition(t *testing.T) {
	svc, store, r := newTestService(t)

	def := seedWorkflow(t, store, "hourly", workflows.TriggerTypeSchedule, `{"type":"interval","hours":1}`, true)

	next, err := svc.RegisterFromDefinition(context.Background(), def.ID)
	if err != nil {
		t.Fatalf("RegisterFromDefinition() error = %v", err)
	}
	if next == nil {
		t.Fatal("next fire = nil, want a time")
	}

	active := r.List()
	if len(active) != 1 || active[0].WorkflowID != def.ID {
		t.Errorf("List() = %+v, want single entry for %d", active, def.ID)
	}
}

func TestService_RegisterFromDefinition_Errors(t *testing.T) {
	svc, store, _ := newTestService(t)

	manual := seedWorkflow(t, store, "manual", workflows.TriggerTypeManual, `{}`, true)
	disabled := seedWorkflow(t, store, "disabled", workflows.TriggerTypeSchedule, `{"type":"interval","minutes":5}`, false)
	malformed := seedWorkflow(t, store, "malformed", workflows.TriggerTypeSchedule, `{"type":"cron"}`, true)

	tests := []struct {
		name       string
		workflowID int64
		wantErr    error
	}{
		{"unknown workflow", 9999, workflows.ErrNotFound},
		{"manual trigger", manual.ID, ErrNotSchedulable},
		{"disabled workflow", disabled.ID, ErrWorkflowDisabled},
		{"malformed trigger config", malformed.ID, ErrMissingCronExpression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterFromDefinition(context.Background(), tt.workflowID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RegisterFromDefinition() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_PauseResumeUnregister(t *testing.T) {
	svc, store, _ := newTestService(t)

	def := seedWorkflow(t, store, "cycle", workflows.TriggerTypeSchedule, `{"type":"interval","minutes":1}`, true)
	if _, err := svc.RegisterFromDefinition(context.Background(), def.ID); err != nil {
		t.Fatalf("RegisterFromDefinition() error = %v", err)
	}

	svc.Pause(def.ID)
	if active := svc.ListActive(); len(active) != 1 || !active[0].Paused {
		t.Errorf("after Pause, ListActive() = %+v, want one paused entry", active)
	}

	svc.Resume(def.ID)
	if active := svc.ListActive(); len(active) != 1 || active[0].Paused {
		t.Errorf("after Resume, ListActive() = %+v, want one active entry", active)
	}

	svc.Unregister(def.ID)
	if active := svc.ListActive(); len(active) != 0 {
		t.Errorf("after Unregister, ListActive() = %+v, want empty", active)
	}

	// Unregistering again is a no-op.
	svc.Unregister(def.ID)
}

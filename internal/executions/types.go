// Package executions records the outcome of dispatched workflow fires.
package executions

import "time"

// RunStatus represents the status of a workflow run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is currently in progress.
	RunStatusRunning RunStatus = "running"
	// RunStatusSuccess indicates the run completed successfully.
	RunStatusSuccess RunStatus = "success"
	// RunStatusFailed indicates the run failed with an error.
	RunStatusFailed RunStatus = "failed"
)

// Run is one dispatched execution of a workflow.
type Run struct {
	ID          string     // Unique run ID
	WorkflowID  int64      // Workflow that was executed
	TriggeredBy string     // What caused the run ("schedule", "manual", ...)
	TriggeredAt time.Time  // When the trigger fired
	Status      RunStatus  // Run status
	StartedAt   time.Time  // When dispatch started
	CompletedAt *time.Time // When the run completed (nil if still running)
	DurationMs  int        // Run duration in milliseconds
	Error       string     // Error message if failed
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thornlabs/pulse/internal/executions"
	"github.com/thornlabs/pulse/internal/metrics"
)

// TriggeredBySchedule marks execution contexts produced by schedule fires.
const TriggeredBySchedule = "schedule"

// ExecutionContext is the transient value handed to the executor on each
// fire. The scheduling core does not persist it.
type ExecutionContext struct {
	TriggeredBy string    `json:"triggered_by"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// ExecutionResult is the executor's report of a single run.
type ExecutionResult struct {
	Success bool
	Error   string
}

// Executor is the external collaborator that carries out a workflow's
// actions. Opaque to the scheduling core; invoked by ID.
type Executor interface {
	Execute(ctx context.Context, workflowID int64, ec ExecutionContext) (*ExecutionResult, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, workflowID int64, ec ExecutionContext) (*ExecutionResult, error)

func (f ExecutorFunc) Execute(ctx context.Context, workflowID int64, ec ExecutionContext) (*ExecutionResult, error) {
	return f(ctx, workflowID, ec)
}

// DispatcherConfig holds configuration for Dispatcher.
type DispatcherConfig struct {
	// Timeout bounds each executor call (0 = no deadline).
	Timeout time.Duration
}

// Dispatcher turns fire events into executor calls. Failures and panics
// are contained here: a broken execution is logged and recorded, and the
// workflow stays registered for its next fire. There is no retry; the next
// scheduled fire is the only retry path.
type Dispatcher struct {
	executor Executor
	runs     *executions.Store // optional; nil disables run records
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher. runs may be nil to skip run records.
func NewDispatcher(executor Executor, runs *executions.Store, config *DispatcherConfig) *Dispatcher {
	if config == nil {
		config = &DispatcherConfig{}
	}

	return &Dispatcher{
		executor: executor,
		runs:     runs,
		timeout:  config.Timeout,
	}
}

// Fire handles one schedule fire for a workflow. It satisfies
// FireCallback.
func (d *Dispatcher) Fire(workflowID int64) {
	ec := ExecutionContext{
		TriggeredBy: TriggeredBySchedule,
		TriggeredAt: time.Now().UTC(),
	}

	run := d.recordStart(workflowID, ec)

	start := time.Now()
	result, err := d.execute(workflowID, ec)
	elapsed := time.Since(start)

	status := executions.RunStatusSuccess
	errMsg := ""

	switch {
	case err != nil:
		status = executions.RunStatusFailed
		errMsg = err.Error()
		log.Error().
			Err(err).
			Int64("workflow_id", workflowID).
			Dur("elapsed", elapsed).
			Msg("Workflow execution failed, schedule unaffected")
	case result != nil && !result.Success:
		status = executions.RunStatusFailed
		errMsg = result.Error
		log.Warn().
			Int64("workflow_id", workflowID).
			Str("error", result.Error).
			Dur("elapsed", elapsed).
			Msg("Workflow execution reported failure")
	default:
		log.Info().
			Int64("workflow_id", workflowID).
			Dur("elapsed", elapsed).
			Msg("Workflow executed")
	}

	metrics.RecordFire(string(status), elapsed.Seconds())
	d.recordFinish(run, status, errMsg, elapsed)
}

// execute calls the executor with panic containment. A panicking executor
// must never take down the scheduling subsystem or another workflow's
// schedule.
func (d *Dispatcher) execute(workflowID int64, ec ExecutionContext) (result *ExecutionResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("executor panic: %v", p)
		}
	}()

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	return d.executor.Execute(ctx, workflowID, ec)
}

// recordStart opens a run record. Record-keeping failures are logged and
// otherwise ignored; they must not block dispatch.
func (d *Dispatcher) recordStart(workflowID int64, ec ExecutionContext) *executions.Run {
	if d.runs == nil {
		return nil
	}

	run := &executions.Run{
		WorkflowID:  workflowID,
		TriggeredBy: ec.TriggeredBy,
		TriggeredAt: ec.TriggeredAt,
	}
	if err := d.runs.Start(context.Background(), run); err != nil {
		log.Error().
			Err(err).
			Int64("workflow_id", workflowID).
			Msg("Failed to record workflow run start")
		return nil
	}

	return run
}

func (d *Dispatcher) recordFinish(run *executions.Run, status executions.RunStatus, errMsg string, elapsed time.Duration) {
	if run == nil {
		return
	}

	if err := d.runs.Finish(context.Background(), run.ID, status, errMsg, elapsed); err != nil {
		log.Error().
			Err(err).
			Str("run_id", run.ID).
			Int64("workflow_id", run.WorkflowID).
			Msg("Failed to record workflow run outcome")
	}
}

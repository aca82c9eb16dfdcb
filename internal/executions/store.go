package executions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/thornlabs/pulse/internal/database"
)

// ErrRunNotFound is returned when a run record does not exist.
var ErrRunNotFound = errors.New("workflow run not found")

// Store handles database operations for workflow runs.
type Store struct {
	db *database.DB
}

// NewStore creates a new run store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Start inserts a new run record in the running state and assigns its ID.
func (s *Store) Start(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = RunStatusRunning

	query := `
		INSERT INTO workflow_runs (id, workflow_id, triggered_by, triggered_at, status, started_at, completed_at, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, NULL, 0, '')
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.WorkflowID,
		run.TriggeredBy,
		run.TriggeredAt.UTC().Format(time.RFC3339),
		string(run.Status),
		run.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting workflow run: %w", err)
	}

	return nil
}

// Finish marks a run as completed with the given status.
func (s *Store) Finish(ctx context.Context, runID string, status RunStatus, runErr string, duration time.Duration) error {
	query := `
		UPDATE workflow_runs
		SET status = ?, completed_at = ?, duration_ms = ?, error = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(status),
		time.Now().UTC().Format(time.RFC3339),
		duration.Milliseconds(),
		runErr,
		runID,
	)
	if err != nil {
		return fmt.Errorf("updating workflow run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return nil
}

// Get retrieves a run by ID.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	query := `
		SELECT id, workflow_id, triggered_by, triggered_at, status, started_at, completed_at, duration_ms, error
		FROM workflow_runs
		WHERE id = ?
	`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("querying workflow run: %w", err)
	}

	return run, nil
}

// ListByWorkflow retrieves the most recent runs for a workflow, newest
// first.
func (s *Store) ListByWorkflow(ctx context.Context, workflowID int64, limit int) ([]*Run, error) {
	query := `
		SELECT id, workflow_id, triggered_by, triggered_at, status, started_at, completed_at, duration_ms, error
		FROM workflow_runs
		WHERE workflow_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying workflow runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workflow run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workflow runs: %w", err)
	}

	return runs, nil
}

// PruneBefore deletes completed runs older than the cutoff and returns how
// many were removed. Running records are kept regardless of age.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM workflow_runs
		WHERE status != ? AND started_at < ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(RunStatusRunning),
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning workflow runs: %w", err)
	}

	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var status string
	var triggeredAt, startedAt string
	var completedAt sql.NullString

	err := row.Scan(
		&run.ID,
		&run.WorkflowID,
		&run.TriggeredBy,
		&triggeredAt,
		&status,
		&startedAt,
		&completedAt,
		&run.DurationMs,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)

	t, parseErr := time.Parse(time.RFC3339, triggeredAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing triggered_at: %w", parseErr)
	}
	run.TriggeredAt = t

	t, parseErr = time.Parse(time.RFC3339, startedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing started_at: %w", parseErr)
	}
	run.StartedAt = t

	if completedAt.Valid {
		t, parseErr = time.Parse(time.RFC3339, completedAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", parseErr)
		}
		run.CompletedAt = &t
	}

	return &run, nil
}

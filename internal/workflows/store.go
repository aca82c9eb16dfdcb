package workflows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thornlabs/pulse/internal/database"
)

// ErrNotFound is returned when a workflow definition does not exist.
var ErrNotFound = errors.New("workflow not found")

// Store handles database operations for workflow definitions.
type Store struct {
	db *database.DB
}

// NewStore creates a new workflow store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new workflow definition and assigns its ID.
func (s *Store) Create(ctx context.Context, def *Definition) error {
	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	if def.UpdatedAt.IsZero() {
		def.UpdatedAt = now
	}
	if def.TriggerType == "" {
		def.TriggerType = TriggerTypeManual
	}
	if len(def.TriggerConfig) == 0 {
		def.TriggerConfig = []byte("{}")
	}

	query := `
		INSERT INTO workflows (user_id, name, trigger_type, trigger_config, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		def.UserID,
		def.Name,
		string(def.TriggerType),
		string(def.TriggerConfig),
		boolToInt(def.Enabled),
		def.CreatedAt.Format(time.RFC3339),
		def.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting workflow: %w", database.ClassifyError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting workflow id: %w", err)
	}
	def.ID = id

	return nil
}

// Update rewrites an existing workflow definition.
func (s *Store) Update(ctx context.Context, def *Definition) error {
	def.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE workflows
		SET user_id = ?, name = ?, trigger_type = ?, trigger_config = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		def.UserID,
		def.Name,
		string(def.TriggerType),
		string(def.TriggerConfig),
		boolToInt(def.Enabled),
		def.UpdatedAt.Format(time.RFC3339),
		def.ID,
	)
	if err != nil {
		return fmt.Errorf("updating workflow: %w", database.ClassifyError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, def.ID)
	}

	return nil
}

// SetEnabled flips the enabled flag without touching the rest of the definition.
func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	query := `UPDATE workflows SET enabled = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		boolToInt(enabled),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating enabled flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return nil
}

// Delete removes a workflow definition.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting workflow: %w", err)
	}
	return nil
}

// Get retrieves a workflow definition by ID.
func (s *Store) Get(ctx context.Context, id int64) (*Definition, error) {
	query := `
		SELECT id, user_id, name, trigger_type, trigger_config, enabled, created_at, updated_at
		FROM workflows
		WHERE id = ?
	`

	def, err := scanDefinition(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("getting workflow: %w", err)
	}

	return def, nil
}

// List retrieves all workflow definitions ordered by creation.
func (s *Store) List(ctx context.Context) ([]*Definition, error) {
	query := `
		SELECT id, user_id, name, trigger_type, trigger_config, enabled, created_at, updated_at
		FROM workflows
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying workflows: %w", err)
	}
	defer rows.Close()

	return scanDefinitions(rows)
}

// ListScheduled retrieves workflows eligible for schedule registration:
// enabled, with a schedule trigger.
func (s *Store) ListScheduled(ctx context.Context) ([]*Definition, error) {
	query := `
		SELECT id, user_id, name, trigger_type, trigger_config, enabled, created_at, updated_at
		FROM workflows
		WHERE trigger_type = ? AND enabled = 1
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, string(TriggerTypeSchedule))
	if err != nil {
		return nil, fmt.Errorf("querying scheduled workflows: %w", err)
	}
	defer rows.Close()

	return scanDefinitions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*Definition, error) {
	var def Definition
	var triggerType, triggerConfig string
	var enabled int
	var createdAt, updatedAt string

	err := row.Scan(
		&def.ID,
		&def.UserID,
		&def.Name,
		&triggerType,
		&triggerConfig,
		&enabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	def.TriggerType = TriggerType(triggerType)
	def.TriggerConfig = []byte(triggerConfig)
	def.Enabled = enabled == 1

	createdAtTime, parseErr := time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	def.CreatedAt = createdAtTime

	updatedAtTime, parseErr := time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	def.UpdatedAt = updatedAtTime

	return &def, nil
}

func scanDefinitions(rows *sql.Rows) ([]*Definition, error) {
	var defs []*Definition

	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workflow row: %w", err)
		}
		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workflow rows: %w", err)
	}

	return defs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

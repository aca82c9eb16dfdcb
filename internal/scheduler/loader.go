package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thornlabs/pulse/internal/workflows"
)

// Loader registers all eligible stored workflows at startup.
type Loader struct {
	store    *workflows.Store
	registry *Registry
	callback FireCallback
}

// NewLoader creates a loader that registers fires against the given
// dispatcher.
func NewLoader(store *workflows.Store, registry *Registry, dispatcher *Dispatcher) *Loader {
	return &Loader{
		store:    store,
		registry: registry,
		callback: dispatcher.Fire,
	}
}

// LoadResult is the per-workflow outcome of a bootstrap load.
type LoadResult struct {
	WorkflowID int64
	Name       string
	NextFire   *time.Time
	Err        error
}

// LoadSummary aggregates a bootstrap load.
type LoadSummary struct {
	Registered int
	Skipped    int
	Results    []LoadResult
}

// LoadAll reads every enabled schedule-triggered workflow definition and
// registers it. A parse or registration failure for one workflow is
// recorded in its result and skipped; it never aborts the rest of the
// load. Only a storage failure is fatal.
func (l *Loader) LoadAll(ctx context.Context) (*LoadSummary, error) {
	defs, err := l.store.ListScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading scheduled workflows: %w", err)
	}

	summary := &LoadSummary{}

	for _, def := range defs {
		result := l.loadOne(def)
		summary.Results = append(summary.Results, result)

		if result.Err != nil {
			summary.Skipped++
			log.Warn().
				Err(result.Err).
				Int64("workflow_id", def.ID).
				Str("workflow_name", def.Name).
				Msg("Skipping workflow with unusable schedule")
			continue
		}
		summary.Registered++
	}

	log.Info().
		Int("registered", summary.Registered).
		Int("skipped", summary.Skipped).
		Msg("Scheduled workflows loaded")

	return summary, nil
}

func (l *Loader) loadOne(def *workflows.Definition) LoadResult {
	result := LoadResult{
		WorkflowID: def.ID,
		Name:       def.Name,
	}

	desc, err := ParseDescriptor(def.TriggerConfig)
	if err != nil {
		result.Err = err
		return result
	}

	next, err := l.registry.Register(def.ID, def.Name, desc, l.callback)
	if err != nil {
		result.Err = err
		return result
	}
	result.NextFire = next

	return result
}

// Package workflows persists workflow definitions.
package workflows

import (
	"encoding/json"
	"time"
)

// TriggerType says how a workflow gets started.
type TriggerType string

const (
	// TriggerTypeSchedule marks workflows fired by the schedule registry.
	TriggerTypeSchedule TriggerType = "schedule"
	// TriggerTypeWebhook marks workflows fired by an inbound webhook.
	TriggerTypeWebhook TriggerType = "webhook"
	// TriggerTypeManual marks workflows fired only on explicit request.
	TriggerTypeManual TriggerType = "manual"
)

// Definition is a persisted workflow definition. The scheduling core reads
// these; creating and editing them is the administrative layer's job.
type Definition struct {
	ID            int64           // Unique workflow ID
	UserID        int64           // Owning user
	Name          string          // Display name (used in logs)
	TriggerType   TriggerType     // How the workflow is started
	TriggerConfig json.RawMessage // Trigger configuration (JSON, schema per scheduler package)
	Enabled       bool            // Whether the workflow is active
	CreatedAt     time.Time       // When the definition was created
	UpdatedAt     time.Time       // When the definition was last updated
}

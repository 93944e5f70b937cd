package entity

import (
	"time"

	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

// HistoryEntry is one audit record of an action taken on a request
type HistoryEntry struct {
	ID         int64            `json:"id"`
	Kind       RequestKind      `json:"kind"`
	RequestID  string           `json:"request_id"`
	ActorID    string           `json:"actor_id"`
	ActorRole  workflow.Role    `json:"actor_role"`
	Action     workflow.Trigger `json:"action"`
	FromStatus workflow.State   `json:"from_status"`
	ToStatus   workflow.State   `json:"to_status"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ActionSubmit records request creation in the audit trail
const ActionSubmit workflow.Trigger = "submit"

// Package jobs schedules per-domain reconciliation work with retry
// bookkeeping.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	// StatusFailed is terminal for this attempt; re-queuing is an external
	// decision.
	StatusFailed Status = "failed"
)

// Job is a scheduled unit of reconciliation work for one (domain, user)
// pair. One job exists per domain.
type Job struct {
	ID            uuid.UUID
	Domain        string
	UserID        uuid.UUID
	Status        Status
	Attempts      int
	LastAttemptAt *time.Time
	LastUpdatedAt time.Time
}

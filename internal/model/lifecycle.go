package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types.
const (
	EventExpired            = "expired"
	EventPermanentlyDeleted = "permanently_deleted"
)

// LifecycleEvent is an append-only record of an automated or manual status
// transition. TriggeredBy is nil for automated events.
type LifecycleEvent struct {
	ID             uuid.UUID
	DocumentID     uuid.UUID
	EventType      string
	EventTimestamp time.Time
	Automated      bool
	TriggeredBy    *uuid.UUID
	Metadata       map[string]any
}

// LifecycleEventStore defines persistence operations for lifecycle events.
type LifecycleEventStore interface {
	Create(ctx context.Context, event LifecycleEvent) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]LifecycleEvent, error)
}

// Cleanup job types.
const (
	JobTypeExpireDocuments = "document_expiration"
	JobTypeCleanupDeleted  = "document_cleanup"
	JobTypeCleanupAudit    = "audit_cleanup"
)

// Cleanup job states.
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// CleanupJob tracks one batch-job execution. It is created at job start,
// finalized exactly once at job end and never mutated afterward.
type CleanupJob struct {
	ID             uuid.UUID
	JobType        string
	StartedAt      time.Time
	CompletedAt    *time.Time
	Status         string
	ItemsProcessed int
	ItemsFailed    int
	ErrorMessage   string
}

// CleanupJobStore defines persistence operations for cleanup job records.
type CleanupJobStore interface {
	Create(ctx context.Context, job CleanupJob) (CleanupJob, error)
	Finalize(ctx context.Context, id uuid.UUID, status string, processed, failed int, errorMessage string) error
	ListSince(ctx context.Context, since time.Time) ([]CleanupJob, error)
}

// LifecycleSetting is a mutable named configuration value read by the
// cleanup engine before each run.
type LifecycleSetting struct {
	Name        string
	Value       string
	Description string
	UpdatedAt   time.Time
}

// LifecycleConfigStore defines persistence operations for lifecycle settings.
type LifecycleConfigStore interface {
	Get(ctx context.Context, name string) (LifecycleSetting, error)
	Set(ctx context.Context, name, value, description string) error
	// SetIfAbsent inserts a default without overwriting an operator-set
	// value. Returns true when the row was inserted.
	SetIfAbsent(ctx context.Context, name, value, description string) (bool, error)
}

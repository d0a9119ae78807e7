package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/briefcase-app/briefcase-server/internal/model"
)

var (
	_ model.LifecycleEventStore  = (*LifecycleEventRepository)(nil)
	_ model.CleanupJobStore      = (*CleanupJobRepository)(nil)
	_ model.LifecycleConfigStore = (*LifecycleConfigRepository)(nil)
)

type LifecycleEventRepository struct {
	db *Connection
}

func NewLifecycleEventRepository(db *Connection) *LifecycleEventRepository {
	return &LifecycleEventRepository{
		db: db,
	}
}

func (r *LifecycleEventRepository) Create(ctx context.Context, event model.LifecycleEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	const query = `
		INSERT INTO document_lifecycle_events (id, document_id, event_type, automated, triggered_by, event_metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, query,
		event.ID, event.DocumentID, event.EventType, event.Automated, event.TriggeredBy, metadata)
	return err
}

func (r *LifecycleEventRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.LifecycleEvent, error) {
	const query = `
		SELECT id, document_id, event_type, event_timestamp, automated, triggered_by, event_metadata
		FROM document_lifecycle_events
		WHERE document_id = $1
		ORDER BY event_timestamp DESC`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.LifecycleEvent
	for rows.Next() {
		var event model.LifecycleEvent
		var metadata []byte
		if err := rows.Scan(&event.ID, &event.DocumentID, &event.EventType,
			&event.EventTimestamp, &event.Automated, &event.TriggeredBy, &metadata); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

type CleanupJobRepository struct {
	db *Connection
}

func NewCleanupJobRepository(db *Connection) *CleanupJobRepository {
	return &CleanupJobRepository{
		db: db,
	}
}

const cleanupJobColumns = `id, job_type, started_at, completed_at, status, items_processed, items_failed, error_message`

func (r *CleanupJobRepository) Create(ctx context.Context, job model.CleanupJob) (model.CleanupJob, error) {
	const query = `
		INSERT INTO cleanup_jobs (id, job_type, status)
		VALUES ($1, $2, $3)
		RETURNING ` + cleanupJobColumns

	var saved model.CleanupJob
	err := r.db.QueryRow(ctx, query, job.ID, job.JobType, job.Status).
		Scan(&saved.ID, &saved.JobType, &saved.StartedAt, &saved.CompletedAt,
			&saved.Status, &saved.ItemsProcessed, &saved.ItemsFailed, &saved.ErrorMessage)
	if err != nil {
		return model.CleanupJob{}, err
	}
	return saved, nil
}

func (r *CleanupJobRepository) Finalize(ctx context.Context, id uuid.UUID, status string, processed, failed int, errorMessage string) error {
	const query = `
		UPDATE cleanup_jobs
		SET status = $2, items_processed = $3, items_failed = $4, error_message = $5, completed_at = NOW()
		WHERE id = $1 AND completed_at IS NULL`

	cmd, err := r.db.Exec(ctx, query, id, status, processed, failed, errorMessage)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *CleanupJobRepository) ListSince(ctx context.Context, since time.Time) ([]model.CleanupJob, error) {
	const query = `
		SELECT ` + cleanupJobColumns + `
		FROM cleanup_jobs
		WHERE started_at >= $1
		ORDER BY started_at DESC`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.CleanupJob
	for rows.Next() {
		var job model.CleanupJob
		if err := rows.Scan(&job.ID, &job.JobType, &job.StartedAt, &job.CompletedAt,
			&job.Status, &job.ItemsProcessed, &job.ItemsFailed, &job.ErrorMessage); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

type LifecycleConfigRepository struct {
	db *Connection
}

func NewLifecycleConfigRepository(db *Connection) *LifecycleConfigRepository {
	return &LifecycleConfigRepository{
		db: db,
	}
}

func (r *LifecycleConfigRepository) Get(ctx context.Context, name string) (model.LifecycleSetting, error) {
	const query = `
		SELECT setting_name, setting_value, description, updated_at
		FROM lifecycle_config
		WHERE setting_name = $1`

	var setting model.LifecycleSetting
	err := r.db.QueryRow(ctx, query, name).
		Scan(&setting.Name, &setting.Value, &setting.Description, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.LifecycleSetting{}, model.ErrNotFound
		}
		return model.LifecycleSetting{}, err
	}
	return setting, nil
}

func (r *LifecycleConfigRepository) Set(ctx context.Context, name, value, description string) error {
	const query = `
		INSERT INTO lifecycle_config (setting_name, setting_value, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (setting_name)
		DO UPDATE SET setting_value = EXCLUDED.setting_value, description = EXCLUDED.description, updated_at = NOW()`

	_, err := r.db.Exec(ctx, query, name, value, description)
	return err
}

func (r *LifecycleConfigRepository) SetIfAbsent(ctx context.Context, name, value, description string) (bool, error) {
	const query = `
		INSERT INTO lifecycle_config (setting_name, setting_value, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (setting_name) DO NOTHING`

	cmd, err := r.db.Exec(ctx, query, name, value, description)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

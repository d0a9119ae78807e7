package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/briefcase-app/briefcase-server/internal/logger"
	"github.com/briefcase-app/briefcase-server/internal/model"
)

// Lifecycle setting names and defaults. Defaults are inserted once at
// startup and never overwrite an operator-set value.
const (
	SettingGracePeriodDays         = "cleanup_grace_period_days"
	SettingBatchSize               = "cleanup_batch_size"
	SettingAuditRetentionDays      = "audit_log_retention_days"
	SettingNotificationLeadDays    = "notification_days_before_expiry"
	SettingExpirationNotifications = "enable_expiration_notifications"

	DefaultGracePeriodDays    = 30
	DefaultBatchSize          = 100
	DefaultAuditRetentionDays = 2555 // ~7 years
)

// Lifecycle runs the three maintenance jobs: expiring documents, purging
// soft-deleted documents past the grace period, and trimming old audit logs.
// Each run is wrapped in a CleanupJob record and item failures are isolated,
// so one bad row never aborts a batch.
//
// Jobs are safe to run concurrently with live traffic and with each other.
// Two instances of the same job type require external mutual exclusion (a
// single-scheduler guarantee or an advisory lock); the engine itself does
// not lock.
type Lifecycle struct {
	docStore    model.DocumentStore
	eventStore  model.LifecycleEventStore
	jobStore    model.CleanupJobStore
	configStore model.LifecycleConfigStore
	auditStore  model.AccessLogStore
	blobs       model.BlobStorage
	logger      *logger.Logger
}

func NewLifecycle(
	docStore model.DocumentStore,
	eventStore model.LifecycleEventStore,
	jobStore model.CleanupJobStore,
	configStore model.LifecycleConfigStore,
	auditStore model.AccessLogStore,
	blobs model.BlobStorage,
	logger *logger.Logger,
) *Lifecycle {
	return &Lifecycle{
		docStore:    docStore,
		eventStore:  eventStore,
		jobStore:    jobStore,
		configStore: configStore,
		auditStore:  auditStore,
		blobs:       blobs,
		logger:      logger,
	}
}

// InitializeConfig inserts the documented default for every absent setting.
// Operator-set values are never overwritten.
func (s *Lifecycle) InitializeConfig(ctx context.Context) error {
	defaults := []struct {
		name        string
		value       string
		description string
	}{
		{SettingGracePeriodDays, strconv.Itoa(DefaultGracePeriodDays), "Days to wait before permanent deletion"},
		{SettingBatchSize, strconv.Itoa(DefaultBatchSize), "Number of items to process per cleanup batch"},
		{SettingAuditRetentionDays, strconv.Itoa(DefaultAuditRetentionDays), "Days to retain audit logs (7 years)"},
		{SettingNotificationLeadDays, "7,1", "Days before expiry to send notifications"},
		{SettingExpirationNotifications, "true", "Whether to send expiration notifications"},
	}

	for _, d := range defaults {
		inserted, err := s.configStore.SetIfAbsent(ctx, d.name, d.value, d.description)
		if err != nil {
			return fmt.Errorf("failed to initialize setting %q: %w", d.name, err)
		}
		if inserted {
			s.logger.Info("initialized lifecycle setting", "name", d.name, "value", d.value)
		}
	}
	return nil
}

// ExpireDocuments transitions every active document whose expiry has passed
// to EXPIRED and emits one lifecycle event per document. Returns the number
// of documents expired.
func (s *Lifecycle) ExpireDocuments(ctx context.Context) (int, error) {
	return s.runJob(ctx, model.JobTypeExpireDocuments, func(ctx context.Context) (int, int, error) {
		now := time.Now()
		docs, err := s.docStore.ListExpired(ctx, now)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to list expired documents: %w", err)
		}

		processed, failed := 0, 0
		for _, doc := range docs {
			if err := s.expireOne(ctx, doc); err != nil {
				s.logger.Error("failed to expire document", "document_id", doc.ID, "error", err)
				failed++
				continue
			}
			processed++
		}

		s.logger.Info("expired documents", "count", processed, "failed", failed)
		return processed, failed, nil
	})
}

// CleanupDeletedDocuments permanently removes soft-deleted documents whose
// grace period has elapsed, capped to the configured batch size. Dependent
// rows are removed first, the final permanently_deleted event is written
// before the document row goes away, and any offloaded ciphertext object is
// deleted best-effort afterwards. Running the job twice in a row is a no-op
// the second time. Returns the number of documents purged.
func (s *Lifecycle) CleanupDeletedDocuments(ctx context.Context) (int, error) {
	return s.runJob(ctx, model.JobTypeCleanupDeleted, func(ctx context.Context) (int, int, error) {
		grace := s.configInt(ctx, SettingGracePeriodDays, DefaultGracePeriodDays)
		batch := s.configInt(ctx, SettingBatchSize, DefaultBatchSize)
		cutoff := time.Now().AddDate(0, 0, -grace)

		docs, err := s.docStore.ListPurgeable(ctx, cutoff, batch)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to list purgeable documents: %w", err)
		}

		processed, failed := 0, 0
		for _, doc := range docs {
			if err := s.purgeOne(ctx, doc); err != nil {
				s.logger.Error("failed to purge document", "document_id", doc.ID, "error", err)
				failed++
				continue
			}
			processed++
		}

		s.logger.Info("purged soft-deleted documents", "count", processed, "failed", failed)
		return processed, failed, nil
	})
}

// CleanupOldAuditLogs deletes access-log rows older than the retention
// cutoff, capped to the configured batch size per run. Returns the number of
// rows deleted.
func (s *Lifecycle) CleanupOldAuditLogs(ctx context.Context) (int, error) {
	return s.runJob(ctx, model.JobTypeCleanupAudit, func(ctx context.Context) (int, int, error) {
		retention := s.configInt(ctx, SettingAuditRetentionDays, DefaultAuditRetentionDays)
		batch := s.configInt(ctx, SettingBatchSize, DefaultBatchSize)
		cutoff := time.Now().AddDate(0, 0, -retention)

		deleted, err := s.auditStore.DeleteOlderThan(ctx, cutoff, batch)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to delete old audit logs: %w", err)
		}

		s.logger.Info("cleaned up old audit logs", "count", deleted)
		return int(deleted), 0, nil
	})
}

// ExpiringSoon returns active documents expiring within the given number of
// days, for expiry notifications.
func (s *Lifecycle) ExpiringSoon(ctx context.Context, days int) ([]model.Document, error) {
	now := time.Now()
	docs, err := s.docStore.ListExpiringWithin(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring documents: %w", err)
	}
	return docs, nil
}

// NotificationLeadDays parses the configured comma-separated notification
// lead days, most distant first.
func (s *Lifecycle) NotificationLeadDays(ctx context.Context) []int {
	setting, err := s.configStore.Get(ctx, SettingNotificationLeadDays)
	if err != nil {
		return []int{7, 1}
	}

	var days []int
	for _, part := range strings.Split(setting.Value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			continue
		}
		days = append(days, n)
	}
	if len(days) == 0 {
		return []int{7, 1}
	}
	slices.SortFunc(days, func(a, b int) int { return b - a })
	return days
}

// Statistics summarizes document lifecycle state and recent job outcomes.
type Statistics struct {
	DocumentsByStatus map[model.DocumentStatus]int
	ExpiringSoon      int
	JobsTotal         int
	JobsCompleted     int
	JobsFailed        int
	JobsRunning       int
}

// Statistics reports document counts by status, documents expiring within
// the first notification lead window, and cleanup-job outcomes over the last
// seven days.
func (s *Lifecycle) Statistics(ctx context.Context) (Statistics, error) {
	counts, err := s.docStore.CountByStatus(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("failed to count documents by status: %w", err)
	}

	lead := s.NotificationLeadDays(ctx)
	expiring, err := s.ExpiringSoon(ctx, lead[0])
	if err != nil {
		return Statistics{}, err
	}

	jobs, err := s.jobStore.ListSince(ctx, time.Now().AddDate(0, 0, -7))
	if err != nil {
		return Statistics{}, fmt.Errorf("failed to list recent cleanup jobs: %w", err)
	}

	stats := Statistics{
		DocumentsByStatus: counts,
		ExpiringSoon:      len(expiring),
		JobsTotal:         len(jobs),
	}
	for _, job := range jobs {
		switch job.Status {
		case model.JobStatusCompleted:
			stats.JobsCompleted++
		case model.JobStatusFailed:
			stats.JobsFailed++
		case model.JobStatusRunning:
			stats.JobsRunning++
		}
	}
	return stats, nil
}

// runJob wraps a job body with CleanupJob bookkeeping. The record is
// finalized in a defer so a run can never be left in the running state, even
// when the body fails outright.
func (s *Lifecycle) runJob(ctx context.Context, jobType string, body func(ctx context.Context) (processed, failed int, err error)) (int, error) {
	job, err := s.jobStore.Create(ctx, model.CleanupJob{
		ID:      uuid.New(),
		JobType: jobType,
		Status:  model.JobStatusRunning,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to start cleanup job: %w", err)
	}

	var processed, failed int
	var runErr error
	defer func() {
		status := model.JobStatusCompleted
		errorMessage := ""
		if runErr != nil {
			status = model.JobStatusFailed
			errorMessage = runErr.Error()
		}
		if err := s.jobStore.Finalize(ctx, job.ID, status, processed, failed, errorMessage); err != nil {
			s.logger.Error("failed to finalize cleanup job",
				"job_id", job.ID, "job_type", jobType, "error", err)
		}
	}()

	processed, failed, runErr = body(ctx)
	if runErr != nil {
		return 0, fmt.Errorf("cleanup job %s failed: %w", jobType, runErr)
	}
	return processed, nil
}

func (s *Lifecycle) expireOne(ctx context.Context, doc model.Document) error {
	if err := s.docStore.UpdateStatus(ctx, doc.ID, model.StatusExpired); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	metadata := map[string]any{}
	if doc.ExpiresAt != nil {
		metadata["expiration_date"] = doc.ExpiresAt.Format(time.RFC3339)
	}
	err := s.eventStore.Create(ctx, model.LifecycleEvent{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		EventType:  model.EventExpired,
		Automated:  true,
		Metadata:   metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to create lifecycle event: %w", err)
	}
	return nil
}

func (s *Lifecycle) purgeOne(ctx context.Context, doc model.Document) error {
	finalEvent := model.LifecycleEvent{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		EventType:  model.EventPermanentlyDeleted,
		Automated:  true,
		Metadata: map[string]any{
			"original_filename": doc.FileName,
			"file_size":         doc.FileSize,
			"deletion_date":     time.Now().Format(time.RFC3339),
		},
	}

	if err := s.docStore.Purge(ctx, doc.ID, finalEvent); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// Already purged by a previous run.
			return nil
		}
		return fmt.Errorf("failed to purge document: %w", err)
	}

	if doc.StorageKey != "" {
		if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
			s.logger.Warn("failed to delete ciphertext object",
				"document_id", doc.ID, "key", doc.StorageKey, "error", err)
		}
	}
	return nil
}

func (s *Lifecycle) configInt(ctx context.Context, name string, fallback int) int {
	setting, err := s.configStore.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.logger.Warn("failed to read lifecycle setting", "name", name, "error", err)
		}
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(setting.Value))
	if err != nil {
		s.logger.Warn("lifecycle setting is not an integer", "name", name, "value", setting.Value)
		return fallback
	}
	return n
}

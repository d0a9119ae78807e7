package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccessAction enumerates audited document operations.
type AccessAction string

const (
	ActionView         AccessAction = "view"
	ActionDownload     AccessAction = "download"
	ActionUpload       AccessAction = "upload"
	ActionUpdate       AccessAction = "update"
	ActionDelete       AccessAction = "delete"
	ActionAccessDenied AccessAction = "access_denied"
)

// AccessLog is an append-only audit record of one access attempt. Rows are
// never updated, only created and eventually purged by retention policy.
type AccessLog struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	UserID       uuid.UUID
	Action       AccessAction
	Success      bool
	ErrorMessage string
	IPAddress    string
	UserAgent    string
	AccessedAt   time.Time
}

// AccessLogStore defines persistence operations for access logs.
type AccessLogStore interface {
	Create(ctx context.Context, log AccessLog) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]AccessLog, error)
	// DeleteOlderThan removes at most limit rows accessed before cutoff and
	// returns the number deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

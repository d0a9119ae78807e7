package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SealFunc encrypts document content for the given document id and returns
// the base64 ciphertext and IV. DocumentStore.Create calls it between the
// placeholder insert and the finalizing update so that both writes happen in
// one transaction.
type SealFunc func(documentID uuid.UUID) (ciphertext, iv string, err error)

// DocumentStore defines persistence operations for documents.
type DocumentStore interface {
	Create(ctx context.Context, doc Document, seal SealFunc) (Document, error)
	GetByID(ctx context.Context, id uuid.UUID) (Document, error)
	Update(ctx context.Context, doc Document) (Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// IncrementAccessCount atomically bumps access_count and refreshes the
	// stored status, guarded by the view limit. Returns ErrViewLimitReached
	// when the limit has already been consumed.
	IncrementAccessCount(ctx context.Context, id uuid.UUID) (Document, error)
	ListForUser(ctx context.Context, userID uuid.UUID, sent, received bool) ([]Document, error)
	ListAccessibleTo(ctx context.Context, userID uuid.UUID) ([]Document, error)
	ListExpired(ctx context.Context, now time.Time) ([]Document, error)
	ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]Document, error)
	ListExpiringWithin(ctx context.Context, from, to time.Time) ([]Document, error)
	CountByStatus(ctx context.Context) (map[DocumentStatus]int, error)
	// Purge permanently removes a document and its dependent rows. The final
	// lifecycle event is written before the document row is deleted so the
	// audit trail survives the thing it describes.
	Purge(ctx context.Context, id uuid.UUID, finalEvent LifecycleEvent) error
}

// DocumentStatus enumerates document lifecycle states.
type DocumentStatus string

const (
	// StatusActive means the document can still be downloaded.
	StatusActive DocumentStatus = "active"
	// StatusExpired means the expiry timestamp has passed.
	StatusExpired DocumentStatus = "expired"
	// StatusViewExhausted means the view limit has been consumed.
	StatusViewExhausted DocumentStatus = "view_exhausted"
	// StatusDeleted means the document is soft-deleted and awaits purge.
	StatusDeleted DocumentStatus = "deleted"
)

// Document represents an encrypted document addressed to a recipient.
type Document struct {
	ID          uuid.UUID
	Title       string
	Description string
	FileName    string
	FileSize    int64
	MimeType    string
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	// EncryptedContent holds the base64 ciphertext when the payload is
	// stored inline. Empty when the ciphertext lives in blob storage.
	EncryptedContent string
	EncryptionIV     string
	StorageKey       string
	ExpiresAt        *time.Time
	ViewLimit        *int
	AccessCount      int
	Status           DocumentStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// ComputeStatus derives the document status from its stored attributes. The
// status column is a cache of this value, never a source of truth. Precedence
// is fixed: deleted over expired over view-exhausted over active.
func (d *Document) ComputeStatus(now time.Time) DocumentStatus {
	if d.DeletedAt != nil {
		return StatusDeleted
	}
	if d.ExpiresAt != nil && now.After(*d.ExpiresAt) {
		return StatusExpired
	}
	if d.ViewLimit != nil && d.AccessCount >= *d.ViewLimit {
		return StatusViewExhausted
	}
	return StatusActive
}

// RefreshStatus recomputes and stores the derived status, reporting whether
// it changed.
func (d *Document) RefreshStatus(now time.Time) bool {
	status := d.ComputeStatus(now)
	if status == d.Status {
		return false
	}
	d.Status = status
	return true
}

// IsAccessibleBy reports whether userID may download this document through
// the sender/recipient path. Explicit grants are a separate axis evaluated by
// the permission service.
func (d *Document) IsAccessibleBy(userID uuid.UUID, now time.Time) bool {
	if userID != d.SenderID && userID != d.RecipientID {
		return false
	}
	return d.ComputeStatus(now) == StatusActive
}

// EligibleForPurge reports whether a soft-deleted document has exceeded the
// retention grace period.
func (d *Document) EligibleForPurge(now time.Time, grace time.Duration) bool {
	if d.ComputeStatus(now) != StatusDeleted {
		return false
	}
	return !d.UpdatedAt.After(now.Add(-grace))
}

// DocumentUpdate carries a partial metadata update; nil fields are left
// untouched.
type DocumentUpdate struct {
	Title       *string
	Description *string
	ExpiresAt   *time.Time
	ViewLimit   *int
}

// CreateDocumentParams contains parameters to create a document.
type CreateDocumentParams struct {
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Title       string
	Description string
	FileName    string
	MimeType    string
	Content     []byte
	ExpiresAt   *time.Time
	ViewLimit   *int
}

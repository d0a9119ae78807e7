package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Capability enumerates per-document permissions.
type Capability string

const (
	CapabilityRead   Capability = "read"
	CapabilityWrite  Capability = "write"
	CapabilityShare  Capability = "share"
	CapabilityDelete Capability = "delete"
	// CapabilityAdmin controls who may grant or revoke access to the
	// document. It is scoped to the document, not a system role.
	CapabilityAdmin Capability = "admin"
)

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityRead, CapabilityWrite, CapabilityShare, CapabilityDelete, CapabilityAdmin:
		return true
	}
	return false
}

// DocumentPermission is an explicit grant of a capability on one document to
// one user. At most one live record exists per (document, user, capability);
// re-granting updates the existing record.
type DocumentPermission struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	UserID     uuid.UUID
	Capability Capability
	GrantedBy  *uuid.UUID
	GrantedAt  time.Time
	ExpiresAt  *time.Time
}

// Active reports whether the grant is live at the given instant. Expired
// grants are inert but not deleted.
func (p *DocumentPermission) Active(now time.Time) bool {
	return p.ExpiresAt == nil || now.Before(*p.ExpiresAt)
}

// PermissionStore defines persistence operations for document permissions.
type PermissionStore interface {
	Upsert(ctx context.Context, perm DocumentPermission) (DocumentPermission, error)
	Get(ctx context.Context, documentID, userID uuid.UUID, capability Capability) (DocumentPermission, error)
	Delete(ctx context.Context, documentID, userID uuid.UUID, capability Capability) error
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]DocumentPermission, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]DocumentPermission, error)
}

package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PermissionGroup is a named collection of users owned by a user. Membership
// is purely an addressing convenience for bulk grants; it never confers
// document capabilities by itself.
type PermissionGroup struct {
	ID          uuid.UUID
	Name        string
	Description string
	OwnerID     uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// GroupMember records membership of a user in a permission group.
type GroupMember struct {
	ID      uuid.UUID
	GroupID uuid.UUID
	UserID  uuid.UUID
	AddedBy *uuid.UUID
	AddedAt time.Time
}

// GroupStore defines persistence operations for permission groups.
type GroupStore interface {
	Create(ctx context.Context, group PermissionGroup) (PermissionGroup, error)
	GetByID(ctx context.Context, id uuid.UUID) (PermissionGroup, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]PermissionGroup, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, member GroupMember) (GroupMember, error)
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
}

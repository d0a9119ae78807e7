package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Default system-wide role names. RoleAdmin implicitly satisfies any role
// requirement check; it does not extend to per-document capabilities.
const (
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Role is a named system-wide role.
type Role struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
}

// RoleAssignment assigns a role to a user, optionally until expiry.
type RoleAssignment struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	RoleID     uuid.UUID
	AssignedBy *uuid.UUID
	AssignedAt time.Time
	ExpiresAt  *time.Time
}

// Active reports whether the assignment is live at the given instant.
func (a *RoleAssignment) Active(now time.Time) bool {
	return a.ExpiresAt == nil || now.Before(*a.ExpiresAt)
}

// RoleStore defines persistence operations for roles and their assignments.
type RoleStore interface {
	Create(ctx context.Context, role Role) (Role, error)
	GetByName(ctx context.Context, name string) (Role, error)
	// ActiveRoleNames returns the names of all non-expired roles assigned
	// to the user.
	ActiveRoleNames(ctx context.Context, userID uuid.UUID, now time.Time) ([]string, error)
	UpsertAssignment(ctx context.Context, assignment RoleAssignment) (RoleAssignment, error)
}

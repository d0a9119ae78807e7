package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/briefcase-app/briefcase-server/internal/logger"
	"github.com/briefcase-app/briefcase-server/internal/model"
)

// Permission evaluates and administers document capabilities, system roles
// and permission groups.
//
// Document capability resolution is a fixed order, first match wins:
// the sender holds every capability unconditionally; the recipient holds
// read; otherwise an active explicit grant is required. System roles are a
// separate axis used for platform-admin operations only and are never
// consulted for document capabilities.
type Permission struct {
	permStore  model.PermissionStore
	roleStore  model.RoleStore
	groupStore model.GroupStore
	docStore   model.DocumentStore
	logger     *logger.Logger
}

func NewPermission(
	permStore model.PermissionStore,
	roleStore model.RoleStore,
	groupStore model.GroupStore,
	docStore model.DocumentStore,
	logger *logger.Logger,
) *Permission {
	return &Permission{
		permStore:  permStore,
		roleStore:  roleStore,
		groupStore: groupStore,
		docStore:   docStore,
		logger:     logger,
	}
}

// Check reports whether the user holds the capability on the document.
func (s *Permission) Check(ctx context.Context, userID, documentID uuid.UUID, capability model.Capability) (bool, error) {
	if !capability.Valid() {
		return false, model.NewValidationError("invalid capability: %s", capability)
	}

	doc, err := s.docStore.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, model.ErrNotFound
		}
		return false, fmt.Errorf("failed to get document: %w", err)
	}

	if doc.SenderID == userID {
		return true, nil
	}

	if doc.RecipientID == userID && capability == model.CapabilityRead {
		return true, nil
	}

	perm, err := s.permStore.Get(ctx, documentID, userID, capability)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get permission: %w", err)
	}

	return perm.Active(time.Now()), nil
}

// CheckBulk evaluates the capability against each document independently.
// A failure on one document marks it denied and never aborts the batch.
func (s *Permission) CheckBulk(ctx context.Context, userID uuid.UUID, documentIDs []uuid.UUID, capability model.Capability) (map[uuid.UUID]bool, error) {
	if !capability.Valid() {
		return nil, model.NewValidationError("invalid capability: %s", capability)
	}

	result := make(map[uuid.UUID]bool, len(documentIDs))
	for _, id := range documentIDs {
		allowed, err := s.Check(ctx, userID, id, capability)
		if err != nil {
			s.logger.Warn("bulk permission check failed for document",
				"document_id", id, "user_id", userID, "error", err)
			result[id] = false
			continue
		}
		result[id] = allowed
	}
	return result, nil
}

// Grant extends a capability on a document to a user. The granter must hold
// the document-level admin capability; the sender holds it implicitly.
// Re-granting updates the existing record instead of duplicating it.
func (s *Permission) Grant(ctx context.Context, granterID, documentID, userID uuid.UUID, capability model.Capability, expiresAt *time.Time) (model.DocumentPermission, error) {
	if !capability.Valid() {
		return model.DocumentPermission{}, model.NewValidationError("invalid capability: %s", capability)
	}

	allowed, err := s.Check(ctx, granterID, documentID, model.CapabilityAdmin)
	if err != nil {
		return model.DocumentPermission{}, err
	}
	if !allowed {
		return model.DocumentPermission{}, &model.PermissionDeniedError{Reason: "granter lacks admin capability on document"}
	}

	perm, err := s.permStore.Upsert(ctx, model.DocumentPermission{
		ID:         uuid.New(),
		DocumentID: documentID,
		UserID:     userID,
		Capability: capability,
		GrantedBy:  &granterID,
		GrantedAt:  time.Now(),
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return model.DocumentPermission{}, fmt.Errorf("failed to upsert permission: %w", err)
	}

	return perm, nil
}

// GrantToGroup expands the group's membership and grants the capability to
// every member individually. Groups are an addressing convenience only; the
// resulting grants are ordinary per-user records.
func (s *Permission) GrantToGroup(ctx context.Context, granterID, documentID, groupID uuid.UUID, capability model.Capability, expiresAt *time.Time) ([]model.DocumentPermission, error) {
	memberIDs, err := s.ExpandGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	granted := make([]model.DocumentPermission, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		perm, err := s.Grant(ctx, granterID, documentID, memberID, capability, expiresAt)
		if err != nil {
			var denied *model.PermissionDeniedError
			if errors.As(err, &denied) {
				return nil, err
			}
			s.logger.Warn("failed to grant to group member",
				"group_id", groupID, "user_id", memberID, "error", err)
			continue
		}
		granted = append(granted, perm)
	}
	return granted, nil
}

// ExpandGroup returns the member ids of a group for bulk-grant targeting.
// Membership is never consulted by Check.
func (s *Permission) ExpandGroup(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	memberIDs, err := s.groupStore.MemberIDs(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	return memberIDs, nil
}

// Revoke removes an explicit grant. The caller must hold the document-level
// admin capability. Returns ErrNotFound when no matching record exists so
// callers can distinguish "revoked" from "was never granted".
func (s *Permission) Revoke(ctx context.Context, callerID, documentID, userID uuid.UUID, capability model.Capability) error {
	allowed, err := s.Check(ctx, callerID, documentID, model.CapabilityAdmin)
	if err != nil {
		return err
	}
	if !allowed {
		return &model.PermissionDeniedError{Reason: "caller lacks admin capability on document"}
	}

	if err := s.permStore.Delete(ctx, documentID, userID, capability); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	return nil
}

// DocumentGrants lists explicit grants on a document. The caller must hold
// the document-level admin capability.
func (s *Permission) DocumentGrants(ctx context.Context, callerID, documentID uuid.UUID) ([]model.DocumentPermission, error) {
	allowed, err := s.Check(ctx, callerID, documentID, model.CapabilityAdmin)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, &model.PermissionDeniedError{Reason: "caller lacks admin capability on document"}
	}

	perms, err := s.permStore.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document permissions: %w", err)
	}
	return perms, nil
}

// UserPermissionSummary maps document ids to the capabilities the user holds
// on them through active explicit grants.
func (s *Permission) UserPermissionSummary(ctx context.Context, userID uuid.UUID) (map[uuid.UUID][]model.Capability, error) {
	perms, err := s.permStore.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user permissions: %w", err)
	}

	now := time.Now()
	summary := make(map[uuid.UUID][]model.Capability)
	for _, perm := range perms {
		if !perm.Active(now) {
			continue
		}
		summary[perm.DocumentID] = append(summary[perm.DocumentID], perm.Capability)
	}
	return summary, nil
}

// RolesOf returns the names of the user's active system roles.
func (s *Permission) RolesOf(ctx context.Context, userID uuid.UUID) ([]string, error) {
	names, err := s.roleStore.ActiveRoleNames(ctx, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list active roles: %w", err)
	}
	return names, nil
}

// HasRole reports whether the user holds the named system role. The admin
// role satisfies any role requirement.
func (s *Permission) HasRole(ctx context.Context, userID uuid.UUID, roleName string) (bool, error) {
	names, err := s.RolesOf(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(names, roleName) || slices.Contains(names, model.RoleAdmin), nil
}

// AssignRole assigns a system role to a user. Only system admins may assign
// roles; this path is wholly separate from document capabilities.
func (s *Permission) AssignRole(ctx context.Context, assignerID, userID uuid.UUID, roleName string, expiresAt *time.Time) (model.RoleAssignment, error) {
	isAdmin, err := s.HasRole(ctx, assignerID, model.RoleAdmin)
	if err != nil {
		return model.RoleAssignment{}, err
	}
	if !isAdmin {
		return model.RoleAssignment{}, &model.PermissionDeniedError{Reason: "role assignment requires the system admin role"}
	}

	role, err := s.roleStore.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.RoleAssignment{}, model.ErrNotFound
		}
		return model.RoleAssignment{}, fmt.Errorf("failed to get role: %w", err)
	}

	assignment, err := s.roleStore.UpsertAssignment(ctx, model.RoleAssignment{
		ID:         uuid.New(),
		UserID:     userID,
		RoleID:     role.ID,
		AssignedBy: &assignerID,
		AssignedAt: time.Now(),
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return model.RoleAssignment{}, fmt.Errorf("failed to upsert role assignment: %w", err)
	}
	return assignment, nil
}

// EnsureDefaultRoles idempotently creates the built-in system roles. Called
// once during process initialization.
func (s *Permission) EnsureDefaultRoles(ctx context.Context) error {
	defaults := []model.Role{
		{Name: model.RoleAdmin, Description: "Full system administration privileges"},
		{Name: model.RoleOwner, Description: "Document owner with full control"},
		{Name: model.RoleEditor, Description: "Can view, edit, and share documents"},
		{Name: model.RoleViewer, Description: "Can only view documents"},
	}

	for _, role := range defaults {
		_, err := s.roleStore.GetByName(ctx, role.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("failed to check role %q: %w", role.Name, err)
		}

		role.ID = uuid.New()
		if _, err := s.roleStore.Create(ctx, role); err != nil {
			return fmt.Errorf("failed to create role %q: %w", role.Name, err)
		}
		s.logger.Info("created default role", "role", role.Name)
	}
	return nil
}

// CreateGroup creates a permission group owned by the caller.
func (s *Permission) CreateGroup(ctx context.Context, ownerID uuid.UUID, name, description string) (model.PermissionGroup, error) {
	if name == "" {
		return model.PermissionGroup{}, model.NewValidationError("group name is required")
	}

	group, err := s.groupStore.Create(ctx, model.PermissionGroup{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
	})
	if err != nil {
		return model.PermissionGroup{}, fmt.Errorf("failed to create group: %w", err)
	}
	return group, nil
}

// DeleteGroup removes a group and its memberships. Owner only.
func (s *Permission) DeleteGroup(ctx context.Context, callerID, groupID uuid.UUID) error {
	group, err := s.groupStore.GetByID(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to get group: %w", err)
	}
	if group.OwnerID != callerID {
		return &model.PermissionDeniedError{Reason: "only the group owner may delete the group"}
	}
	if err := s.groupStore.Delete(ctx, groupID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

// AddGroupMember adds a user to a group. Owner only.
func (s *Permission) AddGroupMember(ctx context.Context, callerID, groupID, userID uuid.UUID) (model.GroupMember, error) {
	group, err := s.groupStore.GetByID(ctx, groupID)
	if err != nil {
		return model.GroupMember{}, fmt.Errorf("failed to get group: %w", err)
	}
	if group.OwnerID != callerID {
		return model.GroupMember{}, &model.PermissionDeniedError{Reason: "only the group owner may manage members"}
	}

	member, err := s.groupStore.AddMember(ctx, model.GroupMember{
		ID:      uuid.New(),
		GroupID: groupID,
		UserID:  userID,
		AddedBy: &callerID,
	})
	if err != nil {
		return model.GroupMember{}, fmt.Errorf("failed to add group member: %w", err)
	}
	return member, nil
}

// RemoveGroupMember removes a user from a group. Owner only.
func (s *Permission) RemoveGroupMember(ctx context.Context, callerID, groupID, userID uuid.UUID) error {
	group, err := s.groupStore.GetByID(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to get group: %w", err)
	}
	if group.OwnerID != callerID {
		return &model.PermissionDeniedError{Reason: "only the group owner may manage members"}
	}

	if err := s.groupStore.RemoveMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	return nil
}

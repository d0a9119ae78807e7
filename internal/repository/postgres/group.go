package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/briefcase-app/briefcase-server/internal/model"
)

var _ model.GroupStore = (*GroupRepository)(nil)

type GroupRepository struct {
	db *Connection
}

func NewGroupRepository(db *Connection) *GroupRepository {
	return &GroupRepository{
		db: db,
	}
}

const groupColumns = `id, name, description, owner_id, created_at, updated_at`

func (r *GroupRepository) Create(ctx context.Context, group model.PermissionGroup) (model.PermissionGroup, error) {
	const query = `
		INSERT INTO permission_groups (id, name, description, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + groupColumns

	var saved model.PermissionGroup
	err := r.db.QueryRow(ctx, query, group.ID, group.Name, group.Description, group.OwnerID).
		Scan(&saved.ID, &saved.Name, &saved.Description, &saved.OwnerID, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return model.PermissionGroup{}, err
	}
	return saved, nil
}

func (r *GroupRepository) GetByID(ctx context.Context, id uuid.UUID) (model.PermissionGroup, error) {
	const query = `SELECT ` + groupColumns + ` FROM permission_groups WHERE id = $1`

	var group model.PermissionGroup
	err := r.db.QueryRow(ctx, query, id).
		Scan(&group.ID, &group.Name, &group.Description, &group.OwnerID, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PermissionGroup{}, model.ErrNotFound
		}
		return model.PermissionGroup{}, err
	}
	return group, nil
}

func (r *GroupRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.PermissionGroup, error) {
	const query = `
		SELECT ` + groupColumns + `
		FROM permission_groups
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []model.PermissionGroup
	for rows.Next() {
		var group model.PermissionGroup
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.OwnerID,
			&group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groups, nil
}

// Delete removes the group and, through the FK cascade, its memberships.
func (r *GroupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM permission_groups WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *GroupRepository) AddMember(ctx context.Context, member model.GroupMember) (model.GroupMember, error) {
	const query = `
		INSERT INTO permission_group_members (id, group_id, user_id, added_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (group_id, user_id) DO UPDATE SET added_by = EXCLUDED.added_by
		RETURNING id, group_id, user_id, added_by, added_at`

	var saved model.GroupMember
	err := r.db.QueryRow(ctx, query, member.ID, member.GroupID, member.UserID, member.AddedBy).
		Scan(&saved.ID, &saved.GroupID, &saved.UserID, &saved.AddedBy, &saved.AddedAt)
	if err != nil {
		return model.GroupMember{}, err
	}
	return saved, nil
}

func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	const query = `DELETE FROM permission_group_members WHERE group_id = $1 AND user_id = $2`

	cmd, err := r.db.Exec(ctx, query, groupID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *GroupRepository) MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	const query = `SELECT user_id FROM permission_group_members WHERE group_id = $1`

	rows, err := r.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

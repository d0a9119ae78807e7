package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/briefcase-app/briefcase-server/internal/model"
)

var _ model.RoleStore = (*RoleRepository)(nil)

type RoleRepository struct {
	db *Connection
}

func NewRoleRepository(db *Connection) *RoleRepository {
	return &RoleRepository{
		db: db,
	}
}

func (r *RoleRepository) Create(ctx context.Context, role model.Role) (model.Role, error) {
	const query = `
		INSERT INTO user_roles (id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, created_at`

	var saved model.Role
	err := r.db.QueryRow(ctx, query, role.ID, role.Name, role.Description).
		Scan(&saved.ID, &saved.Name, &saved.Description, &saved.CreatedAt)
	if err != nil {
		return model.Role{}, err
	}
	return saved, nil
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (model.Role, error) {
	const query = `SELECT id, name, description, created_at FROM user_roles WHERE name = $1`

	var role model.Role
	err := r.db.QueryRow(ctx, query, name).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Role{}, model.ErrNotFound
		}
		return model.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) ActiveRoleNames(ctx context.Context, userID uuid.UUID, now time.Time) ([]string, error) {
	const query = `
		SELECT ur.name
		FROM user_role_assignments ura
		JOIN user_roles ur ON ur.id = ura.role_id
		WHERE ura.user_id = $1 AND (ura.expires_at IS NULL OR ura.expires_at > $2)
		ORDER BY ur.name`

	rows, err := r.db.Query(ctx, query, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func (r *RoleRepository) UpsertAssignment(ctx context.Context, assignment model.RoleAssignment) (model.RoleAssignment, error) {
	const query = `
		INSERT INTO user_role_assignments (id, user_id, role_id, assigned_by, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, role_id)
		DO UPDATE SET assigned_by = EXCLUDED.assigned_by, assigned_at = NOW(), expires_at = EXCLUDED.expires_at
		RETURNING id, user_id, role_id, assigned_by, assigned_at, expires_at`

	var saved model.RoleAssignment
	err := r.db.QueryRow(ctx, query,
		assignment.ID, assignment.UserID, assignment.RoleID, assignment.AssignedBy, assignment.ExpiresAt).
		Scan(&saved.ID, &saved.UserID, &saved.RoleID, &saved.AssignedBy, &saved.AssignedAt, &saved.ExpiresAt)
	if err != nil {
		return model.RoleAssignment{}, err
	}
	return saved, nil
}

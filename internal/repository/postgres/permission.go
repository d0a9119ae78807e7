package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/briefcase-app/briefcase-server/internal/model"
)

var _ model.PermissionStore = (*PermissionRepository)(nil)

type PermissionRepository struct {
	db *Connection
}

func NewPermissionRepository(db *Connection) *PermissionRepository {
	return &PermissionRepository{
		db: db,
	}
}

const permissionColumns = `id, document_id, user_id, capability, granted_by, granted_at, expires_at`

func scanPermission(row pgx.Row) (model.DocumentPermission, error) {
	var perm model.DocumentPermission
	err := row.Scan(
		&perm.ID, &perm.DocumentID, &perm.UserID, &perm.Capability,
		&perm.GrantedBy, &perm.GrantedAt, &perm.ExpiresAt,
	)
	return perm, err
}

func collectPermissions(rows pgx.Rows) ([]model.DocumentPermission, error) {
	defer rows.Close()

	var perms []model.DocumentPermission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// Upsert renews an existing grant in place, so a re-grant with a fresh
// expiry reactivates an expired record instead of duplicating it.
func (r *PermissionRepository) Upsert(ctx context.Context, perm model.DocumentPermission) (model.DocumentPermission, error) {
	const query = `
		INSERT INTO document_permissions (id, document_id, user_id, capability, granted_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (document_id, user_id, capability)
		DO UPDATE SET granted_by = EXCLUDED.granted_by, granted_at = NOW(), expires_at = EXCLUDED.expires_at
		RETURNING ` + permissionColumns

	saved, err := scanPermission(r.db.QueryRow(ctx, query,
		perm.ID, perm.DocumentID, perm.UserID, string(perm.Capability), perm.GrantedBy, perm.ExpiresAt))
	if err != nil {
		return model.DocumentPermission{}, err
	}
	return saved, nil
}

func (r *PermissionRepository) Get(ctx context.Context, documentID, userID uuid.UUID, capability model.Capability) (model.DocumentPermission, error) {
	const query = `
		SELECT ` + permissionColumns + `
		FROM document_permissions
		WHERE document_id = $1 AND user_id = $2 AND capability = $3`

	perm, err := scanPermission(r.db.QueryRow(ctx, query, documentID, userID, string(capability)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DocumentPermission{}, model.ErrNotFound
		}
		return model.DocumentPermission{}, err
	}
	return perm, nil
}

func (r *PermissionRepository) Delete(ctx context.Context, documentID, userID uuid.UUID, capability model.Capability) error {
	const query = `
		DELETE FROM document_permissions
		WHERE document_id = $1 AND user_id = $2 AND capability = $3`

	cmd, err := r.db.Exec(ctx, query, documentID, userID, string(capability))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *PermissionRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.DocumentPermission, error) {
	const query = `
		SELECT ` + permissionColumns + `
		FROM document_permissions
		WHERE document_id = $1
		ORDER BY granted_at DESC`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func (r *PermissionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.DocumentPermission, error) {
	const query = `
		SELECT ` + permissionColumns + `
		FROM document_permissions
		WHERE user_id = $1
		ORDER BY granted_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

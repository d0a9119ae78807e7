package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/briefcase-app/briefcase-server/internal/model"
)

var _ model.DocumentStore = (*DocumentRepository)(nil)

type DocumentRepository struct {
	db *Connection
}

func NewDocumentRepository(db *Connection) *DocumentRepository {
	return &DocumentRepository{
		db: db,
	}
}

const documentColumns = `id, title, description, file_name, file_size, mime_type,
	sender_id, recipient_id, encrypted_content, encryption_iv, storage_key,
	expires_at, view_limit, access_count, status, created_at, updated_at, deleted_at`

func scanDocument(row pgx.Row) (model.Document, error) {
	var doc model.Document
	err := row.Scan(
		&doc.ID, &doc.Title, &doc.Description, &doc.FileName, &doc.FileSize, &doc.MimeType,
		&doc.SenderID, &doc.RecipientID, &doc.EncryptedContent, &doc.EncryptionIV, &doc.StorageKey,
		&doc.ExpiresAt, &doc.ViewLimit, &doc.AccessCount, &doc.Status,
		&doc.CreatedAt, &doc.UpdatedAt, &doc.DeletedAt,
	)
	return doc, err
}

func collectDocuments(rows pgx.Rows) ([]model.Document, error) {
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Create runs the two-phase write inside one transaction: insert the row
// with empty ciphertext, call seal to encrypt under the new id, then
// finalize the row with the envelope. A failure at any step rolls the whole
// row back, so no partially encrypted document is ever visible.
func (r *DocumentRepository) Create(ctx context.Context, doc model.Document, seal model.SealFunc) (model.Document, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Document{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertQuery = `
		INSERT INTO documents (id, title, description, file_name, file_size, mime_type,
			sender_id, recipient_id, encrypted_content, encryption_iv, storage_key,
			expires_at, view_limit, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', '', $9, $10, $11, $12)`

	_, err = tx.Exec(ctx, insertQuery,
		doc.ID, doc.Title, doc.Description, doc.FileName, doc.FileSize, doc.MimeType,
		doc.SenderID, doc.RecipientID, doc.StorageKey,
		doc.ExpiresAt, doc.ViewLimit, string(doc.Status),
	)
	if err != nil {
		return model.Document{}, err
	}

	ciphertext, iv, err := seal(doc.ID)
	if err != nil {
		return model.Document{}, err
	}

	const finalizeQuery = `
		UPDATE documents SET encrypted_content = $2, encryption_iv = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + documentColumns

	saved, err := scanDocument(tx.QueryRow(ctx, finalizeQuery, doc.ID, ciphertext, iv))
	if err != nil {
		return model.Document{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Document{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return saved, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, model.ErrNotFound
		}
		return model.Document{}, err
	}
	return doc, nil
}

func (r *DocumentRepository) Update(ctx context.Context, doc model.Document) (model.Document, error) {
	const query = `
		UPDATE documents
		SET title = $2, description = $3, expires_at = $4, view_limit = $5,
			status = $6, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + documentColumns

	saved, err := scanDocument(r.db.QueryRow(ctx, query,
		doc.ID, doc.Title, doc.Description, doc.ExpiresAt, doc.ViewLimit, string(doc.Status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, model.ErrNotFound
		}
		return model.Document{}, err
	}
	return saved, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.DocumentStatus) error {
	const query = `UPDATE documents SET status = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.db.Exec(ctx, query, id, string(status))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *DocumentRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	const query = `
		UPDATE documents SET deleted_at = NOW(), status = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, id, string(model.StatusDeleted))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// IncrementAccessCount bumps the counter and refreshes the stored status in
// one atomic statement. The view-limit guard in the predicate makes two
// concurrent downloads of a last remaining view mutually exclusive: the
// loser matches no row and gets ErrViewLimitReached.
func (r *DocumentRepository) IncrementAccessCount(ctx context.Context, id uuid.UUID) (model.Document, error) {
	const query = `
		UPDATE documents
		SET access_count = access_count + 1,
			status = CASE
				WHEN view_limit IS NOT NULL AND access_count + 1 >= view_limit THEN 'view_exhausted'
				ELSE status
			END,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
			AND (view_limit IS NULL OR access_count < view_limit)
		RETURNING ` + documentColumns

	doc, err := scanDocument(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, model.ErrViewLimitReached
		}
		return model.Document{}, err
	}
	return doc, nil
}

// ListForUser filters server-side: as sender the user sees all own
// non-deleted documents, as recipient view-exhausted rows are excluded.
func (r *DocumentRepository) ListForUser(ctx context.Context, userID uuid.UUID, sent, received bool) ([]model.Document, error) {
	const query = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE deleted_at IS NULL AND (
			($2 AND sender_id = $1)
			OR ($3 AND recipient_id = $1
				AND (view_limit IS NULL OR access_count < view_limit))
		)
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID, sent, received)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

func (r *DocumentRepository) ListAccessibleTo(ctx context.Context, userID uuid.UUID) ([]model.Document, error) {
	const query = `
		SELECT DISTINCT ` + documentColumns + `
		FROM documents
		WHERE deleted_at IS NULL AND (
			sender_id = $1
			OR recipient_id = $1
			OR id IN (
				SELECT document_id FROM document_permissions
				WHERE user_id = $1
					AND capability IN ('read', 'write', 'admin')
					AND (expires_at IS NULL OR expires_at > NOW())
			)
		)
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

func (r *DocumentRepository) ListExpired(ctx context.Context, now time.Time) ([]model.Document, error) {
	const query = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE expires_at <= $1 AND status = 'active'
		ORDER BY expires_at ASC`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

func (r *DocumentRepository) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]model.Document, error) {
	const query = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE status = 'deleted' AND updated_at <= $1
		ORDER BY updated_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

func (r *DocumentRepository) ListExpiringWithin(ctx context.Context, from, to time.Time) ([]model.Document, error) {
	const query = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE expires_at > $1 AND expires_at <= $2 AND status = 'active'
		ORDER BY expires_at ASC`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

func (r *DocumentRepository) CountByStatus(ctx context.Context) (map[model.DocumentStatus]int, error) {
	const query = `SELECT status, COUNT(*) FROM documents GROUP BY status`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.DocumentStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[model.DocumentStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// Purge removes a document and its dependent rows in one transaction. The
// ordering is fixed: access logs, prior lifecycle events, then the final
// event is inserted before the document row is deleted, so the audit trail
// survives the document it describes.
func (r *DocumentRepository) Purge(ctx context.Context, id uuid.UUID, finalEvent model.LifecycleEvent) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_access_logs WHERE document_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM document_lifecycle_events WHERE document_id = $1`, id); err != nil {
		return err
	}

	metadata, err := json.Marshal(finalEvent.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}
	const eventQuery = `
		INSERT INTO document_lifecycle_events (id, document_id, event_type, automated, triggered_by, event_metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, eventQuery,
		finalEvent.ID, id, finalEvent.EventType, finalEvent.Automated, finalEvent.TriggeredBy, metadata); err != nil {
		return err
	}

	cmd, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/briefcase-app/briefcase-server/internal/model"
)

var _ model.AccessLogStore = (*AccessLogRepository)(nil)

type AccessLogRepository struct {
	db *Connection
}

func NewAccessLogRepository(db *Connection) *AccessLogRepository {
	return &AccessLogRepository{
		db: db,
	}
}

func (r *AccessLogRepository) Create(ctx context.Context, log model.AccessLog) error {
	const query = `
		INSERT INTO document_access_logs (id, document_id, user_id, action, success, error_message, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		log.ID, log.DocumentID, log.UserID, string(log.Action),
		log.Success, log.ErrorMessage, log.IPAddress, log.UserAgent)
	return err
}

func (r *AccessLogRepository) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]model.AccessLog, error) {
	const query = `
		SELECT id, document_id, user_id, action, success, error_message, ip_address, user_agent, accessed_at
		FROM document_access_logs
		WHERE document_id = $1
		ORDER BY accessed_at DESC`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []model.AccessLog
	for rows.Next() {
		var log model.AccessLog
		if err := rows.Scan(&log.ID, &log.DocumentID, &log.UserID, &log.Action,
			&log.Success, &log.ErrorMessage, &log.IPAddress, &log.UserAgent, &log.AccessedAt); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// DeleteOlderThan removes at most limit expired rows per call. Postgres has
// no DELETE LIMIT, so the batch is selected through a subquery on the
// primary key.
func (r *AccessLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	const query = `
		DELETE FROM document_access_logs
		WHERE id IN (
			SELECT id FROM document_access_logs
			WHERE accessed_at < $1
			ORDER BY accessed_at ASC
			LIMIT $2
		)`

	cmd, err := r.db.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

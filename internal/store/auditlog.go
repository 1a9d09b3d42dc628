package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/backoffice-api/apiserver/types"
)

// maxAuditLogLimit caps a single audit-log page.
const maxAuditLogLimit = 500

// AuditLogFilter narrows an audit-log listing. A zero date range
// defaults to the last day at query time.
type AuditLogFilter struct {
	BeginDate time.Time
	EndDate   time.Time
	Skip      int
	Limit     int
}

// AuditLogRepository handles persistence for audit log entries.
type AuditLogRepository struct {
	db *sql.DB
}

func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(ctx context.Context, entry types.AuditLog) (types.AuditLog, error) {
	entry.CreatedAt = time.Now()

	const query = `
		INSERT INTO audit_logs (email, level, location, proc_type, log, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		entry.Email,
		entry.Level,
		entry.Location,
		entry.Action,
		[]byte(entry.Data),
		entry.CreatedAt,
	).Scan(&entry.ID); err != nil {
		return types.AuditLog{}, err
	}
	return entry, nil
}

// List returns entries in the filter's date range, newest first. The
// limit is capped at 500 and the date range defaults to the last day.
func (r *AuditLogRepository) List(ctx context.Context, filter AuditLogFilter) ([]types.AuditLog, error) {
	begin, end := filter.BeginDate, filter.EndDate
	if begin.IsZero() || end.IsZero() {
		end = time.Now()
		begin = end.AddDate(0, 0, -1)
	}
	limit := filter.Limit
	if limit <= 0 || limit > maxAuditLogLimit {
		limit = maxAuditLogLimit
	}
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}

	const query = `
		SELECT id, email, level, location, proc_type, COALESCE(log, 'null'::jsonb), created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at DESC
		OFFSET $3 LIMIT $4`
	rows, err := r.db.QueryContext(ctx, query, begin, end, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []types.AuditLog{}
	for rows.Next() {
		var entry types.AuditLog
		var data []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.Email,
			&entry.Level,
			&entry.Location,
			&entry.Action,
			&data,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.Data = data
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

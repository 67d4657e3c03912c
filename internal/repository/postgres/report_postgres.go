package postgres

import (
	"context"
	"database/sql"

	"filedrop/internal/model"
	"filedrop/internal/repository"
)

// ReportPostgres is a PostgreSQL implementation of repository.ReportRepository.
type ReportPostgres struct {
	db *sql.DB
}

// NewReportPostgres creates a new ReportPostgres repository.
func NewReportPostgres(db *sql.DB) *ReportPostgres {
	return &ReportPostgres{db: db}
}

var _ repository.ReportRepository = (*ReportPostgres)(nil)

// Create inserts a new abuse report row and returns the stored record.
func (r *ReportPostgres) Create(ctx context.Context, rep *model.AbuseReport) (*model.AbuseReport, error) {
	const q = `
		INSERT INTO abuse_reports (id, file_id, reason, reporter_email, comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, file_id, reason, reporter_email, comments, created_at
	`
	row := r.db.QueryRowContext(ctx, q,
		rep.ID,
		rep.FileID,
		rep.Reason,
		rep.ReporterEmail,
		rep.Comments,
		rep.CreatedAt,
	)
	var out model.AbuseReport
	if err := row.Scan(
		&out.ID,
		&out.FileID,
		&out.Reason,
		&out.ReporterEmail,
		&out.Comments,
		&out.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns abuse reports using LIMIT/OFFSET pagination and a total count.
func (r *ReportPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.AbuseReport], error) {
	const qCount = `SELECT COUNT(*) FROM abuse_reports`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, file_id, reason, reporter_email, comments, created_at
		FROM abuse_reports
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.AbuseReport, 0)
	for rows.Next() {
		var rep model.AbuseReport
		if err := rows.Scan(
			&rep.ID,
			&rep.FileID,
			&rep.Reason,
			&rep.ReporterEmail,
			&rep.Comments,
			&rep.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.AbuseReport]{
		Items: items,
		Total: total,
	}, nil
}

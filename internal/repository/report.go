package repository

import (
	"context"

	"filedrop/internal/model"
)

// ReportRepository defines data access for abuse reports. Reports are
// append-only; there is no update or delete.
type ReportRepository interface {
	// Create inserts a new abuse report and returns the stored row.
	Create(ctx context.Context, r *model.AbuseReport) (*model.AbuseReport, error)

	// List returns a paginated list of reports plus a total count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.AbuseReport], error)
}

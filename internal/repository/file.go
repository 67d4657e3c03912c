package repository

import (
	"context"

	"filedrop/internal/model"
)

// FileRepository defines data access for file metadata using SQL queries only.
// No business logic here — strictly persistence operations.
type FileRepository interface {
	// Create inserts a new file record and returns the stored row.
	Create(ctx context.Context, f *model.File) (*model.File, error)

	// FindByID returns a file record by its ID.
	FindByID(ctx context.Context, id string) (*model.File, error)

	// List returns a paginated list of file records plus a total count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.File], error)

	// ConsumeDownload atomically spends one download credit on a
	// download-limited file. It increments download_count only while the
	// count is still below expiry_value, and reports whether a credit was
	// consumed. A false return means the limit has been reached.
	ConsumeDownload(ctx context.Context, id string) (bool, error)

	// SetScanStatus transitions the virus-scan status of a file.
	SetScanStatus(ctx context.Context, id string, status model.ScanStatus) error

	// ExistsByStoragePath reports whether any record references the given
	// object storage key. Used by the orphan-blob sweep.
	ExistsByStoragePath(ctx context.Context, storagePath string) (bool, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

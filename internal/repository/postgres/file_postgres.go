package postgres

import (
	"context"
	"database/sql"

	"filedrop/internal/model"
	"filedrop/internal/repository"
)

// FilePostgres is a PostgreSQL implementation of repository.FileRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type FilePostgres struct {
	db *sql.DB
}

// NewFilePostgres creates a new FilePostgres repository.
func NewFilePostgres(db *sql.DB) *FilePostgres {
	return &FilePostgres{db: db}
}

var _ repository.FileRepository = (*FilePostgres)(nil)

const fileColumns = `id, original_filename, storage_path, size, extension,
		COALESCE(password_hash, ''), expiry_type, expiry_value, download_count,
		scan_status, user_id, uploaded_at`

func scanFile(row interface{ Scan(...any) error }) (*model.File, error) {
	var f model.File
	if err := row.Scan(
		&f.ID,
		&f.OriginalFilename,
		&f.StoragePath,
		&f.Size,
		&f.Extension,
		&f.PasswordHash,
		&f.ExpiryType,
		&f.ExpiryValue,
		&f.DownloadCount,
		&f.ScanStatus,
		&f.UserID,
		&f.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

// Create inserts a new file row and returns the stored record.
func (r *FilePostgres) Create(ctx context.Context, f *model.File) (*model.File, error) {
	const q = `
		INSERT INTO files (id, original_filename, storage_path, size, extension,
			password_hash, expiry_type, expiry_value, download_count, scan_status,
			user_id, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12)
		RETURNING ` + fileColumns
	row := r.db.QueryRowContext(ctx, q,
		f.ID,
		f.OriginalFilename,
		f.StoragePath,
		f.Size,
		f.Extension,
		f.PasswordHash,
		f.ExpiryType,
		f.ExpiryValue,
		f.DownloadCount,
		f.ScanStatus,
		f.UserID,
		f.UploadedAt,
	)
	return scanFile(row)
}

// FindByID fetches a single file record by its ID.
func (r *FilePostgres) FindByID(ctx context.Context, id string) (*model.File, error) {
	const q = `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	return scanFile(r.db.QueryRowContext(ctx, q, id))
}

// List returns file records using LIMIT/OFFSET pagination and a total count.
func (r *FilePostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.File], error) {
	const qCount = `SELECT COUNT(*) FROM files`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + fileColumns + `
		FROM files
		ORDER BY uploaded_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.File]{
		Items: items,
		Total: total,
	}, nil
}

// ConsumeDownload spends one download credit with a conditional single-row
// UPDATE, so concurrent downloads can never push download_count past
// expiry_value.
func (r *FilePostgres) ConsumeDownload(ctx context.Context, id string) (bool, error) {
	const q = `
		UPDATE files
		SET download_count = download_count + 1
		WHERE id = $1
		  AND expiry_type = 'downloads'
		  AND download_count < expiry_value
	`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetScanStatus transitions a file's virus-scan status.
func (r *FilePostgres) SetScanStatus(ctx context.Context, id string, status model.ScanStatus) error {
	const q = `UPDATE files SET scan_status = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, status)
	return err
}

// ExistsByStoragePath reports whether any record references the given object key.
func (r *FilePostgres) ExistsByStoragePath(ctx context.Context, storagePath string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM files WHERE storage_path = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, storagePath).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

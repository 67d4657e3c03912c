package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"filedrop/internal/auth"
	"filedrop/internal/expiry"
	"filedrop/internal/model"
	"filedrop/internal/repository"
	"filedrop/internal/storage"
)

var (
	ErrIDRequired          = errors.New("id is required")
	ErrNotFound            = errors.New("file not found")
	ErrBlobMissing         = errors.New("file content missing from storage")
	ErrReaderNil           = errors.New("reader is nil")
	ErrInvalidExpiryOption = errors.New("invalid expiry option")
	ErrPasswordRequired    = errors.New("password required")
	ErrPasswordIncorrect   = errors.New("incorrect password")
	ErrInfected            = errors.New("file failed virus scan")
	ErrExpiredDate         = errors.New("link expired by date")
	ErrExpiredDownloads    = errors.New("link expired by download limit")
)

// mimeTypes maps known file extensions to Content-Type values for downloads.
// Unknown extensions fall back to application/octet-stream.
var mimeTypes = map[string]string{
	".txt":  "text/plain",
	".csv":  "text/csv",
	".html": "text/html",
	".json": "application/json",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ContentTypeForExtension resolves the Content-Type served for a file extension.
func ContentTypeForExtension(ext string) string {
	if ct, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ScanEnqueuer schedules a background virus scan for an uploaded blob.
// A nil enqueuer disables scanning; records then stay in the pending state.
type ScanEnqueuer interface {
	EnqueueScan(ctx context.Context, fileID, storagePath string) error
}

// UploadInput carries the uploader-supplied parts of an upload request.
type UploadInput struct {
	Reader           io.Reader
	OriginalFilename string
	Size             int64
	// Password optionally gates downloads; it is hashed before storage.
	Password string
	// ExpiryOption is the raw selector string, e.g. "7days" or "10downloads".
	// Empty means the configured default.
	ExpiryOption string
	UserID       *string
}

// Download is a gated, streaming download result. The caller owns Content
// and must close it.
type Download struct {
	File        *model.File
	Content     io.ReadCloser
	ContentType string
}

// FileListResult is the service-level DTO for paginated file records.
type FileListResult struct {
	Items []model.File `json:"data"`
	Total int          `json:"total"`
}

// FileService defines the use cases for uploading and downloading files.
type FileService interface {
	// Upload persists the blob to object storage, then the metadata record,
	// rolling the blob back if the record insert fails. Blob first, record
	// second: a crash in between leaves at worst an orphaned blob, which the
	// maintenance sweep collects, never a record pointing at nothing.
	Upload(ctx context.Context, in UploadInput) (*model.File, error)

	// Download runs the full gate sequence (lookup, infection, password,
	// expiry, blob existence) before any content is read or any download
	// credit is consumed, then streams the blob.
	Download(ctx context.Context, id, password string) (*Download, error)

	// List returns file records using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*FileListResult, error)
}

type fileService struct {
	store  storage.Storage
	repo   repository.FileRepository
	hasher *auth.PasswordHasher
	scans  ScanEnqueuer
	// defaultExpiry is the selector applied when the uploader supplies none.
	defaultExpiry string
}

// NewFileService constructs a FileService. scans may be nil to disable
// background virus scanning.
func NewFileService(store storage.Storage, repo repository.FileRepository, hasher *auth.PasswordHasher, scans ScanEnqueuer, defaultExpiry string) FileService {
	return &fileService{
		store:         store,
		repo:          repo,
		hasher:        hasher,
		scans:         scans,
		defaultExpiry: defaultExpiry,
	}
}

func (s *fileService) Upload(ctx context.Context, in UploadInput) (*model.File, error) {
	if in.Reader == nil {
		return nil, ErrReaderNil
	}

	selector := in.ExpiryOption
	if selector == "" {
		selector = s.defaultExpiry
	}
	expiryType, expiryValue, err := expiry.ParseSelector(selector)
	if err != nil {
		return nil, ErrInvalidExpiryOption
	}

	ext := filepath.Ext(in.OriginalFilename)
	id := uuid.New().String()
	key := "files/" + id + ext

	objInfo, err := s.store.Put(ctx, key, in.Reader, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: ContentTypeForExtension(ext),
		Metadata: map[string]string{
			"original-filename": in.OriginalFilename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	var passwordHash string
	if in.Password != "" {
		passwordHash, err = s.hasher.Hash(in.Password)
		if err != nil {
			if delErr := s.store.Delete(ctx, key); delErr != nil {
				return nil, fmt.Errorf("hash password failed: %v; rollback delete failed: %v", err, delErr)
			}
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	rec := &model.File{
		ID:               id,
		OriginalFilename: in.OriginalFilename,
		StoragePath:      objInfo.Key,
		Size:             objInfo.Size,
		Extension:        ext,
		PasswordHash:     passwordHash,
		ExpiryType:       expiryType,
		ExpiryValue:      expiryValue,
		DownloadCount:    0,
		ScanStatus:       model.ScanPending,
		UserID:           in.UserID,
		UploadedAt:       time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, rec)
	if err != nil {
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	if s.scans != nil {
		// Scan runs out of band; until it completes the record stays pending,
		// which does not block downloads.
		if err := s.scans.EnqueueScan(ctx, stored.ID, stored.StoragePath); err != nil {
			log.Printf("enqueue scan for %s: %v", stored.ID, err)
		}
	}

	return stored, nil
}

func (s *fileService) Download(ctx context.Context, id, password string) (*Download, error) {
	if id == "" {
		return nil, ErrIDRequired
	}

	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if rec.ScanStatus == model.ScanInfected {
		return nil, ErrInfected
	}

	if rec.PasswordHash != "" {
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if !s.hasher.Verify(password, rec.PasswordHash) {
			return nil, ErrPasswordIncorrect
		}
	}

	switch expiry.Evaluate(rec.ExpiryType, rec.ExpiryValue, rec.UploadedAt, rec.DownloadCount, time.Now().UTC()) {
	case expiry.ByDate:
		return nil, ErrExpiredDate
	case expiry.ByDownloads:
		return nil, ErrExpiredDownloads
	}

	// Confirm the blob still exists before spending a download credit.
	if _, err := s.store.Stat(ctx, rec.StoragePath); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrBlobMissing
		}
		return nil, fmt.Errorf("stat storage: %w", err)
	}

	if rec.ExpiryType == model.ExpiryDownloads {
		consumed, err := s.repo.ConsumeDownload(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("consume download credit: %w", err)
		}
		if !consumed {
			// Lost the race against a concurrent download for the last credit.
			return nil, ErrExpiredDownloads
		}
		rec.DownloadCount++
	}

	content, _, err := s.store.Get(ctx, rec.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrBlobMissing
		}
		return nil, fmt.Errorf("get storage: %w", err)
	}

	return &Download{
		File:        rec,
		Content:     content,
		ContentType: ContentTypeForExtension(rec.Extension),
	}, nil
}

// List returns paginated file records without exposing repository types.
func (s *fileService) List(ctx context.Context, limit, offset int) (*FileListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &FileListResult{Items: res.Items, Total: res.Total}, nil
}

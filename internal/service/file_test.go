package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"filedrop/internal/auth"
	"filedrop/internal/model"
	"filedrop/internal/repository"
	repoMocks "filedrop/internal/repository/mocks"
	"filedrop/internal/storage"
	storeMocks "filedrop/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubEnqueuer struct {
	calls []string
	err   error
}

func (s *stubEnqueuer) EnqueueScan(_ context.Context, fileID, _ string) error {
	s.calls = append(s.calls, fileID)
	return s.err
}

func TestFileService_Upload(t *testing.T) {
	ctx := context.Background()
	hasher := auth.NewPasswordHasher()

	tests := []struct {
		name       string
		in         UploadInput
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) io.Reader
		wantErr    error
		wantErrMsg string
		checkRec   func(t *testing.T, f *model.File)
	}{
		{
			name: "happy path with defaults",
			in:   UploadInput{OriginalFilename: "a.txt", Size: 11},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) io.Reader {
				r := strings.NewReader("hello world")
				mStore.On("Put", ctx, mock.MatchedBy(func(key string) bool {
					return strings.HasPrefix(key, "files/") && strings.HasSuffix(key, ".txt")
				}), r, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
					return opt.Size == 11 && opt.ContentType == "text/plain" &&
						opt.Metadata["original-filename"] == "a.txt"
				})).Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
					return storage.ObjectInfo{Key: key, Size: opt.Size}
				}, nil)

				mRepo.On("Create", ctx, mock.MatchedBy(func(f *model.File) bool {
					return f.ExpiryType == model.ExpiryDays && f.ExpiryValue == 7 &&
						f.ScanStatus == model.ScanPending && f.PasswordHash == "" &&
						f.DownloadCount == 0 && f.Extension == ".txt"
				})).Return(func(ctx context.Context, f *model.File) *model.File { return f }, nil)

				return r
			},
			checkRec: func(t *testing.T, f *model.File) {
				assert.Equal(t, "a.txt", f.OriginalFilename)
				assert.NotEmpty(t, f.ID)
			},
		},
		{
			name: "download-limited with password",
			in:   UploadInput{OriginalFilename: "b.pdf", Size: 5, Password: "secret", ExpiryOption: "2downloads"},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
						return storage.ObjectInfo{Key: key, Size: opt.Size}
					}, nil)
				mRepo.On("Create", ctx, mock.MatchedBy(func(f *model.File) bool {
					return f.ExpiryType == model.ExpiryDownloads && f.ExpiryValue == 2 &&
						f.PasswordHash != "" && f.PasswordHash != "secret"
				})).Return(func(ctx context.Context, f *model.File) *model.File { return f }, nil)
				return r
			},
			checkRec: func(t *testing.T, f *model.File) {
				assert.True(t, hasher.Verify("secret", f.PasswordHash))
			},
		},
		{
			name:    "validation error - nil reader",
			in:      UploadInput{OriginalFilename: "a.txt"},
			wantErr: ErrReaderNil,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) io.Reader {
				return nil
			},
		},
		{
			name:    "validation error - malformed expiry option",
			in:      UploadInput{OriginalFilename: "a.txt", ExpiryOption: "sevendays"},
			wantErr: ErrInvalidExpiryOption,
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) io.Reader {
				return strings.NewReader("hello")
			},
		},
		{
			name: "storage error",
			in:   UploadInput{OriginalFilename: "a.txt", Size: 5},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("storage fail"))
				return r
			},
			wantErrMsg: "upload to storage: storage fail",
		},
		{
			name: "repository error with successful rollback",
			in:   UploadInput{OriginalFilename: "a.txt", Size: 5},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
						return storage.ObjectInfo{Key: key}
					}, nil)
				mRepo.On("Create", ctx, mock.Anything).
					Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, mock.Anything).Return(nil)
				return r
			},
			wantErrMsg: "db save failed: db fail",
		},
		{
			name: "repository error with failed rollback",
			in:   UploadInput{OriginalFilename: "a.txt", Size: 5},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) io.Reader {
				r := strings.NewReader("hello")
				mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
						return storage.ObjectInfo{Key: key}
					}, nil)
				mRepo.On("Create", ctx, mock.Anything).
					Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, mock.Anything).Return(errors.New("delete fail"))
				return r
			},
			wantErrMsg: "rollback delete failed: delete fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockFileRepository)
			svc := NewFileService(mStore, mRepo, hasher, nil, "7days")

			tt.in.Reader = tt.setupMocks(mStore, mRepo)

			f, err := svc.Upload(ctx, tt.in)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, f)
				if tt.checkRec != nil {
					tt.checkRec(t, f)
				}
			}

			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestFileService_Upload_EnqueuesScan(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockFileRepository)
	enq := &stubEnqueuer{}
	svc := NewFileService(mStore, mRepo, auth.NewPasswordHasher(), enq, "7days")

	r := strings.NewReader("hello")
	mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
		Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
			return storage.ObjectInfo{Key: key}
		}, nil)
	mRepo.On("Create", ctx, mock.Anything).
		Return(func(ctx context.Context, f *model.File) *model.File { return f }, nil)

	f, err := svc.Upload(ctx, UploadInput{Reader: r, OriginalFilename: "a.txt", Size: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{f.ID}, enq.calls)
}

func TestFileService_Upload_EnqueueFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockFileRepository)
	enq := &stubEnqueuer{err: errors.New("redis down")}
	svc := NewFileService(mStore, mRepo, auth.NewPasswordHasher(), enq, "7days")

	r := strings.NewReader("hello")
	mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
		Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
			return storage.ObjectInfo{Key: key}
		}, nil)
	mRepo.On("Create", ctx, mock.Anything).
		Return(func(ctx context.Context, f *model.File) *model.File { return f }, nil)

	_, err := svc.Upload(ctx, UploadInput{Reader: r, OriginalFilename: "a.txt", Size: 5})
	assert.NoError(t, err)
}

func TestFileService_Download(t *testing.T) {
	ctx := context.Background()
	hasher := auth.NewPasswordHasher()

	secretHash, err := hasher.Hash("secret")
	require.NoError(t, err)

	baseFile := func() *model.File {
		return &model.File{
			ID:               "file-1",
			OriginalFilename: "a.txt",
			StoragePath:      "files/file-1.txt",
			Size:             11,
			Extension:        ".txt",
			ExpiryType:       model.ExpiryNone,
			ScanStatus:       model.ScanClean,
			UploadedAt:       time.Now().UTC().Add(-time.Hour),
		}
	}

	tests := []struct {
		name       string
		id         string
		password   string
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository)
		wantErr    error
	}{
		{
			name: "happy path - no gates",
			id:   "file-1",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) {
				mRepo.On("FindByID", ctx, "file-1").Return(baseFile(), nil)
				mStore.On("Stat", ctx, "files/file-1.txt").Return(storage.ObjectInfo{Key: "files/file-1.txt"}, nil)
				mStore.On("Get", ctx, "files/file-1.txt").
					Return(io.NopCloser(strings.NewReader("hello world")), storage.ObjectInfo{}, nil)
			},
		},
		{
			name:       "empty id",
			id:         "",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "record not found",
			id:   "missing",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) {
				mRepo.On("FindByID", ctx, "missing").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "infected file is rejected before any other gate",
			id:   "file-1",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) {
				f := baseFile()
				f.ScanStatus = model.ScanInfected
				f.PasswordHash = secretHash
				mRepo.On("FindByID", ctx, "file-1").Return(f, nil)
			},
			wantErr: ErrInfected,
		},
		{
			name: "password required",
			id:   "file-1",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) {
				f := baseFile()
				f.PasswordHash = secretHash
				mRepo.On("FindByID", ctx, "file-1").Return(f, nil)
			},
			wantErr: ErrPasswordRequired,
		},
		{
			name:     "incorrect password",
			id:       "file-1",
			password: "wrong",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) {
				f := baseFile()
				f.PasswordHash = secretHash
				mRepo.On("FindByID", ctx, "file-1").Return(f, nil)
			},
			wantErr: ErrPasswordIncorrect,
		},
		{
			name:     "correct password",
			id:       "file-1",
			password: "secret",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) {
				f := baseFile()
				f.PasswordHash = secretHash
				mRepo.On("FindByID", ctx, "file-1").Return(f, nil)
				mStore.On("Stat", ctx, "files/file-1.txt").Return(storage.ObjectInfo{}, nil)
				mStore.On("Get", ctx, "files/file-1.txt").
					Return(io.NopCloser(strings.NewReader("hello world")), storage.ObjectInfo{}, nil)
			},
		},
		{
			name: "expired by date",
			id:   "file-1",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) {
				f := baseFile()
				f.ExpiryType = model.ExpiryDays
				f.ExpiryValue = 1
				f.UploadedAt = time.Now().UTC().Add(-48 * time.Hour)
				mRepo.On("FindByID", ctx, "file-1").Return(f, nil)
			},
			wantErr: ErrExpiredDate,
		},
		{
			name: "expired by downloads - never consumes another credit",
			id:   "file-1",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) {
				f := baseFile()
				f.ExpiryType = model.ExpiryDownloads
				f.ExpiryValue = 2
				f.DownloadCount = 2
				mRepo.On("FindByID", ctx, "file-1").Return(f, nil)
			},
			wantErr: ErrExpiredDownloads,
		},
		{
			name: "download-limited consumes a credit",
			id:   "file-1",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) {
				f := baseFile()
				f.ExpiryType = model.ExpiryDownloads
				f.ExpiryValue = 2
				f.DownloadCount = 1
				mRepo.On("FindByID", ctx, "file-1").Return(f, nil)
				mStore.On("Stat", ctx, "files/file-1.txt").Return(storage.ObjectInfo{}, nil)
				mRepo.On("ConsumeDownload", ctx, "file-1").Return(true, nil)
				mStore.On("Get", ctx, "files/file-1.txt").
					Return(io.NopCloser(strings.NewReader("hello world")), storage.ObjectInfo{}, nil)
			},
		},
		{
			name: "lost race for last credit",
			id:   "file-1",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) {
				f := baseFile()
				f.ExpiryType = model.ExpiryDownloads
				f.ExpiryValue = 2
				f.DownloadCount = 1
				mRepo.On("FindByID", ctx, "file-1").Return(f, nil)
				mStore.On("Stat", ctx, "files/file-1.txt").Return(storage.ObjectInfo{}, nil)
				mRepo.On("ConsumeDownload", ctx, "file-1").Return(false, nil)
			},
			wantErr: ErrExpiredDownloads,
		},
		{
			name: "blob missing - no credit consumed",
			id:   "file-1",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockFileRepository) {
				f := baseFile()
				f.ExpiryType = model.ExpiryDownloads
				f.ExpiryValue = 2
				mRepo.On("FindByID", ctx, "file-1").Return(f, nil)
				mStore.On("Stat", ctx, "files/file-1.txt").
					Return(storage.ObjectInfo{}, storage.ErrObjectNotFound)
			},
			wantErr: ErrBlobMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockFileRepository)
			svc := NewFileService(mStore, mRepo, hasher, nil, "7days")

			tt.setupMocks(mStore, mRepo)

			dl, err := svc.Download(ctx, tt.id, tt.password)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, dl)
			} else {
				require.NoError(t, err)
				require.NotNil(t, dl)
				assert.Equal(t, "text/plain", dl.ContentType)
				content, readErr := io.ReadAll(dl.Content)
				require.NoError(t, readErr)
				assert.Equal(t, "hello world", string(content))
				dl.Content.Close()
			}

			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestFileService_Download_NonLimitedNeverMutates(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockFileRepository)
	svc := NewFileService(mStore, mRepo, auth.NewPasswordHasher(), nil, "7days")

	f := &model.File{
		ID:          "file-1",
		StoragePath: "files/file-1.txt",
		Extension:   ".txt",
		ExpiryType:  model.ExpiryNone,
		ScanStatus:  model.ScanClean,
		UploadedAt:  time.Now().UTC().Add(-time.Hour),
	}
	mRepo.On("FindByID", ctx, "file-1").Return(f, nil).Times(3)
	mStore.On("Stat", ctx, "files/file-1.txt").Return(storage.ObjectInfo{}, nil).Times(3)
	mStore.On("Get", ctx, "files/file-1.txt").
		Return(io.NopCloser(strings.NewReader("x")), storage.ObjectInfo{}, nil).Times(3)

	for i := 0; i < 3; i++ {
		dl, err := svc.Download(ctx, "file-1", "")
		require.NoError(t, err)
		dl.Content.Close()
	}

	mRepo.AssertNotCalled(t, "ConsumeDownload", mock.Anything, mock.Anything)
	mRepo.AssertExpectations(t)
	mStore.AssertExpectations(t)
}

func TestFileService_List(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		limit      int
		offset     int
		setupMocks func(mRepo *repoMocks.MockFileRepository)
		wantErr    bool
		checkRes   func(t *testing.T, res *FileListResult)
	}{
		{
			name:   "happy path",
			limit:  10,
			offset: 0,
			setupMocks: func(mRepo *repoMocks.MockFileRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.File]{
						Items: []model.File{{ID: "1"}, {ID: "2"}},
						Total: 2,
					}, nil)
			},
			checkRes: func(t *testing.T, res *FileListResult) {
				assert.Len(t, res.Items, 2)
				assert.Equal(t, 2, res.Total)
			},
		},
		{
			name:   "pagination boundary - zero limit uses default",
			limit:  0,
			offset: -1,
			setupMocks: func(mRepo *repoMocks.MockFileRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.File]{Items: []model.File{}, Total: 0}, nil)
			},
		},
		{
			name:  "repository error",
			limit: 10,
			setupMocks: func(mRepo *repoMocks.MockFileRepository) {
				mRepo.On("List", ctx, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockFileRepository)
			svc := NewFileService(nil, mRepo, nil, nil, "7days")

			tt.setupMocks(mRepo)

			res, err := svc.List(ctx, tt.limit, tt.offset)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				if tt.checkRes != nil {
					tt.checkRes(t, res)
				}
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestContentTypeForExtension(t *testing.T) {
	assert.Equal(t, "text/plain", ContentTypeForExtension(".txt"))
	assert.Equal(t, "application/pdf", ContentTypeForExtension(".PDF"))
	assert.Equal(t, "application/octet-stream", ContentTypeForExtension(".xyz"))
	assert.Equal(t, "application/octet-stream", ContentTypeForExtension(""))
}

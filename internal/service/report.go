package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"filedrop/internal/model"
	"filedrop/internal/repository"
)

var (
	ErrFileIDRequired   = errors.New("fileId is required")
	ErrReasonRequired   = errors.New("reason is required")
	ErrCommentsRequired = errors.New("comments are required")
)

// ReportInput carries the reporter-supplied fields of an abuse report.
type ReportInput struct {
	FileID        string
	Reason        string
	ReporterEmail string
	Comments      string
}

// ReportListResult is the service-level DTO for paginated abuse reports.
type ReportListResult struct {
	Items []model.AbuseReport `json:"data"`
	Total int                 `json:"total"`
}

// ReportService defines the use cases around abuse reports.
type ReportService interface {
	// Create validates and appends an abuse report. The file reference is
	// deliberately not checked for existence: reports against expired or
	// deleted files are still useful to moderators.
	Create(ctx context.Context, in ReportInput) (*model.AbuseReport, error)

	// List returns reports using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*ReportListResult, error)
}

type reportService struct {
	repo repository.ReportRepository
}

// NewReportService constructs a ReportService.
func NewReportService(repo repository.ReportRepository) ReportService {
	return &reportService{repo: repo}
}

func (s *reportService) Create(ctx context.Context, in ReportInput) (*model.AbuseReport, error) {
	if strings.TrimSpace(in.FileID) == "" {
		return nil, ErrFileIDRequired
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, ErrReasonRequired
	}
	if strings.TrimSpace(in.Comments) == "" {
		return nil, ErrCommentsRequired
	}

	rep := &model.AbuseReport{
		ID:        uuid.New().String(),
		FileID:    in.FileID,
		Reason:    in.Reason,
		Comments:  in.Comments,
		CreatedAt: time.Now().UTC(),
	}
	if in.ReporterEmail != "" {
		rep.ReporterEmail = &in.ReporterEmail
	}
	return s.repo.Create(ctx, rep)
}

func (s *reportService) List(ctx context.Context, limit, offset int) (*ReportListResult, error) {
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
	return &ReportListResult{Items: res.Items, Total: res.Total}, nil
}

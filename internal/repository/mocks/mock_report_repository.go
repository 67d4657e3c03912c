package mocks

import (
	"context"

	"filedrop/internal/model"
	"filedrop/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, r *model.AbuseReport) (*model.AbuseReport, error) {
	args := m.Called(ctx, r)
	if fn, ok := args.Get(0).(func(context.Context, *model.AbuseReport) *model.AbuseReport); ok {
		return fn(ctx, r), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AbuseReport), args.Error(1)
}

func (m *MockReportRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.AbuseReport], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.AbuseReport]), args.Error(1)
}

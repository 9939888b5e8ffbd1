package mocks

import (
	"context"

	"attachstore/internal/model"
	"attachstore/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Create(ctx context.Context, rec *model.StorageRecord) (*model.StorageRecord, error) {
	args := m.Called(ctx, rec)
	if f, ok := args.Get(0).(func(context.Context, *model.StorageRecord) *model.StorageRecord); ok {
		return f(ctx, rec), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StorageRecord), args.Error(1)
}

func (m *MockRecordRepository) FindByID(ctx context.Context, id string) (*model.StorageRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StorageRecord), args.Error(1)
}

func (m *MockRecordRepository) FindActiveByOwner(ctx context.Context, owner model.OwnerRef, attribute string) ([]model.StorageRecord, error) {
	args := m.Called(ctx, owner, attribute)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StorageRecord), args.Error(1)
}

func (m *MockRecordRepository) List(ctx context.Context, q repository.RecordQuery) (*repository.PageResult[model.StorageRecord], error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.StorageRecord]), args.Error(1)
}

func (m *MockRecordRepository) MarkDeleted(ctx context.Context, id, updatedBy string) error {
	args := m.Called(ctx, id, updatedBy)
	return args.Error(0)
}

func (m *MockRecordRepository) Restore(ctx context.Context, id, updatedBy string) error {
	args := m.Called(ctx, id, updatedBy)
	return args.Error(0)
}

func (m *MockRecordRepository) TotalUsage(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRecordRepository) UsageByOwnerClass(ctx context.Context) ([]repository.UsageRow, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.UsageRow), args.Error(1)
}

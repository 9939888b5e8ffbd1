package mocks

import (
	"context"

	"attachstore/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(ctx context.Context, rec *model.StorageRecord, viewer model.Identity) (string, error) {
	args := m.Called(ctx, rec, viewer)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Validate(ctx context.Context, token string, viewer model.Identity) (*model.StorageRecord, error) {
	args := m.Called(ctx, token, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StorageRecord), args.Error(1)
}

package mocks

import (
	"context"

	"docshare/internal/model"
	"docshare/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockSharingService struct {
	mock.Mock
}

func (m *MockSharingService) CreateShare(ctx context.Context, in service.CreateShareInput) (*model.ShareResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ShareResult), args.Error(1)
}

func (m *MockSharingService) SubmitSignature(ctx context.Context, shareID string, role model.Role, in service.SignatureInput) error {
	args := m.Called(ctx, shareID, role, in)
	return args.Error(0)
}

func (m *MockSharingService) GetStatus(ctx context.Context, shareID string) (*model.SignatureStatus, error) {
	args := m.Called(ctx, shareID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SignatureStatus), args.Error(1)
}

func (m *MockSharingService) GetCompletedDocument(ctx context.Context, shareID string) (*model.CompletedDocument, error) {
	args := m.Called(ctx, shareID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CompletedDocument), args.Error(1)
}

func (m *MockSharingService) DeleteShare(ctx context.Context, shareID string) error {
	args := m.Called(ctx, shareID)
	return args.Error(0)
}

func (m *MockSharingService) ListShares(ctx context.Context, filter service.ListFilter) ([]model.ShareSummary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ShareSummary), args.Error(1)
}

func (m *MockSharingService) OpenShare(ctx context.Context, shareID, password string) (*model.ShareRecord, error) {
	args := m.Called(ctx, shareID, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ShareRecord), args.Error(1)
}

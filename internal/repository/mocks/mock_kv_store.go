package mocks

import (
	"context"

	"docshare/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockKeyValueStore struct {
	mock.Mock
}

func (m *MockKeyValueStore) Get(ctx context.Context, key string) (repository.Entry, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(repository.Entry), args.Error(1)
}

func (m *MockKeyValueStore) Create(ctx context.Context, key, value string) (repository.Entry, error) {
	args := m.Called(ctx, key, value)
	return args.Get(0).(repository.Entry), args.Error(1)
}

func (m *MockKeyValueStore) Update(ctx context.Context, key, value string, version int64) (repository.Entry, error) {
	args := m.Called(ctx, key, value, version)
	return args.Get(0).(repository.Entry), args.Error(1)
}

func (m *MockKeyValueStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockKeyValueStore) List(ctx context.Context, prefix string) ([]repository.Entry, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.Entry), args.Error(1)
}

func (m *MockKeyValueStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

package hostusers

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockManager is a testify mock of Manager for driver and server tests.
type MockManager struct {
	mock.Mock
}

func (m *MockManager) UserExists(ctx context.Context, user string) (bool, error) {
	args := m.Called(ctx, user)
	return args.Bool(0), args.Error(1)
}

func (m *MockManager) GroupExists(group string) bool {
	args := m.Called(group)
	return args.Bool(0)
}

func (m *MockManager) CreateUser(ctx context.Context, user string) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockManager) AddUserToGroup(ctx context.Context, user, group string) error {
	return m.Called(ctx, user, group).Error(0)
}

func (m *MockManager) RemoveUserFromGroup(ctx context.Context, user, group string) error {
	return m.Called(ctx, user, group).Error(0)
}

func (m *MockManager) DeleteUser(ctx context.Context, user string) error {
	return m.Called(ctx, user).Error(0)
}

var _ Manager = (*MockManager)(nil)

package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"ebookviewer/internal/domain"
	"ebookviewer/internal/events"
	"ebookviewer/internal/repository"
)

/* ==================== MOCKS ==================== */

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *MockUserStore) DeleteByUsername(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *MockUserStore) Demote(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, e events.Event) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockPublisher) Close() error { return nil }

/* ==================== TESTS ==================== */

var adminUser = &domain.User{ID: 1, Username: "admin", IsAdmin: true}

func newService(users *MockUserStore, pub *MockPublisher) *Service {
	return NewService(users, pub, zap.NewNop())
}

func TestDemoteUser_Success(t *testing.T) {
	users := new(MockUserStore)
	pub := new(MockPublisher)
	users.On("Demote", mock.Anything, "reader").Return(nil)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		return e.Type == events.TypeUserDemoted && e.Key == "reader"
	})).Return(nil)

	err := newService(users, pub).DemoteUser(context.Background(), adminUser, "reader")

	assert.NoError(t, err)
	users.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestDemoteUser_AlreadyFree(t *testing.T) {
	users := new(MockUserStore)
	pub := new(MockPublisher)
	users.On("Demote", mock.Anything, "free").Return(repository.ErrNotFound)

	err := newService(users, pub).DemoteUser(context.Background(), adminUser, "free")

	assert.ErrorIs(t, err, ErrNotDemotable)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestDemoteUser_Self(t *testing.T) {
	users := new(MockUserStore)
	err := newService(users, new(MockPublisher)).DemoteUser(context.Background(), adminUser, "admin")

	assert.ErrorIs(t, err, ErrCannotEditSelf)
	users.AssertNotCalled(t, "Demote", mock.Anything, mock.Anything)
}

func TestDeleteUser(t *testing.T) {
	users := new(MockUserStore)
	pub := new(MockPublisher)
	users.On("DeleteByUsername", mock.Anything, "reader").Return(nil)
	users.On("DeleteByUsername", mock.Anything, "ghost").Return(repository.ErrNotFound)
	users.On("DeleteByUsername", mock.Anything, "broken").Return(errors.New("db down"))
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	svc := newService(users, pub)
	ctx := context.Background()

	// a failed publish does not fail the delete
	assert.NoError(t, svc.DeleteUser(ctx, adminUser, "reader"))
	assert.ErrorIs(t, svc.DeleteUser(ctx, adminUser, "ghost"), ErrUserNotFound)

	err := svc.DeleteUser(ctx, adminUser, "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestListUsers(t *testing.T) {
	users := new(MockUserStore)
	users.On("List", mock.Anything).Return([]domain.User{{Username: "a"}, {Username: "b"}}, nil)

	got, err := newService(users, new(MockPublisher)).ListUsers(context.Background())
	assert.NoError(t, err)
	assert.Len(t, got, 2)
}

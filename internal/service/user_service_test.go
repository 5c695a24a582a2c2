package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateUserEnforcesUniqueness(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewUserService(users, zap.NewNop())

	created, err := svc.CreateUser(context.Background(), CreateUserRequest{
		UserKey:     "alice",
		UserName:    "Alice",
		PhoneNumber: "+15550001",
		FullName:    "Alice Smith",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", created.UserKey)
	assert.False(t, created.CreatedAt.IsZero())

	_, err = svc.CreateUser(context.Background(), CreateUserRequest{
		UserKey:     "alice",
		UserName:    "Other",
		PhoneNumber: "+15550002",
		FullName:    "Other",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.CreateUser(context.Background(), CreateUserRequest{
		UserKey:     "alice2",
		UserName:    "Other",
		PhoneNumber: "+15550001",
		FullName:    "Other",
	})
	assert.ErrorIs(t, err, ErrPhoneExists)
}

func TestCreateUserStorageOutageIsNotAConflict(t *testing.T) {
	outage := errors.New("connection reset by peer")
	svc := NewUserService(&failingUserRepo{err: outage}, zap.NewNop())

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{
		UserKey:     "alice",
		UserName:    "Alice",
		PhoneNumber: "+15550001",
		FullName:    "Alice Smith",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserExists)
	assert.ErrorIs(t, err, outage)
}

func TestGetUserLookups(t *testing.T) {
	alice := testUser("alice", "Alice")
	svc := NewUserService(newFakeUserRepo(alice), zap.NewNop())

	found, err := svc.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.UserName)

	_, err = svc.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	byPhone, err := svc.GetUserByPhone(context.Background(), alice.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, "alice", byPhone.UserKey)

	_, err = svc.GetUserByPhone(context.Background(), "+10000000000")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/keyxmakerx/gatehouse/internal/apperror"
)

func TestMongoUserRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mt.Run("find by email", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		ns := mt.DB.Name() + "." + usersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "0b7c7c0e-1d5e-4d0a-9a55-1b2a4c3f9e11"},
			{Key: "email", Value: "alice@x.com"},
			{Key: "password", Value: "$2a$10$hash"},
			{Key: "createdAt", Value: created},
		}))

		user, err := repo.FindByEmail(context.Background(), "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, "0b7c7c0e-1d5e-4d0a-9a55-1b2a4c3f9e11", user.ID)
		assert.Equal(t, "alice@x.com", user.Email)
		assert.Equal(t, "$2a$10$hash", user.PasswordHash)
		assert.True(t, created.Equal(user.CreatedAt))
		assert.False(t, user.HasPendingReset())
	})

	mt.Run("find with pending reset", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		ns := mt.DB.Name() + "." + usersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "email", Value: "alice@x.com"},
			{Key: "password", Value: "$2a$10$hash"},
			{Key: "resetPasswordToken", Value: "tok"},
			{Key: "resetPasswordExpires", Value: created.Add(time.Hour)},
			{Key: "createdAt", Value: created},
		}))

		user, err := repo.FindByEmail(context.Background(), "alice@x.com")
		require.NoError(t, err)
		assert.True(t, user.HasPendingReset())
		assert.Equal(t, "tok", *user.ResetToken)
	})

	mt.Run("half-populated reset pair is a store fault", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		ns := mt.DB.Name() + "." + usersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "email", Value: "alice@x.com"},
			{Key: "password", Value: "$2a$10$hash"},
			{Key: "resetPasswordToken", Value: "tok"},
			{Key: "createdAt", Value: created},
		}))

		_, err := repo.FindByEmail(context.Background(), "alice@x.com")
		require.Error(t, err)
		assert.False(t, apperror.IsNotFound(err))
	})

	mt.Run("not found", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		ns := mt.DB.Name() + "." + usersCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.FindByEmail(context.Background(), "nobody@x.com")
		assert.True(t, apperror.IsNotFound(err))
	})

	mt.Run("create", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := repo.Create(context.Background(), &User{ID: "u1", Email: "alice@x.com", PasswordHash: "h", CreatedAt: created})
		assert.NoError(t, err)
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: users index: uq_users_email",
		}))

		err := repo.Create(context.Background(), &User{ID: "u2", Email: "alice@x.com", PasswordHash: "h", CreatedAt: created})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	mt.Run("create fault", func(mt *mtest.T) {
		repo := NewMongoUserRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad value",
		}))

		err := repo.Create(context.Background(), &User{ID: "u3", Email: "bob@x.com", PasswordHash: "h", CreatedAt: created})
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrDuplicateEmail))
		var cmdErr mongo.CommandError
		assert.True(t, errors.As(err, &cmdErr))
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		assert.NoError(t, EnsureUserIndexes(context.Background(), mt.DB))
	})
}

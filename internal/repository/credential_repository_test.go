package repository

import (
	"context"
	"testing"

	"instagrid/internal/domain/models"
	"instagrid/internal/storage"
	redisapp "instagrid/internal/storage/redis"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedCredentialRepo(t *testing.T) (*RedisCredentialRepo, redismock.ClientMock) {
	t.Helper()

	db, mock := redismock.NewClientMock()
	repo := NewRedisCredentialRepo(&redisapp.Client{Client: db})
	return repo, mock
}

func TestRedisCredentialRepo_SaveCredentials(t *testing.T) {
	repo, mock := newMockedCredentialRepo(t)

	creds := models.Credentials{AccessToken: "tok", UserID: "17841400000000000"}

	mock.ExpectSet("ig:credentials:access_token", "tok", 0).SetVal("OK")
	mock.ExpectSet("ig:credentials:user_id", "17841400000000000", 0).SetVal("OK")
	mock.ExpectSet("ig:credentials:token_type", "manual", 0).SetVal("OK")

	require.NoError(t, repo.SaveCredentials(context.Background(), creds, "manual"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCredentialRepo_GetCredentials(t *testing.T) {
	t.Run("returns stored pair", func(t *testing.T) {
		repo, mock := newMockedCredentialRepo(t)

		mock.ExpectGet("ig:credentials:access_token").SetVal("tok")
		mock.ExpectGet("ig:credentials:user_id").SetVal("17841400000000000")

		creds, err := repo.GetCredentials(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", creds.AccessToken)
		assert.Equal(t, "17841400000000000", creds.UserID)
		assert.True(t, creds.Complete())
	})

	t.Run("missing token maps to ErrNoCredentials", func(t *testing.T) {
		repo, mock := newMockedCredentialRepo(t)

		mock.ExpectGet("ig:credentials:access_token").RedisNil()

		_, err := repo.GetCredentials(context.Background())
		assert.ErrorIs(t, err, storage.ErrNoCredentials)
	})

	t.Run("missing user id is tolerated", func(t *testing.T) {
		repo, mock := newMockedCredentialRepo(t)

		mock.ExpectGet("ig:credentials:access_token").SetVal("tok")
		mock.ExpectGet("ig:credentials:user_id").RedisNil()

		creds, err := repo.GetCredentials(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", creds.AccessToken)
		assert.False(t, creds.Complete())
	})
}

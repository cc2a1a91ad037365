package repository

import (
	"context"
	"errors"
	"fmt"

	"instagrid/internal/domain/models"
	"instagrid/internal/storage"
	redisapp "instagrid/internal/storage/redis"

	"github.com/redis/go-redis/v9"
)

const (
	credentialsKeyToken     = "ig:credentials:access_token"
	credentialsKeyUserID    = "ig:credentials:user_id"
	credentialsKeyTokenType = "ig:credentials:token_type"
)

// RedisCredentialRepo caches the platform access token so a saved token
// survives service restarts. Tokens are stored without TTL; a permanent page
// token never expires and a stale one simply fails the next publish.
type RedisCredentialRepo struct {
	Client *redisapp.Client
}

func NewRedisCredentialRepo(client *redisapp.Client) *RedisCredentialRepo {
	return &RedisCredentialRepo{Client: client}
}

func (r *RedisCredentialRepo) SaveCredentials(ctx context.Context, creds models.Credentials, tokenType string) error {
	const op = "repository.credential_repository.SaveCredentials"

	if err := r.Client.Set(ctx, credentialsKeyToken, creds.AccessToken, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.Client.Set(ctx, credentialsKeyUserID, creds.UserID, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.Client.Set(ctx, credentialsKeyTokenType, tokenType, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisCredentialRepo) GetCredentials(ctx context.Context) (models.Credentials, error) {
	const op = "repository.credential_repository.GetCredentials"

	token, err := r.Client.Get(ctx, credentialsKeyToken).Result()
	if errors.Is(err, redis.Nil) {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, storage.ErrNoCredentials)
	}
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}

	userID, err := r.Client.Get(ctx, credentialsKeyUserID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Credentials{AccessToken: token, UserID: userID}, nil
}

// Package preference stores each user's preferred currency in redis.
package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/saaskit/pricing/pkg/config"
	"github.com/saaskit/pricing/pkg/repository"
)

const keyPrefix = "pricing:pref:"

// RedisStore implements repository.PreferenceStore on go-redis.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects a preference store to redis.
func New(cfg config.Redis, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		logger: logger,
	}
}

// GetCurrency returns the stored code for the user, or repository.ErrNotFound.
func (s *RedisStore) GetCurrency(ctx context.Context, userID uuid.UUID) (string, error) {
	code, err := s.client.Get(ctx, keyPrefix+userID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("failed to read currency preference: %w", err)
	}
	return code, nil
}

// SetCurrency stores the code for the user. Preferences do not expire.
func (s *RedisStore) SetCurrency(ctx context.Context, userID uuid.UUID, code string) error {
	if err := s.client.Set(ctx, keyPrefix+userID.String(), code, 0).Err(); err != nil {
		return fmt.Errorf("failed to store currency preference: %w", err)
	}
	s.logger.Debug("Currency preference stored", "user_id", userID, "currency", code)
	return nil
}

// Close releases the underlying redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ repository.PreferenceStore = (*RedisStore)(nil)

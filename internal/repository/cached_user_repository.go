package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/propertyhub/maintenance-service/internal/domain"
)

// cachedUserRepository decorates a UserRepository with a Redis cache
// for the two lookups the workflow engine performs on every transition.
// A missing or failing Redis degrades to direct Postgres lookups; cache
// problems are logged, never surfaced.
type cachedUserRepository struct {
	inner  UserRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedUserRepository wraps inner with an identity cache. A nil
// client returns inner unchanged.
func NewCachedUserRepository(inner UserRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) UserRepository {
	if client == nil {
		return inner
	}
	return &cachedUserRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

func identityKeyByUsername(username string) string {
	return "identity:username:" + username
}

func identityKeyByID(id string) string {
	return "identity:id:" + id
}

func (r *cachedUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if user := r.cached(ctx, identityKeyByUsername(username)); user != nil {
		return user, nil
	}
	user, err := r.inner.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	r.store(ctx, user)
	return user, nil
}

func (r *cachedUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if user := r.cached(ctx, identityKeyByID(id)); user != nil {
		return user, nil
	}
	user, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, user)
	return user, nil
}

func (r *cachedUserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.inner.Create(ctx, user)
}

func (r *cachedUserRepository) UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error {
	if err := r.inner.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *cachedUserRepository) IncrementDebt(ctx context.Context, id string, amount float64) error {
	if err := r.inner.IncrementDebt(ctx, id, amount); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *cachedUserRepository) ListByRole(ctx context.Context, role domain.Role, limit, offset int) ([]domain.User, error) {
	return r.inner.ListByRole(ctx, role, limit, offset)
}

func (r *cachedUserRepository) cached(ctx context.Context, key string) *domain.User {
	payload, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Debug("identity cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
	var user domain.User
	if err := json.Unmarshal(payload, &user); err != nil {
		r.logger.Warn("identity cache entry corrupt", zap.String("key", key), zap.Error(err))
		_ = r.client.Del(ctx, key).Err()
		return nil
	}
	return &user
}

func (r *cachedUserRepository) store(ctx context.Context, user *domain.User) {
	payload, err := json.Marshal(user)
	if err != nil {
		return
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, identityKeyByUsername(user.Username), payload, r.ttl)
	pipe.Set(ctx, identityKeyByID(user.ID), payload, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Debug("identity cache write failed", zap.String("username", user.Username), zap.Error(err))
	}
}

func (r *cachedUserRepository) invalidate(ctx context.Context, id string) {
	user, err := r.inner.GetByID(ctx, id)
	keys := []string{identityKeyByID(id)}
	if err == nil {
		keys = append(keys, identityKeyByUsername(user.Username))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Debug("identity cache invalidation failed", zap.String("id", id), zap.Error(err))
	}
}

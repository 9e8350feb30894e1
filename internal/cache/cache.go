package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrMiss signals an absent key, distinct from a backend failure.
var ErrMiss = errors.New("cache miss")

// Store is a get/set-with-expiry/delete key-value store used cache-aside:
// handlers read it first, fall back to Postgres on a miss, and delete keys
// before any mutation.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Redis implements Store on a shared go-redis client with a uniform TTL.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis returns a Redis-backed store. Every Set uses the same TTL.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

// Get returns the cached value or ErrMiss when the key is absent.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores the value under the configured TTL.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	return r.rdb.Set(ctx, key, value, r.ttl).Err()
}

// Delete invalidates a key. Deleting an absent key is not an error.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// ProfileKey is the cache key for a user's profile.
func ProfileKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_profile_%s", userID)
}

// BudgetKey is the cache key for a budget, scoped by its owner.
func BudgetKey(userID, budgetID uuid.UUID) string {
	return fmt.Sprintf("budget_%s_%s", userID, budgetID)
}

// ExpenseKey is the cache key for an expense, scoped by owner and budget.
func ExpenseKey(userID, budgetID, expenseID uuid.UUID) string {
	return fmt.Sprintf("expense_%s_%s_%s", userID, budgetID, expenseID)
}

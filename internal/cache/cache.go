// Package cache holds the read-through cache for loan views and the penalty
// dedupe reservations. Cached views may be stale; every ledger mutation
// invalidates the loan's keys after commit.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	customError "github.com/segyhp/loan-ledger/pkg/errors"
)

// Cache is the subset of key/value operations the ledger service needs.
type Cache interface {
	// Get decodes the value at key into dest. It reports false on a miss.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Reserve claims key for ttl. It reports false if the key is already held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

func LoanKey(tenantID string, loanID uuid.UUID) string {
	return fmt.Sprintf("ledger:%s:loan:%s", tenantID, loanID)
}

func ScheduleKey(tenantID string, loanID uuid.UUID) string {
	return fmt.Sprintf("ledger:%s:schedule:%s", tenantID, loanID)
}

func BalanceKey(tenantID string, loanID uuid.UUID) string {
	return fmt.Sprintf("ledger:%s:balance:%s", tenantID, loanID)
}

// PenaltyKey is the reservation key for one penalty period.
func PenaltyKey(tenantID, periodKey string) string {
	return fmt.Sprintf("ledger:%s:penalty:%s", tenantID, periodKey)
}

// LoanKeys returns every view key cached for a loan.
func LoanKeys(tenantID string, loanID uuid.UUID) []string {
	return []string{
		LoanKey(tenantID, loanID),
		ScheduleKey(tenantID, loanID),
		BalanceKey(tenantID, loanID),
	}
}

// RedisCache stores JSON values in Redis.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, customError.WrapCacheError(err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, customError.WrapCacheError(fmt.Errorf("decode %s: %w", key, err))
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return customError.WrapCacheError(fmt.Errorf("encode %s: %w", key, err))
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (c *RedisCache) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, customError.WrapCacheError(err)
	}
	return ok, nil
}

func (c *RedisCache) Release(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}

// Noop never stores anything and grants every reservation. It stands in when
// Redis is disabled; penalty dedupe then rests on the database constraint.
type Noop struct{}

func (Noop) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (Noop) Delete(context.Context, ...string) error { return nil }
func (Noop) Reserve(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (Noop) Release(context.Context, string) error { return nil }

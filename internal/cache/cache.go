package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ratebench/internal/pricing"
)

// ErrCacheMiss is returned when no savings are cached for a key.
var ErrCacheMiss = errors.New("cache: miss")

// SavingsCache stores match results per user and day.
type SavingsCache interface {
	GetSavings(ctx context.Context, userEmail string, asOf time.Time) ([]pricing.SavingsRecord, error)
	SetSavings(ctx context.Context, userEmail string, asOf time.Time, records []pricing.SavingsRecord) error
	// InvalidateSavings drops every cached result, used after aggregates change.
	InvalidateSavings(ctx context.Context) error
}

// Options configure the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisCache implements SavingsCache on Redis with JSON values.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, opts Options) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisCacheWithClient(client, opts.Prefix, opts.TTL), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "ratebench"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetSavings(ctx context.Context, userEmail string, asOf time.Time) ([]pricing.SavingsRecord, error) {
	data, err := c.client.Get(ctx, c.savingsKey(userEmail, asOf)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var records []pricing.SavingsRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode cached savings: %w", err)
	}
	return records, nil
}

func (c *RedisCache) SetSavings(ctx context.Context, userEmail string, asOf time.Time, records []pricing.SavingsRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode savings: %w", err)
	}
	return c.client.Set(ctx, c.savingsKey(userEmail, asOf), data, c.ttl).Err()
}

func (c *RedisCache) InvalidateSavings(ctx context.Context) error {
	pattern := c.prefix + ":savings:*"

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return fmt.Errorf("scan savings keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("unlink savings keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *RedisCache) savingsKey(userEmail string, asOf time.Time) string {
	return SavingsKey(c.prefix, userEmail, asOf)
}

// SavingsKey builds the key a user's savings for one day are stored under. The
// email is used verbatim because rates are matched on the exact stored email.
func SavingsKey(prefix, userEmail string, asOf time.Time) string {
	return fmt.Sprintf("%s:savings:%s:%s", prefix, userEmail, pricing.Day(asOf).Format(pricing.DateLayout))
}

var _ SavingsCache = (*RedisCache)(nil)

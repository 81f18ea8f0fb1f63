package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
)

// RedisOptions configure the Redis store.
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	MaxRetries uint64        // connect attempts after the first
	RetryDelay time.Duration // initial backoff interval
	Prefix     string        // prepended to every key
}

// RedisStore keeps saves as Redis string values.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects and pings, retrying with exponential backoff.
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	b := backoff.NewExponentialBackOff()
	if opts.RetryDelay > 0 {
		b.InitialInterval = opts.RetryDelay
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, opts.MaxRetries), ctx)
	err := backoff.Retry(func() error {
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("redis connection failed, retrying", "addr", opts.Addr, "error", err)
			return err
		}
		return nil
	}, policy)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}

	slog.Info("redis store connected", "addr", opts.Addr)
	return NewRedisStore(client, opts.Prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// List scans the store's prefix. Redis keeps no write time, so UpdatedAt
// stays zero and saves come back in key order.
func (r *RedisStore) List(ctx context.Context) ([]SaveInfo, error) {
	out := []SaveInfo{}
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		n, err := r.client.StrLen(ctx, full).Result()
		if err != nil {
			return nil, fmt.Errorf("strlen %s: %w", full, err)
		}
		out = append(out, SaveInfo{Key: strings.TrimPrefix(full, r.prefix), Size: int(n)})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sortSaves(out)
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis stores documents as plain string values without expiry.
type Redis struct {
	c *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(c *redis.Client) *Redis { return &Redis{c: c} }

func (r *Redis) Read(ctx context.Context, key string) (data []byte, found bool, err error) {
	start := time.Now()
	defer func() { observe(BackendRedis, "read", start, err) }()

	data, err = r.c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return data, true, nil
}

func (r *Redis) Write(ctx context.Context, key string, data []byte) (err error) {
	start := time.Now()
	defer func() { observe(BackendRedis, "write", start, err) }()

	if err = r.c.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func (r *Redis) Name() string { return BackendRedis }

func (r *Redis) Close() error { return r.c.Close() }

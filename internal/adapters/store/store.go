// Package store provides key/value persistence backends for the timer
// registry. Every backend stores opaque documents under string keys and maps
// its own failures onto ErrRead and ErrWrite.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/afero"

	"github.com/okian/dripcue/pkg/metrics"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Backend is a named key/value store.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, data []byte) error
	Name() string
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend   string
	Dir       string // file and sqlite backends
	RedisAddr string
	RedisDB   int
}

// Open builds the backend described by cfg.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile, "":
		dir, err := expandHome(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return NewFile(afero.NewOsFs(), dir), nil
	case BackendSQLite:
		dir, err := expandHome(cfg.Dir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWrite, err)
		}
		return OpenSQLite(ctx, filepath.Join(dir, "dripcue.db"))
	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%w: redis ping %s: %w", ErrRead, cfg.RedisAddr, err)
		}
		return NewRedis(client), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func expandHome(dir string) (string, error) {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(dir, "~")), nil
	}
	return dir, nil
}

func observe(backend, op string, start time.Time, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.RecordPersistence(backend, op, outcome, time.Since(start))
}

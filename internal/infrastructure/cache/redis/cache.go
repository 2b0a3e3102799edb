package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"NewsIntent/internal/logging"
	"NewsIntent/internal/ports"
)

// Options holds connection details for the shared cache.
type Options struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// Cache keeps resolved links and extracted text in Redis so reruns skip the network.
type Cache struct {
	client *goredis.Client
	prefix string
	logger *slog.Logger
}

var _ ports.Cache = (*Cache)(nil)

// New connects and pings the server.
func New(ctx context.Context, opts Options, log *slog.Logger) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Address, err)
	}

	return NewWithClient(client, opts.Prefix, log), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string, log *slog.Logger) *Cache {
	if prefix == "" {
		prefix = "newsintent:"
	}
	return &Cache{client: client, prefix: prefix, logger: logging.OrDiscard(log)}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Debug("redis get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

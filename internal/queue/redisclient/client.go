package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/storefront/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	ioTimeout      = 2 * time.Second
	connectRetries = 3
)

// Client owns the redis connection shared by the mail queue and the
// readiness probes.
type Client struct {
	rdb *redis.Client
}

func options(cfg config.Redis) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  ioTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	}
}

// Connect dials redis and pings it, retrying briefly so containers that
// start together can find each other.
func Connect(ctx context.Context, cfg config.Redis) (*Client, error) {
	c := &Client{rdb: redis.NewClient(options(cfg))}

	var err error
	for attempt := 1; attempt <= connectRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, ioTimeout)
		err = c.Ping(pingCtx)
		cancel()
		if err == nil {
			return c, nil
		}

		if attempt < connectRetries {
			select {
			case <-ctx.Done():
				_ = c.Close()
				return nil, fmt.Errorf("redis connect %s: %w", cfg.Addr, ctx.Err())
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
	}

	_ = c.Close()
	return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Raw exposes the underlying client to the queue.
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

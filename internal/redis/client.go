// Package redis wraps the go-redis client shared by the redis routing store
// and the rebuild lock.
package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"overlay-router/internal/common/errors"
)

const (
	defaultAddress     = "localhost:6379"
	defaultPoolSize    = 10
	defaultPingTimeout = 5 * time.Second
)

// Config selects the server and sizes the connection pool. Zero values fall
// back to localhost:6379, a pool of 10 and a 5s ping timeout.
type Config struct {
	Address     string        `json:"address"`
	Password    string        `json:"password"`
	DB          int           `json:"db"`
	PoolSize    int           `json:"pool_size"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = defaultAddress
	}
	if c.PoolSize <= 0 {
		c.PoolSize = defaultPoolSize
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = defaultPingTimeout
	}
	return c
}

type Client struct {
	rdb    *redis.Client
	config Config
}

// NewClient connects and pings the server. A failed ping is a connection
// error and leaves nothing open.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.ConfigError("redis config is required")
	}
	cfg := config.withDefaults()
	if cfg.DB < 0 {
		return nil, errors.ConfigError("redis db must not be negative")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	client := &Client{rdb: rdb, config: cfg}
	if err := client.Health(ctx); err != nil {
		_ = rdb.Close()
		return nil, errors.ConnectionError("redis ping failed", err).WithContext("address", cfg.Address)
	}
	return client, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings the server within the configured ping timeout
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.PingTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// GoRedis exposes the underlying client for libraries that take one directly
func (c *Client) GoRedis() *redis.Client {
	return c.rdb
}

func (c *Client) Address() string {
	return c.config.Address
}

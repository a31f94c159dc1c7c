package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/canopy-network/chanalytics/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pub/Sub channels for progress events.
const (
	ImportEventsChannel = "chanalytics:import"
	SyncEventsChannel   = "chanalytics:sync"
)

// Client wraps the Redis client for real-time event notifications.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

// NewClient creates a new Redis client using environment variables for configuration.
// Environment variables:
//   - REDIS_HOST: Redis host (default: "localhost")
//   - REDIS_PORT: Redis port (default: "6379")
//   - REDIS_PASSWORD: Redis password (default: "")
//   - REDIS_DB: Redis database number (default: "0")
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	host := utils.Env("REDIS_HOST", "localhost")
	port := utils.Env("REDIS_PORT", "6379")
	password := utils.Env("REDIS_PASSWORD", "")
	db := utils.EnvInt("REDIS_DB", 0)

	addr := fmt.Sprintf("%s:%s", host, port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,

		PoolSize:     10,
		MinIdleConns: 2,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Connected to Redis", zap.String("addr", addr), zap.Int("db", db))

	return &Client{client: rdb, logger: logger}, nil
}

// Wrap builds a Client around an existing go-redis client.
func Wrap(rdb *redis.Client, logger *zap.Logger) *Client {
	return &Client{client: rdb, logger: logger}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// PublishJSON encodes v and publishes it on a Pub/Sub channel.
func (c *Client) PublishJSON(ctx context.Context, channel string, v any) error {
	payload, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", channel, err)
	}
	if err := c.client.Publish(ctx, channel, payload).Err(); err != nil {
		c.logger.Warn("Failed to publish Redis message",
			zap.String("channel", channel),
			zap.Error(err))
		return err
	}
	return nil
}

// Subscribe subscribes to one or more Redis Pub/Sub channels.
// The caller is responsible for closing the PubSub object when done.
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	c.logger.Debug("Subscribing to Redis channels", zap.Strings("channels", channels))
	return c.client.Subscribe(ctx, channels...)
}

// Health checks if Redis is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NopPublisher discards every message. Used when Redis is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishJSON(context.Context, string, any) error { return nil }

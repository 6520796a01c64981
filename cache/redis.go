package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sweetpotato0/mountdoom/pkg/logging"
)

// RedisCache implements Cache directly in Redis, for deployments that want
// cheap TTL'd reuse without touching the document store on the hot path.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisConfig holds Redis configuration for the response cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisCache creates a new Redis-based response cache.
func NewRedisCache(config *RedisConfig) *RedisCache {
	if config == nil {
		config = &RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "mountdoom:cache:",
			TTL:    7 * 24 * time.Hour,
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisCache{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
		logger: logging.WithComponent("cache.redis"),
	}
}

// Find looks up a record by its key triple. Redis failures are logged and
// reported as a miss.
func (c *RedisCache) Find(ctx context.Context, prompt, agentName, agentVersion string) (*Record, bool) {
	key := c.prefix + Key(prompt, agentName, agentVersion)

	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache lookup failed, treating as miss",
				"agent", agentName, "error", err)
		}
		return nil, false
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		c.logger.Warn("cache record decode failed, treating as miss",
			"agent", agentName, "error", err)
		return nil, false
	}
	return &record, true
}

// Save persists a record with the configured TTL.
func (c *RedisCache) Save(ctx context.Context, record *Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	key := c.prefix + Key(record.Prompt, record.AgentName, record.AgentVersion)

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Close closes the underlying Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping checks if the Redis connection is alive.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

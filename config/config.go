// Package config loads Mount Doom service configuration from the environment.
package config

import (
	"time"

	"github.com/sweetpotato0/mountdoom/pkg/env"
)

// Config is the top-level service configuration.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Mongo      MongoConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
	Gateway    GatewayConfig
	Simulation SimulationConfig
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend string // "mongo" or "postgres"
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection settings for the response cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
	Enabled  bool
}

// PostgresConfig holds PostgreSQL connection settings for the document store.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// GatewayConfig selects and configures the agent invocation provider.
type GatewayConfig struct {
	Provider string // "openai" or "anthropic"
	APIKey   string
	BaseURL  string
	Model    string
}

// SimulationConfig holds orchestration defaults.
type SimulationConfig struct {
	MaxTurns int
}

// Load reads configuration from environment variables, applying defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            env.GetEnv("MOUNTDOOM_ADDR", ":8080"),
			ShutdownTimeout: env.GetEnvDuration("MOUNTDOOM_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Store: StoreConfig{
			Backend: env.GetEnv("DOCUMENT_STORE_BACKEND", "mongo"),
		},
		Mongo: MongoConfig{
			URI:      env.GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: env.GetEnv("MONGODB_DATABASE", "mountdoom"),
		},
		Redis: RedisConfig{
			Addr:     env.GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: env.GetEnv("REDIS_PASSWORD", ""),
			DB:       env.GetEnvInt("REDIS_DB", 0),
			Prefix:   env.GetEnv("REDIS_PREFIX", "mountdoom:cache:"),
			TTL:      env.GetEnvDuration("REDIS_TTL", 7*24*time.Hour),
			Enabled:  env.GetEnvBool("REDIS_CACHE_ENABLED", false),
		},
		Postgres: PostgresConfig{
			Host:     env.GetEnv("POSTGRES_HOST", "localhost"),
			Port:     env.GetEnvInt("POSTGRES_PORT", 5432),
			User:     env.GetEnv("POSTGRES_USER", "postgres"),
			Password: env.GetEnv("POSTGRES_PASSWORD", ""),
			DBName:   env.GetEnv("POSTGRES_DB", "mountdoom"),
			SSLMode:  env.GetEnv("POSTGRES_SSLMODE", "disable"),
		},
		Gateway: GatewayConfig{
			Provider: env.GetEnv("GATEWAY_PROVIDER", "openai"),
			APIKey:   env.GetEnv("GATEWAY_API_KEY", ""),
			BaseURL:  env.GetEnv("GATEWAY_BASE_URL", ""),
			Model:    env.GetEnv("GATEWAY_MODEL", "gpt-4o-mini"),
		},
		Simulation: SimulationConfig{
			MaxTurns: env.GetEnvInt("SIMULATION_MAX_TURNS", 15),
		},
	}
}

// Validate checks the loaded configuration for obvious misconfiguration.
func (c *Config) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("server.addr", c.Server.Addr)
	v.RequireNonEmpty("store.backend", c.Store.Backend)
	if c.Store.Backend == "mongo" {
		v.RequireNonEmpty("mongo.uri", c.Mongo.URI)
		v.RequireNonEmpty("mongo.database", c.Mongo.Database)
	}
	v.RequireNonEmpty("gateway.provider", c.Gateway.Provider)
	v.RequirePositive("simulation.max_turns", c.Simulation.MaxTurns)
	if c.Redis.Enabled {
		v.RequireNonEmpty("redis.addr", c.Redis.Addr)
		v.ValidateRange("redis.db", c.Redis.DB, 0, 15)
	}
	return v.Err()
}

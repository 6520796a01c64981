// Command mountdoom runs the conversation simulation service: an HTTP API
// over the agent gateway, response cache, turn generator and simulation
// orchestrator.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sweetpotato0/mountdoom/cache"
	"github.com/sweetpotato0/mountdoom/config"
	"github.com/sweetpotato0/mountdoom/gateway"
	"github.com/sweetpotato0/mountdoom/gateway/anthropic"
	"github.com/sweetpotato0/mountdoom/gateway/openai"
	"github.com/sweetpotato0/mountdoom/pkg/env"
	"github.com/sweetpotato0/mountdoom/pkg/logging"
	"github.com/sweetpotato0/mountdoom/pkg/telemetry"
	"github.com/sweetpotato0/mountdoom/server"
	"github.com/sweetpotato0/mountdoom/simulation"
	"github.com/sweetpotato0/mountdoom/store"
	"github.com/sweetpotato0/mountdoom/tokenizer"
	"github.com/sweetpotato0/mountdoom/turngen"
)

func main() {
	if err := run(); err != nil {
		logging.Logger().Error("service exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	logger := logging.Logger()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "mountdoom",
		Environment: env.GetEnv("MOUNTDOOM_ENV", "development"),
		Disable:     env.GetEnvBool("OTEL_DISABLED", false),
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	ds, err := newDocumentStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer ds.Close(context.Background())

	responseCache := newResponseCache(cfg, ds)
	gw := newGateway(cfg, logger)

	turns := turngen.NewService(turngen.DefaultRegistry(), gw, responseCache)
	sim, err := simulation.NewSimulator(gw, turns, ds,
		simulation.WithMaxTurns(cfg.Simulation.MaxTurns))
	if err != nil {
		return fmt.Errorf("init simulator: %w", err)
	}

	srv := server.New(cfg.Server.Addr, server.NewHandler(sim, turns, ds))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func newDocumentStore(ctx context.Context, cfg *config.Config) (store.DocumentStore, error) {
	switch cfg.Store.Backend {
	case "postgres":
		ds, err := store.NewPostgresStore(&store.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return ds, nil
	case "mongo":
		ds, err := store.NewMongoStore(&store.MongoConfig{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("init mongo store: %w", err)
		}
		if err := ds.EnsureIndexes(ctx, simulation.DefaultCollection, cache.DefaultCollection); err != nil {
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return ds, nil
	default:
		return nil, fmt.Errorf("unknown document store backend %q", cfg.Store.Backend)
	}
}

func newResponseCache(cfg *config.Config, ds store.DocumentStore) cache.Cache {
	if cfg.Redis.Enabled {
		return cache.NewRedisCache(&cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		})
	}
	return cache.NewDocumentCache(ds, "")
}

func newGateway(cfg *config.Config, logger *slog.Logger) gateway.Gateway {
	var counter tokenizer.Counter
	if tk, err := tokenizer.New(cfg.Gateway.Model); err == nil {
		counter = tk
	} else {
		logger.Warn("tokenizer unavailable, provider usage only", "model", cfg.Gateway.Model, "error", err)
	}

	switch cfg.Gateway.Provider {
	case "anthropic":
		c := anthropic.DefaultConfig()
		c.APIKey = cfg.Gateway.APIKey
		c.BaseURL = cfg.Gateway.BaseURL
		c.Model = cfg.Gateway.Model
		if counter != nil {
			return anthropic.New(c, anthropic.WithTokenCounter(counter))
		}
		return anthropic.New(c)
	default:
		c := openai.DefaultConfig()
		c.APIKey = cfg.Gateway.APIKey
		c.BaseURL = cfg.Gateway.BaseURL
		c.Model = cfg.Gateway.Model
		if counter != nil {
			return openai.New(c, openai.WithTokenCounter(counter))
		}
		return openai.New(c)
	}
}

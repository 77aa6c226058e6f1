package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/parlayforge/parlayforge/internal/agents"
	"github.com/parlayforge/parlayforge/internal/aggregator"
	"github.com/parlayforge/parlayforge/internal/api"
	"github.com/parlayforge/parlayforge/internal/cache"
	"github.com/parlayforge/parlayforge/internal/config"
	"github.com/parlayforge/parlayforge/internal/events"
	"github.com/parlayforge/parlayforge/internal/learning"
	"github.com/parlayforge/parlayforge/internal/metrics"
	"github.com/parlayforge/parlayforge/internal/prediction"
	"github.com/parlayforge/parlayforge/internal/weighting"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().
		Str("name", cfg.App.Name).
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Msg("Starting aggregation service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Outcome learner, optionally restored from a Postgres checkpoint
	learner := learning.NewLearner(cfg.Weighting.HistoricalPrior, cfg.Learning.EWMAAlpha, log.Logger)

	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to Postgres, continuing without checkpointing")
		} else {
			defer pool.Close()
			store := learning.NewCheckpointStoreWithPool(pool, log.Logger)
			if err := store.EnsureSchema(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to ensure checkpoint schema")
			} else {
				records, err := store.Load(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Failed to load accuracy checkpoint")
				} else {
					learner.Restore(records)
				}
				go store.RunPeriodic(ctx, learner, cfg.Learning.CheckpointInterval)
			}
		}
	}

	// Aggregation cache backend
	var aggCache cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		aggCache = cache.NewRedisCache(client, log.Logger)
	default:
		aggCache = cache.NewMemoryCache(cfg.Cache.Capacity, log.Logger)
	}

	// User preference store, optionally seeded from disk
	prefs := weighting.NewPreferenceStore()
	if cfg.Preferences.File != "" {
		if _, err := prefs.ImportFile(cfg.Preferences.File); err != nil {
			log.Error().Err(err).Str("file", cfg.Preferences.File).Msg("Failed to import preference file")
		}
	}

	strategies := weighting.NewRegistry(weighting.RegistryConfig{
		DefaultStrategy:  cfg.Weighting.DefaultStrategy,
		HistoricalPrior:  cfg.Weighting.HistoricalPrior,
		HybridConfidence: cfg.Weighting.HybridConfidence,
	}, prefs)

	registry := agents.NewRegistry()
	registerAgents(registry, cfg)

	agg := aggregator.New(registry, strategies, aggCache, learner, aggregator.Config{
		AgentTimeout:    cfg.Agents.Timeout,
		CacheTTL:        cfg.Cache.DefaultTTL,
		HistoricalPrior: cfg.Weighting.HistoricalPrior,
	}, log.Logger)

	// Outcome event bus; absent, outcome reports apply in-process
	var bus *events.Bus
	if cfg.NATS.URL != "" {
		bus, err = events.Connect(events.Config{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, log.Logger)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to NATS, continuing without event bus")
			bus = nil
		} else {
			defer bus.Close()
			if _, err := bus.SubscribeOutcomes(agg.ReportOutcome); err != nil {
				log.Error().Err(err).Msg("Failed to subscribe to outcome events")
			}
		}
	}

	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.MetricsPort, log.Logger)
		if err := metricsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start metrics server")
		}
	}

	server := api.NewServer(api.Config{
		Host:       cfg.API.Host,
		Port:       cfg.API.Port,
		Aggregator: agg,
		Registry:   registry,
		Strategies: strategies,
		Learner:    learner,
		Prefs:      prefs,
		Bus:        bus,
		RateLimit: api.RateLimitConfig{
			Enabled:           cfg.RateLimit.Enabled,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		},
		Log: log.Logger,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	log.Info().Msg("Shutting down...")
	cancel() // Stops the checkpoint loop, flushing a final snapshot

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop API server gracefully")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop metrics server gracefully")
		}
	}

	log.Info().Msg("Shutdown complete")
}

// registerAgents wires one agent per enabled sport
func registerAgents(registry *agents.Registry, cfg *config.Config) {
	prior := cfg.Weighting.HistoricalPrior
	alpha := cfg.Learning.EWMAAlpha

	enabled := func(s prediction.Sport) bool {
		v, ok := cfg.Agents.Enabled[string(s)]
		return !ok || v // Sports default to enabled
	}

	if enabled(prediction.SportBaseball) {
		registry.Register(agents.NewBaseballAgent(prior, alpha, log.Logger))
	}
	if enabled(prediction.SportBasketball) {
		registry.Register(agents.NewBasketballAgent(prior, alpha, log.Logger))
	}
	if enabled(prediction.SportFootball) {
		registry.Register(agents.NewFootballAgent(prior, alpha, log.Logger))
	}
	if enabled(prediction.SportHockey) {
		registry.Register(agents.NewHockeyAgent(prior, alpha, log.Logger))
	}

	log.Info().Int("agents", len(registry.All())).Msg("Sub-agents registered")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/0xNerd/degen-server/internal/config"
	"github.com/0xNerd/degen-server/internal/credibility"
	"github.com/0xNerd/degen-server/internal/fetcher"
	"github.com/0xNerd/degen-server/internal/httpserver"
	"github.com/0xNerd/degen-server/internal/jobs"
	"github.com/0xNerd/degen-server/internal/logging"
	"github.com/0xNerd/degen-server/internal/oracle"
	"github.com/0xNerd/degen-server/internal/pipeline"
	"github.com/0xNerd/degen-server/internal/redis"
	"github.com/0xNerd/degen-server/internal/scorer"
	"github.com/0xNerd/degen-server/internal/twitter"
)

const leaseTTL = 4 * time.Minute

func setupConfig() *config.Config {
	// Best effort: a missing .env is fine in production.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized.
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Redis unreachable", "error", err)
		os.Exit(1)
	}
	return client
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func runGracefulShutdown(srv *httpserver.Server, orchestrator *pipeline.Orchestrator, sub *redis.Subscription, redisClient *redis.Client) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		orchestrator.Shutdown()
		sub.Close()

		if err := redisClient.Close(); err != nil {
			slog.Error("Redis close error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	redisClient := setupRedis(cfg)

	store := redis.NewStore(redisClient)
	pubsub := redis.NewPubSub(redisClient)

	sourceClient := twitter.NewClient(twitter.Config{
		BaseURL:    cfg.SourceBaseURL,
		Username:   cfg.SourceUsername,
		Password:   cfg.SourcePassword,
		TOTPSecret: cfg.SourceTOTPSecret,
		SessionDir: cfg.SessionDir,
	})
	source := twitter.NewSource(sourceClient)

	creds := fetcher.Credentials{
		AuthToken: cfg.SourceAuthToken,
		CSRFToken: cfg.SourceCSRFToken,
	}
	contentFetcher := fetcher.New(source, store, sourceClient, creds, clock)

	oracleClient := oracle.NewClient(oracle.Config{
		BaseURL: cfg.OracleBaseURL,
		APIKey:  cfg.OracleAPIKey,
		Model:   cfg.OracleModel,
	})

	calculator := credibility.NewCalculator(credibility.DefaultParams(), credibility.DefaultWeights())
	analyzer := scorer.New(oracleClient, store, calculator, contentFetcher, clock)

	queue := jobs.NewQueue(clock, jobs.LogAndCount)
	lease := redis.NewLease(redisClient, instanceID(), "sentiment-pipeline", leaseTTL)

	orchestrator := pipeline.New(contentFetcher, analyzer, store, pubsub, queue, lease, pipeline.Config{
		TargetSubjects: cfg.TargetSubjects,
		PrimaryTerms:   cfg.PrimaryTerms,
		ContextTerms:   cfg.ContextTerms,
		IncludeTrends:  cfg.IncludeTrends,
		FetchCount:     cfg.FetchCount,
		Interval:       cfg.PipelineInterval,
	}, clock)

	ctx := context.Background()
	if err := orchestrator.Initialize(ctx); err != nil {
		slog.Error("Failed to initialize pipeline", "error", err)
		os.Exit(1)
	}

	hub := httpserver.NewHub()
	sub := pubsub.SubscribeDigests(ctx)
	hub.Forward(sub.Ch)

	srv := httpserver.NewServer(cfg.Port, store, redisClient, hub)

	done := runGracefulShutdown(srv, orchestrator, sub, redisClient)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

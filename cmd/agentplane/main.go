package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcorecontrol"
	awsecr "github.com/aws/aws-sdk-go-v2/service/ecr"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agentplane/agentplane/internal/adapter/agentcore"
	"github.com/agentplane/agentplane/internal/adapter/docker"
	"github.com/agentplane/agentplane/internal/adapter/ecr"
	aphttp "github.com/agentplane/agentplane/internal/adapter/http"
	apnats "github.com/agentplane/agentplane/internal/adapter/nats"
	"github.com/agentplane/agentplane/internal/adapter/otel"
	"github.com/agentplane/agentplane/internal/adapter/postgres"
	"github.com/agentplane/agentplane/internal/adapter/ristretto"
	"github.com/agentplane/agentplane/internal/adapter/ssm"
	"github.com/agentplane/agentplane/internal/adapter/ws"
	"github.com/agentplane/agentplane/internal/config"
	"github.com/agentplane/agentplane/internal/logger"
	"github.com/agentplane/agentplane/internal/middleware"
	"github.com/agentplane/agentplane/internal/resilience"
	"github.com/agentplane/agentplane/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"region", cfg.AWS.Region,
		"environment", cfg.AWS.Environment,
		"log_level", cfg.Logging.Level,
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownTelemetry, err := otel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	var metrics *otel.Metrics
	if cfg.Telemetry.Enabled {
		metrics, err = otel.NewMetrics()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	// --- Infrastructure ---

	// PostgreSQL
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)
	slog.Info("postgres connected")

	// NATS
	queue, err := apnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Drain() }()
	slog.Info("nats connected", "url", cfg.NATS.URL)

	// AWS clients
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("aws config: %w", err)
	}

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)

	ecrClient := ecr.New(awsecr.NewFromConfig(awsCfg, func(o *awsecr.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	}), breaker, log)

	agentcoreClient := agentcore.New(bedrockagentcorecontrol.NewFromConfig(awsCfg, func(o *bedrockagentcorecontrol.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	}), breaker, log)

	configStore := ssm.NewStore(awsssm.NewFromConfig(awsCfg, func(o *awsssm.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	}), cfg.AWS.ConfigStorePath(), breaker, log)

	// Snapshot cache
	snapshotCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer snapshotCache.Close()

	builder := docker.NewBuilder(cfg.Builder.Command, cfg.Builder.Timeout, log)

	// --- Services ---
	hub := ws.NewHub()
	agentSvc := service.NewAgentService(store)
	registrySvc := service.NewRegistryService(store, ecrClient, builder, log)
	runtimeSvc := service.NewRuntimeService(store, agentcoreClient, ecrClient, cfg.AWS.AccountID,
		cfg.Pipeline.PollInterval, cfg.Pipeline.PollTimeout, log)
	deploySvc := service.NewDeploymentService(configStore, snapshotCache, cfg.Cache.TTL, log)
	pipelineSvc := service.NewPipelineService(store, queue, registrySvc, runtimeSvc, deploySvc,
		hub, metrics, cfg.Pipeline, log)

	stopWorker, err := pipelineSvc.StartWorker(ctx)
	if err != nil {
		return fmt.Errorf("pipeline worker: %w", err)
	}
	defer stopWorker()

	// --- HTTP ---
	handlers := &aphttp.Handlers{
		Agents:      agentSvc,
		Registry:    registrySvc,
		Runtime:     runtimeSvc,
		Pipelines:   pipelineSvc,
		Deployments: deploySvc,
		Hub:         hub,
		DB:          store,
	}

	r := chi.NewRouter()
	r.Use(aphttp.CORS(cfg.Server.CORSOrigin))
	r.Use(aphttp.SecurityHeaders)
	r.Use(aphttp.Logger)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Telemetry.Enabled {
		r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	}

	aphttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server", "ws_connections", hub.ConnectionCount())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mpesa-callback-relay/config"
	httpHandler "mpesa-callback-relay/internal/adapter/http/handler"
	"mpesa-callback-relay/internal/adapter/mpesa"
	"mpesa-callback-relay/internal/adapter/storage/memory"
	pgStorage "mpesa-callback-relay/internal/adapter/storage/postgres"
	redisStorage "mpesa-callback-relay/internal/adapter/storage/redis"
	"mpesa-callback-relay/internal/adapter/ws"
	"mpesa-callback-relay/internal/core/ports"
	"mpesa-callback-relay/internal/metrics"
	"mpesa-callback-relay/internal/service"
	"mpesa-callback-relay/pkg/logger"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("MCR_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Backend).
		Msg("Starting M-Pesa callback relay")

	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	node, err := snowflake.NewNode(cfg.Store.NodeID)
	if err != nil {
		log.Fatal().Err(err).Int64("node_id", cfg.Store.NodeID).Msg("Invalid snowflake node id")
	}

	var healthCheckers []ports.HealthChecker

	// Callback store
	var store ports.CallbackStore
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		repo := pgStorage.NewCallbackRepo(pool, node)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to create callbacks schema")
		}
		store = repo
		healthCheckers = append(healthCheckers, pgStorage.NewHealthCheck(pool))
		log.Info().Msg("PostgreSQL callback store ready")
	default:
		store = memory.NewCallbackStore(node)
		log.Warn().Msg("Using in-memory callback store; callbacks are lost on restart")
	}

	// Rate limiting
	var rateLimitStore ports.RateLimitStore = memory.NewRateLimitStore()
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
		log.Info().Msg("Redis connected")
	}

	// Push pipeline
	policy, err := service.ParseUnresolvedPolicy(cfg.Dispatch.UnresolvedPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid dispatch policy")
	}
	registry := service.NewSessionRegistry(m, logger.Component(log, "registry"))
	pool := service.NewDispatchPool(registry, cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, m, logger.Component(log, "dispatch"))
	pool.Start()
	router := service.NewNotificationRouter(pool, policy, m, logger.Component(log, "router"))

	// Services
	ingestSvc := service.NewIngestService(store, router, cfg.Store.WriteTimeout, m, logger.Component(log, "ingest"))
	reportingSvc := service.NewReportingService(store, log)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewAuthService(tokenSvc, log)

	var gateway ports.MpesaGateway
	if cfg.Mpesa.Enabled() {
		gateway = mpesa.NewClient(ctx, cfg.Mpesa, nil, logger.Component(log, "mpesa"))
		log.Info().Str("base_url", cfg.Mpesa.BaseURL).Msg("M-Pesa STK push enabled")
	} else {
		log.Warn().Msg("M-Pesa credentials not configured, /api/stk-push will return 503")
	}
	stkSvc := service.NewSTKPushService(gateway, cfg.Mpesa, m, logger.Component(log, "stk_push"))

	wsGateway := ws.NewGateway(registry, tokenSvc, cfg.Gateway, log)

	engine := httpHandler.SetupRouter(httpHandler.RouterDeps{
		IngestSvc:      ingestSvc,
		ReportingSvc:   reportingSvc,
		AuthSvc:        authSvc,
		STKPushSvc:     stkSvc,
		TokenSvc:       tokenSvc,
		WebSocket:      wsGateway.Handle,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		Metrics:        m,
		Gatherer:       reg,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop accepting callbacks, flush queued notifications, then drop sessions.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Dispatch pool did not drain in time")
	}
	if err := wsGateway.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("WebSocket sessions did not close in time")
	}

	log.Info().Msg("Server exited")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"seal-gateway/internal/curriculum"
	"seal-gateway/internal/gemini"
	"seal-gateway/internal/intervention"
	"seal-gateway/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to server config YAML/JSON")
	listen := flag.String("listen", "", "Optional listen address override")
	hashToken := flag.String("hash-token", "", "Print the bcrypt hash of a token and exit")
	flag.Parse()

	if *hashToken != "" {
		hash, err := server.HashAdminToken(*hashToken)
		if err != nil {
			slog.Error("hash token failed", "error", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := server.LoadServerConfig(*configPath)
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.Model.APIKey == "" {
		cfg.Model.APIKey = key
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Audit storage: PostgreSQL when a DSN is configured, in-memory otherwise.
	var store server.Store = server.NewMemoryStore()
	if cfg.Database.DSN != "" {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
		if err != nil {
			slog.Error("parse database DSN failed", "error", err)
			os.Exit(1)
		}
		if cfg.Database.MaxConns > 0 {
			poolCfg.MaxConns = cfg.Database.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(rootCtx, poolCfg)
		if err != nil {
			slog.Error("connect database failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := server.RunMigrations(rootCtx, pool, cfg.Database.MigrationsPath); err != nil {
			slog.Error("run migrations failed", "error", err)
			os.Exit(1)
		}
		store = server.NewPgStore(pool)
	}

	obs, err := server.SetupObservability(rootCtx, cfg.Observer)
	if err != nil {
		slog.Error("setup observability failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = obs.Shutdown(ctx)
	}()

	logger := slog.Default()
	client := gemini.NewClient(gemini.Config{
		BaseURL: cfg.Model.BaseURL,
		APIKey:  cfg.Model.APIKey,
		Model:   cfg.Model.Model,
		Timeout: time.Duration(cfg.Model.TimeoutSec) * time.Second,
	})

	health := intervention.NewHealthMonitor(
		intervention.SubsystemModel,
		intervention.SubsystemCurriculum,
	)
	gatewayCfg := intervention.GatewayConfig{
		Params: intervention.GenerationParams{
			Temperature:     cfg.Model.Temperature,
			MaxOutputTokens: cfg.Model.MaxOutputTokens,
		},
		MaxAttempts:    cfg.Retry.MaxAttempts,
		BaseDelay:      time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:       time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		AttemptTimeout: time.Duration(cfg.Retry.AttemptTimeoutSec) * time.Second,
	}
	gateway := intervention.NewGateway(client, gatewayCfg, health, intervention.SubsystemModel, logger)
	streaming := intervention.NewStreamingGateway(
		&intervention.GeminiStreamAdapter{Client: client},
		gatewayCfg, health, intervention.SubsystemModel, logger,
	)
	level, err := intervention.ParseSafetyLevel(cfg.Safety.Level)
	if err != nil {
		slog.Error("invalid safety level", "error", err)
		os.Exit(1)
	}
	guard := intervention.NewGuardrail(level, logger)

	// One limiter for every path that reaches the model.
	limiter := intervention.NewCallLimiter(cfg.Limits.MaxConcurrentCalls)
	svc := intervention.NewService(intervention.ServiceDeps{
		Gateway:   gateway,
		Streaming: streaming,
		Prompts:   intervention.NewPromptBuilder(intervention.StaticTemplates{}),
		Guardrail: guard,
		Validator: intervention.NewPlanValidator(),
		Audit:     server.NewAuditRecorder(store),
		Observer:  obs,
		Logger:    logger,
		Limiter:   limiter,
	})
	curriculumGateway := intervention.NewGateway(client, gatewayCfg, health, intervention.SubsystemCurriculum, logger)
	curriculumSvc := curriculum.NewService(curriculumGateway, guard, limiter, logger)

	auth := server.NewAuth(cfg)
	api := server.NewAPI(svc, curriculumSvc, health, store, auth, obs, cfg.Model.Provider)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Initial liveness probe so /health reflects the model before the first
	// real request. Per-call results keep the state current afterwards.
	go func() {
		ctx, cancel := context.WithTimeout(rootCtx, 30*time.Second)
		defer cancel()
		gateway.Probe(ctx)
		curriculumSvc.Probe(ctx)
	}()

	go func() {
		<-rootCtx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	slog.Info("seal API listening",
		"listen", cfg.ListenAddr,
		"provider", cfg.Model.Provider,
		"model", cfg.Model.Model,
		"safety_level", cfg.Safety.Level,
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// Copyright (C) 2026 AntiEcoSys
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator provides the chat orchestration service.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, token auth, PostgreSQL storage, the Ollama
// backend client, and observability infrastructure.
//
// # Usage
//
//	cfg := orchestrator.ConfigFromEnv()
//	svc, err := orchestrator.New(context.Background(), cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/DrPechenyshka/AE/services/llm"
	"github.com/DrPechenyshka/AE/services/orchestrator/auth"
	"github.com/DrPechenyshka/AE/services/orchestrator/conversation"
	"github.com/DrPechenyshka/AE/services/orchestrator/observability"
	"github.com/DrPechenyshka/AE/services/orchestrator/routes"
	"github.com/DrPechenyshka/AE/services/orchestrator/services"
	"github.com/DrPechenyshka/AE/services/orchestrator/storage"
)

// Service defines the contract for the orchestrator service. Run()
// blocks and should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers
	// must not modify routes after construction.
	Router() *gin.Engine
}

// Config holds orchestrator configuration. All fields have defaults
// applied by New(); ConfigFromEnv populates them from the environment
// and logs every default it falls back to.
type Config struct {
	// Port is the HTTP server port. Default: 8090.
	Port int

	// JWTSecret signs bearer tokens. Defaulting it is only acceptable
	// for local development; ConfigFromEnv warns loudly when unset.
	JWTSecret string

	// TokenTTL is the issued-token lifetime. Default: 7 days.
	TokenTTL time.Duration

	// DatabaseDSN is the PostgreSQL connection string.
	DatabaseDSN string

	// OllamaBaseURL is the generation backend address.
	// Default: "http://localhost:11434".
	OllamaBaseURL string

	// OllamaModel is the default model tag. Default: "llama3".
	OllamaModel string

	// UploadDir is where attachment binaries are stored.
	// Default: "./data/uploads".
	UploadDir string

	// SystemPrompt overrides the default system directive when set.
	SystemPrompt string

	// ContextWindow is how many stored turns are replayed per exchange.
	// Default: conversation.DefaultContextWindow.
	ContextWindow int

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "localhost:4317".
	OTelEndpoint string

	// EnableMetrics registers the Prometheus metrics. Default: true.
	EnableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string
}

// ConfigFromEnv builds a Config from the environment. Every value the
// process falls back to a default for is logged, so a misconfigured
// deployment is visible in the first lines of output.
func ConfigFromEnv() Config {
	cfg := Config{
		JWTSecret:     os.Getenv("JWT_SECRET"),
		DatabaseDSN:   os.Getenv("DATABASE_DSN"),
		OllamaBaseURL: os.Getenv("OLLAMA_BASE_URL"),
		OllamaModel:   os.Getenv("OLLAMA_MODEL"),
		UploadDir:     os.Getenv("UPLOAD_DIR"),
		SystemPrompt:  os.Getenv("SYSTEM_PROMPT"),
		OTelEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		GinMode:       os.Getenv("GIN_MODE"),
		EnableMetrics: true,
	}

	if raw := os.Getenv("ORCHESTRATOR_PORT"); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil {
			cfg.Port = port
		} else {
			slog.Warn("Invalid ORCHESTRATOR_PORT, using default", "value", raw)
		}
	}
	if raw := os.Getenv("CONTEXT_WINDOW"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.ContextWindow = n
		} else {
			slog.Warn("Invalid CONTEXT_WINDOW, using default", "value", raw)
		}
	}

	if cfg.JWTSecret == "" {
		slog.Warn("JWT_SECRET not set, using an insecure development secret")
	}
	if cfg.OllamaBaseURL == "" {
		slog.Info("OLLAMA_BASE_URL not set, defaulting to http://localhost:11434")
	}
	if cfg.OllamaModel == "" {
		slog.Info("OLLAMA_MODEL not set, defaulting to llama3")
	}

	return cfg
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8090
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "insecure-dev-secret"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = auth.DefaultTokenTTL
	}
	if cfg.OllamaBaseURL == "" {
		cfg.OllamaBaseURL = "http://localhost:11434"
	}
	if cfg.OllamaModel == "" {
		cfg.OllamaModel = "llama3"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./data/uploads"
	}
	if cfg.ContextWindow == 0 {
		cfg.ContextWindow = conversation.DefaultContextWindow
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "localhost:4317"
	}
	return cfg
}

// service implements Service for production use. All fields are
// read-only after New() returns.
type service struct {
	config        Config
	router        *gin.Engine
	store         *storage.Store
	llmClient     llm.LLMClient
	tracerCleanup func(context.Context)
}

var _ Service = (*service)(nil)

// New creates a new orchestrator Service with the given configuration.
//
// Initialization order: defaults, tracing, metrics, storage (with
// migrations), backend client, chat pipeline, routes. A failure at any
// step releases what was already acquired and returns an error.
func New(ctx context.Context, cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	var metrics *observability.Metrics
	if s.config.EnableMetrics {
		metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics")
	}

	if s.config.DatabaseDSN == "" {
		s.cleanup()
		return nil, fmt.Errorf("DATABASE_DSN is required")
	}
	s.store, err = storage.NewPostgresStore(ctx, s.config.DatabaseDSN)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ollama, err := llm.NewOllamaClient(s.config.OllamaBaseURL, s.config.OllamaModel)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	s.llmClient = ollama

	tokens := auth.NewTokenService([]byte(s.config.JWTSecret), s.config.TokenTTL)
	assembler := conversation.NewAssembler(s.config.SystemPrompt, s.config.ContextWindow)
	chat := services.NewChatService(s.store.Messages(), assembler, ollama, metrics)

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("chat-orchestrator"))

	routes.SetupRoutes(s.router, routes.Deps{
		Store:     s.store,
		LLMClient: s.llmClient,
		Tokens:    tokens,
		Chat:      chat,
		UploadDir: s.config.UploadDir,
		Metrics:   metrics,
	})

	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting chat orchestrator", "port", s.config.Port,
		"model", s.config.OllamaModel, "context_window", s.config.ContextWindow)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// initTracer initializes OpenTelemetry distributed tracing. The gRPC
// connection is lazy, so an unreachable collector does not block
// startup; spans are dropped until it appears.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("chat-orchestrator")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Storage close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

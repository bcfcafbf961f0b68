// Weather Agent chat server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/cityagent/internal/agent"
	"github.com/ashureev/cityagent/internal/api"
	"github.com/ashureev/cityagent/internal/chat"
	"github.com/ashureev/cityagent/internal/config"
	"github.com/ashureev/cityagent/internal/identity"
	"github.com/ashureev/cityagent/internal/middleware"
	"github.com/ashureev/cityagent/internal/telemetry"
	"github.com/ashureev/cityagent/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server",
		"port", cfg.Port,
		"mode", cfg.Agent.Mode,
		"region", cfg.Agent.Region,
		"agent", cfg.AgentTarget())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to flush telemetry", "error", err)
		}
	}()

	// Initialize the agent client. A failed bootstrap is not fatal: the page
	// shows the failure and every query reports it.
	client := agent.NewClient(newBootstrapper(cfg), agent.Options{
		Region:      cfg.Agent.Region,
		AgentARN:    cfg.AgentTarget(),
		OnUnmatched: chat.LogUnmatched(logger),
	})

	initCtx, cancelInit := context.WithTimeout(ctx, 30*time.Second)
	status := client.Initialize(initCtx)
	cancelInit()
	if status.Connected() {
		id, _ := client.Identity()
		slog.Info("Agent client connected", "account", id.Account, "arn", id.ARN)
	} else {
		slog.Warn("Agent client not connected", "state", status.State, "error", status.Error)
	}

	// Initialize services.
	sessions := chat.NewSessionStore()
	svc := chat.NewService(client, sessions, tel, logger)

	// Initialize handlers.
	chatHandler, err := chat.NewHandler(svc, client, chat.PageInfo{
		Region:      cfg.Agent.Region,
		Profile:     cfg.Agent.Profile,
		Mode:        cfg.Agent.Mode,
		AgentTarget: cfg.AgentTarget(),
		WeatherKey:  cfg.OpenWeatherAPIKey != "",
		EventsKey:   cfg.TicketmasterAPIKey != "",
	}, web.Templates())
	if err != nil {
		slog.Error("Failed to initialize chat handler", "error", err)
		os.Exit(1)
	}
	wsHandler := chat.NewWebSocketHandler(chatHandler, middleware.OriginPatterns(cfg.CORSAllowedOrigins))
	statusHandler := api.NewStatusHandler(client)
	healthHandler := api.NewHealthHandler(client, sessions.Len)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	statusHandler.RegisterRoutes(r)
	chatHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Embedded assets.
	r.Handle("/static/*", web.StaticHandler())

	// Create server.
	// Agent queries can take a while; WriteTimeout covers the slowest reply.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(r, "cityagent"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Start session pruner.
	sessions.StartPruner(ctx, cfg.SessionTTL, 0)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func newBootstrapper(cfg *config.Config) agent.Bootstrapper {
	if cfg.Agent.Mode == config.ModeLocal {
		return agent.NewHTTPBootstrapper(cfg.Agent.LocalEndpoint)
	}
	return &agent.AgentCoreBootstrapper{
		Profile:   cfg.Agent.Profile,
		Region:    cfg.Agent.Region,
		AgentARN:  cfg.Agent.RuntimeARN,
		Qualifier: cfg.Agent.Qualifier,
	}
}

// Companion - persona chat companion server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/companionlabs/companion/internal/agent"
	"github.com/companionlabs/companion/internal/api"
	"github.com/companionlabs/companion/internal/chat"
	"github.com/companionlabs/companion/internal/config"
	"github.com/companionlabs/companion/internal/identity"
	"github.com/companionlabs/companion/internal/persona"
	"github.com/companionlabs/companion/internal/store"
	"github.com/companionlabs/companion/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Persona assets and the persona set must agree before serving anything.
	for _, id := range persona.All {
		if !web.AvatarExists(string(id)) {
			slog.Error("Missing persona avatar asset", "persona", id)
			os.Exit(1)
		}
	}

	// Initialize services.
	responder := agent.NewResponder(agent.Config{
		TypingSpeed: cfg.Agent.TypingSpeed,
		ThinkPause:  cfg.Agent.ThinkPause,
		ChunkSize:   cfg.Agent.ChunkSize,
	})
	rooms := chat.NewRoomManager()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, cfg.FrontendURL)
	accountHandler := api.NewAccountHandler(baseHandler, cfg.HomeCountry)
	countryHandler := api.NewCountryHandler(cfg.HomeCountry)
	wsHandler := chat.NewHandler(repo, rooms, responder, cfg.FrontendURL, cfg.IsDevelopment(), cfg.HistoryLimit)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	// All routes use identity middleware (no auth needed).
	accountHandler.RegisterRoutes(r)
	countryHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded static assets.
	r.Handle("/static/*", web.StaticHandler())

	// Create server. No WriteTimeout: websocket sessions outlive any
	// reasonable response deadline.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	rooms.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

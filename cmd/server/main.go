// Package main is the entry point for the campus transit portal backend.
// It provides a REST API for ride feedback and lost/found reports with a
// status lifecycle, a bus/route/user directory, and attachment storage.
//
// Architecture:
//   - Stateless request handlers over a single PostgreSQL store
//   - All report mutation goes through an atomic read-modify-write,
//     so racing status updates validate against the current value
//   - Bearer-token auth resolves every request to {userId, role}
//   - Attachment bytes live in a blob store keyed by opaque id
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/campustransit/transit-server/internal/blob"
	"github.com/campustransit/transit-server/internal/config"
	"github.com/campustransit/transit-server/internal/database"
	"github.com/campustransit/transit-server/internal/handlers"
	"github.com/campustransit/transit-server/internal/metrics"
	"github.com/campustransit/transit-server/internal/middleware"
	"github.com/campustransit/transit-server/internal/models"
	"github.com/campustransit/transit-server/internal/observability"
	"github.com/campustransit/transit-server/internal/services"
	"github.com/campustransit/transit-server/internal/store"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load config: %v", err)
	}

	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Environment, "transit-server@"+cfg.Environment)
	if err != nil {
		sugar.Warnf("Sentry init failed: %v", err)
	}
	defer flushSentry()

	sugar.Infow("Starting Transit Portal Server",
		"port", cfg.Port,
		"env", cfg.Environment,
	)

	// Apply schema migrations, then open the connection pool
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		sugar.Fatalf("Failed to migrate database: %v", err)
	}
	db, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Attachment blob storage: redis in deployment, in-memory fallback
	// for local development without one.
	var blobs blob.Store
	if cfg.RedisURL != "" {
		blobs, err = blob.NewRedis(cfg.RedisURL)
		if err != nil {
			sugar.Fatalf("Failed to connect to redis: %v", err)
		}
	} else {
		sugar.Warn("REDIS_URL not set, storing attachments in memory")
		blobs = blob.NewMemory()
	}

	// Stores
	reportStore := store.NewPostgresReports(db)
	userStore := store.NewPostgresUsers(db)
	directoryStore := store.NewPostgresDirectory(db)

	// Services
	authSvc := services.NewAuthService(userStore, cfg.JWTSecret, sugar)
	reportSvc := services.NewReportService(reportStore, directoryStore, sugar)
	directorySvc := services.NewDirectoryService(directoryStore, userStore, sugar)
	attachmentSvc := services.NewAttachmentService(blobs, sugar)

	// Handlers
	authHandler := handlers.NewAuthHandler(authSvc, sugar)
	reportHandler := handlers.NewReportHandler(reportSvc, sugar)
	directoryHandler := handlers.NewDirectoryHandler(directorySvc, sugar)
	userHandler := handlers.NewUserHandler(directorySvc, sugar)
	attachmentHandler := handlers.NewAttachmentHandler(attachmentSvc, sugar)
	healthHandler := handlers.NewHealthHandler(db, sugar)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.SecureHeaders())
	r.Use(metrics.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limiting
	r.Use(middleware.RateLimit(cfg.RateLimitRPM))

	requireAuth := middleware.RequireAuth(authSvc)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health and metrics
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)
		r.Handle("/metrics", metrics.Handler())

		// Auth endpoints (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// Report lifecycle
		r.Route("/reports", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", reportHandler.List)
			r.Post("/", reportHandler.Create)
			r.Get("/{id}", reportHandler.Get)
			r.Patch("/{id}/status", reportHandler.UpdateStatus)
			r.Put("/{id}", reportHandler.UpdateFields)
			r.Post("/{id}/conversation", reportHandler.Conversation)
			r.Delete("/{id}", reportHandler.Delete)
		})

		// Attachments (download is public; upload needs a session)
		r.Route("/attachments", func(r chi.Router) {
			r.With(requireAuth).Post("/", attachmentHandler.Upload)
			r.Get("/{id}", attachmentHandler.Download)
		})

		// Directory reference data
		r.Route("/routes", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", directoryHandler.Routes)
			r.With(adminOnly).Post("/", directoryHandler.UpsertRoute)
			r.With(adminOnly).Put("/{name}", directoryHandler.UpsertRoute)
		})
		r.Route("/buses", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", directoryHandler.Buses)
			r.With(adminOnly).Post("/", directoryHandler.UpsertBus)
			r.With(adminOnly).Put("/{busNo}", directoryHandler.UpsertBus)
		})
		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth, adminOnly)
			r.Get("/", userHandler.List)
			r.Patch("/{id}", userHandler.Update)
			r.Delete("/{id}", userHandler.Delete)
			r.Post("/import", userHandler.Import)
			r.Get("/export", userHandler.Export)
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		sugar.Fatalf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}

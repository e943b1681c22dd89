package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"audioguide/internal/config"
	"audioguide/internal/container"
	"audioguide/internal/handler"
	"audioguide/internal/middleware"
	"audioguide/internal/service"
	"audioguide/pkg/database"
	"audioguide/pkg/errors"
	"audioguide/pkg/logger"
	"audioguide/pkg/redis"
	"audioguide/pkg/telemetry"
)

// Resources holds all resources that need cleanup
type Resources struct {
	db             *database.PostgresDB
	redisClient    *redis.Client
	trafficService service.TrafficService
	server         *http.Server
	shutdownTracer func(context.Context) error
	log            *logger.Logger
	mu             sync.Mutex
	closed         bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error

	r.log.Info("Starting graceful shutdown...")

	// Stop accepting requests before tearing down what they use
	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	// Saves the final snapshot, so it needs both Redis and the database
	if r.trafficService != nil {
		r.log.Info("Stopping traffic service...")
		if err := r.trafficService.Stop(ctx); err != nil {
			r.log.WithError(err).Error("Failed to stop traffic service")
			errs = append(errs, fmt.Errorf("traffic service shutdown: %w", err))
		}
	}

	if r.redisClient != nil {
		r.log.Info("Closing Redis connection...")
		if err := r.redisClient.Close(); err != nil {
			r.log.WithError(err).Error("Failed to close Redis connection")
			errs = append(errs, fmt.Errorf("Redis close: %w", err))
		} else {
			r.log.Info("Redis connection closed successfully")
		}
	}

	if r.db != nil {
		r.log.Info("Closing database connection pool...")
		r.db.Close()
		r.log.Info("Database connection pool closed successfully")
	}

	if r.shutdownTracer != nil {
		if err := r.shutdownTracer(ctx); err != nil {
			r.log.WithError(err).Warn("Failed to flush traces")
		}
	}

	if len(errs) > 0 {
		r.log.WithField("error_count", len(errs)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errs), errs)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logFormat := logger.FormatJSON
	if cfg.IsDevelopment() {
		logFormat = logger.FormatConsole
	}
	log, err := logger.New(cfg.LogLevel, logFormat)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
	}).Info("Starting audioguide server")

	ctx := context.Background()

	shutdownTracer := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: "audioguide",
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	}, log.Logger)

	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	trafficService := c.Services.Traffic
	if trafficService != nil {
		if err := trafficService.Start(ctx); err != nil {
			log.WithError(err).Fatal("Failed to start traffic service")
		}
	}

	router := setupRouter(c)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        otelhttp.NewHandler(router, "audioguide"),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	resources := &Resources{
		db:             c.DB,
		redisClient:    c.RedisClient,
		trafficService: trafficService,
		server:         server,
		shutdownTracer: shutdownTracer,
		log:            log,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Runs on every exit path; Cleanup is idempotent
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		cancel()
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// setupRouter configures and returns the HTTP router
func setupRouter(c *container.Container) *chi.Mux {
	cfg := c.GetConfig()
	log := c.GetLogger()
	services := c.Services

	r := chi.NewRouter()

	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins), log))
	r.Use(chiMiddleware.Compress(5))
	r.Use(chiMiddleware.Timeout(cfg.RequestTimeout))

	checks := map[string]handler.HealthChecker{"database": c.DB}
	if c.HasRedis() {
		checks["redis"] = c.RedisClient
	}

	healthHandler := handler.NewHealthHandler(checks, log)
	authHandler := handler.NewAuthHandler(services.Auth, log.Named("http"), !cfg.IsDevelopment())
	visitorHandler := handler.NewVisitorHandler(services.Registry, services.Traffic, c.RegisterLimiter, log.Named("http"))
	artifactHandler := handler.NewArtifactHandler(services.Artifact, services.Listen, log.Named("http"))
	languageHandler := handler.NewLanguageHandler(log.Named("http"))
	adminHandler := handler.NewAdminHandler(services, log.Named("http"))

	healthHandler.RegisterRoutes(r)
	authHandler.RegisterRoutes(r)
	adminHandler.RegisterRoutes(r)

	// Public guide API
	r.Route("/api", func(r chi.Router) {
		authHandler.RegisterAPIRoutes(r)
		visitorHandler.RegisterRoutes(r)
		artifactHandler.RegisterRoutes(r)
		languageHandler.RegisterRoutes(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteJSON(w, errors.NewNotFoundError("Endpoint not found"), middleware.GetRequestID(r.Context()))
	})

	log.Info("Router configured successfully")
	return r
}

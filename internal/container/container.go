package container

import (
	"context"
	"fmt"

	"audioguide/internal/config"
	"audioguide/internal/repository"
	"audioguide/internal/service"
	"audioguide/internal/service/auth"
	"audioguide/pkg/database"
	"audioguide/pkg/logger"
	"audioguide/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           *database.PostgresDB
	RedisClient  *redis.Client
	Repositories *repository.Repositories
	Services     *service.Services

	// RegisterLimiter throttles visitor registration per IP; nil without Redis
	RegisterLimiter *service.RateLimiter
}

// New connects to PostgreSQL and, when configured, Redis, then wires services.
// A Redis failure is logged and the app runs without caching or traffic stats.
func New(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*Container, error) {
	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, cfg.DatabaseReadURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connection established")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, logger.Named("redis").Logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize Redis client, proceeding without caching")
		} else {
			redisClient = client
			logger.Info("Redis client initialized successfully")
		}
	} else {
		logger.Info("Redis URL not configured, proceeding without caching")
	}

	repos := &repository.Repositories{
		Visitor:   repository.NewVisitorRepository(db),
		Artifact:  repository.NewArtifactRepository(db),
		StaffUser: repository.NewStaffUserRepository(db),
		Traffic:   repository.NewTrafficRepository(db),
	}

	c := Build(cfg, logger, repos, redisClient)
	c.DB = db
	return c, nil
}

// Build wires services on top of existing repositories. redisClient may be nil.
func Build(cfg *config.Config, logger *logger.Logger, repos *repository.Repositories, redisClient *redis.Client) *Container {
	tokens := auth.NewTokenValidator(cfg.SupabaseJWTSecret, redisClient, logger.Named("auth"))

	var supabase *service.SupabaseClient
	if cfg.UseSupabaseAuth() || cfg.UseSupabaseStorage() {
		supabase = service.NewSupabaseClient(cfg, logger.Named("supabase"))
	}

	var authService service.AuthService
	if cfg.UseSupabaseAuth() {
		authService = auth.NewSupabaseProvider(supabase, tokens, logger.Named("auth"))
		logger.Info("Staff authentication: Supabase")
	} else {
		authService = auth.NewLocalProvider(repos.StaffUser, tokens, logger.Named("auth"))
		logger.Info("Staff authentication: local staff_users table")
	}

	var storage service.ObjectStorage
	if cfg.UseSupabaseStorage() {
		storage = supabase
	} else {
		logger.Warn("Supabase storage not configured, audio uploads are disabled")
	}

	var cache *service.CacheService
	var traffic service.TrafficService
	var registerLimiter *service.RateLimiter
	if redisClient != nil {
		cache = service.NewCacheService(redisClient, logger.Logger)
		traffic = service.NewTrafficService(redisClient, repos.Traffic, logger.Named("traffic"))
		registerLimiter = service.NewRegisterRateLimiter(redisClient, cfg.RegisterRateLimit, cfg.RegisterRateWindow)
	}

	services := &service.Services{
		Auth:     authService,
		Registry: service.NewRegistryService(repos.Visitor, cfg.GrantDuration, logger.Named("registry")),
		Artifact: service.NewArtifactService(repos.Artifact, cache, logger.Named("artifacts")),
		Listen:   service.NewListenService(repos.Artifact, logger.Named("listens")),
		Staff:    service.NewStaffService(authService, logger.Named("staff")),
		Upload:   service.NewUploadService(storage, logger.Named("upload")),
		Traffic:  traffic,
	}

	return &Container{
		Config:          cfg,
		Logger:          logger,
		RedisClient:     redisClient,
		Repositories:    repos,
		Services:        services,
		RegisterLimiter: registerLimiter,
	}
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// HasRedis returns true if Redis client is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}

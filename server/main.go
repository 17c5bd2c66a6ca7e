package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Akash-Srinivasan/ShotDoctor/server/cache"
	"github.com/Akash-Srinivasan/ShotDoctor/server/coach"
	"github.com/Akash-Srinivasan/ShotDoctor/server/config"
	"github.com/Akash-Srinivasan/ShotDoctor/server/handlers"
	"github.com/Akash-Srinivasan/ShotDoctor/server/middleware"
	"github.com/Akash-Srinivasan/ShotDoctor/server/pose"
	"github.com/Akash-Srinivasan/ShotDoctor/server/profile"
	"github.com/Akash-Srinivasan/ShotDoctor/server/segmenter"
	"github.com/Akash-Srinivasan/ShotDoctor/server/session"
	"github.com/Akash-Srinivasan/ShotDoctor/server/store"
)

type Server struct {
	router      *gin.Engine
	logger      *zap.Logger
	cache       cache.Cache
	db          *store.Store
	rateLimiter *middleware.RateLimiter
	config      *config.Config
}

func main() {
	cfg := config.LoadConfig()

	var logger *zap.Logger
	var err error

	if cfg.Logging.Format == "json" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	if err := cfg.ValidateConfig(logger); err != nil {
		logger.Fatal("Configuration validation failed", zap.Error(err))
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("addr", addr),
			zap.String("environment", cfg.Server.Environment))

		var err error
		if cfg.Security.EnableHTTPS {
			err = srv.ListenAndServeTLS(cfg.Security.CertFile, cfg.Security.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if server.rateLimiter != nil {
		server.rateLimiter.Shutdown()
	}

	if server.cache != nil {
		if err := server.cache.Close(); err != nil {
			logger.Error("Failed to close cache", zap.Error(err))
		}
	}

	if server.db != nil {
		if err := server.db.Close(); err != nil {
			logger.Error("Failed to close database", zap.Error(err))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	resultCache := cache.NewMemoryCache(200, 30*time.Minute, logger)

	poseClient, err := pose.NewClient(cfg.Pose.BaseURL, &pose.ClientConfig{
		Timeout:             cfg.Pose.Timeout,
		MaxRetries:          cfg.Pose.MaxRetries,
		RetryDelay:          cfg.Pose.RetryDelay,
		HealthCheckInterval: cfg.Pose.HealthCheckInterval,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pose client: %w", err)
	}

	coachClient := coach.NewClient(cfg.Coach.BaseURL, &coach.ClientConfig{
		Timeout:    cfg.Coach.Timeout,
		MaxRetries: cfg.Coach.MaxRetries,
		RetryDelay: cfg.Coach.RetryDelay,
	}, logger)

	registry := profile.NewRegistry()

	var db *store.Store
	if cfg.Database.Enabled {
		db, err = store.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.LoadProfiles(context.Background(), registry); err != nil {
			logger.Warn("Failed to load form profiles", zap.Error(err))
		}
	}

	analysisCfg := session.Config{
		Segmenter: segmenter.Config{
			ReleaseAngle:    cfg.Analysis.ReleaseAngle,
			LookBack:        cfg.Analysis.LookBackFrames,
			CooldownFrames:  cfg.Analysis.CooldownFrames,
			StabilityFrames: cfg.Analysis.StabilityFrames,
			BufferSize:      cfg.Analysis.LookBackFrames * 3,
		},
		MinVisibility:   cfg.Analysis.MinVisibility,
		ThumbnailHeight: cfg.Analysis.ThumbnailHeight,
		MaxWorkers:      cfg.Analysis.MaxWorkers,
		MaxQueueSize:    cfg.Analysis.MaxQueueSize,
		ShotTimeout:     cfg.Coach.Timeout,
	}

	analyzer := session.NewAnalyzer(coachClient, registry, db, analysisCfg, logger)

	rateLimiter := middleware.NewRateLimiter(
		cfg.Security.RateLimitRPS,
		cfg.Security.RateLimitBurst,
		logger,
	)

	router := gin.New()

	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Security.AllowedOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.Security.MaxRequestSize))
	router.Use(middleware.ContentTypeCheck())
	router.Use(middleware.TimeoutHandler(cfg.Security.RequestTimeout))

	analyzeHandler := handlers.NewAnalyzeHandler(poseClient, analyzer, resultCache,
		poseClient, cfg.Security.MaxRequestSize, logger)
	playerHandler := handlers.NewPlayerHandler(db, registry, logger)
	wsHandler := handlers.NewWebSocketHandler(analysisCfg, logger)

	analyzeLimit := middleware.Limit{
		RPS:   cfg.Security.AnalyzeRPS,
		Burst: cfg.Security.AnalyzeBurst,
	}
	setupRoutes(router, analyzeHandler, playerHandler, wsHandler, rateLimiter, analyzeLimit)

	return &Server{
		router:      router,
		logger:      logger,
		cache:       resultCache,
		db:          db,
		rateLimiter: rateLimiter,
		config:      cfg,
	}, nil
}

func setupRoutes(router *gin.Engine, analyzeHandler *handlers.AnalyzeHandler, playerHandler *handlers.PlayerHandler, wsHandler *handlers.WebSocketHandler, rateLimiter *middleware.RateLimiter, analyzeLimit middleware.Limit) {
	router.GET("/health", analyzeHandler.HealthCheck)

	// Live detection over websocket
	router.GET("/ws", rateLimiter.RateLimit(), wsHandler.HandleWebSocket)

	api := router.Group("/api/v1")
	{
		api.GET("/health", analyzeHandler.HealthCheck)

		protected := api.Group("/")
		protected.Use(rateLimiter.RateLimit())
		{
			// Uploads carry their own, stricter budget on top of the
			// default limit.
			protected.POST("/analyze",
				rateLimiter.RateLimitWithConfig("analyze", analyzeLimit),
				analyzeHandler.AnalyzeVideo)
			protected.GET("/stats", analyzeHandler.GetStats)

			protected.POST("/players", playerHandler.CreatePlayer)
			protected.GET("/players/:id", playerHandler.GetPlayer)
			protected.GET("/players/:id/profile", playerHandler.GetProfile)
			protected.GET("/players/:id/patterns", playerHandler.GetPatterns)
			protected.GET("/players/:id/comparison", playerHandler.GetComparison)
			protected.POST("/players/:id/contribute", playerHandler.Contribute)
		}
	}
}

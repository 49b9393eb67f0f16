package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rabbitquest/config"
	"rabbitquest/handlers"
	"rabbitquest/middleware"
	"rabbitquest/models"
	"rabbitquest/routes"
	"rabbitquest/services"
	"rabbitquest/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := config.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := config.InitDB(cfg, config.NewGormLogger(logger))
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database models
	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	// Quiz cache
	var cache services.QuizCache = services.NoopQuizCache{}
	if cfg.RedisEnabled {
		redisClient := config.InitRedis(cfg)
		defer redisClient.Close()
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		}
		cache = services.NewRedisQuizCache(redisClient, cfg.QuizCacheTTL, logger)
	}

	// Initialize services
	tokenService := services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	identity := services.NewGormIdentityStore(db, services.DefaultPasswordPolicy())
	authService := services.NewAuthService(db, identity, tokenService, logger)
	quizService := services.NewQuizService(db, cache, services.RatingPolicy(cfg.RatingPolicy), logger)
	avatars := storage.NewLocalFileStorage(cfg.StorageBasePath, cfg.AvatarMaxDimension)
	userService := services.NewUserService(db, identity, quizService, avatars, logger)

	if err := authService.SeedAdmins(context.Background(), cfg.AdminEmails); err != nil {
		logger.Fatal("failed to seed admin role", zap.Error(err))
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, logger)
	quizHandler := handlers.NewQuizHandler(quizService, logger)
	userHandler := handlers.NewUserHandler(userService, logger)
	mainPageHandler := handlers.NewMainPageHandler(quizService, userService, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(logger), gin.Recovery())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	routes.SetupRoutes(router, authHandler, quizHandler, userHandler, mainPageHandler,
		tokenService, avatars.Dir(), logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

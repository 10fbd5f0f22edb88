package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	_ "github.com/jeovahfialho/tradelog/docs"
	"github.com/jeovahfialho/tradelog/internal/api"
	"github.com/jeovahfialho/tradelog/internal/auth"
	"github.com/jeovahfialho/tradelog/internal/config"
	"github.com/jeovahfialho/tradelog/internal/service"
	"github.com/jeovahfialho/tradelog/internal/storage"
	"github.com/jeovahfialho/tradelog/internal/storage/cache"
	pkglogger "github.com/jeovahfialho/tradelog/pkg/logger"
)

// @title Tradelog API
// @version 1.0
// @description Trade journal with realized PnL analytics

// @host localhost:8000
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	if err := pkglogger.Init(cfg.LogLevel, cfg.IsDevelopment()); err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer pkglogger.Close()

	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := storage.Open(ctx, cfg)
	cancel()
	if err != nil {
		pkglogger.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	redisCache := connectRedis(cfg)

	// Services
	var serviceCache service.Cache
	var cacheHealth api.HealthChecker
	if redisCache != nil {
		defer redisCache.Close()
		serviceCache = redisCache
		cacheHealth = redisCache
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)
	authService := service.NewAuthService(store, serviceCache, tokens)
	tradeService := service.NewTradeService(store, serviceCache)
	analyticsService := service.NewAnalyticsService(store, serviceCache)
	ingestionService := service.NewIngestionService(store, serviceCache, cfg.BatchSize, cfg.Workers)

	if created, err := authService.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		pkglogger.Fatal("failed to ensure admin account", zap.Error(err))
	} else if created {
		pkglogger.Info("admin account created", zap.String("email", cfg.AdminEmail))
	}

	// Handler
	handler := api.NewHandler(
		store,
		cacheHealth,
		tokens,
		authService,
		tradeService,
		analyticsService,
		ingestionService,
	)

	// Fiber app
	app := fiber.New(fiber.Config{
		Prefork:                 false,
		ServerHeader:            "Tradelog",
		AppName:                 "Tradelog API v" + api.Version,
		ReadTimeout:             cfg.APIReadTimeout,
		WriteTimeout:            cfg.APIWriteTimeout,
		IdleTimeout:             120 * time.Second,
		ReadBufferSize:          8192,
		WriteBufferSize:         8192,
		ProxyHeader:             "X-Forwarded-For",
		EnableTrustedProxyCheck: true,
		BodyLimit:               10 * 1024 * 1024, // 10MB
		ErrorHandler:            api.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.ReplaceAll(cfg.CORSOrigins, " ", ""),
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		AllowCredentials: cfg.CORSOrigins != "*",
	}))

	api.SetupRoutes(app, handler, cfg)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		pkglogger.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			pkglogger.Error("server shutdown error", zap.Error(err))
		}
	}()

	pkglogger.Info("starting server",
		zap.String("addr", cfg.Addr()),
		zap.String("driver", cfg.DatabaseDriver),
		zap.Bool("cache", redisCache != nil))

	if err := app.Listen(cfg.Addr()); err != nil {
		pkglogger.Fatal("server error", zap.Error(err))
	}
}

func connectRedis(cfg *config.Config) *cache.RedisCache {
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		pkglogger.Warn("redis unavailable, continuing without cache", zap.Error(err))
		return nil
	}

	pkglogger.Info("connected to redis")
	return redisCache
}

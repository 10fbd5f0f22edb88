package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/jeovahfialho/tradelog/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(app *fiber.App, handler *Handler, cfg *config.Config) {
	app.Use(RequestID())

	// Unlimited operational endpoints
	app.Get("/health", handler.HealthCheck)
	app.Get("/ready", handler.ReadinessCheck)
	if cfg.MetricsEnabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	v1 := app.Group("/api/v1")
	v1.Use(RateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow))
	v1.Use(PrometheusMiddleware())

	authGroup := v1.Group("/auth")
	authGroup.Post("/register", RateLimiter(cfg.RegisterRateLimit, cfg.RateLimitWindow), handler.Register)
	authGroup.Post("/login", handler.Login)

	secured := v1.Group("", Authenticate(handler.tokens, handler.store))

	secured.Get("/users/me", handler.Me)

	trades := secured.Group("/trades")
	trades.Post("/", handler.CreateTrade)
	trades.Get("/", handler.ListTrades)
	trades.Get("/export", handler.ExportTrades)
	trades.Post("/import", handler.ImportTrades)
	trades.Get("/:id", handler.GetTrade)
	trades.Put("/:id", handler.UpdateTrade)
	trades.Patch("/:id/close", handler.CloseTrade)
	trades.Delete("/:id", handler.DeleteTrade)

	analytics := secured.Group("/analytics")
	analytics.Get("/summary", handler.Summary)
	analytics.Get("/chart", handler.PnLChart)
	analytics.Get("/admin/top-trades", handler.TopTrades)

	admin := secured.Group("/admin", RequireAdmin())
	admin.Get("/stats", handler.GetSystemStats)
	admin.Delete("/cache/:pattern", handler.InvalidateCache)
}

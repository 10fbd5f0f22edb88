package api

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/auth"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/internal/service"
	"github.com/jeovahfialho/tradelog/pkg/logger"
	"github.com/jeovahfialho/tradelog/pkg/metrics"
	"go.uber.org/zap"
)

const Version = "1.0.0"

// HealthChecker is the optional cache dependency probed by /ready.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Handler struct {
	store     service.Store
	cache     HealthChecker
	tokens    *auth.TokenManager
	auth      *service.AuthService
	trades    *service.TradeService
	analytics *service.AnalyticsService
	ingestion *service.IngestionService
}

// NewHandler wires the services behind the HTTP API. cache may be nil when
// the server runs without Redis.
func NewHandler(
	store service.Store,
	cache HealthChecker,
	tokens *auth.TokenManager,
	authService *service.AuthService,
	tradeService *service.TradeService,
	analyticsService *service.AnalyticsService,
	ingestionService *service.IngestionService,
) *Handler {
	return &Handler{
		store:     store,
		cache:     cache,
		tokens:    tokens,
		auth:      authService,
		trades:    tradeService,
		analytics: analyticsService,
		ingestion: ingestionService,
	}
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	services := map[string]ServiceHealth{
		"database": probe(ctx, h.store.Ping),
	}
	if h.cache != nil {
		services["redis"] = probe(ctx, h.cache.HealthCheck)
	}

	status := "ready"
	for _, svc := range services {
		if svc.Status != "healthy" {
			status = "not_ready"
			break
		}
	}

	response := HealthResponse{
		Status:    status,
		Version:   Version,
		Timestamp: time.Now(),
		Services:  services,
	}

	if status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	return c.JSON(response)
}

func probe(ctx context.Context, check func(context.Context) error) ServiceHealth {
	start := time.Now()
	if err := check(ctx); err != nil {
		return ServiceHealth{Status: "unhealthy", Error: err.Error()}
	}
	return ServiceHealth{Status: "healthy", Latency: time.Since(start).String()}
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	token, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(token)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}

	token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		logger.WithContext(c.UserContext()).Info("login rejected", zap.String("ip", c.IP()))
		return err
	}

	return c.JSON(token)
}

func (h *Handler) Me(c *fiber.Ctx) error {
	user, err := h.auth.Me(c.UserContext(), principal(c))
	if err != nil {
		return err
	}

	return c.JSON(UserResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
	})
}

func (h *Handler) Summary(c *fiber.Ctx) error {
	summary, err := h.analytics.Summary(c.UserContext(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func (h *Handler) PnLChart(c *fiber.Ctx) error {
	chart, err := h.analytics.PnLChart(c.UserContext(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(chart)
}

func (h *Handler) TopTrades(c *fiber.Ctx) error {
	page, err := h.analytics.TopProfitableTrades(c.UserContext(), principal(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *Handler) InvalidateCache(c *fiber.Ctx) error {
	pattern := c.Params("pattern", "*")

	removed, err := h.analytics.InvalidateCache(c.UserContext(), principal(c), pattern)
	if err != nil {
		return err
	}

	return c.JSON(InvalidateCacheResponse{
		Status:  "success",
		Pattern: service.CacheKeyPrefix + pattern,
		Removed: removed,
	})
}

func (h *Handler) GetSystemStats(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	goroutines := runtime.NumGoroutine()

	metrics.ActiveGoroutines.Set(float64(goroutines))
	metrics.MemoryUsage.Set(float64(m.Alloc))

	dbStats := map[string]interface{}{}
	if reporter, ok := h.store.(service.StatsReporter); ok {
		dbStats = reporter.Stats()
	}

	return c.JSON(SystemStatsResponse{
		Database: dbStats,
		Cache:    CacheStats{Enabled: h.cache != nil},
		API: APIStats{
			ActiveGoroutines: goroutines,
			MemoryUsed:       fmt.Sprintf("%d MB", m.Alloc/1024/1024),
		},
	})
}

func invalidBody(err error) error {
	return domain.Invalid("request body", fmt.Sprintf("could not be parsed (%v)", err))
}

func tradeID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.Invalid("id", "is not a valid UUID")
	}
	return id, nil
}

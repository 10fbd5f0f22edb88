package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/access"
	"github.com/jeovahfialho/tradelog/internal/analytics"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/pkg/logger"
	"github.com/jeovahfialho/tradelog/pkg/metrics"
	"go.uber.org/zap"
)

const TopTradesLimit = 5

// AnalyticsService answers read-only performance queries. Results are cached
// when a cache is configured; trade mutations invalidate them.
type AnalyticsService struct {
	store Store
	cache Cache
}

func NewAnalyticsService(store Store, cache Cache) *AnalyticsService {
	return &AnalyticsService{
		store: store,
		cache: cache,
	}
}

// Summary dispatches on role: admins get the platform view, traders their own.
func (s *AnalyticsService) Summary(ctx context.Context, p access.Principal) (interface{}, error) {
	if p.IsAdmin() {
		return s.AdminSummary(ctx, p)
	}
	return s.UserSummary(ctx, p)
}

func (s *AnalyticsService) UserSummary(ctx context.Context, p access.Principal) (*domain.UserSummary, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("user_summary"))

	key := userSummaryKey(p.UserID)
	var cached domain.UserSummary
	if cacheGet(ctx, s.cache, key, &cached) {
		metrics.RecordAnalyticsRequest("user_summary", true)
		return &cached, nil
	}

	owner := p.UserID
	closed := domain.TradeFilter{UserID: &owner, Status: domain.StatusClosed}
	open := domain.TradeFilter{UserID: &owner, Status: domain.StatusOpen}

	trades, err := s.store.FindTrades(ctx, closed, domain.SortExitDateAsc, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load closed trades: %w", err)
	}
	active, err := s.store.CountTrades(ctx, open)
	if err != nil {
		return nil, fmt.Errorf("count open trades: %w", err)
	}
	bySymbol, err := s.store.GroupSumPnL(ctx, closed, domain.GroupBySymbol)
	if err != nil {
		return nil, fmt.Errorf("group pnl by symbol: %w", err)
	}

	summary := analytics.SummarizeUser(analytics.TallyTrades(trades), active, bySymbol)

	cacheSet(ctx, s.cache, key, summary)
	metrics.RecordAnalyticsRequest("user_summary", false)
	logger.WithContext(ctx).Debug("user summary computed",
		zap.String("user_id", p.UserID.String()),
		zap.Int64("closed_trades", summary.TotalClosedTrades))

	return &summary, nil
}

func (s *AnalyticsService) AdminSummary(ctx context.Context, p access.Principal) (*domain.AdminSummary, error) {
	if !p.IsAdmin() {
		return nil, fmt.Errorf("admin summary requires the admin role: %w", domain.ErrForbidden)
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("admin_summary"))

	var cached domain.AdminSummary
	if cacheGet(ctx, s.cache, keyAdminSummary, &cached) {
		metrics.RecordAnalyticsRequest("admin_summary", true)
		return &cached, nil
	}

	users, err := s.store.CountUsers(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	trades, err := s.store.CountTrades(ctx, domain.TradeFilter{})
	if err != nil {
		return nil, fmt.Errorf("count trades: %w", err)
	}
	active, err := s.store.CountTrades(ctx, domain.TradeFilter{Status: domain.StatusOpen})
	if err != nil {
		return nil, fmt.Errorf("count open trades: %w", err)
	}
	byUser, err := s.store.GroupSumPnL(ctx, domain.TradeFilter{Status: domain.StatusClosed}, domain.GroupByUser)
	if err != nil {
		return nil, fmt.Errorf("group pnl by user: %w", err)
	}

	summary := domain.AdminSummary{
		TotalUsers:       users,
		TotalTrades:      trades,
		ActivePositions:  active,
		TotalPlatformPnL: analytics.SumGroups(byUser).Round(2),
	}

	outliers := analytics.SelectOutliers(byUser)
	if summary.TopGainer, err = s.performance(ctx, outliers.Gainer); err != nil {
		return nil, err
	}
	if summary.TopLoser, err = s.performance(ctx, outliers.Loser); err != nil {
		return nil, err
	}

	cacheSet(ctx, s.cache, keyAdminSummary, summary)
	metrics.RecordAnalyticsRequest("admin_summary", false)

	return &summary, nil
}

func (s *AnalyticsService) performance(ctx context.Context, g *domain.PnLGroup) (*domain.UserPerformance, error) {
	if g == nil {
		return nil, nil
	}

	id, err := uuid.Parse(g.Key)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", g.Key, err)
	}
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}

	return &domain.UserPerformance{
		Username: user.Username,
		Email:    user.Email,
		TotalPnL: g.Total.Round(2),
	}, nil
}

// PnLChart returns the cumulative realized PnL of the requester's scope.
func (s *AnalyticsService) PnLChart(ctx context.Context, p access.Principal) (*domain.Chart, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("pnl_chart"))

	key := chartKey(p)
	var cached domain.Chart
	if cacheGet(ctx, s.cache, key, &cached) {
		metrics.RecordAnalyticsRequest("pnl_chart", true)
		return &cached, nil
	}

	filter := access.ScopeFor(p).Filter(domain.TradeFilter{
		Status:     domain.StatusClosed,
		ExitedOnly: true,
	})
	trades, err := s.store.FindTrades(ctx, filter, domain.SortExitDateAsc, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load chart trades: %w", err)
	}

	chart := domain.Chart{Data: analytics.BuildChart(trades)}

	cacheSet(ctx, s.cache, key, chart)
	metrics.RecordAnalyticsRequest("pnl_chart", false)

	return &chart, nil
}

// TopProfitableTrades is the platform leaderboard of the most profitable
// closed trades, with owners attached.
func (s *AnalyticsService) TopProfitableTrades(ctx context.Context, p access.Principal) (*domain.TradePage, error) {
	if !p.IsAdmin() {
		return nil, fmt.Errorf("top trades require the admin role: %w", domain.ErrForbidden)
	}

	var cached domain.TradePage
	if cacheGet(ctx, s.cache, keyTopTrades, &cached) {
		metrics.RecordAnalyticsRequest("top_trades", true)
		return &cached, nil
	}

	filter := domain.TradeFilter{Status: domain.StatusClosed, ProfitableOnly: true}
	trades, err := s.store.FindTrades(ctx, filter, domain.SortPnLDesc, 0, TopTradesLimit)
	if err != nil {
		return nil, fmt.Errorf("load top trades: %w", err)
	}
	if trades == nil {
		trades = []domain.Trade{}
	}

	page := domain.TradePage{
		Total: int64(len(trades)),
		Page:  1,
		Limit: TopTradesLimit,
		Data:  trades,
	}

	cacheSet(ctx, s.cache, keyTopTrades, page)
	metrics.RecordAnalyticsRequest("top_trades", false)

	return &page, nil
}

// InvalidateCache drops cached analytics matching pattern, which is scoped
// under the analytics key prefix. It reports how many entries were removed.
func (s *AnalyticsService) InvalidateCache(ctx context.Context, p access.Principal, pattern string) (int64, error) {
	if !p.IsAdmin() {
		return 0, fmt.Errorf("cache invalidation requires the admin role: %w", domain.ErrForbidden)
	}
	if s.cache == nil {
		return 0, nil
	}
	if pattern == "" {
		pattern = "*"
	}

	n, err := s.cache.DeletePattern(ctx, CacheKeyPrefix+pattern)
	if err != nil {
		return 0, fmt.Errorf("invalidate cache: %w", err)
	}

	logger.WithContext(ctx).Info("analytics cache invalidated",
		zap.String("pattern", CacheKeyPrefix+pattern),
		zap.Int64("removed", n))
	return n, nil
}

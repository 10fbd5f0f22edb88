package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/access"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/pkg/logger"
	"github.com/jeovahfialho/tradelog/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type TradeService struct {
	store Store
	cache Cache
	now   Clock
}

func NewTradeService(store Store, cache Cache) *TradeService {
	return &TradeService{
		store: store,
		cache: cache,
		now:   time.Now,
	}
}

// WithClock replaces the time source used for defaulted entry and exit dates.
func (s *TradeService) WithClock(now Clock) *TradeService {
	s.now = now
	return s
}

type CreateTradeInput struct {
	Symbol     string
	Side       domain.TradeSide
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	EntryDate  *time.Time
}

type ListTradesQuery struct {
	Skip   int
	Limit  int
	Status domain.TradeStatus
	Symbol string
}

// NormalizePage applies the default limit and clamps skip and limit to their
// allowed ranges.
func NormalizePage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	switch {
	case limit <= 0:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	return skip, limit
}

func (s *TradeService) Create(ctx context.Context, p access.Principal, in CreateTradeInput) (*domain.Trade, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TradeOperationDuration.WithLabelValues("create"))

	trade, err := s.create(ctx, p, in)
	metrics.RecordTradeOperation("create", err)
	if err != nil {
		return nil, err
	}

	invalidateAnalytics(ctx, s.cache, trade.UserID)
	logger.WithContext(ctx).Info("trade opened",
		zap.String("trade_id", trade.ID.String()),
		zap.String("user_id", trade.UserID.String()),
		zap.String("symbol", trade.Symbol),
		zap.String("side", string(trade.Side)))

	return trade, nil
}

func (s *TradeService) create(ctx context.Context, p access.Principal, in CreateTradeInput) (*domain.Trade, error) {
	if err := access.CanCreate(p); err != nil {
		return nil, fmt.Errorf("admins cannot create trades: %w", err)
	}

	trade, err := domain.NewTrade(domain.NewTradeParams{
		UserID:     p.UserID,
		Symbol:     in.Symbol,
		Side:       in.Side,
		Quantity:   in.Quantity,
		EntryPrice: in.EntryPrice,
		EntryDate:  in.EntryDate,
	}, s.now())
	if err != nil {
		return nil, err
	}

	var saved *domain.Trade
	err = s.store.InTx(ctx, func(tx Store) error {
		if err := tx.SaveTrade(ctx, trade); err != nil {
			return err
		}
		saved, err = tx.GetTrade(ctx, trade.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create trade: %w", err)
	}
	return saved, nil
}

// List returns the requester's visible trades, newest entry first.
func (s *TradeService) List(ctx context.Context, p access.Principal, q ListTradesQuery) (*domain.TradePage, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TradeOperationDuration.WithLabelValues("list"))

	if q.Status != "" && !q.Status.Valid() {
		return nil, domain.Invalid("status", "must be OPEN or CLOSED")
	}
	skip, limit := NormalizePage(q.Skip, q.Limit)

	filter := access.ScopeFor(p).Filter(domain.TradeFilter{
		Status: q.Status,
		Symbol: domain.NormalizeSymbol(q.Symbol),
	})

	total, err := s.store.CountTrades(ctx, filter)
	if err != nil {
		metrics.RecordTradeOperation("list", err)
		return nil, fmt.Errorf("count trades: %w", err)
	}

	trades, err := s.store.FindTrades(ctx, filter, domain.SortEntryDateDesc, skip, limit)
	metrics.RecordTradeOperation("list", err)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	if trades == nil {
		trades = []domain.Trade{}
	}

	return &domain.TradePage{
		Total: total,
		Page:  skip/limit + 1,
		Limit: limit,
		Data:  trades,
	}, nil
}

// Get returns a trade in the requester's scope. Trades outside it are
// reported as missing.
func (s *TradeService) Get(ctx context.Context, p access.Principal, id uuid.UUID) (*domain.Trade, error) {
	return visibleTrade(ctx, s.store.GetTrade, p, id)
}

func visibleTrade(ctx context.Context, load func(context.Context, uuid.UUID) (*domain.Trade, error),
	p access.Principal, id uuid.UUID) (*domain.Trade, error) {

	trade, err := load(ctx, id)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !access.ScopeFor(p).Visible(trade)) {
		return nil, domain.NotFound("Trade", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get trade: %w", err)
	}
	return trade, nil
}

// mutate locks the trade, checks scope and ownership, runs fn and persists
// the result in one transaction.
func (s *TradeService) mutate(ctx context.Context, operation string, p access.Principal, id uuid.UUID,
	fn func(t *domain.Trade) error) (*domain.Trade, error) {

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TradeOperationDuration.WithLabelValues(operation))

	var saved *domain.Trade
	err := s.store.InTx(ctx, func(tx Store) error {
		trade, err := visibleTrade(ctx, tx.LockTrade, p, id)
		if err != nil {
			return err
		}
		if err := access.RequireOwner(p, trade); err != nil {
			return fmt.Errorf("you can only modify your own trades: %w", err)
		}
		if err := fn(trade); err != nil {
			return err
		}
		if err := tx.SaveTrade(ctx, trade); err != nil {
			return err
		}
		saved, err = tx.GetTrade(ctx, id)
		return err
	})
	metrics.RecordTradeOperation(operation, err)
	if err != nil {
		return nil, err
	}

	invalidateAnalytics(ctx, s.cache, saved.UserID)
	return saved, nil
}

func (s *TradeService) Update(ctx context.Context, p access.Principal, id uuid.UUID, u domain.TradeUpdate) (*domain.Trade, error) {
	trade, err := s.mutate(ctx, "update", p, id, func(t *domain.Trade) error {
		return t.Apply(u)
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("trade updated",
		zap.String("trade_id", trade.ID.String()),
		zap.String("status", string(trade.Status)))
	return trade, nil
}

func (s *TradeService) Close(ctx context.Context, p access.Principal, id uuid.UUID,
	exitPrice decimal.Decimal, exitDate *time.Time) (*domain.Trade, error) {

	trade, err := s.mutate(ctx, "close", p, id, func(t *domain.Trade) error {
		return t.Close(exitPrice, exitDate, s.now())
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("trade closed",
		zap.String("trade_id", trade.ID.String()),
		zap.String("symbol", trade.Symbol),
		zap.Stringer("pnl", trade.PnL))
	return trade, nil
}

func (s *TradeService) Delete(ctx context.Context, p access.Principal, id uuid.UUID) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TradeOperationDuration.WithLabelValues("delete"))

	var owner uuid.UUID
	err := s.store.InTx(ctx, func(tx Store) error {
		trade, err := visibleTrade(ctx, tx.LockTrade, p, id)
		if err != nil {
			return err
		}
		if err := access.RequireOwner(p, trade); err != nil {
			return fmt.Errorf("you can only modify your own trades: %w", err)
		}
		owner = trade.UserID
		return tx.DeleteTrade(ctx, id)
	})
	metrics.RecordTradeOperation("delete", err)
	if err != nil {
		return err
	}

	invalidateAnalytics(ctx, s.cache, owner)
	logger.WithContext(ctx).Info("trade deleted", zap.String("trade_id", id.String()))
	return nil
}

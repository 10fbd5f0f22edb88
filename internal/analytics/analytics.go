// Package analytics turns trade records into performance statistics. It holds
// no I/O: callers fetch the scoped trade set and hand it over.
package analytics

import (
	"sort"
	"time"

	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ProfitFactorCap stands in for an infinite profit factor (no losing trades).
	ProfitFactorCap = decimal.RequireFromString("99.99")

	hundred = decimal.NewFromInt(100)
)

// Tally accumulates closed-trade statistics. Break-even trades count toward
// Closed but neither Wins nor Losses.
type Tally struct {
	Closed      int64
	Wins        int64
	Losses      int64
	GrossProfit decimal.Decimal
	GrossLoss   decimal.Decimal
	Net         decimal.Decimal
}

func (t *Tally) Add(pnl decimal.Decimal) {
	t.Closed++
	t.Net = t.Net.Add(pnl)

	switch pnl.Sign() {
	case 1:
		t.Wins++
		t.GrossProfit = t.GrossProfit.Add(pnl)
	case -1:
		t.Losses++
		t.GrossLoss = t.GrossLoss.Add(pnl.Abs())
	}
}

// TallyTrades folds the CLOSED trades of the set; other trades are ignored.
func TallyTrades(trades []domain.Trade) Tally {
	var t Tally
	for i := range trades {
		trade := &trades[i]
		if trade.Status != domain.StatusClosed {
			continue
		}
		pnl := decimal.Zero
		if trade.PnL != nil {
			pnl = *trade.PnL
		}
		t.Add(pnl)
	}
	return t
}

// ProfitFactor is gross profit over gross loss, capped when there are no losses.
func ProfitFactor(grossProfit, grossLoss decimal.Decimal) decimal.Decimal {
	if !grossLoss.IsPositive() {
		if grossProfit.IsPositive() {
			return ProfitFactorCap
		}
		return decimal.Zero
	}
	pf := grossProfit.Div(grossLoss).Round(2)
	if pf.GreaterThan(ProfitFactorCap) {
		return ProfitFactorCap
	}
	return pf
}

// WinRate is the percentage of winning trades, one decimal place.
func WinRate(wins, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(wins).Mul(hundred).Div(decimal.NewFromInt(total)).Round(1)
}

func Average(sum decimal.Decimal, n int64) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(n)).Round(2)
}

// BestAsset picks the symbol with the highest realized total. Nothing is
// reported unless that total is strictly positive; ties go to the
// lexicographically smallest symbol.
func BestAsset(bySymbol []domain.PnLGroup) *domain.BestAsset {
	best := maxGroup(bySymbol)
	if best == nil || !best.Total.IsPositive() {
		return nil
	}
	return &domain.BestAsset{Symbol: best.Key, TotalPnL: best.Total.Round(2)}
}

func SummarizeUser(t Tally, activePositions int64, bySymbol []domain.PnLGroup) domain.UserSummary {
	return domain.UserSummary{
		NetRealizedPnL:    t.Net.Round(2),
		ProfitFactor:      ProfitFactor(t.GrossProfit, t.GrossLoss),
		WinRate:           WinRate(t.Wins, t.Closed),
		TotalClosedTrades: t.Closed,
		ActivePositions:   activePositions,
		AvgWin:            Average(t.GrossProfit, t.Wins),
		AvgLoss:           Average(t.GrossLoss, t.Losses),
		BestAsset:         BestAsset(bySymbol),
	}
}

// Outliers are the per-user extremes of realized PnL.
type Outliers struct {
	Gainer *domain.PnLGroup
	Loser  *domain.PnLGroup
}

// SelectOutliers picks the top gainer (max total > 0) and top loser
// (min total < 0). The same key is never reported as both.
func SelectOutliers(byUser []domain.PnLGroup) Outliers {
	var out Outliers

	if g := maxGroup(byUser); g != nil && g.Total.IsPositive() {
		out.Gainer = g
	}
	if l := minGroup(byUser); l != nil && l.Total.IsNegative() {
		out.Loser = l
	}
	if out.Gainer != nil && out.Loser != nil && out.Gainer.Key == out.Loser.Key {
		out.Loser = nil
	}
	return out
}

func SumGroups(groups []domain.PnLGroup) decimal.Decimal {
	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Total)
	}
	return total
}

func maxGroup(groups []domain.PnLGroup) *domain.PnLGroup {
	var best *domain.PnLGroup
	for i := range groups {
		g := &groups[i]
		if best == nil || g.Total.GreaterThan(best.Total) ||
			(g.Total.Equal(best.Total) && g.Key < best.Key) {
			best = g
		}
	}
	if best == nil {
		return nil
	}
	result := *best
	return &result
}

func minGroup(groups []domain.PnLGroup) *domain.PnLGroup {
	var worst *domain.PnLGroup
	for i := range groups {
		g := &groups[i]
		if worst == nil || g.Total.LessThan(worst.Total) ||
			(g.Total.Equal(worst.Total) && g.Key < worst.Key) {
			worst = g
		}
	}
	if worst == nil {
		return nil
	}
	result := *worst
	return &result
}

// SortForChart orders trades by exit date, then entry date, then id.
func SortForChart(trades []domain.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		a, b := &trades[i], &trades[j]
		ae, be := exitTime(a), exitTime(b)
		if !ae.Equal(be) {
			return ae.Before(be)
		}
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		return a.ID.String() < b.ID.String()
	})
}

func exitTime(t *domain.Trade) time.Time {
	if t.ExitDate == nil {
		return time.Time{}
	}
	return *t.ExitDate
}

// BuildChart walks closed trades in exit order and emits the running total.
// Trades without an exit date are skipped.
func BuildChart(trades []domain.Trade) []domain.PnLPoint {
	closed := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Status == domain.StatusClosed && t.ExitDate != nil {
			closed = append(closed, t)
		}
	}
	SortForChart(closed)

	points := make([]domain.PnLPoint, 0, len(closed))
	running := decimal.Zero
	for _, t := range closed {
		pnl := decimal.Zero
		if t.PnL != nil {
			pnl = *t.PnL
		}
		running = running.Add(pnl)
		points = append(points, domain.PnLPoint{
			Date:          *t.ExitDate,
			PnL:           pnl,
			CumulativePnL: running.Round(2),
		})
	}
	return points
}

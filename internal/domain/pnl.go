package domain

import "github.com/shopspring/decimal"

// ComputePnL returns the realized profit or loss of a position.
func ComputePnL(side TradeSide, entryPrice, exitPrice, quantity decimal.Decimal) decimal.Decimal {
	if side == SideShort {
		return entryPrice.Sub(exitPrice).Mul(quantity)
	}
	return exitPrice.Sub(entryPrice).Mul(quantity)
}

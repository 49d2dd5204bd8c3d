package execution

import (
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PositionPnL derives unrealized P&L for a position at the given price.
// Quantity is always positive; side decides the sign of the move.
// pnlPercent is relative to entry cost and is zero when entry cost is zero.
func PositionPnL(side types.PositionSide, entry, current, quantity decimal.Decimal) (pnl, pnlPercent decimal.Decimal) {
	move := current.Sub(entry)
	if side == types.PositionSideShort {
		move = move.Neg()
	}
	pnl = move.Mul(quantity)

	cost := entry.Mul(quantity).Abs()
	if cost.IsZero() {
		return pnl, decimal.Zero
	}
	return pnl, pnl.Div(cost).Mul(hundred)
}

// IdeaPnL returns the per-unit P&L of a trade idea closed at closePrice.
func IdeaPnL(direction types.TradeDirection, entry, closePrice decimal.Decimal) decimal.Decimal {
	if direction == types.TradeDirectionShort {
		return entry.Sub(closePrice)
	}
	return closePrice.Sub(entry)
}

// ApplyPrice sets the current price on a position and refreshes its P&L.
func ApplyPrice(p *types.Position, price decimal.Decimal) {
	p.CurrentPrice = price
	p.PnL, p.PnLPercent = PositionPnL(p.Side, p.EntryPrice, price, p.Quantity)
}

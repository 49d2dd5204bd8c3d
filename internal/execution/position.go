package execution

import (
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// positionRule checks one exit condition of a position
type positionRule func(p *types.Position, price decimal.Decimal) (Decision, bool)

// PositionEvaluator decides stop-loss and take-profit exits for positions.
// Rules run in order and the first one that fires wins; stop-loss is always
// ahead of take-profit.
type PositionEvaluator struct {
	logger *zap.Logger
	rules  []positionRule
}

// NewPositionEvaluator creates a position evaluator
func NewPositionEvaluator(logger *zap.Logger) *PositionEvaluator {
	return &PositionEvaluator{
		logger: logger.Named("position-evaluator"),
		rules:  []positionRule{stopLossRule, takeProfitRule},
	}
}

// Evaluate returns a decision when an exit fires for the quote. Positions
// that are not OPEN, or that trade another symbol, never fire.
func (e *PositionEvaluator) Evaluate(p *types.Position, quote types.MarketQuote) (*PositionDecision, bool) {
	if p == nil || p.Status != types.PositionStatusOpen || p.Symbol != quote.Symbol {
		return nil, false
	}

	for _, rule := range e.rules {
		d, fired := rule(p, quote.Price)
		if !fired {
			continue
		}

		status := types.PositionStatusClosed
		if d.Kind == TriggerStopLoss {
			status = types.PositionStatusStopped
		}
		pnl, pct := PositionPnL(p.Side, p.EntryPrice, d.ClosePrice, p.Quantity)

		e.logger.Debug("position exit fired",
			zap.String("position", p.ID),
			zap.String("symbol", p.Symbol),
			zap.String("kind", string(d.Kind)),
			zap.String("quote", quote.Price.String()),
			zap.String("level", d.ClosePrice.String()),
		)

		return &PositionDecision{
			Decision:   d,
			PositionID: p.ID,
			OwnerID:    p.OwnerID,
			Status:     status,
			PnL:        pnl,
			PnLPercent: pct,
		}, true
	}
	return nil, false
}

// CheckStopLoss reports whether the stop-loss fires at price.
// Returns ErrNoStopLoss when the position has none.
func (e *PositionEvaluator) CheckStopLoss(p *types.Position, price decimal.Decimal) (bool, error) {
	if !p.StopLoss.Valid {
		return false, types.ErrNoStopLoss
	}
	_, fired := stopLossRule(p, price)
	return fired, nil
}

// CheckTakeProfit reports whether the take-profit fires at price.
// Returns ErrNoTakeProfit when the position has none.
func (e *PositionEvaluator) CheckTakeProfit(p *types.Position, price decimal.Decimal) (bool, error) {
	if !p.TakeProfit.Valid {
		return false, types.ErrNoTakeProfit
	}
	_, fired := takeProfitRule(p, price)
	return fired, nil
}

func stopLossRule(p *types.Position, price decimal.Decimal) (Decision, bool) {
	if !p.StopLoss.Valid {
		return Decision{}, false
	}
	level := p.StopLoss.Decimal

	var fired bool
	if p.Side == types.PositionSideShort {
		fired = price.GreaterThanOrEqual(level)
	} else {
		fired = price.LessThanOrEqual(level)
	}
	if !fired {
		return Decision{}, false
	}
	return Decision{Kind: TriggerStopLoss, ClosePrice: level, Reason: ReasonStopLoss}, true
}

func takeProfitRule(p *types.Position, price decimal.Decimal) (Decision, bool) {
	if !p.TakeProfit.Valid {
		return Decision{}, false
	}
	level := p.TakeProfit.Decimal

	var fired bool
	if p.Side == types.PositionSideShort {
		fired = price.LessThanOrEqual(level)
	} else {
		fired = price.GreaterThanOrEqual(level)
	}
	if !fired {
		return Decision{}, false
	}
	return Decision{Kind: TriggerTakeProfit, ClosePrice: level, Reason: ReasonTakeProfit}, true
}

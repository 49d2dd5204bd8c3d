// Package alerts evaluates user price alerts against market quotes.
package alerts

import (
	"time"

	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"go.uber.org/zap"
)

// Evaluator decides whether price alerts fire
type Evaluator struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewEvaluator creates an alert evaluator
func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{
		logger: logger.Named("alert-evaluator"),
		now:    time.Now,
	}
}

// Evaluate reports whether the alert's condition holds for the quote.
// Only ACTIVE alerts on the quote's symbol are considered.
//
// Crossing conditions are strict: the previous close must sit on the
// other side of (or exactly at) the target and the price must be strictly
// past it.
func (e *Evaluator) Evaluate(alert *types.Alert, quote types.MarketQuote) bool {
	if alert == nil || alert.Status != types.AlertStatusActive || alert.Symbol != quote.Symbol {
		return false
	}

	target := alert.TargetPrice
	price := quote.Price
	prev := quote.PreviousClose

	switch alert.Condition {
	case types.AlertConditionAbove:
		return price.GreaterThan(target)
	case types.AlertConditionBelow:
		return price.LessThan(target)
	case types.AlertConditionCrossesAbove:
		return prev.LessThanOrEqual(target) && price.GreaterThan(target)
	case types.AlertConditionCrossesBelow:
		return prev.GreaterThanOrEqual(target) && price.LessThan(target)
	default:
		e.logger.Warn("unknown alert condition",
			zap.String("alert", alert.ID),
			zap.String("condition", string(alert.Condition)),
		)
		return false
	}
}

// Trigger moves an ACTIVE alert to TRIGGERED. It returns false, leaving the
// alert untouched, when the alert has already fired.
func (e *Evaluator) Trigger(alert *types.Alert) bool {
	if alert.Status != types.AlertStatusActive {
		return false
	}
	now := e.now()
	alert.Status = types.AlertStatusTriggered
	alert.TriggeredAt = &now
	return true
}

// Fire evaluates and, when the condition holds, triggers the alert in one step.
func (e *Evaluator) Fire(alert *types.Alert, quote types.MarketQuote) bool {
	if !e.Evaluate(alert, quote) {
		return false
	}
	return e.Trigger(alert)
}

package execution

import (
	"sort"

	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TradeIdeaEvaluator decides exits for multi-target trade ideas.
//
// Stop-loss is checked first. Take-profit tiers are then checked nearest to
// entry first and the first tier reached closes the idea at that tier's
// price, even if the quote has overshot further tiers.
type TradeIdeaEvaluator struct {
	logger *zap.Logger
}

// NewTradeIdeaEvaluator creates a trade idea evaluator
func NewTradeIdeaEvaluator(logger *zap.Logger) *TradeIdeaEvaluator {
	return &TradeIdeaEvaluator{logger: logger.Named("idea-evaluator")}
}

// Evaluate returns a decision when the idea should close at the quote.
func (e *TradeIdeaEvaluator) Evaluate(idea *types.TradeIdea, quote types.MarketQuote) (*IdeaDecision, bool) {
	if idea == nil || idea.Status != types.TradeIdeaStatusActive || idea.Symbol != quote.Symbol {
		return nil, false
	}

	d, fired := e.decide(idea, quote.Price)
	if !fired {
		return nil, false
	}

	e.logger.Debug("trade idea exit fired",
		zap.String("idea", idea.ID),
		zap.String("symbol", idea.Symbol),
		zap.String("kind", string(d.Kind)),
		zap.Int("tier", d.Tier),
		zap.String("level", d.ClosePrice.String()),
	)

	return &IdeaDecision{
		Decision: d,
		IdeaID:   idea.ID,
		GroupID:  idea.GroupID,
		PnL:      IdeaPnL(idea.Direction, idea.EntryPrice, d.ClosePrice),
	}, true
}

func (e *TradeIdeaEvaluator) decide(idea *types.TradeIdea, price decimal.Decimal) (Decision, bool) {
	short := idea.Direction == types.TradeDirectionShort

	if idea.StopLoss.Valid {
		level := idea.StopLoss.Decimal
		if (short && price.GreaterThanOrEqual(level)) || (!short && price.LessThanOrEqual(level)) {
			return Decision{Kind: TriggerStopLoss, ClosePrice: level, Reason: ReasonStopLoss}, true
		}
	}

	for _, tier := range OrderedTiers(idea) {
		if (short && price.LessThanOrEqual(tier.Price)) || (!short && price.GreaterThanOrEqual(tier.Price)) {
			return Decision{
				Kind:       TriggerTakeProfit,
				Tier:       tier.Tier,
				ClosePrice: tier.Price,
				Reason:     ReasonTakeProfit,
			}, true
		}
	}
	return Decision{}, false
}

// OrderedTiers returns the idea's take-profit tiers ordered by proximity
// to entry: ascending price for LONG, descending for SHORT.
func OrderedTiers(idea *types.TradeIdea) []types.TakeProfitTier {
	tiers := idea.TakeProfitTiers()
	short := idea.Direction == types.TradeDirectionShort
	sort.SliceStable(tiers, func(i, j int) bool {
		if short {
			return tiers[i].Price.GreaterThan(tiers[j].Price)
		}
		return tiers[i].Price.LessThan(tiers[j].Price)
	})
	return tiers
}

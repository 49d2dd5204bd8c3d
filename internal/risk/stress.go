package risk

import (
	"math"

	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// DefaultScenarios are applied when a stress test names none.
func DefaultScenarios() []types.StressScenario {
	return []types.StressScenario{
		{Name: "Market Crash", MarketChangePercent: -30, VolatilityMultiplier: 2.5},
		{Name: "Severe Correction", MarketChangePercent: -20, VolatilityMultiplier: 2.0},
		{Name: "Correction", MarketChangePercent: -10, VolatilityMultiplier: 1.5},
		{Name: "Flash Crash", MarketChangePercent: -7, VolatilityMultiplier: 3.0},
		{Name: "Bull Rally", MarketChangePercent: 15, VolatilityMultiplier: 1.2},
	}
}

// StressTest applies scenarios to a set of holdings. base is the current
// risk snapshot used to scale stressed volatility and VaR; it may be nil.
func StressTest(holdings []types.Holding, scenarios []types.StressScenario, base *types.RiskMetrics) []types.StressTestResult {
	results := make([]types.StressTestResult, 0, len(scenarios))
	for _, sc := range scenarios {
		results = append(results, applyScenario(holdings, sc, base))
	}
	return results
}

func applyScenario(holdings []types.Holding, sc types.StressScenario, base *types.RiskMetrics) types.StressTestResult {
	res := types.StressTestResult{
		ScenarioName: sc.Name,
		AssetImpacts: make([]types.AssetImpact, 0, len(holdings)),
	}

	totalCurrent := decimal.Zero
	totalStressed := decimal.Zero

	for _, h := range holdings {
		change := sc.MarketChangePercent
		if shock, ok := sc.AssetShocks[h.Symbol]; ok {
			change = shock
		}

		factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(change).Div(hundred))
		if factor.IsNegative() {
			factor = decimal.Zero
		}
		stressedPrice := h.CurrentPrice.Mul(factor)
		currentValue := h.Value()
		stressedValue := h.Quantity.Mul(stressedPrice)
		loss := currentValue.Sub(stressedValue)

		impact := types.AssetImpact{
			Symbol:        h.Symbol,
			CurrentPrice:  h.CurrentPrice,
			StressedPrice: stressedPrice,
			CurrentValue:  currentValue,
			StressedValue: stressedValue,
			Loss:          loss,
		}
		if !currentValue.IsZero() {
			impact.LossPercentage = loss.Div(currentValue).Mul(hundred).InexactFloat64()
		}
		res.AssetImpacts = append(res.AssetImpacts, impact)

		totalCurrent = totalCurrent.Add(currentValue)
		totalStressed = totalStressed.Add(stressedValue)
	}

	res.PortfolioValue = totalCurrent
	res.PortfolioLoss = totalCurrent.Sub(totalStressed)
	if !totalCurrent.IsZero() {
		res.LossPercentage = res.PortfolioLoss.Div(totalCurrent).Mul(hundred).InexactFloat64()
	}
	res.Severity = Severity(res.LossPercentage)

	stressedValue := totalStressed.InexactFloat64()
	res.StressedMetrics = types.StressedMetrics{PortfolioValue: stressedValue}
	lossFraction := math.Max(res.LossPercentage/100, 0)
	res.StressedMetrics.MaxDrawdown = lossFraction
	if base != nil {
		res.StressedMetrics.Volatility = base.AnnualizedVolatility * sc.VolatilityMultiplier
		res.StressedMetrics.VaR = base.VaRPercent * sc.VolatilityMultiplier * stressedValue
		res.StressedMetrics.MaxDrawdown = math.Max(base.MaxDrawdown, lossFraction)
	}
	return res
}

// Severity classifies the absolute loss percentage of a scenario
func Severity(lossPercentage float64) types.RiskLevel {
	loss := math.Abs(lossPercentage)
	switch {
	case loss > 30:
		return types.RiskLevelExtreme
	case loss > 20:
		return types.RiskLevelHigh
	case loss > 10:
		return types.RiskLevelMedium
	default:
		return types.RiskLevelLow
	}
}

var hundred = decimal.NewFromInt(100)

package risk_test

import (
	"testing"

	"github.com/atlas-desktop/papertrade-engine/internal/risk"
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func holding(symbol, qty, price string) types.Holding {
	return types.Holding{
		PortfolioID:  "pf-1",
		Symbol:       symbol,
		Quantity:     decimal.RequireFromString(qty),
		CurrentPrice: decimal.RequireFromString(price),
	}
}

func TestStressTestMarketShock(t *testing.T) {
	holdings := []types.Holding{
		holding("AAPL", "10", "100"),
		holding("MSFT", "5", "200"),
	}

	results := risk.StressTest(holdings, []types.StressScenario{
		{Name: "Crash", MarketChangePercent: -30, VolatilityMultiplier: 2},
	}, nil)
	require.Len(t, results, 1)
	res := results[0]

	assert.Equal(t, "Crash", res.ScenarioName)
	assert.True(t, res.PortfolioValue.Equal(decimal.NewFromInt(2000)))
	assert.True(t, res.PortfolioLoss.Equal(decimal.NewFromInt(600)), "loss %s", res.PortfolioLoss)
	assert.InDelta(t, 30, res.LossPercentage, 1e-9)
	assert.Equal(t, types.RiskLevelHigh, res.Severity, "exactly 30 is not extreme")

	require.Len(t, res.AssetImpacts, 2)
	assert.True(t, res.AssetImpacts[0].StressedPrice.Equal(decimal.NewFromInt(70)))
	assert.InDelta(t, 1400, res.StressedMetrics.PortfolioValue, 1e-9)
	assert.InDelta(t, 0.30, res.StressedMetrics.MaxDrawdown, 1e-9)
}

func TestStressTestAssetOverridesAndBase(t *testing.T) {
	holdings := []types.Holding{
		holding("AAPL", "10", "100"),
		holding("TSLA", "10", "100"),
	}
	base := &types.RiskMetrics{AnnualizedVolatility: 0.2, VaRPercent: 0.03, MaxDrawdown: 0.5}

	results := risk.StressTest(holdings, []types.StressScenario{
		{Name: "Tech selloff", MarketChangePercent: -10, VolatilityMultiplier: 1.5, AssetShocks: map[string]float64{"TSLA": -50}},
	}, base)
	res := results[0]

	// AAPL loses 100, TSLA loses 500.
	assert.True(t, res.PortfolioLoss.Equal(decimal.NewFromInt(600)))
	assert.InDelta(t, 30, res.LossPercentage, 1e-9)
	assert.InDelta(t, 50, res.AssetImpacts[1].LossPercentage, 1e-9)
	assert.InDelta(t, 0.3, res.StressedMetrics.Volatility, 1e-9)
	assert.InDelta(t, 0.03*1.5*1400, res.StressedMetrics.VaR, 1e-9)
	assert.InDelta(t, 0.5, res.StressedMetrics.MaxDrawdown, 1e-9)
}

func TestStressTestGain(t *testing.T) {
	results := risk.StressTest([]types.Holding{holding("AAPL", "1", "100")}, []types.StressScenario{
		{Name: "Rally", MarketChangePercent: 15, VolatilityMultiplier: 1},
	}, nil)

	assert.True(t, results[0].PortfolioLoss.Equal(decimal.NewFromInt(-15)))
	assert.InDelta(t, -15, results[0].LossPercentage, 1e-9)
	assert.Equal(t, types.RiskLevelMedium, results[0].Severity)
	assert.Zero(t, results[0].StressedMetrics.MaxDrawdown)
}

func TestSeverityThresholds(t *testing.T) {
	assert.Equal(t, types.RiskLevelExtreme, risk.Severity(30.01))
	assert.Equal(t, types.RiskLevelHigh, risk.Severity(-25))
	assert.Equal(t, types.RiskLevelMedium, risk.Severity(10.5))
	assert.Equal(t, types.RiskLevelLow, risk.Severity(10))
}

func TestDefaultScenarios(t *testing.T) {
	scenarios := risk.DefaultScenarios()
	require.Len(t, scenarios, 5)
	assert.Equal(t, -30.0, scenarios[0].MarketChangePercent)
	assert.Equal(t, 2.5, scenarios[0].VolatilityMultiplier)
}

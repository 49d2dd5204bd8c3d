package risk_test

import (
	"math"
	"testing"

	"github.com/atlas-desktop/papertrade-engine/internal/risk"
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/atlas-desktop/papertrade-engine/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// hundredReturns is -0.050, -0.049, ... , 0.049 in shuffled order.
func hundredReturns() []float64 {
	out := make([]float64, 100)
	for i := range out {
		out[(i*37)%100] = float64(i-50) / 1000
	}
	return out
}

func TestHistoricalVaRIndex(t *testing.T) {
	returns := hundredReturns()

	v, cvar := risk.HistoricalVaR(returns, 0.95, 10000)

	// Sorted ascending index 5 is -0.045.
	assert.InDelta(t, 450, v, 1e-9)
	// Tail [0..5] averages -0.0475.
	assert.InDelta(t, 475, cvar, 1e-9)

	assert.Equal(t, 5, risk.VaRIndex(100, 0.95))
	assert.Equal(t, 1, risk.VaRIndex(100, 0.99))
	assert.Equal(t, 1, risk.VaRIndex(10, 0.9))
	assert.Equal(t, 0, risk.VaRIndex(3, 0.99))
}

func TestHistoricalVaREmpty(t *testing.T) {
	v, cvar := risk.HistoricalVaR(nil, 0.95, 1000)
	assert.Zero(t, v)
	assert.Zero(t, cvar)
}

func TestComputeValidation(t *testing.T) {
	calc := risk.NewCalculator(zap.NewNop())

	_, err := calc.Compute(risk.Inputs{PortfolioValue: 1, ConfidenceLevel: 1})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = calc.Compute(risk.Inputs{PortfolioValue: -1, ConfidenceLevel: 0.95})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestComputeRatios(t *testing.T) {
	calc := risk.NewCalculator(zap.NewNop())
	returns := []float64{0.01, -0.02, 0.015, -0.005, 0.02, -0.01, 0.005}

	m, err := calc.Compute(risk.Inputs{
		PortfolioValue:  50000,
		Returns:         returns,
		ConfidenceLevel: 0.95,
		RiskFreeRate:    0.02,
	})
	require.NoError(t, err)

	annMean := utils.Mean(returns) * 252
	annVol := utils.StdDev(returns) * math.Sqrt(252)
	downside := utils.StdDev([]float64{-0.02, -0.005, -0.01}) * math.Sqrt(252)

	assert.InDelta(t, annVol, m.AnnualizedVolatility, 1e-12)
	assert.InDelta(t, downside, m.DownsideVolatility, 1e-12)
	assert.InDelta(t, (annMean-0.02)/annVol, m.SharpeRatio, 1e-12)
	assert.InDelta(t, (annMean-0.02)/downside, m.SortinoRatio, 1e-12)

	equity := utils.EquityCurve(returns)
	maxDD := utils.MaxDrawdown(equity)
	assert.InDelta(t, maxDD, m.MaxDrawdown, 1e-12)
	assert.InDelta(t, annMean/maxDD, m.CalmarRatio, 1e-12)

	// Sorted lowest return is -0.02 at index floor(7*0.05)=0.
	assert.InDelta(t, 1000, m.VaR, 1e-9)
	assert.InDelta(t, 0.02, m.VaRPercent, 1e-12)

	// No benchmark: beta 1, alpha 0, flagged.
	assert.Equal(t, 1.0, m.Beta)
	assert.Zero(t, m.Alpha)
	assert.InDelta(t, annMean-0.02, m.TreynorRatio, 1e-12)
	assert.Contains(t, m.Degraded, types.Degradation{Component: risk.DegradedBenchmark, Reason: "market returns not available"})
}

func TestComputeBetaAgainstBenchmark(t *testing.T) {
	calc := risk.NewCalculator(zap.NewNop())
	market := []float64{0.01, -0.02, 0.015, -0.005, 0.02}
	portfolio := make([]float64, len(market))
	for i, r := range market {
		portfolio[i] = 2*r + 0.001
	}

	m, err := calc.Compute(risk.Inputs{
		PortfolioValue:  1000,
		Returns:         portfolio,
		MarketReturns:   market,
		ConfidenceLevel: 0.95,
		RiskFreeRate:    0.01,
	})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, m.Beta, 1e-9)
	// Jensen's alpha: Rp - (rf + beta(Rm - rf)) with Rp = 2Rm + 0.252.
	marketAnnual := utils.Mean(market) * 252
	portfolioAnnual := utils.Mean(portfolio) * 252
	assert.InDelta(t, portfolioAnnual-(0.01+2*(marketAnnual-0.01)), m.Alpha, 1e-9)
	for _, d := range m.Degraded {
		assert.NotEqual(t, risk.DegradedBenchmark, d.Component)
	}
}

func TestComputeEmptyReturns(t *testing.T) {
	m, err := risk.NewCalculator(zap.NewNop()).Compute(risk.Inputs{PortfolioValue: 1000, ConfidenceLevel: 0.95})
	require.NoError(t, err)

	assert.Zero(t, m.VaR)
	assert.Zero(t, m.CVaR)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.CalmarRatio)
	assert.Equal(t, types.RiskLevelLow, m.RiskLevel)
	assert.Len(t, m.Degraded, 2)
}

func TestRiskScoreAndLevel(t *testing.T) {
	assert.InDelta(t, 0, risk.RiskScore(0, 0, 0, 2), 1e-12)
	assert.InDelta(t, 100, risk.RiskScore(1.2, 0.5, 0.9, -3), 1e-12)
	// Half of each cap, Sharpe 1: 15 + 12.5 + 12.5 + 10.
	assert.InDelta(t, 50, risk.RiskScore(0.30, 0.05, 0.25, 1), 1e-12)

	assert.Equal(t, types.RiskLevelLow, risk.ClassifyRisk(24.9))
	assert.Equal(t, types.RiskLevelMedium, risk.ClassifyRisk(25))
	assert.Equal(t, types.RiskLevelHigh, risk.ClassifyRisk(50))
	assert.Equal(t, types.RiskLevelExtreme, risk.ClassifyRisk(75))
}

func TestCountVaRViolations(t *testing.T) {
	returns := []float64{-0.03, -0.01, 0.02, -0.025, -0.02}
	assert.Equal(t, 2, risk.CountVaRViolations(returns, 0.02))
	assert.Zero(t, risk.CountVaRViolations(returns, 0))
}

func TestAverageCorrelation(t *testing.T) {
	matrix := map[string]map[string]float64{
		"A": {"B": 0.5, "C": 0.1},
		"B": {"C": 0.3},
	}
	avg, ok := risk.AverageCorrelation([]string{"A", "B", "C"}, matrix)
	require.True(t, ok)
	assert.InDelta(t, 0.3, avg, 1e-12)

	_, ok = risk.AverageCorrelation([]string{"X", "Y"}, matrix)
	assert.False(t, ok)
}

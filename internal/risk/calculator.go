// Package risk computes portfolio risk analytics: historical VaR and CVaR,
// volatility, risk-adjusted ratios, stress tests, Monte Carlo projections
// and liquidity.
package risk

import (
	"math"

	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/atlas-desktop/papertrade-engine/pkg/utils"
	"go.uber.org/zap"
)

// Risk score weights. Each component saturates at its cap.
const (
	volatilityWeight = 30.0
	varWeight        = 25.0
	drawdownWeight   = 25.0
	sharpeWeight     = 20.0

	volatilityCap = 0.60 // annualized
	varCap        = 0.10 // fraction of portfolio value
	drawdownCap   = 0.50
	sharpeTarget  = 2.0
)

// Degradation components.
const (
	DegradedBenchmark    = "benchmark_unavailable"
	DegradedRiskFreeRate = "risk_free_rate_unavailable"
	DegradedCorrelations = "correlations_unavailable"
	DegradedVolatility   = "volatility_unavailable"
	DegradedVolume       = "volume_unavailable"
	DegradedHistory      = "insufficient_history"
	DegradedPersistence  = "snapshot_persistence_failed"
)

// Inputs are the data a risk calculation runs on
type Inputs struct {
	PortfolioValue  float64
	Returns         []float64 // periodic (daily) returns, oldest first
	ConfidenceLevel float64
	RiskFreeRate    float64   // annual
	MarketReturns   []float64 // benchmark returns aligned to Returns; optional
}

// Calculator computes risk metrics from return series. It is pure and
// safe for concurrent use.
type Calculator struct {
	logger *zap.Logger
}

// NewCalculator creates a risk calculator
func NewCalculator(logger *zap.Logger) *Calculator {
	return &Calculator{logger: logger.Named("risk-calculator")}
}

// Compute derives a risk snapshot. Missing benchmark data defaults beta to 1
// and alpha to 0 and is reported as a degradation, never as an error.
func (c *Calculator) Compute(in Inputs) (*types.RiskMetrics, error) {
	if in.ConfidenceLevel <= 0 || in.ConfidenceLevel >= 1 {
		return nil, &types.ValidationError{Field: "confidenceLevel", Reason: "must be between 0 and 1"}
	}
	if in.PortfolioValue < 0 || math.IsNaN(in.PortfolioValue) {
		return nil, &types.ValidationError{Field: "portfolioValue", Reason: "must not be negative"}
	}

	m := &types.RiskMetrics{
		PortfolioValue:  in.PortfolioValue,
		ConfidenceLevel: in.ConfidenceLevel,
		Observations:    len(in.Returns),
		RiskFreeRate:    in.RiskFreeRate,
		Beta:            1,
	}
	if len(in.Returns) < 2 {
		m.Degraded = append(m.Degraded, types.Degradation{
			Component: DegradedHistory,
			Reason:    "fewer than two return observations",
		})
	}

	m.VaR, m.CVaR = HistoricalVaR(in.Returns, in.ConfidenceLevel, in.PortfolioValue)
	if in.PortfolioValue > 0 {
		m.VaRPercent = m.VaR / in.PortfolioValue
	}

	sqrtYear := math.Sqrt(utils.TradingDaysPerYear)
	m.Volatility = utils.StdDev(in.Returns)
	m.AnnualizedVolatility = m.Volatility * sqrtYear
	m.DownsideVolatility = utils.StdDev(utils.Negatives(in.Returns)) * sqrtYear
	m.AnnualizedReturn = utils.Mean(in.Returns) * utils.TradingDaysPerYear

	excess := m.AnnualizedReturn - in.RiskFreeRate
	if m.AnnualizedVolatility > 0 {
		m.SharpeRatio = excess / m.AnnualizedVolatility
	}
	if m.DownsideVolatility > 0 {
		m.SortinoRatio = excess / m.DownsideVolatility
	}

	equity := utils.EquityCurve(in.Returns)
	m.MaxDrawdown = utils.MaxDrawdown(equity)
	m.CurrentDrawdown = currentDrawdown(equity)
	if m.MaxDrawdown > 0 {
		m.CalmarRatio = m.AnnualizedReturn / m.MaxDrawdown
	}

	c.applyBenchmark(m, in)
	if m.Beta != 0 {
		m.TreynorRatio = excess / m.Beta
	}

	m.VaRViolations = CountVaRViolations(in.Returns, m.VaRPercent)
	m.RiskScore = RiskScore(m.AnnualizedVolatility, m.VaRPercent, m.MaxDrawdown, m.SharpeRatio)
	m.RiskLevel = ClassifyRisk(m.RiskScore)

	return m, nil
}

// applyBenchmark sets beta and alpha against the market series. Series of
// different length are aligned on their most recent observations.
func (c *Calculator) applyBenchmark(m *types.RiskMetrics, in Inputs) {
	n := len(in.Returns)
	if len(in.MarketReturns) < n {
		n = len(in.MarketReturns)
	}
	if n < 2 {
		m.Degraded = append(m.Degraded, types.Degradation{
			Component: DegradedBenchmark,
			Reason:    "market returns not available",
		})
		return
	}

	portfolio := in.Returns[len(in.Returns)-n:]
	market := in.MarketReturns[len(in.MarketReturns)-n:]

	marketVar := utils.Variance(market)
	if marketVar == 0 {
		m.Degraded = append(m.Degraded, types.Degradation{
			Component: DegradedBenchmark,
			Reason:    "market returns have zero variance",
		})
		return
	}

	m.Beta = utils.Covariance(portfolio, market) / marketVar
	marketAnnual := utils.Mean(market) * utils.TradingDaysPerYear
	portfolioAnnual := utils.Mean(portfolio) * utils.TradingDaysPerYear
	m.Alpha = portfolioAnnual - (in.RiskFreeRate + m.Beta*(marketAnnual-in.RiskFreeRate))
}

// HistoricalVaR returns VaR and CVaR in currency units. The tail index is
// floor(N * (1 - confidence)); CVaR averages the tail up to and including it.
func HistoricalVaR(returns []float64, confidence, portfolioValue float64) (valueAtRisk, cvar float64) {
	if len(returns) == 0 {
		return 0, 0
	}

	sorted := utils.SortedCopy(returns)
	idx := VaRIndex(len(sorted), confidence)

	valueAtRisk = math.Abs(sorted[idx]) * portfolioValue
	cvar = math.Abs(utils.Mean(sorted[:idx+1])) * portfolioValue
	return valueAtRisk, cvar
}

// VaRIndex is floor(n * (1 - confidence)) bounded to the slice.
func VaRIndex(n int, confidence float64) int {
	// Small epsilon so 100 * (1 - 0.95) lands on 5, not 4.
	idx := int(math.Floor(float64(n)*(1-confidence) + 1e-9))
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// CountVaRViolations counts periods whose loss exceeded the VaR fraction.
func CountVaRViolations(returns []float64, varPercent float64) int {
	if varPercent <= 0 {
		return 0
	}
	count := 0
	for _, r := range returns {
		if r < -varPercent {
			count++
		}
	}
	return count
}

// RiskScore combines normalized volatility, VaR, drawdown and an inverse
// Sharpe penalty into a 0-100 score.
func RiskScore(annualVol, varPercent, maxDrawdown, sharpe float64) float64 {
	score := math.Min(annualVol/volatilityCap, 1) * volatilityWeight
	score += math.Min(varPercent/varCap, 1) * varWeight
	score += math.Min(maxDrawdown/drawdownCap, 1) * drawdownWeight
	score += utils.Clamp((sharpeTarget-sharpe)/sharpeTarget, 0, 1) * sharpeWeight
	return utils.Clamp(score, 0, 100)
}

// ClassifyRisk maps a score to its level
func ClassifyRisk(score float64) types.RiskLevel {
	switch {
	case score < 25:
		return types.RiskLevelLow
	case score < 50:
		return types.RiskLevelMedium
	case score < 75:
		return types.RiskLevelHigh
	default:
		return types.RiskLevelExtreme
	}
}

// AverageCorrelation is the mean of the off-diagonal entries of a
// correlation matrix restricted to symbols.
func AverageCorrelation(symbols []string, matrix map[string]map[string]float64) (float64, bool) {
	var sum float64
	var count int
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			row, ok := matrix[symbols[i]]
			if !ok {
				continue
			}
			v, ok := row[symbols[j]]
			if !ok {
				continue
			}
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func currentDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	for _, v := range equity {
		if v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return 0
	}
	return (peak - equity[len(equity)-1]) / peak
}

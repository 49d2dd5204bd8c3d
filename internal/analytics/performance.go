// Package analytics provides trade performance statistics.
package analytics

import (
	"math"

	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/atlas-desktop/papertrade-engine/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultReferenceCapital normalizes P&L into returns for the Sharpe ratio.
const DefaultReferenceCapital = 10000.0

// PerformanceCalculator derives statistics from realized P&L
type PerformanceCalculator struct {
	logger           *zap.Logger
	referenceCapital float64
}

// NewPerformanceCalculator creates a calculator. A non-positive reference
// capital falls back to DefaultReferenceCapital.
func NewPerformanceCalculator(logger *zap.Logger, referenceCapital float64) *PerformanceCalculator {
	if referenceCapital <= 0 {
		referenceCapital = DefaultReferenceCapital
	}
	return &PerformanceCalculator{
		logger:           logger.Named("performance"),
		referenceCapital: referenceCapital,
	}
}

// ComputeDecimals is Compute over decimal P&L values
func (pc *PerformanceCalculator) ComputeDecimals(pnls []decimal.Decimal) *types.PerformanceStats {
	values := make([]float64, len(pnls))
	for i, p := range pnls {
		values[i] = p.InexactFloat64()
	}
	return pc.Compute(values)
}

// Compute calculates statistics from realized P&L ordered oldest to newest.
// An empty sequence yields all-zero stats.
func (pc *PerformanceCalculator) Compute(pnls []float64) *types.PerformanceStats {
	stats := &types.PerformanceStats{CurrentStreakType: types.StreakNone}
	if len(pnls) == 0 {
		return stats
	}

	var grossProfit, grossLoss float64
	stats.BestTrade = pnls[0]
	stats.WorstTrade = pnls[0]

	for _, pnl := range pnls {
		stats.TotalPnL += pnl
		switch {
		case pnl > 0:
			stats.WinningTrades++
			grossProfit += pnl
		case pnl < 0:
			stats.LosingTrades++
			grossLoss += pnl
		}
		if pnl > stats.BestTrade {
			stats.BestTrade = pnl
		}
		if pnl < stats.WorstTrade {
			stats.WorstTrade = pnl
		}
	}

	stats.TotalTrades = len(pnls)
	stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100

	if stats.WinningTrades > 0 {
		stats.AverageWin = grossProfit / float64(stats.WinningTrades)
	}
	// Average loss keeps its negative sign.
	if stats.LosingTrades > 0 {
		stats.AverageLoss = grossLoss / float64(stats.LosingTrades)
	}
	if grossLoss != 0 {
		stats.ProfitFactor = grossProfit / math.Abs(grossLoss)
	}

	stats.CurrentStreak, stats.CurrentStreakType = currentStreak(pnls)
	stats.LongestWinStreak, stats.LongestLossStreak = longestStreaks(pnls)
	stats.SharpeRatio = pc.sharpe(pnls)
	stats.MaxDrawdown = maxDrawdownPercent(pnls)

	return stats
}

// currentStreak walks back from the newest trade and counts results with the
// same sign. A zero result ends the streak.
func currentStreak(pnls []float64) (int, types.StreakType) {
	last := pnls[len(pnls)-1]
	if last == 0 {
		return 0, types.StreakNone
	}

	positive := last > 0
	count := 0
	for i := len(pnls) - 1; i >= 0; i-- {
		pnl := pnls[i]
		if pnl == 0 || (pnl > 0) != positive {
			break
		}
		count++
	}

	if positive {
		return count, types.StreakWin
	}
	return count, types.StreakLoss
}

// longestStreaks scans forward once. A zero result extends neither streak
// and resets neither counter.
func longestStreaks(pnls []float64) (longestWin, longestLoss int) {
	var win, loss int
	for _, pnl := range pnls {
		switch {
		case pnl > 0:
			win++
			loss = 0
			if win > longestWin {
				longestWin = win
			}
		case pnl < 0:
			loss++
			win = 0
			if loss > longestLoss {
				longestLoss = loss
			}
		}
	}
	return longestWin, longestLoss
}

func (pc *PerformanceCalculator) sharpe(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}

	returns := make([]float64, len(pnls))
	for i, pnl := range pnls {
		returns[i] = pnl / pc.referenceCapital
	}

	stdDev := utils.StdDev(returns)
	if stdDev == 0 {
		return 0
	}
	return utils.Mean(returns) / stdDev * math.Sqrt(utils.TradingDaysPerYear)
}

// maxDrawdownPercent tracks cumulative P&L against its running peak. The peak
// starts at zero and steps with a zero peak contribute nothing.
func maxDrawdownPercent(pnls []float64) float64 {
	var running, peak, maxDD float64
	for _, pnl := range pnls {
		running += pnl
		if running > peak {
			peak = running
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - running) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

package analytics_test

import (
	"math"
	"testing"

	"github.com/atlas-desktop/papertrade-engine/internal/analytics"
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newCalc() *analytics.PerformanceCalculator {
	return analytics.NewPerformanceCalculator(zap.NewNop(), 0)
}

func TestComputeEmpty(t *testing.T) {
	stats := newCalc().Compute(nil)

	assert.Equal(t, &types.PerformanceStats{CurrentStreakType: types.StreakNone}, stats)
}

func TestComputeBasics(t *testing.T) {
	stats := newCalc().Compute([]float64{100, -50, 200, -25, 75})

	assert.Equal(t, 5, stats.TotalTrades)
	assert.Equal(t, 3, stats.WinningTrades)
	assert.Equal(t, 2, stats.LosingTrades)
	assert.InDelta(t, 300, stats.TotalPnL, 1e-9)
	assert.InDelta(t, 60, stats.WinRate, 1e-9)
	assert.InDelta(t, 125, stats.AverageWin, 1e-9)
	assert.InDelta(t, -37.5, stats.AverageLoss, 1e-9)
	assert.InDelta(t, 375.0/75.0, stats.ProfitFactor, 1e-9)
	assert.Equal(t, 200.0, stats.BestTrade)
	assert.Equal(t, -50.0, stats.WorstTrade)
	assert.Equal(t, 1, stats.CurrentStreak)
	assert.Equal(t, types.StreakWin, stats.CurrentStreakType)
}

func TestProfitFactorWithoutLosses(t *testing.T) {
	stats := newCalc().Compute([]float64{10, 20})
	assert.Zero(t, stats.ProfitFactor)
	assert.InDelta(t, 100, stats.WinRate, 1e-9)
}

func TestMaxDrawdownFromPeak(t *testing.T) {
	// Running P&L 100, -50, 0 against a peak of 100.
	stats := newCalc().Compute([]float64{100, -150, 50})
	assert.InDelta(t, 150, stats.MaxDrawdown, 1e-9)
}

func TestMaxDrawdownIgnoresZeroPeak(t *testing.T) {
	stats := newCalc().Compute([]float64{-100, -50})
	assert.Zero(t, stats.MaxDrawdown)
}

func TestStreaks(t *testing.T) {
	tests := []struct {
		name        string
		pnls        []float64
		current     int
		currentType types.StreakType
		longestWin  int
		longestLoss int
	}{
		{"trailing losses", []float64{10, 10, 10, -5, -5}, 2, types.StreakLoss, 3, 2},
		{"zero ends current streak", []float64{10, 10, 0}, 0, types.StreakNone, 2, 0},
		{"zero stops backward walk", []float64{10, 0, 10, 10}, 2, types.StreakWin, 3, 0},
		{"sign flip resets", []float64{-1, -1, -1, 5, -1}, 1, types.StreakLoss, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := newCalc().Compute(tt.pnls)
			assert.Equal(t, tt.current, stats.CurrentStreak)
			assert.Equal(t, tt.currentType, stats.CurrentStreakType)
			assert.Equal(t, tt.longestWin, stats.LongestWinStreak)
			assert.Equal(t, tt.longestLoss, stats.LongestLossStreak)
		})
	}
}

func TestSharpeRatio(t *testing.T) {
	calc := analytics.NewPerformanceCalculator(zap.NewNop(), 1000)

	assert.Zero(t, calc.Compute([]float64{50}).SharpeRatio, "single trade")
	assert.Zero(t, calc.Compute([]float64{50, 50, 50}).SharpeRatio, "zero deviation")

	// Returns 0.1 and 0.3: mean 0.2, sample std sqrt(0.02).
	want := 0.2 / math.Sqrt(0.02) * math.Sqrt(252)
	assert.InDelta(t, want, calc.Compute([]float64{100, 300}).SharpeRatio, 1e-9)
}

func TestComputeDecimals(t *testing.T) {
	stats := newCalc().ComputeDecimals([]decimal.Decimal{
		decimal.NewFromFloat(4.5),
		decimal.NewFromFloat(-5.5),
	})
	assert.Equal(t, 2, stats.TotalTrades)
	assert.InDelta(t, -1, stats.TotalPnL, 1e-9)
}

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel classifies an aggregate risk score
type RiskLevel string

const (
	RiskLevelLow     RiskLevel = "LOW"
	RiskLevelMedium  RiskLevel = "MEDIUM"
	RiskLevelHigh    RiskLevel = "HIGH"
	RiskLevelExtreme RiskLevel = "EXTREME"
)

// RiskMetrics is a portfolio-scoped risk snapshot. Snapshots are append-only.
type RiskMetrics struct {
	ID                   string        `gorm:"primaryKey;size:64" json:"id"`
	PortfolioID          string        `gorm:"index;not null;size:64" json:"portfolioId"`
	PortfolioValue       float64       `json:"portfolioValue"`
	ConfidenceLevel      float64       `json:"confidenceLevel"`
	Observations         int           `json:"observations"`
	VaR                  float64       `gorm:"column:var" json:"var"`
	CVaR                 float64       `gorm:"column:cvar" json:"cvar"`
	VaRPercent           float64       `gorm:"column:var_percent" json:"varPercent"`
	Volatility           float64       `json:"volatility"`
	AnnualizedVolatility float64       `json:"annualizedVolatility"`
	DownsideVolatility   float64       `json:"downsideVolatility"`
	AnnualizedReturn     float64       `json:"annualizedReturn"`
	RiskFreeRate         float64       `json:"riskFreeRate"`
	SharpeRatio          float64       `json:"sharpeRatio"`
	SortinoRatio         float64       `json:"sortinoRatio"`
	CalmarRatio          float64       `json:"calmarRatio"`
	TreynorRatio         float64       `json:"treynorRatio"`
	Beta                 float64       `json:"beta"`
	Alpha                float64       `json:"alpha"`
	Correlation          float64       `json:"correlation"`
	MaxDrawdown          float64       `json:"maxDrawdown"`
	CurrentDrawdown      float64       `json:"currentDrawdown"`
	VaRViolations        int           `gorm:"column:var_violations" json:"varViolations"`
	RiskScore            float64       `json:"riskScore"`
	RiskLevel            RiskLevel     `gorm:"size:16" json:"riskLevel"`
	CalculatedAt         time.Time     `gorm:"index" json:"calculatedAt"`
	Degraded             []Degradation `gorm:"-" json:"degraded,omitempty"`
}

// TableName overrides the gorm table name
func (RiskMetrics) TableName() string {
	return "risk_snapshots"
}

// StressScenario is a named market shock
type StressScenario struct {
	Name                 string             `json:"name" validate:"required"`
	MarketChangePercent  float64            `json:"marketChangePercent" validate:"gte=-100"`
	VolatilityMultiplier float64            `json:"volatilityMultiplier" validate:"gte=0"`
	AssetShocks          map[string]float64 `json:"assetShocks,omitempty"`
}

// AssetImpact is the effect of a scenario on one holding
type AssetImpact struct {
	Symbol         string          `json:"symbol"`
	CurrentPrice   decimal.Decimal `json:"currentPrice"`
	StressedPrice  decimal.Decimal `json:"stressedPrice"`
	CurrentValue   decimal.Decimal `json:"currentValue"`
	StressedValue  decimal.Decimal `json:"stressedValue"`
	Loss           decimal.Decimal `json:"loss"`
	LossPercentage float64         `json:"lossPercentage"`
}

// StressedMetrics are the risk measures under a scenario
type StressedMetrics struct {
	PortfolioValue float64 `json:"portfolioValue"`
	Volatility     float64 `json:"volatility"`
	VaR            float64 `json:"var"`
	MaxDrawdown    float64 `json:"maxDrawdown"`
}

// StressTestResult is the outcome of one scenario. Not persisted.
type StressTestResult struct {
	ScenarioName    string          `json:"scenarioName"`
	PortfolioValue  decimal.Decimal `json:"portfolioValue"`
	PortfolioLoss   decimal.Decimal `json:"portfolioLoss"`
	LossPercentage  float64         `json:"lossPercentage"`
	AssetImpacts    []AssetImpact   `json:"assetImpacts"`
	StressedMetrics StressedMetrics `json:"stressedMetrics"`
	Severity        RiskLevel       `json:"severity"`
}

// TimeHorizon is a named simulation horizon
type TimeHorizon string

const (
	Horizon1D TimeHorizon = "1D"
	Horizon1W TimeHorizon = "1W"
	Horizon1M TimeHorizon = "1M"
	Horizon3M TimeHorizon = "3M"
	Horizon6M TimeHorizon = "6M"
	Horizon1Y TimeHorizon = "1Y"
)

// Days returns the number of trading days in the horizon
func (h TimeHorizon) Days() int {
	switch h {
	case Horizon1D:
		return 1
	case Horizon1W:
		return 5
	case Horizon1M:
		return 21
	case Horizon3M:
		return 63
	case Horizon6M:
		return 126
	case Horizon1Y:
		return 252
	default:
		return 0
	}
}

// MonteCarloRequest are the parameters of a simulation
type MonteCarloRequest struct {
	NumberOfSimulations int         `json:"numberOfSimulations" validate:"gte=0,lte=100000"`
	TimeHorizon         TimeHorizon `json:"timeHorizon" validate:"omitempty,oneof=1D 1W 1M 3M 6M 1Y"`
	Days                int         `json:"days,omitempty" validate:"gte=0,lte=2520"`
	Seed                int64       `json:"seed,omitempty"`
}

// MonteCarloSimulation holds the request and the terminal value distribution
type MonteCarloSimulation struct {
	PortfolioID       string            `json:"portfolioId,omitempty"`
	Request           MonteCarloRequest `json:"request"`
	Days              int               `json:"days"`
	StartingValue     float64           `json:"startingValue"`
	DailyMean         float64           `json:"dailyMean"`
	DailyStdDev       float64           `json:"dailyStdDev"`
	Percentiles       map[int]float64   `json:"percentiles"`
	ExpectedValue     float64           `json:"expectedValue"`
	ProbabilityOfLoss float64           `json:"probabilityOfLoss"`
	BestCase          float64           `json:"bestCase"`
	WorstCase         float64           `json:"worstCase"`
	MostLikelyCase    float64           `json:"mostLikelyCase"`
	SamplePaths       [][]float64       `json:"samplePaths"`
	CompletedAt       time.Time         `json:"completedAt"`
	Degraded          []Degradation     `json:"degraded,omitempty"`
}

// AssetLiquidity is the liquidity profile of one holding
type AssetLiquidity struct {
	Symbol             string  `json:"symbol"`
	Value              float64 `json:"value"`
	AverageDailyVolume float64 `json:"averageDailyVolume"`
	DaysToLiquidate    float64 `json:"daysToLiquidate"`
	LiquidityScore     float64 `json:"liquidityScore"`
	MarketImpact       float64 `json:"marketImpact"`
}

// LiquidityBuckets partitions portfolio value by time to liquidate
type LiquidityBuckets struct {
	Immediate  float64 `json:"immediate"`
	WithinDay  float64 `json:"withinDay"`
	WithinWeek float64 `json:"withinWeek"`
	Illiquid   float64 `json:"illiquid"`
}

// LiquidityRisk is the liquidity profile of a portfolio
type LiquidityRisk struct {
	PortfolioID             string           `json:"portfolioId,omitempty"`
	TotalValue              float64          `json:"totalValue"`
	LiquidityScore          float64          `json:"liquidityScore"`
	DaysToLiquidate         float64          `json:"daysToLiquidate"`
	MarketImpact            float64          `json:"marketImpact"`
	Buckets                 LiquidityBuckets `json:"buckets"`
	StressedDaysToLiquidate float64          `json:"stressedDaysToLiquidate"`
	StressedLiquidityScore  float64          `json:"stressedLiquidityScore"`
	Assets                  []AssetLiquidity `json:"assets"`
	CalculatedAt            time.Time        `json:"calculatedAt"`
	Degraded                []Degradation    `json:"degraded,omitempty"`
}

// StreakType identifies the sign of a run of trades
type StreakType string

const (
	StreakNone StreakType = "none"
	StreakWin  StreakType = "win"
	StreakLoss StreakType = "loss"
)

// PerformanceStats summarizes a sequence of realized P&L values
type PerformanceStats struct {
	TotalTrades       int        `json:"totalTrades"`
	WinningTrades     int        `json:"winningTrades"`
	LosingTrades      int        `json:"losingTrades"`
	TotalPnL          float64    `json:"totalPnl"`
	WinRate           float64    `json:"winRate"`
	AverageWin        float64    `json:"averageWin"`
	AverageLoss       float64    `json:"averageLoss"`
	ProfitFactor      float64    `json:"profitFactor"`
	BestTrade         float64    `json:"bestTrade"`
	WorstTrade        float64    `json:"worstTrade"`
	CurrentStreak     int        `json:"currentStreak"`
	CurrentStreakType StreakType `json:"currentStreakType"`
	LongestWinStreak  int        `json:"longestWinStreak"`
	LongestLossStreak int        `json:"longestLossStreak"`
	SharpeRatio       float64    `json:"sharpeRatio"`
	MaxDrawdown       float64    `json:"maxDrawdown"`
}

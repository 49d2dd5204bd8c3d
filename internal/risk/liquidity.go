package risk

import (
	"math"
	"strings"

	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/atlas-desktop/papertrade-engine/pkg/utils"
)

// LiquidityParams tune the liquidity model
type LiquidityParams struct {
	// ParticipationRate is the share of daily volume that can be traded
	// without excessive impact.
	ParticipationRate float64 `mapstructure:"participation_rate"`
	// StressedVolumeFactor scales volumes in the stressed estimate.
	StressedVolumeFactor float64 `mapstructure:"stressed_volume_factor"`
	// DefaultDailyVolatility is used for market impact when none is known.
	DefaultDailyVolatility float64 `mapstructure:"default_daily_volatility"`
	// IlliquidDays is reported for holdings without volume data.
	IlliquidDays float64 `mapstructure:"illiquid_days"`
}

// DefaultLiquidityParams returns the standard liquidity model
func DefaultLiquidityParams() LiquidityParams {
	return LiquidityParams{
		ParticipationRate:      0.10,
		StressedVolumeFactor:   0.5,
		DefaultDailyVolatility: 0.02,
		IlliquidDays:           365,
	}
}

// Liquidity estimates how quickly holdings could be sold. volumes are
// average daily traded notional per symbol; volatilities are daily and
// optional. Holdings without volume are treated as illiquid and reported
// as a degradation.
func Liquidity(holdings []types.Holding, volumes, volatilities map[string]float64, params LiquidityParams) *types.LiquidityRisk {
	res := &types.LiquidityRisk{Assets: make([]types.AssetLiquidity, 0, len(holdings))}
	var missing []string

	var weightedScore, weightedStressed, weightedImpact float64
	for _, h := range holdings {
		value := h.Value().InexactFloat64()
		adv := volumes[h.Symbol]

		asset := types.AssetLiquidity{
			Symbol:             h.Symbol,
			Value:              value,
			AverageDailyVolume: adv,
		}

		var stressedDays float64
		if adv > 0 {
			asset.DaysToLiquidate = DaysToLiquidate(value, adv, params.ParticipationRate)
			stressedDays = DaysToLiquidate(value, adv*params.StressedVolumeFactor, params.ParticipationRate)

			sigma, ok := volatilities[h.Symbol]
			if !ok || sigma <= 0 {
				sigma = params.DefaultDailyVolatility
			}
			asset.MarketImpact = sigma * math.Sqrt(value/adv)
		} else {
			missing = append(missing, h.Symbol)
			asset.DaysToLiquidate = params.IlliquidDays
			stressedDays = params.IlliquidDays
		}
		asset.LiquidityScore = LiquidityScore(asset.DaysToLiquidate)

		res.TotalValue += value
		weightedScore += asset.LiquidityScore * value
		weightedStressed += LiquidityScore(stressedDays) * value
		weightedImpact += asset.MarketImpact * value
		res.DaysToLiquidate = math.Max(res.DaysToLiquidate, asset.DaysToLiquidate)
		res.StressedDaysToLiquidate = math.Max(res.StressedDaysToLiquidate, stressedDays)

		switch {
		case asset.DaysToLiquidate < 0.1:
			res.Buckets.Immediate += value
		case asset.DaysToLiquidate <= 1:
			res.Buckets.WithinDay += value
		case asset.DaysToLiquidate <= 7:
			res.Buckets.WithinWeek += value
		default:
			res.Buckets.Illiquid += value
		}

		res.Assets = append(res.Assets, asset)
	}

	if res.TotalValue > 0 {
		res.LiquidityScore = weightedScore / res.TotalValue
		res.StressedLiquidityScore = weightedStressed / res.TotalValue
		res.MarketImpact = weightedImpact / res.TotalValue
	}
	if len(missing) > 0 {
		res.Degraded = append(res.Degraded, types.Degradation{
			Component: DegradedVolume,
			Reason:    "no volume data for " + strings.Join(missing, ", "),
		})
	}
	return res
}

// DaysToLiquidate is value / (adv * participation)
func DaysToLiquidate(value, adv, participation float64) float64 {
	if adv <= 0 || participation <= 0 {
		return math.Inf(1)
	}
	return value / (adv * participation)
}

// LiquidityScore maps days to liquidate onto 0-100
func LiquidityScore(days float64) float64 {
	return utils.Clamp(100-days*10, 0, 100)
}

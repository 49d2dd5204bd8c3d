// Package marketdata provides the optional market data used by risk
// analytics: risk-free rate, benchmark returns, correlations, volatility
// and traded volume.
package marketdata

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when a provider has no data for a request
var ErrUnavailable = errors.New("market data unavailable")

// Provider supplies market data. Every method may fail; callers fall back
// to defaults and record a degradation.
type Provider interface {
	// RiskFreeRate returns the annual risk-free rate as a fraction.
	RiskFreeRate(ctx context.Context) (float64, error)
	// MarketReturns returns the benchmark's daily returns, oldest first.
	MarketReturns(ctx context.Context, days int) ([]float64, error)
	// Correlations returns a symmetric correlation matrix for symbols.
	Correlations(ctx context.Context, symbols []string) (map[string]map[string]float64, error)
	// Volatility returns daily volatility per symbol.
	Volatility(ctx context.Context, symbols []string) (map[string]float64, error)
	// Volume returns average daily traded notional per symbol.
	Volume(ctx context.Context, symbols []string) (map[string]float64, error)
}

// StaticConfig holds fixed market data, typically from configuration
type StaticConfig struct {
	RiskFreeRate  float64                       `mapstructure:"risk_free_rate"`
	MarketReturns []float64                     `mapstructure:"market_returns"`
	Correlations  map[string]map[string]float64 `mapstructure:"correlations"`
	Volatility    map[string]float64            `mapstructure:"volatility"`
	Volume        map[string]float64            `mapstructure:"volume"`
}

// StaticProvider serves data from a StaticConfig. Symbols it does not know
// are omitted from the returned maps.
type StaticProvider struct {
	cfg StaticConfig
}

// NewStaticProvider creates a static provider
func NewStaticProvider(cfg StaticConfig) *StaticProvider {
	return &StaticProvider{cfg: cfg}
}

func (p *StaticProvider) RiskFreeRate(context.Context) (float64, error) {
	return p.cfg.RiskFreeRate, nil
}

func (p *StaticProvider) MarketReturns(_ context.Context, days int) ([]float64, error) {
	returns := p.cfg.MarketReturns
	if len(returns) == 0 {
		return nil, ErrUnavailable
	}
	if days > 0 && days < len(returns) {
		returns = returns[len(returns)-days:]
	}
	out := make([]float64, len(returns))
	copy(out, returns)
	return out, nil
}

func (p *StaticProvider) Correlations(_ context.Context, symbols []string) (map[string]map[string]float64, error) {
	if len(p.cfg.Correlations) == 0 {
		return nil, ErrUnavailable
	}
	out := make(map[string]map[string]float64, len(symbols))
	for _, a := range symbols {
		row := make(map[string]float64, len(symbols))
		for _, b := range symbols {
			if a == b {
				row[b] = 1
				continue
			}
			if v, ok := lookupPair(p.cfg.Correlations, a, b); ok {
				row[b] = v
			}
		}
		out[a] = row
	}
	return out, nil
}

func (p *StaticProvider) Volatility(_ context.Context, symbols []string) (map[string]float64, error) {
	return pick(p.cfg.Volatility, symbols)
}

func (p *StaticProvider) Volume(_ context.Context, symbols []string) (map[string]float64, error) {
	return pick(p.cfg.Volume, symbols)
}

func pick(src map[string]float64, symbols []string) (map[string]float64, error) {
	if len(src) == 0 {
		return nil, ErrUnavailable
	}
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		if v, ok := src[s]; ok {
			out[s] = v
		}
	}
	return out, nil
}

func lookupPair(m map[string]map[string]float64, a, b string) (float64, bool) {
	if row, ok := m[a]; ok {
		if v, ok := row[b]; ok {
			return v, true
		}
	}
	if row, ok := m[b]; ok {
		if v, ok := row[a]; ok {
			return v, true
		}
	}
	return 0, false
}

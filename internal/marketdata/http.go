package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPConfig configures the HTTP provider
type HTTPConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	APIKey  string        `mapstructure:"api_key"`
}

// HTTPProvider fetches market data from a JSON HTTP service
type HTTPProvider struct {
	logger *zap.Logger
	client *resty.Client
}

type rateResponse struct {
	Rate float64 `json:"rate"`
}

type returnsResponse struct {
	Returns []float64 `json:"returns"`
}

type correlationsResponse struct {
	Correlations map[string]map[string]float64 `json:"correlations"`
}

type valuesResponse struct {
	Values map[string]float64 `json:"values"`
}

// NewHTTPProvider creates an HTTP provider
func NewHTTPProvider(logger *zap.Logger, cfg HTTPConfig) *HTTPProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &HTTPProvider{
		logger: logger.Named("marketdata-http"),
		client: client,
	}
}

func (p *HTTPProvider) RiskFreeRate(ctx context.Context) (float64, error) {
	var out rateResponse
	if err := p.get(ctx, "/risk-free-rate", nil, &out); err != nil {
		return 0, err
	}
	return out.Rate, nil
}

func (p *HTTPProvider) MarketReturns(ctx context.Context, days int) ([]float64, error) {
	var out returnsResponse
	params := map[string]string{"days": strconv.Itoa(days)}
	if err := p.get(ctx, "/market/returns", params, &out); err != nil {
		return nil, err
	}
	if len(out.Returns) == 0 {
		return nil, ErrUnavailable
	}
	return out.Returns, nil
}

func (p *HTTPProvider) Correlations(ctx context.Context, symbols []string) (map[string]map[string]float64, error) {
	var out correlationsResponse
	if err := p.get(ctx, "/correlations", symbolParams(symbols), &out); err != nil {
		return nil, err
	}
	return out.Correlations, nil
}

func (p *HTTPProvider) Volatility(ctx context.Context, symbols []string) (map[string]float64, error) {
	var out valuesResponse
	if err := p.get(ctx, "/volatility", symbolParams(symbols), &out); err != nil {
		return nil, err
	}
	return out.Values, nil
}

func (p *HTTPProvider) Volume(ctx context.Context, symbols []string) (map[string]float64, error) {
	var out valuesResponse
	if err := p.get(ctx, "/volume", symbolParams(symbols), &out); err != nil {
		return nil, err
	}
	return out.Values, nil
}

func (p *HTTPProvider) get(ctx context.Context, endpoint string, params map[string]string, result interface{}) error {
	req := p.client.R().SetContext(ctx).SetResult(result)
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		p.logger.Warn("market data request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return fmt.Errorf("get %s: %w", endpoint, err)
	}
	if resp.IsError() {
		p.logger.Warn("market data request rejected",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode()),
		)
		return fmt.Errorf("get %s: status %d: %w", endpoint, resp.StatusCode(), ErrUnavailable)
	}
	return nil
}

func symbolParams(symbols []string) map[string]string {
	return map[string]string{"symbols": strings.Join(symbols, ",")}
}

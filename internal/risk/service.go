package risk

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/atlas-desktop/papertrade-engine/internal/marketdata"
	"github.com/atlas-desktop/papertrade-engine/internal/metrics"
	"github.com/atlas-desktop/papertrade-engine/internal/montecarlo"
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/atlas-desktop/papertrade-engine/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PortfolioStore is the storage collaborator for portfolios and holdings
type PortfolioStore interface {
	FindByID(ctx context.Context, id string) (*types.Portfolio, error)
	FindHoldings(ctx context.Context, portfolioID string) ([]types.Holding, error)
	GetReturns(ctx context.Context, portfolioID string, horizonDays int) ([]float64, error)
	GetHistoricalValues(ctx context.Context, portfolioID string, start, end time.Time) ([]types.PortfolioValuePoint, error)
}

// SnapshotStore persists risk snapshots. Snapshots are never updated.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, m *types.RiskMetrics) error
	ListSnapshots(ctx context.Context, portfolioID string, limit int) ([]*types.RiskMetrics, error)
}

// SnapshotCache keeps the latest snapshot per portfolio
type SnapshotCache interface {
	Get(portfolioID string) (*types.RiskMetrics, bool)
	Set(portfolioID string, m *types.RiskMetrics)
}

// Config configures the risk service
type Config struct {
	ConfidenceLevel     float64         `mapstructure:"confidence_level"`
	DefaultRiskFreeRate float64         `mapstructure:"default_risk_free_rate"`
	LookbackDays        int             `mapstructure:"lookback_days"`
	Liquidity           LiquidityParams `mapstructure:"liquidity"`
}

// DefaultConfig returns default risk configuration
func DefaultConfig() Config {
	return Config{
		ConfidenceLevel:     0.95,
		DefaultRiskFreeRate: 0.02,
		LookbackDays:        252,
		Liquidity:           DefaultLiquidityParams(),
	}
}

// Service runs risk analytics for stored portfolios
type Service struct {
	logger     *zap.Logger
	config     Config
	portfolios PortfolioStore
	snapshots  SnapshotStore
	cache      SnapshotCache
	provider   marketdata.Provider
	calculator *Calculator
	simulator  *montecarlo.Simulator
	metrics    *metrics.Metrics
	now        func() time.Time
}

// ServiceOption customizes a Service
type ServiceOption func(*Service)

// WithProvider sets the optional market data provider
func WithProvider(p marketdata.Provider) ServiceOption {
	return func(s *Service) { s.provider = p }
}

// WithSnapshotCache sets the latest-snapshot cache
func WithSnapshotCache(c SnapshotCache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithMetrics records service metrics on m
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the service clock
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a risk service
func NewService(logger *zap.Logger, config Config, portfolios PortfolioStore, snapshots SnapshotStore, simulator *montecarlo.Simulator, opts ...ServiceOption) *Service {
	def := DefaultConfig()
	if config.ConfidenceLevel <= 0 || config.ConfidenceLevel >= 1 {
		config.ConfidenceLevel = def.ConfidenceLevel
	}
	if config.LookbackDays <= 0 {
		config.LookbackDays = def.LookbackDays
	}
	if config.Liquidity.ParticipationRate <= 0 {
		config.Liquidity = def.Liquidity
	}

	s := &Service{
		logger:     logger.Named("risk-service"),
		config:     config,
		portfolios: portfolios,
		snapshots:  snapshots,
		calculator: NewCalculator(logger),
		simulator:  simulator,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RiskRequest parameterizes a risk calculation
type RiskRequest struct {
	ConfidenceLevel float64
	LookbackDays    int
}

type portfolioData struct {
	portfolio *types.Portfolio
	holdings  []types.Holding
	symbols   []string
	value     float64
}

func (s *Service) load(ctx context.Context, portfolioID string) (*portfolioData, error) {
	p, err := s.portfolios.FindByID(ctx, portfolioID)
	if err != nil {
		return nil, s.storeError("find portfolio", err)
	}
	holdings, err := s.portfolios.FindHoldings(ctx, portfolioID)
	if err != nil {
		return nil, s.storeError("find holdings", err)
	}

	data := &portfolioData{portfolio: p, holdings: holdings}
	seen := make(map[string]struct{}, len(holdings))
	for _, h := range holdings {
		data.value += h.Value().InexactFloat64()
		if _, ok := seen[h.Symbol]; !ok {
			seen[h.Symbol] = struct{}{}
			data.symbols = append(data.symbols, h.Symbol)
		}
	}
	sort.Strings(data.symbols)
	return data, nil
}

// storeError passes validation and not-found errors through and hides
// everything else behind an OperationError.
func (s *Service) storeError(op string, err error) error {
	if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrInvalidInput) {
		return err
	}
	opErr := types.NewOperationError(op, err)
	s.logger.Error("risk store failure", zap.String("cause", opErr.Cause()), zap.Error(err))
	return opErr
}

func (s *Service) degrade(list *[]types.Degradation, component string, err error) {
	s.metrics.Degraded(component)
	s.logger.Warn("degraded", zap.String("component", component), zap.Error(err))
	*list = append(*list, types.Degradation{Component: component, Reason: "provider data unavailable"})
}

// CalculatePortfolioRisk computes and records a fresh risk snapshot.
// Provider failures fall back to defaults; a failed snapshot write is
// reported in Degraded and never fails the calculation.
func (s *Service) CalculatePortfolioRisk(ctx context.Context, portfolioID string, req RiskRequest) (m *types.RiskMetrics, err error) {
	defer func() { s.metrics.RiskCalculation("risk", err) }()

	confidence := req.ConfidenceLevel
	if confidence == 0 {
		confidence = s.config.ConfidenceLevel
	}
	lookback := req.LookbackDays
	if lookback <= 0 {
		lookback = s.config.LookbackDays
	}

	data, err := s.load(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	returns, err := s.portfolios.GetReturns(ctx, portfolioID, lookback)
	if err != nil {
		return nil, s.storeError("get returns", err)
	}

	var degraded []types.Degradation
	in := Inputs{
		PortfolioValue:  data.value,
		Returns:         returns,
		ConfidenceLevel: confidence,
		RiskFreeRate:    s.config.DefaultRiskFreeRate,
	}

	if s.provider != nil {
		if rf, err := s.provider.RiskFreeRate(ctx); err != nil {
			s.degrade(&degraded, DegradedRiskFreeRate, err)
		} else {
			in.RiskFreeRate = rf
		}
		if market, err := s.provider.MarketReturns(ctx, len(returns)); err != nil {
			s.logger.Warn("benchmark returns unavailable", zap.Error(err))
		} else {
			in.MarketReturns = market
		}
	} else {
		degraded = append(degraded, types.Degradation{Component: DegradedRiskFreeRate, Reason: "no market data provider"})
	}

	m, err = s.calculator.Compute(in)
	if err != nil {
		return nil, err
	}
	m.Degraded = append(degraded, m.Degraded...)
	for _, d := range m.Degraded {
		if d.Component == DegradedBenchmark {
			s.metrics.Degraded(DegradedBenchmark)
		}
	}

	if len(data.symbols) > 1 {
		s.applyCorrelation(ctx, m, data.symbols)
	}

	m.ID = uuid.NewString()
	m.PortfolioID = portfolioID
	m.CalculatedAt = s.now().UTC()

	if err := s.snapshots.SaveSnapshot(ctx, m); err != nil {
		s.metrics.Degraded(DegradedPersistence)
		s.logger.Warn("risk snapshot not persisted", zap.String("portfolio", portfolioID), zap.Error(err))
		m.Degraded = append(m.Degraded, types.Degradation{Component: DegradedPersistence, Reason: "snapshot could not be saved"})
	}
	if s.cache != nil {
		s.cache.Set(portfolioID, m)
	}

	s.logger.Info("portfolio risk calculated",
		zap.String("portfolio", portfolioID),
		zap.Float64("var", m.VaR),
		zap.Float64("riskScore", m.RiskScore),
		zap.String("riskLevel", string(m.RiskLevel)),
		zap.Int("degraded", len(m.Degraded)),
	)
	return m, nil
}

func (s *Service) applyCorrelation(ctx context.Context, m *types.RiskMetrics, symbols []string) {
	if s.provider == nil {
		m.Degraded = append(m.Degraded, types.Degradation{Component: DegradedCorrelations, Reason: "no market data provider"})
		return
	}
	matrix, err := s.provider.Correlations(ctx, symbols)
	if err != nil {
		s.degrade(&m.Degraded, DegradedCorrelations, err)
		return
	}
	if avg, ok := AverageCorrelation(symbols, matrix); ok {
		m.Correlation = avg
		return
	}
	m.Degraded = append(m.Degraded, types.Degradation{Component: DegradedCorrelations, Reason: "no pairs in correlation matrix"})
}

// LatestRisk returns the most recent snapshot, from cache when possible.
func (s *Service) LatestRisk(ctx context.Context, portfolioID string) (*types.RiskMetrics, error) {
	if s.cache != nil {
		if m, ok := s.cache.Get(portfolioID); ok {
			return m, nil
		}
	}
	list, err := s.snapshots.ListSnapshots(ctx, portfolioID, 1)
	if err != nil {
		return nil, s.storeError("list snapshots", err)
	}
	if len(list) == 0 {
		return nil, &types.NotFoundError{Entity: "risk snapshot", ID: portfolioID}
	}
	if s.cache != nil {
		s.cache.Set(portfolioID, list[0])
	}
	return list[0], nil
}

// RiskHistory lists stored snapshots, newest first
func (s *Service) RiskHistory(ctx context.Context, portfolioID string, limit int) ([]*types.RiskMetrics, error) {
	if _, err := s.portfolios.FindByID(ctx, portfolioID); err != nil {
		return nil, s.storeError("find portfolio", err)
	}
	list, err := s.snapshots.ListSnapshots(ctx, portfolioID, limit)
	if err != nil {
		return nil, s.storeError("list snapshots", err)
	}
	return list, nil
}

// RunStressTest applies scenarios to the portfolio's holdings. With no
// scenarios the defaults are used. Stressed volatility and VaR scale the
// latest snapshot when one exists.
func (s *Service) RunStressTest(ctx context.Context, portfolioID string, scenarios []types.StressScenario) (results []types.StressTestResult, err error) {
	defer func() { s.metrics.RiskCalculation("stress", err) }()

	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	for _, sc := range scenarios {
		if sc.Name == "" {
			return nil, &types.ValidationError{Field: "name", Reason: "scenario name is required"}
		}
		if sc.MarketChangePercent < -100 {
			return nil, &types.ValidationError{Field: "marketChangePercent", Reason: "must be at least -100"}
		}
		if sc.VolatilityMultiplier < 0 {
			return nil, &types.ValidationError{Field: "volatilityMultiplier", Reason: "must not be negative"}
		}
	}

	data, err := s.load(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	var base *types.RiskMetrics
	if latest, err := s.LatestRisk(ctx, portfolioID); err == nil {
		base = latest
	}

	results = StressTest(data.holdings, scenarios, base)
	s.logger.Info("stress test complete",
		zap.String("portfolio", portfolioID),
		zap.Int("scenarios", len(results)),
	)
	return results, nil
}

// SimulateMonteCarlo projects the portfolio value over a horizon. Drift and
// volatility come from the portfolio's return history; without history the
// value-weighted provider volatility is used as a zero-drift proxy.
func (s *Service) SimulateMonteCarlo(ctx context.Context, portfolioID string, req types.MonteCarloRequest) (sim *types.MonteCarloSimulation, err error) {
	defer func() { s.metrics.RiskCalculation("monte_carlo", err) }()

	if req.TimeHorizon == "" && req.Days <= 0 {
		req.TimeHorizon = types.Horizon1M
	}
	days := req.Days
	if days <= 0 {
		days = req.TimeHorizon.Days()
	}
	if days <= 0 {
		return nil, &types.ValidationError{Field: "timeHorizon", Reason: "unknown horizon"}
	}

	data, err := s.load(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if data.value <= 0 {
		return nil, &types.ValidationError{Field: "portfolio", Reason: "portfolio has no value to simulate"}
	}

	returns, err := s.portfolios.GetReturns(ctx, portfolioID, s.config.LookbackDays)
	if err != nil {
		return nil, s.storeError("get returns", err)
	}

	var degraded []types.Degradation
	mean, stdDev := utils.Mean(returns), utils.StdDev(returns)
	if len(returns) < 2 {
		mean = 0
		stdDev = s.volatilityProxy(ctx, data, &degraded)
	}

	start := s.now()
	res, err := s.simulator.Run(ctx, montecarlo.Params{
		StartingValue:     data.value,
		DailyMean:         mean,
		DailyStdDev:       stdDev,
		Days:              days,
		NumSimulations:    req.NumberOfSimulations,
		Seed:              req.Seed,
		HistoricalReturns: returns,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSimulation(s.now().Sub(start))

	req.NumberOfSimulations = res.NumSimulations
	req.Seed = res.Seed
	return &types.MonteCarloSimulation{
		PortfolioID:       portfolioID,
		Request:           req,
		Days:              days,
		StartingValue:     data.value,
		DailyMean:         mean,
		DailyStdDev:       stdDev,
		Percentiles:       res.Terminal.Percentiles,
		ExpectedValue:     res.Terminal.Mean,
		ProbabilityOfLoss: res.ProbabilityOfLoss,
		BestCase:          res.Terminal.Max,
		WorstCase:         res.Terminal.Min,
		MostLikelyCase:    res.Terminal.Median,
		SamplePaths:       res.SamplePaths,
		CompletedAt:       s.now().UTC(),
		Degraded:          degraded,
	}, nil
}

func (s *Service) volatilityProxy(ctx context.Context, data *portfolioData, degraded *[]types.Degradation) float64 {
	fallback := s.config.Liquidity.DefaultDailyVolatility
	*degraded = append(*degraded, types.Degradation{Component: DegradedHistory, Reason: "volatility estimated without return history"})

	if s.provider == nil {
		return fallback
	}
	vols, err := s.provider.Volatility(ctx, data.symbols)
	if err != nil {
		s.degrade(degraded, DegradedVolatility, err)
		return fallback
	}

	var weighted float64
	for _, h := range data.holdings {
		v, ok := vols[h.Symbol]
		if !ok {
			v = fallback
		}
		weighted += v * h.Value().InexactFloat64()
	}
	return weighted / data.value
}

// LiquidityRisk estimates how quickly the portfolio could be liquidated
func (s *Service) LiquidityRisk(ctx context.Context, portfolioID string) (lr *types.LiquidityRisk, err error) {
	defer func() { s.metrics.RiskCalculation("liquidity", err) }()

	data, err := s.load(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	var degraded []types.Degradation
	var volumes, vols map[string]float64
	if s.provider != nil {
		if volumes, err = s.provider.Volume(ctx, data.symbols); err != nil {
			s.degrade(&degraded, DegradedVolume, err)
		}
		if vols, err = s.provider.Volatility(ctx, data.symbols); err != nil {
			s.degrade(&degraded, DegradedVolatility, err)
		}
		err = nil
	}

	lr = Liquidity(data.holdings, volumes, vols, s.config.Liquidity)
	lr.PortfolioID = portfolioID
	lr.CalculatedAt = s.now().UTC()
	lr.Degraded = append(degraded, lr.Degraded...)
	return lr, nil
}

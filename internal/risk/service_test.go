package risk_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atlas-desktop/papertrade-engine/internal/cache"
	"github.com/atlas-desktop/papertrade-engine/internal/marketdata"
	"github.com/atlas-desktop/papertrade-engine/internal/montecarlo"
	"github.com/atlas-desktop/papertrade-engine/internal/risk"
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakePortfolios struct {
	holdings map[string][]types.Holding
	returns  map[string][]float64
	err      error
}

func (f *fakePortfolios) FindByID(_ context.Context, id string) (*types.Portfolio, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.holdings[id]; !ok {
		return nil, &types.NotFoundError{Entity: "portfolio", ID: id}
	}
	return &types.Portfolio{ID: id, OwnerID: "u1"}, nil
}

func (f *fakePortfolios) FindHoldings(_ context.Context, id string) ([]types.Holding, error) {
	return f.holdings[id], nil
}

func (f *fakePortfolios) GetReturns(_ context.Context, id string, _ int) ([]float64, error) {
	return f.returns[id], nil
}

func (f *fakePortfolios) GetHistoricalValues(context.Context, string, time.Time, time.Time) ([]types.PortfolioValuePoint, error) {
	return nil, nil
}

type fakeSnapshots struct {
	saved   []*types.RiskMetrics
	saveErr error
}

func (f *fakeSnapshots) SaveSnapshot(_ context.Context, m *types.RiskMetrics) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, m)
	return nil
}

func (f *fakeSnapshots) ListSnapshots(_ context.Context, portfolioID string, limit int) ([]*types.RiskMetrics, error) {
	var out []*types.RiskMetrics
	for i := len(f.saved) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if f.saved[i].PortfolioID == portfolioID {
			out = append(out, f.saved[i])
		}
	}
	return out, nil
}

func serviceFixture(t *testing.T, opts ...risk.ServiceOption) (*risk.Service, *fakePortfolios, *fakeSnapshots) {
	portfolios := &fakePortfolios{
		holdings: map[string][]types.Holding{
			"pf-1":     {holding("AAPL", "10", "100"), holding("MSFT", "5", "200")},
			"pf-empty": {},
		},
		returns: map[string][]float64{
			"pf-1": {0.01, -0.02, 0.015, -0.005, 0.02, -0.01, 0.005},
		},
	}
	snapshots := &fakeSnapshots{}
	logger := zaptest.NewLogger(t)
	sim := montecarlo.NewSimulator(logger, montecarlo.DefaultConfig())
	svc := risk.NewService(logger, risk.DefaultConfig(), portfolios, snapshots, sim, opts...)
	return svc, portfolios, snapshots
}

func staticProvider() marketdata.Provider {
	return marketdata.NewStaticProvider(marketdata.StaticConfig{
		RiskFreeRate:  0.03,
		MarketReturns: []float64{0.005, -0.01, 0.01, -0.002, 0.01, -0.004, 0.003},
		Correlations:  map[string]map[string]float64{"AAPL": {"MSFT": 0.6}},
		Volatility:    map[string]float64{"AAPL": 0, "MSFT": 0},
		Volume:        map[string]float64{"AAPL": 1e7, "MSFT": 1e7},
	})
}

func TestCalculatePortfolioRisk(t *testing.T) {
	snapCache := cache.NewSnapshotCache(cache.DefaultConfig())
	svc, _, snapshots := serviceFixture(t, risk.WithProvider(staticProvider()), risk.WithSnapshotCache(snapCache))

	m, err := svc.CalculatePortfolioRisk(context.Background(), "pf-1", risk.RiskRequest{})
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "pf-1", m.PortfolioID)
	assert.InDelta(t, 2000, m.PortfolioValue, 1e-9)
	assert.Equal(t, 0.95, m.ConfidenceLevel)
	assert.Equal(t, 0.03, m.RiskFreeRate)
	assert.InDelta(t, 0.6, m.Correlation, 1e-12)
	assert.NotEqual(t, 1.0, m.Beta)
	assert.Empty(t, m.Degraded)
	require.Len(t, snapshots.saved, 1)

	cached, ok := snapCache.Get("pf-1")
	require.True(t, ok)
	assert.Equal(t, m.ID, cached.ID)

	latest, err := svc.LatestRisk(context.Background(), "pf-1")
	require.NoError(t, err)
	assert.Equal(t, m.ID, latest.ID)
}

func TestCalculatePortfolioRiskDegradesWithoutProvider(t *testing.T) {
	svc, _, snapshots := serviceFixture(t)
	snapshots.saveErr = errors.New("disk full")

	m, err := svc.CalculatePortfolioRisk(context.Background(), "pf-1", risk.RiskRequest{ConfidenceLevel: 0.99})
	require.NoError(t, err)

	assert.Equal(t, 1.0, m.Beta)
	assert.Zero(t, m.Alpha)
	assert.Equal(t, 0.02, m.RiskFreeRate)

	components := make(map[string]bool)
	for _, d := range m.Degraded {
		components[d.Component] = true
	}
	assert.True(t, components[risk.DegradedRiskFreeRate])
	assert.True(t, components[risk.DegradedBenchmark])
	assert.True(t, components[risk.DegradedCorrelations])
	assert.True(t, components[risk.DegradedPersistence])
}

func TestCalculatePortfolioRiskErrors(t *testing.T) {
	svc, portfolios, _ := serviceFixture(t)

	_, err := svc.CalculatePortfolioRisk(context.Background(), "missing", risk.RiskRequest{})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = svc.CalculatePortfolioRisk(context.Background(), "pf-1", risk.RiskRequest{ConfidenceLevel: 1.5})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	portfolios.err = errors.New("pq: connection refused")
	_, err = svc.CalculatePortfolioRisk(context.Background(), "pf-1", risk.RiskRequest{})
	assert.ErrorIs(t, err, types.ErrOperationFailed)
	assert.NotContains(t, err.Error(), "connection refused")
}

func TestLatestRiskFallsBackToStore(t *testing.T) {
	svc, _, snapshots := serviceFixture(t)

	_, err := svc.LatestRisk(context.Background(), "pf-1")
	assert.ErrorIs(t, err, types.ErrNotFound)

	snapshots.saved = append(snapshots.saved,
		&types.RiskMetrics{ID: "old", PortfolioID: "pf-1"},
		&types.RiskMetrics{ID: "new", PortfolioID: "pf-1"},
	)
	latest, err := svc.LatestRisk(context.Background(), "pf-1")
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)

	history, err := svc.RiskHistory(context.Background(), "pf-1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestRunStressTestDefaults(t *testing.T) {
	svc, _, _ := serviceFixture(t)

	results, err := svc.RunStressTest(context.Background(), "pf-1", nil)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, types.RiskLevelHigh, results[0].Severity)

	_, err = svc.RunStressTest(context.Background(), "pf-1", []types.StressScenario{{Name: ""}})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSimulateMonteCarloFromHistory(t *testing.T) {
	svc, _, _ := serviceFixture(t)

	sim, err := svc.SimulateMonteCarlo(context.Background(), "pf-1", types.MonteCarloRequest{
		NumberOfSimulations: 300,
		TimeHorizon:         types.Horizon1W,
		Seed:                11,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, sim.Days)
	assert.Equal(t, 300, sim.Request.NumberOfSimulations)
	assert.InDelta(t, 2000, sim.StartingValue, 1e-9)
	assert.Len(t, sim.Percentiles, 7)
	assert.LessOrEqual(t, sim.WorstCase, sim.MostLikelyCase)
	assert.LessOrEqual(t, sim.MostLikelyCase, sim.BestCase)
	assert.Len(t, sim.SamplePaths, 100)
}

func TestSimulateMonteCarloProxyVolatility(t *testing.T) {
	svc, portfolios, _ := serviceFixture(t, risk.WithProvider(staticProvider()))
	portfolios.returns["pf-1"] = nil

	sim, err := svc.SimulateMonteCarlo(context.Background(), "pf-1", types.MonteCarloRequest{
		NumberOfSimulations: 50,
		Days:                10,
		Seed:                1,
	})
	require.NoError(t, err)

	// Zero proxy volatility and zero drift keep every path flat.
	assert.Zero(t, sim.DailyStdDev)
	assert.InDelta(t, 2000, sim.BestCase, 1e-9)
	assert.InDelta(t, 2000, sim.WorstCase, 1e-9)
	assert.Zero(t, sim.ProbabilityOfLoss)
	require.Len(t, sim.Degraded, 1)
	assert.Equal(t, risk.DegradedHistory, sim.Degraded[0].Component)
}

func TestSimulateMonteCarloValidation(t *testing.T) {
	svc, _, _ := serviceFixture(t)

	_, err := svc.SimulateMonteCarlo(context.Background(), "pf-1", types.MonteCarloRequest{TimeHorizon: "2Y"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = svc.SimulateMonteCarlo(context.Background(), "pf-empty", types.MonteCarloRequest{})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestLiquidityRiskService(t *testing.T) {
	svc, _, _ := serviceFixture(t, risk.WithProvider(staticProvider()))

	lr, err := svc.LiquidityRisk(context.Background(), "pf-1")
	require.NoError(t, err)
	assert.Equal(t, "pf-1", lr.PortfolioID)
	assert.InDelta(t, 2000, lr.Buckets.Immediate, 1e-9)
	assert.Empty(t, lr.Degraded)

	svc, _, _ = serviceFixture(t)
	lr, err = svc.LiquidityRisk(context.Background(), "pf-1")
	require.NoError(t, err)
	assert.InDelta(t, 2000, lr.Buckets.Illiquid, 1e-9)
	require.Len(t, lr.Degraded, 1)
}

package main

import (
	"fmt"

	"github.com/atlas-desktop/papertrade-engine/internal/analytics"
	"github.com/atlas-desktop/papertrade-engine/internal/api"
	"github.com/atlas-desktop/papertrade-engine/internal/cache"
	"github.com/atlas-desktop/papertrade-engine/internal/config"
	"github.com/atlas-desktop/papertrade-engine/internal/events"
	"github.com/atlas-desktop/papertrade-engine/internal/marketdata"
	"github.com/atlas-desktop/papertrade-engine/internal/metrics"
	"github.com/atlas-desktop/papertrade-engine/internal/montecarlo"
	"github.com/atlas-desktop/papertrade-engine/internal/orchestrator"
	"github.com/atlas-desktop/papertrade-engine/internal/risk"
	"github.com/atlas-desktop/papertrade-engine/internal/scheduler"
	"github.com/atlas-desktop/papertrade-engine/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app wires every engine component from configuration
type app struct {
	logger    *zap.Logger
	db        *gorm.DB
	hub       *api.Hub
	bus       *events.Bus
	server    *api.Server
	scheduler *scheduler.Scheduler
}

func newProvider(logger *zap.Logger, cfg config.MarketData) marketdata.Provider {
	switch cfg.Provider {
	case config.ProviderStatic:
		return marketdata.NewStaticProvider(cfg.Static)
	case config.ProviderHTTP:
		return marketdata.NewHTTPProvider(logger, cfg.HTTP)
	default:
		return nil
	}
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, err := storage.Open(logger, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	repos := storage.NewRepositories(logger, db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := api.NewHub(logger)
	bus := events.NewBus(logger, cfg.Events)
	bus.Forward(hub)
	bus.SubscribeAll(events.AuditLogger(logger))
	orch := orchestrator.New(logger, cfg.Engine, repos.Positions, repos.Ideas, repos.Alerts,
		orchestrator.WithNotifier(bus),
		orchestrator.WithMetrics(m),
	)

	riskOpts := []risk.ServiceOption{
		risk.WithSnapshotCache(cache.NewSnapshotCache(cfg.Cache)),
		risk.WithMetrics(m),
	}
	if p := newProvider(logger, cfg.MarketData); p != nil {
		riskOpts = append(riskOpts, risk.WithProvider(p))
	}
	simulator := montecarlo.NewSimulator(logger, cfg.MonteCarlo)
	riskSvc := risk.NewService(logger, cfg.Risk, repos.Portfolios, repos.Snapshots, simulator, riskOpts...)

	server := api.NewServer(logger, cfg.Server, api.Dependencies{
		Updater:     orch,
		Risk:        riskSvc,
		Positions:   repos.Positions,
		Performance: analytics.NewPerformanceCalculator(logger, cfg.Analytics.ReferenceCapital),
		Hub:         hub,
		Metrics:     m,
		Gatherer:    reg,
	})

	a := &app{
		logger: logger,
		db:     db,
		hub:    hub,
		bus:    bus,
		server: server,
	}
	if cfg.Scheduler.Enabled {
		a.scheduler = scheduler.New(logger, cfg.Scheduler, riskSvc)
	}
	return a, nil
}

func (a *app) close() {
	a.bus.Close()
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

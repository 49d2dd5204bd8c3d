// Package scheduler periodically recomputes risk snapshots for a fixed set
// of portfolios.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/atlas-desktop/papertrade-engine/internal/risk"
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RiskCalculator computes and records a portfolio risk snapshot
type RiskCalculator interface {
	CalculatePortfolioRisk(ctx context.Context, portfolioID string, req risk.RiskRequest) (*types.RiskMetrics, error)
}

// Config configures the risk snapshot job
type Config struct {
	Enabled        bool          `mapstructure:"enabled"`
	Spec           string        `mapstructure:"spec"`
	PortfolioIDs   []string      `mapstructure:"portfolio_ids"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// DefaultConfig returns a disabled hourly job
func DefaultConfig() Config {
	return Config{
		Spec:           "@hourly",
		Timeout:        2 * time.Minute,
		MaxConcurrency: 4,
	}
}

// Scheduler runs the snapshot job on a cron schedule
type Scheduler struct {
	logger *zap.Logger
	config Config
	calc   RiskCalculator
	cron   *cron.Cron
	parser cron.Parser
}

// New creates a scheduler. Start must be called to begin running jobs.
func New(logger *zap.Logger, config Config, calc RiskCalculator) *Scheduler {
	def := DefaultConfig()
	if config.Spec == "" {
		config.Spec = def.Spec
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = def.MaxConcurrency
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		logger: logger.Named("scheduler"),
		config: config,
		calc:   calc,
		parser: parser,
		cron:   cron.New(cron.WithParser(parser)),
	}
}

// Start registers the job and starts the cron runner
func (s *Scheduler) Start() error {
	if _, err := s.parser.Parse(s.config.Spec); err != nil {
		return &types.ValidationError{Field: "scheduler.spec", Reason: err.Error()}
	}
	if _, err := s.cron.AddFunc(s.config.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule risk job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("risk snapshot job scheduled",
		zap.String("spec", s.config.Spec),
		zap.Int("portfolios", len(s.config.PortfolioIDs)),
	)
	return nil
}

// Stop stops scheduling new runs and waits for a running job or ctx
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// RunOnce recomputes risk for every configured portfolio and returns how
// many succeeded. Failures are logged and do not stop the run.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	var succeeded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrency)

	for _, id := range s.config.PortfolioIDs {
		id := id
		g.Go(func() error {
			if _, err := s.calc.CalculatePortfolioRisk(gctx, id, risk.RiskRequest{}); err != nil {
				s.logger.Error("scheduled risk calculation failed", zap.String("portfolio", id), zap.Error(err))
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	n := int(succeeded.Load())
	s.logger.Info("risk snapshot run complete",
		zap.Int("succeeded", n),
		zap.Int("failed", len(s.config.PortfolioIDs)-n),
	)
	return n
}

// Package api provides the HTTP and WebSocket server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/atlas-desktop/papertrade-engine/internal/analytics"
	"github.com/atlas-desktop/papertrade-engine/internal/execution"
	"github.com/atlas-desktop/papertrade-engine/internal/metrics"
	"github.com/atlas-desktop/papertrade-engine/internal/orchestrator"
	"github.com/atlas-desktop/papertrade-engine/internal/risk"
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config configures the HTTP server
type Config struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	WebSocketPath  string        `mapstructure:"websocket_path"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		WebSocketPath:  "/ws",
		CORSOrigins:    []string{"*"},
		RateLimitRPS:   50,
		RateLimitBurst: 100,
	}
}

// MarketUpdater processes quote batches
type MarketUpdater interface {
	Process(ctx context.Context, quotes []types.MarketQuote) (*orchestrator.Result, error)
}

// RiskService runs portfolio risk analytics
type RiskService interface {
	CalculatePortfolioRisk(ctx context.Context, portfolioID string, req risk.RiskRequest) (*types.RiskMetrics, error)
	RiskHistory(ctx context.Context, portfolioID string, limit int) ([]*types.RiskMetrics, error)
	RunStressTest(ctx context.Context, portfolioID string, scenarios []types.StressScenario) ([]types.StressTestResult, error)
	SimulateMonteCarlo(ctx context.Context, portfolioID string, req types.MonteCarloRequest) (*types.MonteCarloSimulation, error)
	LiquidityRisk(ctx context.Context, portfolioID string) (*types.LiquidityRisk, error)
}

// PositionReader reads stored positions
type PositionReader interface {
	FindByID(ctx context.Context, id string) (*types.Position, error)
	ListClosedPnL(ctx context.Context, ownerID string) ([]decimal.Decimal, error)
}

// Dependencies are the engine components served over HTTP
type Dependencies struct {
	Updater     MarketUpdater
	Risk        RiskService
	Positions   PositionReader
	Performance *analytics.PerformanceCalculator
	Hub         *Hub
	Metrics     *metrics.Metrics
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP/WebSocket API server
type Server struct {
	logger     *zap.Logger
	config     Config
	deps       Dependencies
	router     *mux.Router
	validate   *validator.Validate
	limiters   *limiterStore
	evaluator  *execution.PositionEvaluator
	httpServer *http.Server
}

// NewServer creates a new API server
func NewServer(logger *zap.Logger, config Config, deps Dependencies) *Server {
	def := DefaultConfig()
	if config.WebSocketPath == "" {
		config.WebSocketPath = def.WebSocketPath
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = def.CORSOrigins
	}
	if deps.Performance == nil {
		deps.Performance = analytics.NewPerformanceCalculator(logger, 0)
	}

	s := &Server{
		logger:    logger.Named("api"),
		config:    config,
		deps:      deps,
		router:    mux.NewRouter(),
		validate:  validator.New(),
		evaluator: execution.NewPositionEvaluator(logger),
	}
	if config.RateLimitRPS > 0 {
		burst := config.RateLimitBurst
		if burst <= 0 {
			burst = int(config.RateLimitRPS)
		}
		s.limiters = newLimiterStore(rate.Limit(config.RateLimitRPS), burst)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.metricsMiddleware)
	if s.limiters != nil {
		s.router.Use(s.rateLimitMiddleware)
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	v1.HandleFunc("/market/quotes", s.handleQuotes).Methods(http.MethodPost)
	v1.HandleFunc("/positions/{id}/triggers", s.handlePositionTriggers).Methods(http.MethodGet)

	v1.HandleFunc("/portfolios/{id}/risk", s.handleRisk).Methods(http.MethodGet)
	v1.HandleFunc("/portfolios/{id}/risk/history", s.handleRiskHistory).Methods(http.MethodGet)
	v1.HandleFunc("/portfolios/{id}/stress-test", s.handleStressTest).Methods(http.MethodPost)
	v1.HandleFunc("/portfolios/{id}/monte-carlo", s.handleMonteCarlo).Methods(http.MethodPost)
	v1.HandleFunc("/portfolios/{id}/liquidity", s.handleLiquidity).Methods(http.MethodGet)

	v1.HandleFunc("/performance", s.handlePerformance).Methods(http.MethodPost)
	v1.HandleFunc("/owners/{id}/performance", s.handleOwnerPerformance).Methods(http.MethodGet)

	if s.deps.Hub != nil {
		s.router.HandleFunc(s.config.WebSocketPath, s.deps.Hub.ServeWS)
	}
	if s.deps.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the router wrapped with CORS
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting API server", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

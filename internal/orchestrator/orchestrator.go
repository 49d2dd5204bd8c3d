// Package orchestrator fans a batch of market quotes out to the position,
// trade idea and alert evaluators and applies the resulting decisions
// through the storage collaborators.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atlas-desktop/papertrade-engine/internal/alerts"
	"github.com/atlas-desktop/papertrade-engine/internal/execution"
	"github.com/atlas-desktop/papertrade-engine/internal/metrics"
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/atlas-desktop/papertrade-engine/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PositionStore is the storage collaborator for simulated positions
type PositionStore interface {
	FindOpenPositionsBySymbol(ctx context.Context, symbol string) ([]*types.Position, error)
	Close(ctx context.Context, instr execution.CloseInstruction) (*types.Position, error)
	UpdateCurrentPrice(ctx context.Context, ownerID string, prices map[string]decimal.Decimal) (int, error)
}

// TradeIdeaStore is the storage collaborator for trade ideas
type TradeIdeaStore interface {
	FindActiveIdeas(ctx context.Context) ([]*types.TradeIdea, error)
	Update(ctx context.Context, id string, patch types.TradeIdeaPatch) (*types.TradeIdea, error)
}

// AlertStore is the storage collaborator for price alerts. Trigger must
// only transition alerts that are still ACTIVE and report whether it did.
type AlertStore interface {
	FindActiveAlertsBySymbol(ctx context.Context, symbol string) ([]*types.Alert, error)
	Trigger(ctx context.Context, id string) (bool, error)
}

// Config configures the orchestrator
type Config struct {
	// MaxConcurrency bounds how many symbols are processed in parallel.
	MaxConcurrency int `mapstructure:"max_concurrency" json:"maxConcurrency"`
}

// DefaultConfig returns default orchestrator configuration
func DefaultConfig() Config {
	return Config{MaxConcurrency: 8}
}

// RejectedQuote is a quote dropped by validation
type RejectedQuote struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Result aggregates counts across a whole batch
type Result struct {
	PositionsUpdated int             `json:"positionsUpdated"`
	PositionsClosed  int             `json:"positionsClosed"`
	AlertsTriggered  int             `json:"alertsTriggered"`
	TradesExecuted   int             `json:"tradesExecuted"`
	Rejected         []RejectedQuote `json:"rejected,omitempty"`
}

func (r *Result) add(o symbolResult) {
	r.PositionsUpdated += o.positionsUpdated
	r.PositionsClosed += o.positionsClosed
	r.AlertsTriggered += o.alertsTriggered
	r.TradesExecuted += o.tradesExecuted
}

type symbolResult struct {
	positionsUpdated int
	positionsClosed  int
	alertsTriggered  int
	tradesExecuted   int
}

// Orchestrator is the entry point for price-driven execution. It holds no
// state across calls.
type Orchestrator struct {
	logger    *zap.Logger
	config    Config
	positions PositionStore
	ideas     TradeIdeaStore
	alerts    AlertStore

	positionEval *execution.PositionEvaluator
	ideaEval     *execution.TradeIdeaEvaluator
	alertEval    *alerts.Evaluator

	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithNotifier publishes execution events to n
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithMetrics records batch metrics on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the clock used for close timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator
func New(logger *zap.Logger, config Config, positions PositionStore, ideas TradeIdeaStore, alertStore AlertStore, opts ...Option) *Orchestrator {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}

	o := &Orchestrator{
		logger:       logger.Named("orchestrator"),
		config:       config,
		positions:    positions,
		ideas:        ideas,
		alerts:       alertStore,
		positionEval: execution.NewPositionEvaluator(logger),
		ideaEval:     execution.NewTradeIdeaEvaluator(logger),
		alertEval:    alerts.NewEvaluator(logger),
		notifier:     nopNotifier{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process applies a batch of quotes. Symbols are processed in parallel;
// within a symbol the price update always precedes trigger evaluation.
//
// An empty batch fails with ErrNoQuotes. Invalid quotes are reported in
// Result.Rejected without aborting the batch. A collaborator failure
// aborts the batch with an OperationError whose message is
// ErrMarketUpdateFailed; symbols already applied stay applied.
func (o *Orchestrator) Process(ctx context.Context, quotes []types.MarketQuote) (*Result, error) {
	if len(quotes) == 0 {
		return nil, types.ErrNoQuotes
	}

	start := o.now()
	accepted, rejected := o.prepare(quotes)
	result := &Result{Rejected: rejected}
	if len(accepted) == 0 {
		o.metrics.ObserveBatch(start, 0, 0, false)
		return result, nil
	}

	ideas, err := o.ideas.FindActiveIdeas(ctx)
	if err != nil {
		return nil, o.fail(start, len(accepted), "find active ideas", err)
	}
	ideasBySymbol := make(map[string][]*types.TradeIdea)
	for _, idea := range ideas {
		sym := utils.NormalizeSymbol(idea.Symbol)
		ideasBySymbol[sym] = append(ideasBySymbol[sym], idea)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.MaxConcurrency)

	for _, q := range accepted {
		q := q
		g.Go(func() error {
			res, err := o.processSymbol(gctx, q, ideasBySymbol[q.Symbol])
			if err != nil {
				return err
			}
			mu.Lock()
			result.add(res)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, o.fail(start, len(accepted), "process symbols", err)
	}

	o.metrics.ObserveBatch(start, len(accepted), result.PositionsUpdated, false)
	o.logger.Info("market update processed",
		zap.Int("quotes", len(accepted)),
		zap.Int("rejected", len(rejected)),
		zap.Int("positionsUpdated", result.PositionsUpdated),
		zap.Int("positionsClosed", result.PositionsClosed),
		zap.Int("tradesExecuted", result.TradesExecuted),
		zap.Int("alertsTriggered", result.AlertsTriggered),
		zap.Duration("elapsed", o.now().Sub(start)),
	)
	return result, nil
}

func (o *Orchestrator) fail(start time.Time, accepted int, op string, err error) error {
	o.metrics.ObserveBatch(start, accepted, 0, true)
	opErr := &types.OperationError{Op: op, Kind: types.ErrMarketUpdateFailed, Err: err}
	o.logger.Error("market update failed", zap.String("cause", opErr.Cause()), zap.Error(err))
	return opErr
}

// prepare validates and deduplicates a batch. When a symbol appears more
// than once the quote with the latest timestamp wins, ties going to the
// later entry.
func (o *Orchestrator) prepare(quotes []types.MarketQuote) ([]types.MarketQuote, []RejectedQuote) {
	latest := make(map[string]types.MarketQuote, len(quotes))
	var rejected []RejectedQuote

	for _, q := range quotes {
		q.Symbol = utils.NormalizeSymbol(q.Symbol)
		if reason := validateQuote(q); reason != "" {
			rejected = append(rejected, RejectedQuote{Symbol: q.Symbol, Reason: reason})
			o.metrics.QuoteRejected(reason)
			o.logger.Warn("quote rejected", zap.String("symbol", q.Symbol), zap.String("reason", reason))
			continue
		}
		if prev, ok := latest[q.Symbol]; ok && q.Timestamp.Before(prev.Timestamp) {
			continue
		}
		latest[q.Symbol] = q
	}

	accepted := make([]types.MarketQuote, 0, len(latest))
	for _, q := range latest {
		accepted = append(accepted, q)
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Symbol < accepted[j].Symbol })
	return accepted, rejected
}

func validateQuote(q types.MarketQuote) string {
	switch {
	case q.Symbol == "":
		return "missing_symbol"
	case !q.Price.IsPositive():
		return "invalid_price"
	case q.PreviousClose.IsNegative():
		return "invalid_previous_close"
	default:
		return ""
	}
}

func (o *Orchestrator) processSymbol(ctx context.Context, q types.MarketQuote, ideas []*types.TradeIdea) (symbolResult, error) {
	var res symbolResult

	positions, err := o.positions.FindOpenPositionsBySymbol(ctx, q.Symbol)
	if err != nil {
		return res, err
	}

	// Price update first so P&L reflects the closing tick.
	owners := make(map[string]struct{})
	for _, p := range positions {
		execution.ApplyPrice(p, q.Price)
		owners[p.OwnerID] = struct{}{}
	}
	for owner := range owners {
		n, err := o.positions.UpdateCurrentPrice(ctx, owner, map[string]decimal.Decimal{q.Symbol: q.Price})
		if err != nil {
			return res, err
		}
		res.positionsUpdated += n
	}

	for _, p := range positions {
		dec, fired := o.positionEval.Evaluate(p, q)
		if !fired {
			continue
		}
		if _, err := o.positions.Close(ctx, dec.Instruction()); err != nil {
			return res, err
		}
		res.positionsClosed++
		o.metrics.Executed("position", string(dec.Kind))
		o.notifier.Notify(Event{
			Type:    EventPositionClosed,
			Channel: PositionChannel(p.OwnerID),
			Symbol:  q.Symbol,
			Data:    dec,
		})
	}

	for _, idea := range ideas {
		dec, fired := o.ideaEval.Evaluate(idea, q)
		if !fired {
			continue
		}
		patch := types.TradeIdeaPatch{
			Status:      types.TradeIdeaStatusClosed,
			ClosedPrice: dec.ClosePrice,
			ClosedAt:    o.now(),
			PnL:         dec.PnL,
			CloseReason: dec.Reason,
		}
		if _, err := o.ideas.Update(ctx, idea.ID, patch); err != nil {
			return res, err
		}
		res.tradesExecuted++
		o.metrics.Executed("trade_idea", string(dec.Kind))
		o.notifier.Notify(Event{
			Type:    EventIdeaClosed,
			Channel: IdeaChannel(idea.GroupID),
			Symbol:  q.Symbol,
			Data:    dec,
		})
	}

	active, err := o.alerts.FindActiveAlertsBySymbol(ctx, q.Symbol)
	if err != nil {
		return res, err
	}
	for _, alert := range active {
		if !o.alertEval.Evaluate(alert, q) {
			continue
		}
		ok, err := o.alerts.Trigger(ctx, alert.ID)
		if err != nil {
			return res, err
		}
		if !ok {
			// Another writer fired it first.
			continue
		}
		o.alertEval.Trigger(alert)
		res.alertsTriggered++
		o.metrics.AlertTriggered()
		o.notifier.Notify(Event{
			Type:    EventAlertTriggered,
			Channel: AlertChannel(alert.OwnerID),
			Symbol:  q.Symbol,
			Data:    alert,
		})
	}

	return res, nil
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/atlas-desktop/papertrade-engine/internal/risk"
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// QuotesRequest is a batch of market quotes
type QuotesRequest struct {
	Quotes []types.MarketQuote `json:"quotes"`
}

// RiskQuery are the optional parameters of a risk calculation
type RiskQuery struct {
	ConfidenceLevel float64 `validate:"omitempty,gt=0,lt=1"`
	LookbackDays    int     `validate:"gte=0,lte=2520"`
}

// StressTestRequest lists scenarios; an empty list runs the defaults
type StressTestRequest struct {
	Scenarios []types.StressScenario `json:"scenarios" validate:"dive"`
}

// PerformanceRequest is a list of realized P&L values in close order
type PerformanceRequest struct {
	PnLs []decimal.Decimal `json:"pnls" validate:"max=100000"`
}

// TriggerState reports one exit level of a position
type TriggerState struct {
	Set       bool             `json:"set"`
	Level     *decimal.Decimal `json:"level,omitempty"`
	Triggered bool             `json:"triggered"`
}

// TriggerResponse answers an explicit trigger query
type TriggerResponse struct {
	PositionID string       `json:"positionId"`
	Price      string       `json:"price"`
	StopLoss   TriggerState `json:"stopLoss"`
	TakeProfit TriggerState `json:"takeProfit"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors to status codes. Only validation and
// not-found messages are shown to clients.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr validator.ValidationErrors
	var opErr *types.OperationError

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Error()})
	case errors.Is(err, types.ErrInvalidInput), errors.Is(err, types.ErrNoQuotes), errors.Is(err, types.ErrInvalidPrice):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, types.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &opErr):
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.String("cause", opErr.Cause()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: opErr.Error()})
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &types.ValidationError{Field: "body", Reason: "malformed JSON"}
	}
	return s.validate.Struct(v)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}
	if s.deps.Hub != nil {
		resp["wsClients"] = s.deps.Hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	var req QuotesRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.deps.Updater.Process(r.Context(), req.Quotes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePositionTriggers(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	price, err := decimal.NewFromString(r.URL.Query().Get("price"))
	if err != nil || !price.IsPositive() {
		s.writeError(w, r, &types.ValidationError{Field: "price", Reason: "must be a positive number"})
		return
	}

	p, err := s.deps.Positions.FindByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := TriggerResponse{PositionID: p.ID, Price: price.String()}
	if hit, err := s.evaluator.CheckStopLoss(p, price); err == nil {
		resp.StopLoss = TriggerState{Set: true, Level: &p.StopLoss.Decimal, Triggered: hit}
	}
	if hit, err := s.evaluator.CheckTakeProfit(p, price); err == nil {
		resp.TakeProfit = TriggerState{Set: true, Level: &p.TakeProfit.Decimal, Triggered: hit}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var query RiskQuery
	if v := q.Get("confidence"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.writeError(w, r, &types.ValidationError{Field: "confidence", Reason: "must be a number"})
			return
		}
		query.ConfidenceLevel = c
	}
	if v := q.Get("horizon"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, &types.ValidationError{Field: "horizon", Reason: "must be a whole number of days"})
			return
		}
		query.LookbackDays = days
	}
	if err := s.validate.Struct(query); err != nil {
		s.writeError(w, r, err)
		return
	}

	m, err := s.deps.Risk.CalculatePortfolioRisk(r.Context(), mux.Vars(r)["id"], risk.RiskRequest{
		ConfidenceLevel: query.ConfidenceLevel,
		LookbackDays:    query.LookbackDays,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleRiskHistory(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			s.writeError(w, r, &types.ValidationError{Field: "limit", Reason: "must be between 1 and 1000"})
			return
		}
		limit = n
	}

	list, err := s.deps.Risk.RiskHistory(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": list,
		"count":     len(list),
	})
}

func (s *Server) handleStressTest(w http.ResponseWriter, r *http.Request) {
	var req StressTestRequest
	if r.ContentLength != 0 {
		if err := s.decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	results, err := s.deps.Risk.RunStressTest(r.Context(), mux.Vars(r)["id"], req.Scenarios)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

func (s *Server) handleMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req types.MonteCarloRequest
	if r.ContentLength != 0 {
		if err := s.decode(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	sim, err := s.deps.Risk.SimulateMonteCarlo(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	lr, err := s.deps.Risk.LiquidityRisk(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lr)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	var req PerformanceRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Performance.ComputeDecimals(req.PnLs))
}

func (s *Server) handleOwnerPerformance(w http.ResponseWriter, r *http.Request) {
	pnls, err := s.deps.Positions.ListClosedPnL(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Performance.ComputeDecimals(pnls))
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PortfolioRepository persists portfolios, holdings and value history
type PortfolioRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Create inserts a portfolio
func (r *PortfolioRepository) Create(ctx context.Context, p *types.Portfolio) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	return nil
}

// FindByID loads one portfolio
func (r *PortfolioRepository) FindByID(ctx context.Context, id string) (*types.Portfolio, error) {
	var p types.Portfolio
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "portfolio", id)
	}
	return &p, nil
}

// AddHolding inserts a holding into a portfolio
func (r *PortfolioRepository) AddHolding(ctx context.Context, h *types.Holding) error {
	if err := r.db.WithContext(ctx).Create(h).Error; err != nil {
		return fmt.Errorf("failed to add holding: %w", err)
	}
	return nil
}

// FindHoldings returns the portfolio's holdings ordered by symbol
func (r *PortfolioRepository) FindHoldings(ctx context.Context, portfolioID string) ([]types.Holding, error) {
	var holdings []types.Holding
	err := r.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("symbol").
		Find(&holdings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find holdings: %w", err)
	}
	return holdings, nil
}

// RecordValue appends a point to the portfolio's value history
func (r *PortfolioRepository) RecordValue(ctx context.Context, point *types.PortfolioValuePoint) error {
	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(point).Error; err != nil {
		return fmt.Errorf("failed to record portfolio value: %w", err)
	}
	return nil
}

// GetHistoricalValues returns value points in [start, end], oldest first
func (r *PortfolioRepository) GetHistoricalValues(ctx context.Context, portfolioID string, start, end time.Time) ([]types.PortfolioValuePoint, error) {
	var points []types.PortfolioValuePoint
	err := r.db.WithContext(ctx).
		Where("portfolio_id = ? AND timestamp >= ? AND timestamp <= ?", portfolioID, start, end).
		Order("timestamp").
		Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio values: %w", err)
	}
	return points, nil
}

// GetReturns derives up to horizonDays simple returns from the most recent
// value points, oldest first. Points with a non-positive predecessor are
// skipped.
func (r *PortfolioRepository) GetReturns(ctx context.Context, portfolioID string, horizonDays int) ([]float64, error) {
	q := r.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("timestamp DESC")
	if horizonDays > 0 {
		q = q.Limit(horizonDays + 1)
	}

	var points []types.PortfolioValuePoint
	if err := q.Find(&points).Error; err != nil {
		return nil, fmt.Errorf("failed to load portfolio values: %w", err)
	}
	return SimpleReturns(points), nil
}

// SimpleReturns converts value points into period returns. points may be
// in either order; returns are oldest first.
func SimpleReturns(points []types.PortfolioValuePoint) []float64 {
	ordered := make([]types.PortfolioValuePoint, len(points))
	copy(ordered, points)
	if len(ordered) > 1 && ordered[0].Timestamp.After(ordered[len(ordered)-1].Timestamp) {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}

	returns := make([]float64, 0, len(ordered))
	for i := 1; i < len(ordered); i++ {
		prev := ordered[i-1].Value
		if !prev.IsPositive() {
			continue
		}
		r, _ := ordered[i].Value.Sub(prev).Div(prev).Float64()
		returns = append(returns, r)
	}
	return returns
}

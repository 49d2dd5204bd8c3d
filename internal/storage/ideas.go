package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TradeIdeaRepository persists shared trade ideas
type TradeIdeaRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Create inserts an active trade idea
func (r *TradeIdeaRepository) Create(ctx context.Context, idea *types.TradeIdea) error {
	if idea.ID == "" {
		idea.ID = uuid.NewString()
	}
	if idea.Status == "" {
		idea.Status = types.TradeIdeaStatusActive
	}
	if err := r.db.WithContext(ctx).Create(idea).Error; err != nil {
		return fmt.Errorf("failed to create trade idea: %w", err)
	}
	return nil
}

// FindByID loads one trade idea
func (r *TradeIdeaRepository) FindByID(ctx context.Context, id string) (*types.TradeIdea, error) {
	var idea types.TradeIdea
	if err := r.db.WithContext(ctx).First(&idea, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "trade idea", id)
	}
	return &idea, nil
}

// FindActiveIdeas returns every ACTIVE trade idea
func (r *TradeIdeaRepository) FindActiveIdeas(ctx context.Context) ([]*types.TradeIdea, error) {
	var ideas []*types.TradeIdea
	err := r.db.WithContext(ctx).
		Where("status = ?", types.TradeIdeaStatusActive).
		Order("created_at").
		Find(&ideas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find active trade ideas: %w", err)
	}
	return ideas, nil
}

// Update applies a close patch to an active idea. An idea that is no
// longer active is returned unchanged.
func (r *TradeIdeaRepository) Update(ctx context.Context, id string, patch types.TradeIdeaPatch) (*types.TradeIdea, error) {
	closedAt := patch.ClosedAt
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	res := r.db.WithContext(ctx).Model(&types.TradeIdea{}).
		Where("id = ? AND status = ?", id, types.TradeIdeaStatusActive).
		Updates(map[string]interface{}{
			"status":       patch.Status,
			"closed_price": decimal.NewNullDecimal(patch.ClosedPrice),
			"closed_at":    closedAt,
			"pnl":          decimal.NewNullDecimal(patch.PnL),
			"close_reason": patch.CloseReason,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update trade idea: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		r.logger.Debug("trade idea not active", zap.String("idea", id))
	}
	return r.FindByID(ctx, id)
}

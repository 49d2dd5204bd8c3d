package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/atlas-desktop/papertrade-engine/internal/execution"
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PositionRepository persists simulated positions
type PositionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Create inserts an open position. ID, status, current price and
// timestamps are filled in when unset.
func (r *PositionRepository) Create(ctx context.Context, p *types.Position) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = types.PositionStatusOpen
	}
	if p.CurrentPrice.IsZero() {
		p.CurrentPrice = p.EntryPrice
	}
	if p.OpenedAt.IsZero() {
		p.OpenedAt = time.Now().UTC()
	}
	execution.ApplyPrice(p, p.CurrentPrice)

	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create position: %w", err)
	}
	return nil
}

// FindByID loads one position
func (r *PositionRepository) FindByID(ctx context.Context, id string) (*types.Position, error) {
	var p types.Position
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "position", id)
	}
	return &p, nil
}

// FindOpenPositionsBySymbol returns every open position on symbol
func (r *PositionRepository) FindOpenPositionsBySymbol(ctx context.Context, symbol string) ([]*types.Position, error) {
	var positions []*types.Position
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND status = ?", symbol, types.PositionStatusOpen).
		Order("opened_at").
		Find(&positions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find open positions: %w", err)
	}
	return positions, nil
}

// Close moves an open position to the instruction's terminal status at the
// instruction price. A position that is already terminal is returned
// unchanged.
func (r *PositionRepository) Close(ctx context.Context, instr execution.CloseInstruction) (*types.Position, error) {
	var closed types.Position
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&closed, "id = ?", instr.PositionID).Error; err != nil {
			return notFound(err, "position", instr.PositionID)
		}
		if closed.Status.IsTerminal() {
			r.logger.Debug("position already closed", zap.String("position", closed.ID))
			return nil
		}

		now := time.Now().UTC()
		execution.ApplyPrice(&closed, instr.Price)
		closed.Status = instr.Status
		closed.ClosedAt = &now
		closed.ClosedPrice = decimal.NewNullDecimal(instr.Price)
		closed.CloseReason = instr.Reason

		res := tx.Model(&types.Position{}).
			Where("id = ? AND status = ?", closed.ID, types.PositionStatusOpen).
			Updates(map[string]interface{}{
				"status":        closed.Status,
				"current_price": closed.CurrentPrice,
				"pnl":           closed.PnL,
				"pnl_percent":   closed.PnLPercent,
				"closed_at":     closed.ClosedAt,
				"closed_price":  closed.ClosedPrice,
				"close_reason":  closed.CloseReason,
				"updated_at":    now,
			})
		return res.Error
	})
	if err != nil {
		return nil, err
	}
	return &closed, nil
}

// UpdateCurrentPrice refreshes current price and P&L of the owner's open
// positions on the given symbols and returns how many rows changed.
func (r *PositionRepository) UpdateCurrentPrice(ctx context.Context, ownerID string, prices map[string]decimal.Decimal) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}
	symbols := make([]string, 0, len(prices))
	for s := range prices {
		symbols = append(symbols, s)
	}

	updated := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var positions []types.Position
		err := tx.Where("owner_id = ? AND status = ? AND symbol IN ?", ownerID, types.PositionStatusOpen, symbols).
			Find(&positions).Error
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for i := range positions {
			p := &positions[i]
			execution.ApplyPrice(p, prices[p.Symbol])
			res := tx.Model(&types.Position{}).
				Where("id = ? AND status = ?", p.ID, types.PositionStatusOpen).
				Updates(map[string]interface{}{
					"current_price": p.CurrentPrice,
					"pnl":           p.PnL,
					"pnl_percent":   p.PnLPercent,
					"updated_at":    now,
				})
			if res.Error != nil {
				return res.Error
			}
			updated += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update position prices: %w", err)
	}
	return updated, nil
}

// ListClosedPnL returns realized P&L of the owner's closed and stopped
// positions in close order.
func (r *PositionRepository) ListClosedPnL(ctx context.Context, ownerID string) ([]decimal.Decimal, error) {
	var positions []types.Position
	err := r.db.WithContext(ctx).
		Select("pnl", "closed_at").
		Where("owner_id = ? AND status IN ?", ownerID, []types.PositionStatus{types.PositionStatusClosed, types.PositionStatusStopped}).
		Order("closed_at").
		Find(&positions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list closed positions: %w", err)
	}

	out := make([]decimal.Decimal, 0, len(positions))
	for _, p := range positions {
		out = append(out, p.PnL)
	}
	return out, nil
}

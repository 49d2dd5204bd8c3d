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

// AlertRepository persists price alerts
type AlertRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Create inserts an active alert
func (r *AlertRepository) Create(ctx context.Context, a *types.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = types.AlertStatusActive
	}
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// FindActiveAlertsBySymbol returns ACTIVE alerts on symbol
func (r *AlertRepository) FindActiveAlertsBySymbol(ctx context.Context, symbol string) ([]*types.Alert, error) {
	var alerts []*types.Alert
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND status = ?", symbol, types.AlertStatusActive).
		Order("created_at").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find active alerts: %w", err)
	}
	return alerts, nil
}

// Trigger marks an active alert as triggered. It reports false when the
// alert had already fired, so concurrent batches trigger it once.
func (r *AlertRepository) Trigger(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&types.Alert{}).
		Where("id = ? AND status = ?", id, types.AlertStatusActive).
		Updates(map[string]interface{}{
			"status":       types.AlertStatusTriggered,
			"triggered_at": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to trigger alert: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		r.logger.Debug("alert already triggered", zap.String("alert", id))
		return false, nil
	}
	return true, nil
}

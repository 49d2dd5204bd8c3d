package storage

import (
	"context"
	"fmt"

	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SnapshotRepository stores risk snapshots. Rows are only ever inserted.
type SnapshotRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// SaveSnapshot inserts m
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, m *types.RiskMetrics) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to save risk snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns up to limit snapshots, newest first. A limit of
// zero or less returns all of them.
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, portfolioID string, limit int) ([]*types.RiskMetrics, error) {
	q := r.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("calculated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var list []*types.RiskMetrics
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list risk snapshots: %w", err)
	}
	return list, nil
}

// Package cache provides an in-memory cache for the latest risk snapshot of
// each portfolio. Entries expire after a fixed TTL and expired entries are
// purged on a cleanup interval.
package cache

import (
	"time"

	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	gocache "github.com/patrickmn/go-cache"
)

// Config configures snapshot caching
type Config struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// DefaultConfig returns default cache configuration
func DefaultConfig() Config {
	return Config{
		TTL:             5 * time.Minute,
		CleanupInterval: 10 * time.Minute,
	}
}

// SnapshotCache holds the most recent RiskMetrics per portfolio. It is
// owned by whoever constructs it; there is no package-level instance.
type SnapshotCache struct {
	internal *gocache.Cache
	ttl      time.Duration
}

// NewSnapshotCache creates a snapshot cache
func NewSnapshotCache(cfg Config) *SnapshotCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}
	return &SnapshotCache{
		internal: gocache.New(cfg.TTL, cfg.CleanupInterval),
		ttl:      cfg.TTL,
	}
}

func key(portfolioID string) string {
	return "risk:" + portfolioID
}

// Get returns the cached snapshot for a portfolio
func (c *SnapshotCache) Get(portfolioID string) (*types.RiskMetrics, bool) {
	v, found := c.internal.Get(key(portfolioID))
	if !found {
		return nil, false
	}
	m, ok := v.(*types.RiskMetrics)
	return m, ok
}

// Set stores a snapshot. An older snapshot never replaces a newer one.
func (c *SnapshotCache) Set(portfolioID string, m *types.RiskMetrics) {
	if cur, ok := c.Get(portfolioID); ok && cur.CalculatedAt.After(m.CalculatedAt) {
		return
	}
	c.internal.Set(key(portfolioID), m, c.ttl)
}

// Invalidate drops the snapshot for a portfolio
func (c *SnapshotCache) Invalidate(portfolioID string) {
	c.internal.Delete(key(portfolioID))
}

// Len returns the number of live entries
func (c *SnapshotCache) Len() int {
	return c.internal.ItemCount()
}

// Flush removes every entry
func (c *SnapshotCache) Flush() {
	c.internal.Flush()
}

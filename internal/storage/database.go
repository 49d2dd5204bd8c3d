// Package storage implements the engine's persistence on gorm. SQLite is
// the default for development and tests; Postgres is used in production.
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config configures the database connection
type Config struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DefaultConfig returns an on-disk sqlite configuration
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		DSN:             "papertrade.db",
		MaxIdleConns:    5,
		MaxOpenConns:    20,
		ConnMaxLifetime: time.Hour,
	}
}

// Open connects to the configured database
func Open(logger *zap.Logger, cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, &types.ValidationError{Field: "database.driver", Reason: fmt.Sprintf("unsupported driver %q", cfg.Driver)}
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.Named("storage").Info("database connected", zap.String("driver", dialector.Name()))
	return db, nil
}

// Migrate creates or updates every table the engine uses
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Position{},
		&types.TradeIdea{},
		&types.Alert{},
		&types.Portfolio{},
		&types.Holding{},
		&types.PortfolioValuePoint{},
		&types.RiskMetrics{},
	)
}

// Repositories groups every store implementation over one database
type Repositories struct {
	Positions  *PositionRepository
	Ideas      *TradeIdeaRepository
	Alerts     *AlertRepository
	Portfolios *PortfolioRepository
	Snapshots  *SnapshotRepository
}

// NewRepositories builds all repositories on db
func NewRepositories(logger *zap.Logger, db *gorm.DB) *Repositories {
	logger = logger.Named("storage")
	return &Repositories{
		Positions:  &PositionRepository{db: db, logger: logger},
		Ideas:      &TradeIdeaRepository{db: db, logger: logger},
		Alerts:     &AlertRepository{db: db, logger: logger},
		Portfolios: &PortfolioRepository{db: db, logger: logger},
		Snapshots:  &SnapshotRepository{db: db, logger: logger},
	}
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &types.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

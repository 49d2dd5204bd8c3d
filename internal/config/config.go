// Package config loads engine configuration from a yaml file and PTE_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atlas-desktop/papertrade-engine/internal/analytics"
	"github.com/atlas-desktop/papertrade-engine/internal/api"
	"github.com/atlas-desktop/papertrade-engine/internal/cache"
	"github.com/atlas-desktop/papertrade-engine/internal/events"
	"github.com/atlas-desktop/papertrade-engine/internal/marketdata"
	"github.com/atlas-desktop/papertrade-engine/internal/montecarlo"
	"github.com/atlas-desktop/papertrade-engine/internal/orchestrator"
	"github.com/atlas-desktop/papertrade-engine/internal/risk"
	"github.com/atlas-desktop/papertrade-engine/internal/scheduler"
	"github.com/atlas-desktop/papertrade-engine/internal/storage"
	"github.com/atlas-desktop/papertrade-engine/pkg/utils"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PTE_SERVER_PORT
const EnvPrefix = "PTE"

// Config is the complete engine configuration
type Config struct {
	Server     api.Config          `mapstructure:"server"`
	Log        Log                 `mapstructure:"log"`
	Database   storage.Config      `mapstructure:"database"`
	Engine     orchestrator.Config `mapstructure:"engine"`
	Events     events.Config       `mapstructure:"events"`
	Risk       risk.Config         `mapstructure:"risk"`
	Analytics  Analytics           `mapstructure:"analytics"`
	MonteCarlo montecarlo.Config   `mapstructure:"montecarlo"`
	MarketData MarketData          `mapstructure:"marketdata"`
	Scheduler  scheduler.Config    `mapstructure:"scheduler"`
	Cache      cache.Config        `mapstructure:"cache"`
}

// Log configures the zap logger
type Log struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Analytics configures performance statistics
type Analytics struct {
	ReferenceCapital float64 `mapstructure:"reference_capital"`
}

// Market data provider kinds
const (
	ProviderNone   = "none"
	ProviderStatic = "static"
	ProviderHTTP   = "http"
)

// MarketData selects and configures the optional market data provider
type MarketData struct {
	Provider string                  `mapstructure:"provider"`
	HTTP     marketdata.HTTPConfig   `mapstructure:"http"`
	Static   marketdata.StaticConfig `mapstructure:"static"`
}

func setDefaults(v *viper.Viper) {
	srv := api.DefaultConfig()
	v.SetDefault("server.host", srv.Host)
	v.SetDefault("server.port", srv.Port)
	v.SetDefault("server.read_timeout", srv.ReadTimeout)
	v.SetDefault("server.write_timeout", srv.WriteTimeout)
	v.SetDefault("server.websocket_path", srv.WebSocketPath)
	v.SetDefault("server.cors_origins", srv.CORSOrigins)
	v.SetDefault("server.rate_limit_rps", srv.RateLimitRPS)
	v.SetDefault("server.rate_limit_burst", srv.RateLimitBurst)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")

	db := storage.DefaultConfig()
	v.SetDefault("database.driver", db.Driver)
	v.SetDefault("database.dsn", db.DSN)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)

	v.SetDefault("engine.max_concurrency", orchestrator.DefaultConfig().MaxConcurrency)

	ev := events.DefaultConfig()
	v.SetDefault("events.num_workers", ev.NumWorkers)
	v.SetDefault("events.buffer_size", ev.BufferSize)

	rc := risk.DefaultConfig()
	v.SetDefault("risk.confidence_level", rc.ConfidenceLevel)
	v.SetDefault("risk.default_risk_free_rate", rc.DefaultRiskFreeRate)
	v.SetDefault("risk.lookback_days", rc.LookbackDays)
	v.SetDefault("risk.liquidity.participation_rate", rc.Liquidity.ParticipationRate)
	v.SetDefault("risk.liquidity.stressed_volume_factor", rc.Liquidity.StressedVolumeFactor)
	v.SetDefault("risk.liquidity.default_daily_volatility", rc.Liquidity.DefaultDailyVolatility)
	v.SetDefault("risk.liquidity.illiquid_days", rc.Liquidity.IlliquidDays)

	v.SetDefault("analytics.reference_capital", analytics.DefaultReferenceCapital)

	mc := montecarlo.DefaultConfig()
	v.SetDefault("montecarlo.num_simulations", mc.NumSimulations)
	v.SetDefault("montecarlo.max_simulations", mc.MaxSimulations)
	v.SetDefault("montecarlo.parallel_workers", mc.ParallelWorkers)
	v.SetDefault("montecarlo.max_sample_paths", mc.MaxSamplePaths)
	v.SetDefault("montecarlo.method", string(mc.Method))
	v.SetDefault("montecarlo.seed", 0)

	v.SetDefault("marketdata.provider", ProviderNone)
	v.SetDefault("marketdata.http.timeout", 10*time.Second)

	sc := scheduler.DefaultConfig()
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.spec", sc.Spec)
	v.SetDefault("scheduler.timeout", sc.Timeout)
	v.SetDefault("scheduler.max_concurrency", sc.MaxConcurrency)

	cc := cache.DefaultConfig()
	v.SetDefault("cache.ttl", cc.TTL)
	v.SetDefault("cache.cleanup_interval", cc.CleanupInterval)
}

// Load reads configuration. path may name a yaml file; when empty,
// config.yaml is looked up in the working directory and a missing file is
// not an error. Environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.MarketData.Static = upperSymbols(cfg.MarketData.Static)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no safe fallback
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case storage.DriverSQLite, storage.DriverPostgres:
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	switch c.MarketData.Provider {
	case ProviderNone, ProviderStatic:
	case ProviderHTTP:
		if c.MarketData.HTTP.BaseURL == "" {
			return errors.New("marketdata.http.base_url is required for the http provider")
		}
	default:
		return fmt.Errorf("unsupported marketdata.provider %q", c.MarketData.Provider)
	}
	if c.Risk.ConfidenceLevel <= 0 || c.Risk.ConfidenceLevel >= 1 {
		return fmt.Errorf("risk.confidence_level must be between 0 and 1, got %v", c.Risk.ConfidenceLevel)
	}
	return nil
}

// upperSymbols restores symbol case in static market data; viper lowercases
// map keys.
func upperSymbols(sc marketdata.StaticConfig) marketdata.StaticConfig {
	upper := func(m map[string]float64) map[string]float64 {
		if m == nil {
			return nil
		}
		out := make(map[string]float64, len(m))
		for k, v := range m {
			out[utils.NormalizeSymbol(k)] = v
		}
		return out
	}

	sc.Volatility = upper(sc.Volatility)
	sc.Volume = upper(sc.Volume)
	if sc.Correlations != nil {
		corr := make(map[string]map[string]float64, len(sc.Correlations))
		for k, row := range sc.Correlations {
			corr[utils.NormalizeSymbol(k)] = upper(row)
		}
		sc.Correlations = corr
	}
	return sc
}

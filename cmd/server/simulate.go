package main

import (
	"encoding/json"
	"os"

	"github.com/atlas-desktop/papertrade-engine/internal/montecarlo"
	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/spf13/cobra"
)

var simulateFlags struct {
	value   float64
	mean    float64
	stdDev  float64
	horizon string
	days    int
	runs    int
	seed    int64
	paths   bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a standalone Monte Carlo projection and print the result as JSON",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.Float64Var(&simulateFlags.value, "value", 10000, "starting portfolio value")
	f.Float64Var(&simulateFlags.mean, "mean", 0.0005, "daily mean return")
	f.Float64Var(&simulateFlags.stdDev, "stddev", 0.02, "daily return standard deviation")
	f.StringVar(&simulateFlags.horizon, "horizon", string(types.Horizon1M), "time horizon (1D, 1W, 1M, 3M, 6M, 1Y)")
	f.IntVar(&simulateFlags.days, "days", 0, "explicit number of trading days; overrides --horizon")
	f.IntVar(&simulateFlags.runs, "runs", 0, "number of simulations (default from config)")
	f.Int64Var(&simulateFlags.seed, "seed", 0, "random seed (0 for config or time based)")
	f.BoolVar(&simulateFlags.paths, "paths", false, "include sample paths in the output")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	days := simulateFlags.days
	if days <= 0 {
		days = types.TimeHorizon(simulateFlags.horizon).Days()
	}
	if days <= 0 {
		return &types.ValidationError{Field: "horizon", Reason: "unknown horizon " + simulateFlags.horizon}
	}

	sim := montecarlo.NewSimulator(logger, cfg.MonteCarlo)
	res, err := sim.Run(cmd.Context(), montecarlo.Params{
		StartingValue:  simulateFlags.value,
		DailyMean:      simulateFlags.mean,
		DailyStdDev:    simulateFlags.stdDev,
		Days:           days,
		NumSimulations: simulateFlags.runs,
		Seed:           simulateFlags.seed,
	})
	if err != nil {
		return err
	}
	if !simulateFlags.paths {
		res.SamplePaths = nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

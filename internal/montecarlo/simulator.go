// Package montecarlo simulates portfolio value paths to estimate the
// distribution of terminal values over a horizon.
package montecarlo

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/atlas-desktop/papertrade-engine/pkg/types"
	"github.com/atlas-desktop/papertrade-engine/pkg/utils"
	"go.uber.org/zap"
)

// Method selects how daily returns are drawn
type Method string

const (
	// MethodParametric draws mean + stddev * N(0,1) using Box-Muller.
	MethodParametric Method = "parametric"
	// MethodBootstrap resamples historical daily returns with replacement.
	MethodBootstrap Method = "bootstrap"
)

// ReportedPercentiles are the terminal value percentiles in every result.
var ReportedPercentiles = []int{5, 10, 25, 50, 75, 90, 95}

// Config configures the simulator
type Config struct {
	NumSimulations  int    `mapstructure:"num_simulations"`  // Default number of runs
	MaxSimulations  int    `mapstructure:"max_simulations"`  // Upper bound accepted from callers
	Seed            int64  `mapstructure:"seed"`             // Base seed (0 for time-based)
	ParallelWorkers int    `mapstructure:"parallel_workers"` // Number of parallel workers
	MaxSamplePaths  int    `mapstructure:"max_sample_paths"` // Paths retained for inspection
	Method          Method `mapstructure:"method"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		NumSimulations:  1000,
		MaxSimulations:  100000,
		ParallelWorkers: 8,
		MaxSamplePaths:  100,
		Method:          MethodParametric,
	}
}

// Params describe one simulation request
type Params struct {
	StartingValue  float64
	DailyMean      float64
	DailyStdDev    float64
	Days           int
	NumSimulations int
	Seed           int64
	// Historical returns feed MethodBootstrap.
	HistoricalReturns []float64
}

// Distribution summarizes simulated terminal values
type Distribution struct {
	Mean        float64         `json:"mean"`
	Median      float64         `json:"median"`
	StdDev      float64         `json:"stdDev"`
	Min         float64         `json:"min"`
	Max         float64         `json:"max"`
	Percentiles map[int]float64 `json:"percentiles"`
}

// Result is the outcome of a simulation
type Result struct {
	NumSimulations    int           `json:"numSimulations"`
	Days              int           `json:"days"`
	Seed              int64         `json:"seed"`
	Terminal          *Distribution `json:"terminal"`
	ProbabilityOfLoss float64       `json:"probabilityOfLoss"`
	SamplePaths       [][]float64   `json:"samplePaths"`
}

// Simulator performs Monte Carlo simulations. It is safe for concurrent use;
// every run derives its random streams from the request seed.
type Simulator struct {
	logger *zap.Logger
	config Config
}

// NewSimulator creates a new Monte Carlo simulator
func NewSimulator(logger *zap.Logger, config Config) *Simulator {
	def := DefaultConfig()
	if config.NumSimulations <= 0 {
		config.NumSimulations = def.NumSimulations
	}
	if config.MaxSimulations <= 0 {
		config.MaxSimulations = def.MaxSimulations
	}
	if config.ParallelWorkers <= 0 {
		config.ParallelWorkers = def.ParallelWorkers
	}
	if config.MaxSamplePaths <= 0 {
		config.MaxSamplePaths = def.MaxSamplePaths
	}
	if config.Method == "" {
		config.Method = def.Method
	}

	return &Simulator{
		logger: logger.Named("monte-carlo"),
		config: config,
	}
}

// Run simulates NumSimulations paths of Days steps. Each step multiplies
// the value by (1 + r) where r is drawn per the configured method; values
// are floored at zero. Simulation i uses seed+i so the result does not
// depend on worker scheduling.
func (s *Simulator) Run(ctx context.Context, p Params) (*Result, error) {
	if p.StartingValue <= 0 || math.IsNaN(p.StartingValue) {
		return nil, &types.ValidationError{Field: "startingValue", Reason: "must be positive"}
	}
	if p.Days <= 0 {
		return nil, &types.ValidationError{Field: "days", Reason: "must be positive"}
	}
	if p.DailyStdDev < 0 || math.IsNaN(p.DailyStdDev) {
		return nil, &types.ValidationError{Field: "dailyStdDev", Reason: "must not be negative"}
	}

	n := p.NumSimulations
	if n <= 0 {
		n = s.config.NumSimulations
	}
	if n > s.config.MaxSimulations {
		return nil, &types.ValidationError{Field: "numberOfSimulations", Reason: "exceeds maximum"}
	}

	seed := p.Seed
	if seed == 0 {
		seed = s.config.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	method := s.config.Method
	if method == MethodBootstrap && len(p.HistoricalReturns) == 0 {
		method = MethodParametric
	}

	s.logger.Info("starting Monte Carlo simulation",
		zap.Int("num_simulations", n),
		zap.Int("days", p.Days),
		zap.String("method", string(method)),
	)

	terminal, paths, err := s.runParallel(ctx, p, n, seed, method)
	if err != nil {
		return nil, err
	}

	losses := 0
	for _, v := range terminal {
		if v < p.StartingValue {
			losses++
		}
	}

	result := &Result{
		NumSimulations:    n,
		Days:              p.Days,
		Seed:              seed,
		Terminal:          calculateDistribution(terminal),
		ProbabilityOfLoss: float64(losses) / float64(n),
		SamplePaths:       paths,
	}

	s.logger.Info("Monte Carlo simulation complete",
		zap.Float64("median", result.Terminal.Median),
		zap.Float64("probability_of_loss", result.ProbabilityOfLoss),
	)
	return result, nil
}

// runParallel fans simulation indices out to a fixed set of workers
func (s *Simulator) runParallel(ctx context.Context, p Params, n int, seed int64, method Method) ([]float64, [][]float64, error) {
	terminal := make([]float64, n)
	keep := s.config.MaxSamplePaths
	if keep > n {
		keep = n
	}
	paths := make([][]float64, keep)

	numWorkers := s.config.ParallelWorkers
	if numWorkers > n {
		numWorkers = n
	}
	jobs := make(chan int, n)
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for simIdx := range jobs {
				if ctx.Err() != nil {
					continue
				}
				rng := rand.New(rand.NewSource(seed + int64(simIdx)))
				var path []float64
				if simIdx < keep {
					path = make([]float64, 0, p.Days+1)
				}
				terminal[simIdx], path = simulatePath(p, method, rng, path)
				if simIdx < keep {
					paths[simIdx] = path
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return terminal, paths, nil
}

// simulatePath walks one path. When path is non-nil every step is appended.
func simulatePath(p Params, method Method, rng *rand.Rand, path []float64) (float64, []float64) {
	value := p.StartingValue
	if path != nil {
		path = append(path, value)
	}

	for day := 0; day < p.Days; day++ {
		var r float64
		if method == MethodBootstrap {
			r = p.HistoricalReturns[rng.Intn(len(p.HistoricalReturns))]
		} else {
			r = p.DailyMean + p.DailyStdDev*StandardNormal(rng)
		}
		value *= 1 + r
		if value < 0 {
			value = 0
		}
		if path != nil {
			path = append(path, value)
		}
	}
	return value, path
}

// StandardNormal draws from N(0,1) with the Box-Muller transform. u1 is
// taken from (0, 1] so the logarithm is always finite.
func StandardNormal(rng *rand.Rand) float64 {
	u1 := 1 - rng.Float64()
	u2 := rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

func calculateDistribution(values []float64) *Distribution {
	if len(values) == 0 {
		return &Distribution{Percentiles: map[int]float64{}}
	}

	sorted := utils.SortedCopy(values)
	dist := &Distribution{
		Mean:        utils.Mean(values),
		Median:      utils.Percentile(sorted, 50),
		StdDev:      utils.StdDev(values),
		Min:         sorted[0],
		Max:         sorted[len(sorted)-1],
		Percentiles: make(map[int]float64, len(ReportedPercentiles)),
	}
	for _, pct := range ReportedPercentiles {
		dist.Percentiles[pct] = utils.Percentile(sorted, float64(pct))
	}
	return dist
}

// Package montecarlo samples every range-enabled parameter of a tree from a
// bounded normal distribution, evaluates the calculation engine per sample,
// and aggregates the chosen objective metric into summary statistics.
package montecarlo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mlavoie/rentwise/internal/kpi"
	"github.com/mlavoie/rentwise/internal/params"
	"github.com/mlavoie/rentwise/pkg/constants"
	"github.com/mlavoie/rentwise/pkg/mathutil"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Config is the caller-supplied simulation request. A zero Seed draws a
// seed from the wall clock; tests pass a fixed one.
type Config struct {
	Objective  string `yaml:"objective" json:"objective" mapstructure:"objective"`
	Iterations int    `yaml:"iterations,omitempty" json:"iterations,omitempty" mapstructure:"iterations"`
	Seed       int64  `yaml:"seed,omitempty" json:"seed,omitempty" mapstructure:"seed"`
}

// Normalize applies the documented defaults.
func (c *Config) Normalize() {
	if c.Iterations <= 0 {
		c.Iterations = constants.DefaultMonteCarloIterations
	}
}

// Validate rejects unknown objective metrics.
func (c *Config) Validate() error {
	c.Normalize()
	if _, ok := (kpi.Result{}).Metric(c.Objective); !ok {
		return fmt.Errorf("objective metric %q is not a known KPI", c.Objective)
	}
	return nil
}

// RangedParameter describes one discovered sampling dimension.
type RangedParameter struct {
	Path    string  `json:"path"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

// Statistics summarizes the collected samples. StdDev is the population
// standard deviation; percentiles use the floor(n*p) index convention over
// a sorted copy, not interpolation.
type Statistics struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stdDev"`
	P10    float64 `json:"p10"`
	P90    float64 `json:"p90"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Result is the outcome of one simulation run.
type Result struct {
	RunID      string            `json:"runId"`
	Objective  string            `json:"objective"`
	Samples    []float64         `json:"samples"`
	Statistics Statistics        `json:"statistics"`
	Parameters []RangedParameter `json:"parameters"`
	Duration   time.Duration     `json:"duration"`
}

// sampler owns the RNG and the Box-Muller spare-value cache for a single
// run. It is never shared across runs so repeated or concurrent simulations
// cannot leak state into each other.
type sampler struct {
	rng      *rand.Rand
	spare    float64
	hasSpare bool
}

func newSampler(seed int64) *sampler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &sampler{rng: rand.New(rand.NewSource(seed))}
}

// normal draws from N(mean, stddev) via the Box-Muller transform. The
// transform's second output is cached and reused on the following draw.
func (s *sampler) normal(mean, stddev float64) float64 {
	if s.hasSpare {
		s.hasSpare = false
		return mean + stddev*s.spare
	}
	u1 := s.rng.Float64()
	for u1 == 0 {
		u1 = s.rng.Float64()
	}
	u2 := s.rng.Float64()
	radius := math.Sqrt(-2 * math.Log(u1))
	theta := 2 * math.Pi * u2
	s.spare = radius * math.Sin(theta)
	s.hasSpare = true
	return mean + stddev*radius*math.Cos(theta)
}

// DiscoverParameters walks the whole tree and keeps every leaf whose range
// is active. Expense-line amounts are discovered through the same rule via
// the structural list walk in params.Leaves.
func DiscoverParameters(tree *params.ParameterTree) []RangedParameter {
	var discovered []RangedParameter
	for _, leaf := range params.Leaves(tree) {
		if !leaf.Param.RangeActive() {
			continue
		}
		r := leaf.Param.Range
		discovered = append(discovered, RangedParameter{
			Path:    leaf.Path,
			Min:     r.Min,
			Max:     r.Max,
			Default: r.Default,
		})
	}
	return discovered
}

// Run executes the simulation. Each trial samples every discovered
// parameter independently (mean = range default, sigma = (max-min)/6,
// clamped to the range), applies the draws to a fresh copy of the base
// tree, and records the objective metric.
func Run(logger *zap.Logger, base *params.ParameterTree, cfg Config) (*Result, error) {
	if base == nil {
		return nil, fmt.Errorf("base parameter tree cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	parameters := DiscoverParameters(base)
	samples := make([]float64, cfg.Iterations)

	if len(parameters) == 0 {
		// Degenerate run: nothing to sample, every trial is the
		// deterministic base result. Callers detect the zero spread.
		result := kpi.Calculate(base)
		value, _ := result.Metric(cfg.Objective)
		for i := range samples {
			samples[i] = value
		}
		logger.Debug("no range-enabled parameters; distribution collapses to the base result",
			zap.String("op", "montecarlo.Run"),
			zap.String("objective", cfg.Objective),
		)
	} else {
		// The sampler (and its Box-Muller cache) is created per run.
		smp := newSampler(cfg.Seed)
		overrides := make(map[string]float64, len(parameters))
		for i := 0; i < cfg.Iterations; i++ {
			for _, p := range parameters {
				sigma := (p.Max - p.Min) / constants.SigmaDivisor
				overrides[p.Path] = mathutil.Clamp(smp.normal(p.Default, sigma), p.Min, p.Max)
			}
			trial, err := params.Apply(base, overrides)
			if err != nil {
				return nil, err
			}
			result := kpi.Calculate(trial)
			samples[i], _ = result.Metric(cfg.Objective)
		}
	}

	duration := time.Since(start)
	stats := Summarize(samples)

	logger.Info("monte carlo simulation completed",
		zap.String("op", "montecarlo.Run"),
		zap.String("objective", cfg.Objective),
		zap.Int("iterations", cfg.Iterations),
		zap.Int("parameters", len(parameters)),
		zap.Float64("mean", stats.Mean),
		zap.Float64("stdDev", stats.StdDev),
		zap.Duration("duration", duration),
	)

	return &Result{
		RunID:      uuid.NewString(),
		Objective:  cfg.Objective,
		Samples:    samples,
		Statistics: stats,
		Parameters: parameters,
		Duration:   duration,
	}, nil
}

// Summarize computes the distribution statistics over the samples.
func Summarize(samples []float64) Statistics {
	if len(samples) == 0 {
		return Statistics{}
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	return Statistics{
		Mean:   stat.Mean(sorted, nil),
		Median: percentile(sorted, 0.50),
		StdDev: stat.PopStdDev(sorted, nil),
		P10:    percentile(sorted, 0.10),
		P90:    percentile(sorted, 0.90),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
}

// percentile indexes a sorted slice at floor(n*p), deliberately without
// interpolation.
func percentile(sorted []float64, p float64) float64 {
	index := int(math.Floor(float64(len(sorted)) * p))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

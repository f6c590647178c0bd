// Package optimizer implements the constrained grid-search optimizer: it
// enumerates a discretized parameter space, evaluates the calculation engine
// at every point, and ranks the results under the configured constraints.
package optimizer

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mlavoie/rentwise/internal/kpi"
	"github.com/mlavoie/rentwise/internal/params"
	"github.com/mlavoie/rentwise/pkg/constants"
	"go.uber.org/zap"
)

// Objective selects the optimization direction for the target metric.
type Objective string

const (
	Maximize Objective = "maximize"
	Minimize Objective = "minimize"
)

// Constraint operators.
const (
	OperatorGTE = ">="
	OperatorLTE = "<="
	OperatorEQ  = "="
)

// Variable describes one searchable parameter. Locked variables are kept at
// their baseline value and excluded from the grid.
type Variable struct {
	Path   string  `yaml:"path" json:"path" mapstructure:"path"`
	Min    float64 `yaml:"min" json:"min" mapstructure:"min"`
	Max    float64 `yaml:"max" json:"max" mapstructure:"max"`
	Step   float64 `yaml:"step,omitempty" json:"step,omitempty" mapstructure:"step"`
	Locked bool    `yaml:"locked,omitempty" json:"locked,omitempty" mapstructure:"locked"`
}

// Constraint restricts which grid points count as feasible.
type Constraint struct {
	Metric   string  `yaml:"metric" json:"metric" mapstructure:"metric"`
	Operator string  `yaml:"operator" json:"operator" mapstructure:"operator"`
	Value    float64 `yaml:"value" json:"value" mapstructure:"value"`
}

// Config is the fully caller-supplied optimization request.
type Config struct {
	Objective     Objective    `yaml:"objective" json:"objective" mapstructure:"objective"`
	TargetMetric  string       `yaml:"targetMetric" json:"targetMetric" mapstructure:"targetMetric"`
	Variables     []Variable   `yaml:"variables" json:"variables" mapstructure:"variables"`
	Constraints   []Constraint `yaml:"constraints,omitempty" json:"constraints,omitempty" mapstructure:"constraints"`
	MaxIterations int          `yaml:"maxIterations,omitempty" json:"maxIterations,omitempty" mapstructure:"maxIterations"`
	TopK          int          `yaml:"topK,omitempty" json:"topK,omitempty" mapstructure:"topK"`
}

// Normalize applies the documented defaults.
func (c *Config) Normalize() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = constants.DefaultMaxIterations
	}
	if c.TopK <= 0 {
		c.TopK = constants.DefaultTopK
	}
	if c.Objective == "" {
		c.Objective = Maximize
	}
	c.Objective = Objective(strings.ToLower(string(c.Objective)))
}

// Validate rejects unsupported objectives, metrics, operators, and bounds.
func (c *Config) Validate() error {
	c.Normalize()
	if c.Objective != Maximize && c.Objective != Minimize {
		return fmt.Errorf("objective %q is not supported", c.Objective)
	}
	if _, ok := (kpi.Result{}).Metric(c.TargetMetric); !ok {
		return fmt.Errorf("target metric %q is not a known KPI", c.TargetMetric)
	}
	for i, v := range c.Variables {
		if strings.TrimSpace(v.Path) == "" {
			return fmt.Errorf("variable %d: path cannot be empty", i)
		}
		if v.Min > v.Max {
			return fmt.Errorf("variable %s: min %.4f must not exceed max %.4f", v.Path, v.Min, v.Max)
		}
		if v.Step < 0 {
			return fmt.Errorf("variable %s: step cannot be negative", v.Path)
		}
	}
	for i, ct := range c.Constraints {
		if _, ok := (kpi.Result{}).Metric(ct.Metric); !ok {
			return fmt.Errorf("constraint %d: metric %q is not a known KPI", i, ct.Metric)
		}
		switch ct.Operator {
		case OperatorGTE, OperatorLTE, OperatorEQ:
		default:
			return fmt.Errorf("constraint %d: operator %q is not supported", i, ct.Operator)
		}
	}
	return nil
}

// Solution is one evaluated grid point.
type Solution struct {
	Rank        int                `json:"rank"`
	Feasible    bool               `json:"feasible"`
	TargetValue float64            `json:"targetValue"`
	Values      map[string]float64 `json:"values"`
	Result      kpi.Result         `json:"result"`
}

// Result carries the ranked top-K solutions. Iterations reports the full
// count of points evaluated, not the count returned.
type Result struct {
	RunID      string        `json:"runId"`
	Solutions  []Solution    `json:"solutions"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration"`
}

// Runner owns one optimization run against a shared baseline tree. Every
// trial is applied to an independent deep copy of the baseline.
type Runner struct {
	logger *zap.Logger
	base   *params.ParameterTree
	cfg    Config
}

// NewRunner validates the configuration and constructs a Runner.
func NewRunner(logger *zap.Logger, base *params.ParameterTree, cfg Config) (*Runner, error) {
	if base == nil {
		return nil, fmt.Errorf("base parameter tree cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{logger: logger, base: base, cfg: cfg}, nil
}

// Optimize runs a grid search in one call.
func Optimize(logger *zap.Logger, base *params.ParameterTree, cfg Config) (*Result, error) {
	runner, err := NewRunner(logger, base, cfg)
	if err != nil {
		return nil, err
	}
	return runner.Run()
}

// Run enumerates the cartesian product of per-variable grids depth-first in
// listed variable order, capped at MaxIterations, then ranks the evaluated
// points feasible-first by the target metric.
func (r *Runner) Run() (*Result, error) {
	start := time.Now()

	active := make([]Variable, 0, len(r.cfg.Variables))
	for _, v := range r.cfg.Variables {
		if !v.Locked {
			active = append(active, v)
		}
	}

	// Baseline paths are resolved up front so a typo fails before a
	// 10,000-point enumeration rather than inside it.
	for _, v := range active {
		if _, err := params.Get(r.base, v.Path); err != nil {
			return nil, fmt.Errorf("optimizer variable: %w", err)
		}
	}

	var solutions []Solution
	iterations := 0

	if len(active) == 0 {
		// Fully locked search: evaluate the baseline once, feasibility
		// still checked.
		result := kpi.Calculate(r.base)
		solutions = append(solutions, r.makeSolution(map[string]float64{}, result))
		iterations = 1
	} else {
		grids := make([][]float64, len(active))
		pointsPerVariable := gridPointBudget(r.cfg.MaxIterations, len(active))
		for i, v := range active {
			grids[i] = variableGrid(v, pointsPerVariable)
		}

		overrides := make(map[string]float64, len(active))
		var enumerate func(depth int) error
		enumerate = func(depth int) error {
			if iterations >= r.cfg.MaxIterations {
				return nil
			}
			if depth == len(active) {
				trial, err := params.Apply(r.base, overrides)
				if err != nil {
					return err
				}
				result := kpi.Calculate(trial)
				values := make(map[string]float64, len(overrides))
				for path, value := range overrides {
					values[path] = value
				}
				solutions = append(solutions, r.makeSolution(values, result))
				iterations++
				return nil
			}
			for _, value := range grids[depth] {
				overrides[active[depth].Path] = value
				if err := enumerate(depth + 1); err != nil {
					return err
				}
				if iterations >= r.cfg.MaxIterations {
					return nil
				}
			}
			return nil
		}
		if err := enumerate(0); err != nil {
			return nil, err
		}
	}

	r.rank(solutions)

	kept := solutions
	if len(kept) > r.cfg.TopK {
		kept = kept[:r.cfg.TopK]
	}

	duration := time.Since(start)
	r.logger.Info("grid search completed",
		zap.String("op", "optimizer.Run"),
		zap.String("targetMetric", r.cfg.TargetMetric),
		zap.String("objective", string(r.cfg.Objective)),
		zap.Int("iterations", iterations),
		zap.Int("solutions", len(kept)),
		zap.Duration("duration", duration),
	)

	return &Result{
		RunID:      uuid.NewString(),
		Solutions:  kept,
		Iterations: iterations,
		Duration:   duration,
	}, nil
}

func (r *Runner) makeSolution(values map[string]float64, result kpi.Result) Solution {
	target, _ := result.Metric(r.cfg.TargetMetric)
	return Solution{
		Feasible:    r.feasible(result),
		TargetValue: target,
		Values:      values,
		Result:      result,
	}
}

func (r *Runner) feasible(result kpi.Result) bool {
	for _, ct := range r.cfg.Constraints {
		value, _ := result.Metric(ct.Metric)
		switch ct.Operator {
		case OperatorGTE:
			if value < ct.Value {
				return false
			}
		case OperatorLTE:
			if value > ct.Value {
				return false
			}
		case OperatorEQ:
			if math.Abs(value-ct.Value) >= constants.ConstraintEqualityTolerance {
				return false
			}
		}
	}
	return true
}

// rank sorts feasible solutions before infeasible ones, orders each group by
// the target metric per the objective, and assigns 1-based ranks afterwards.
func (r *Runner) rank(solutions []Solution) {
	sort.SliceStable(solutions, func(i, j int) bool {
		if solutions[i].Feasible != solutions[j].Feasible {
			return solutions[i].Feasible
		}
		if r.cfg.Objective == Minimize {
			return solutions[i].TargetValue < solutions[j].TargetValue
		}
		return solutions[i].TargetValue > solutions[j].TargetValue
	})
	for i := range solutions {
		solutions[i].Rank = i + 1
	}
}

// gridPointBudget spreads the iteration budget across n dimensions:
// floor(maxIterations^(1/n)) points per variable, never fewer than 2.
func gridPointBudget(maxIterations, dimensions int) int {
	points := int(math.Floor(math.Pow(float64(maxIterations), 1.0/float64(dimensions))))
	if points < 2 {
		points = 2
	}
	return points
}

// variableGrid discretizes one variable. An explicit step wins over the
// budgeted point count; either way the variable's max is always included as
// the final grid point.
func variableGrid(v Variable, budgetPoints int) []float64 {
	if v.Min == v.Max {
		return []float64{v.Min}
	}

	var points []float64
	if v.Step > 0 {
		// Small epsilon keeps accumulated float error from dropping the
		// point just below max or duplicating max itself.
		epsilon := v.Step * 1e-9
		for value := v.Min; value < v.Max-epsilon; value += v.Step {
			points = append(points, value)
		}
		points = append(points, v.Max)
		return points
	}

	points = make([]float64, budgetPoints)
	interval := (v.Max - v.Min) / float64(budgetPoints-1)
	for i := 0; i < budgetPoints; i++ {
		points[i] = v.Min + interval*float64(i)
	}
	points[budgetPoints-1] = v.Max
	return points
}

package kpi

import (
	"github.com/mlavoie/rentwise/internal/params"
)

// SweepPoint pairs one trial value of the swept parameter with the full
// engine result at that value.
type SweepPoint struct {
	Value  float64 `json:"value"`
	Result Result  `json:"result"`
}

// Sweep evaluates the engine once per value, overriding a single path
// against a fresh copy of the base tree each time. The base tree is never
// mutated.
func Sweep(tree *params.ParameterTree, path string, values []float64) ([]SweepPoint, error) {
	points := make([]SweepPoint, 0, len(values))
	for _, value := range values {
		trial, err := params.Set(tree, path, value)
		if err != nil {
			return nil, err
		}
		points = append(points, SweepPoint{Value: value, Result: Calculate(trial)})
	}
	return points, nil
}

// Package output provides utilities for formatting and displaying analysis results.
package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mlavoie/rentwise/internal/kpi"
	"github.com/mlavoie/rentwise/internal/montecarlo"
	"github.com/mlavoie/rentwise/internal/optimizer"
	"github.com/mlavoie/rentwise/pkg/constants"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ValidateFormat checks if the output format is one of the supported formats.
func ValidateFormat(format string) error {
	if format != constants.OutputFormatPretty && format != constants.OutputFormatCSV {
		return fmt.Errorf("expected output format of %s or %s, got %s",
			constants.OutputFormatPretty, constants.OutputFormatCSV, format)
	}
	return nil
}

// Currency returns a currency string with a dollar sign and thousands
// separators (e.g., "-$1,234.56").
func Currency(amount float64) string {
	p := message.NewPrinter(language.English)
	if amount < 0 {
		return p.Sprintf("-$%.2f", -amount)
	}
	return p.Sprintf("$%.2f", amount)
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(result kpi.Result) {
	p := message.NewPrinter(language.English)
	fmt.Printf("--- KPI results ---\n")
	fmt.Printf("Metric               | Value         | Formula\n")
	fmt.Printf("______               | _____________ | _______\n")
	for _, name := range kpi.MetricNames {
		value, _ := result.Metric(name)
		trace := result.Traces[name]
		_, _ = p.Printf("%-20s | %13.2f | %s\n", name, value, trace.Formula)
		if trace.Note != "" {
			fmt.Printf("%-20s |               | note: %s\n", "", trace.Note)
		}
	}

	if len(result.ExpensesByCategory) > 0 {
		fmt.Printf("\nAnnual expenses by category:\n")
		categories := make([]string, 0, len(result.ExpensesByCategory))
		for category := range result.ExpensesByCategory {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		for _, category := range categories {
			_, _ = p.Printf("  %-18s %13.2f\n", category, result.ExpensesByCategory[category])
		}
	}
}

// CsvFormat outputs in comma-separated value format.
func CsvFormat(result kpi.Result) {
	fmt.Printf("\"metric\",\"value\",\"formula\"\n")
	for _, name := range kpi.MetricNames {
		value, _ := result.Metric(name)
		trace := result.Traces[name]
		fmt.Printf("\"%s\",\"%.2f\",\"%s\"\n", name, value, strings.ReplaceAll(trace.Formula, `"`, `""`))
	}
}

// PrettyOptimization prints the ranked solutions of a grid search.
func PrettyOptimization(res *optimizer.Result, targetMetric string) {
	fmt.Printf("--- Optimization results (%d iterations in %s) ---\n", res.Iterations, res.Duration)
	for _, solution := range res.Solutions {
		feasibility := "feasible"
		if !solution.Feasible {
			feasibility = "infeasible"
		}
		fmt.Printf("#%d [%s] %s = %.2f\n", solution.Rank, feasibility, targetMetric, solution.TargetValue)
		paths := make([]string, 0, len(solution.Values))
		for path := range solution.Values {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			fmt.Printf("    %s = %.2f\n", path, solution.Values[path])
		}
	}
}

// PrettyMonteCarlo prints the distribution summary of a simulation run.
func PrettyMonteCarlo(res *montecarlo.Result) {
	p := message.NewPrinter(language.English)
	fmt.Printf("--- Monte Carlo results for %s (%d samples in %s) ---\n",
		res.Objective, len(res.Samples), res.Duration)
	stats := res.Statistics
	_, _ = p.Printf("mean %.2f | median %.2f | stddev %.2f\n", stats.Mean, stats.Median, stats.StdDev)
	_, _ = p.Printf("p10 %.2f | p90 %.2f | min %.2f | max %.2f\n", stats.P10, stats.P90, stats.Min, stats.Max)
	if len(res.Parameters) > 0 {
		fmt.Printf("Sampled parameters:\n")
		for _, param := range res.Parameters {
			fmt.Printf("  %s in [%.2f, %.2f], default %.2f\n", param.Path, param.Min, param.Max, param.Default)
		}
	} else {
		fmt.Printf("No range-enabled parameters; distribution equals the deterministic base result.\n")
	}
}

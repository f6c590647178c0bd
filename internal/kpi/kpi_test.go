package kpi

import (
	"math"
	"reflect"
	"testing"

	"github.com/mlavoie/rentwise/internal/params"
	"github.com/mlavoie/rentwise/pkg/mathutil"
)

func baseTree() *params.ParameterTree {
	return &params.ParameterTree{
		Property: params.Property{
			PurchasePrice:       params.Scalar(400000),
			MunicipalAssessment: params.Scalar(380000),
			AppreciationRate:    params.Scalar(3),
		},
		Financing: params.Financing{
			DownPayment:       params.Scalar(80000),
			InterestRate:      params.Scalar(5),
			AmortizationYears: params.Scalar(25),
			PaymentFrequency:  "monthly",
		},
		Revenue: params.Revenue{
			DailyRate:     params.Scalar(150),
			OccupancyRate: params.Scalar(65),
			DaysPerYear:   params.Scalar(365),
		},
		Acquisition: params.Acquisition{
			NotaryFees: params.Scalar(1500),
			OtherFees:  params.Scalar(1000),
		},
		Expenses: []params.ExpenseLine{
			{ID: "ins", Name: "Insurance", Type: params.ExpenseFixedAnnual, Amount: params.Scalar(2400), Category: "Insurance"},
			{ID: "hydro", Name: "Utilities", Type: params.ExpenseFixedMonthly, Amount: params.Scalar(200), Category: "Utilities"},
			{ID: "mgmt", Name: "Management", Type: params.ExpensePercentageRevenue, Amount: params.Scalar(10)},
			{ID: "tax", Name: "Property tax", Type: params.ExpensePercentagePropertyValue, Amount: params.Scalar(1), Category: "Taxes"},
		},
	}
}

func TestCalculatePipeline(t *testing.T) {
	result := Calculate(baseTree())

	tests := []struct {
		metric   string
		expected float64
	}{
		{MetricNightsSold, 237.25},
		{MetricAnnualRevenue, 35587.50},
		{MetricTotalExpenses, 12358.75},
		{MetricNetOperatingIncome, 23228.75},
		{MetricLoanAmount, 320000.00},
		{MetricPeriodicPayment, 1870.69},
		{MetricAnnualDebtService, 22448.28},
		{MetricTransferDuty, 4416.00},
		{MetricTotalAcquisitionFees, 6916.00},
		{MetricInitialInvestment, 86916.00},
		{MetricAnnualCashflow, 780.47},
		{MetricFirstYearPrincipal, 6598.12},
		{MetricPropertyAppreciation, 12000.00},
		{MetricCashflowROI, 0.90},
		{MetricCapitalizationROI, 7.59},
		{MetricAppreciationROI, 13.81},
		{MetricTotalROI, 22.30},
		{MetricCashOnCash, 0.90},
		{MetricCapRate, 5.81},
	}

	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			got, ok := result.Metric(tt.metric)
			if !ok {
				t.Fatalf("Metric(%q) not found", tt.metric)
			}
			if got != tt.expected {
				t.Errorf("%s = %.4f, expected %.4f", tt.metric, got, tt.expected)
			}
		})
	}
}

func TestExpensesByCategory(t *testing.T) {
	result := Calculate(baseTree())

	expected := map[string]float64{
		"Insurance": 2400.00,
		"Utilities": 2400.00,
		"Other":     3558.75, // uncategorized management fee
		"Taxes":     4000.00,
	}
	if !reflect.DeepEqual(result.ExpensesByCategory, expected) {
		t.Errorf("ExpensesByCategory = %v, expected %v", result.ExpensesByCategory, expected)
	}
}

func TestTraceResultConsistency(t *testing.T) {
	result := Calculate(baseTree())

	for _, name := range MetricNames {
		value, ok := result.Metric(name)
		if !ok {
			t.Fatalf("Metric(%q) not found", name)
		}
		trace, ok := result.Traces[name]
		if !ok {
			t.Fatalf("no trace recorded for metric %q", name)
		}
		if trace.Result != value {
			t.Errorf("trace result for %s = %.4f, metric = %.4f", name, trace.Result, value)
		}
		if trace.Formula == "" {
			t.Errorf("trace for %s has no formula", name)
		}
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	tree := baseTree()
	first := Calculate(tree)
	second := Calculate(tree)
	if !reflect.DeepEqual(first, second) {
		t.Error("Calculate() on an unchanged tree produced different results")
	}
}

func TestTracesAreFreshPerCall(t *testing.T) {
	tree := baseTree()
	first := Calculate(tree)
	second := Calculate(tree)

	first.Traces[MetricCapRate] = Trace{Formula: "tampered"}
	if second.Traces[MetricCapRate].Formula == "tampered" {
		t.Error("trace maps are shared across calls")
	}
}

func TestZeroPurchasePriceGuards(t *testing.T) {
	tree := baseTree()
	tree.Property.PurchasePrice = params.Scalar(0)
	tree.Property.MunicipalAssessment = params.Scalar(0)
	result := Calculate(tree)

	if result.CapRate != 0 {
		t.Errorf("capRate = %.4f, expected 0", result.CapRate)
	}
	if result.Traces[MetricCapRate].Note == "" {
		t.Error("capRate trace carries no explanatory note")
	}

	for _, name := range MetricNames {
		value, _ := result.Metric(name)
		if math.IsNaN(value) || math.IsInf(value, 0) {
			t.Errorf("%s = %v on degenerate tree, expected a finite value", name, value)
		}
	}
}

func TestZeroInitialInvestmentGuards(t *testing.T) {
	tree := baseTree()
	tree.Financing.DownPayment = params.Scalar(0)
	tree.Property.PurchasePrice = params.Scalar(0)
	tree.Property.MunicipalAssessment = params.Scalar(0)
	tree.Acquisition.NotaryFees = params.Scalar(0)
	tree.Acquisition.OtherFees = params.Scalar(0)
	result := Calculate(tree)

	if result.InitialInvestment != 0 {
		t.Fatalf("initialInvestment = %.2f, expected 0", result.InitialInvestment)
	}
	for _, name := range []string{MetricCashflowROI, MetricCapitalizationROI, MetricAppreciationROI, MetricTotalROI, MetricCashOnCash} {
		value, _ := result.Metric(name)
		if value != 0 {
			t.Errorf("%s = %.4f, expected guarded 0", name, value)
		}
		if result.Traces[name].Note == "" {
			t.Errorf("%s trace carries no explanatory note", name)
		}
	}
}

func TestTransferDutyBrackets(t *testing.T) {
	tests := []struct {
		name     string
		base     float64
		expected float64
	}{
		{"Below tier 1", 50000, 250.00},
		{"Exactly tier 1 limit", 52800, 264.00},
		{"Mid tier 2", 150000, 1236.00},
		{"Exactly tier 2 limit", 264000, 2376.00},
		{"Above tier 2", 600000, 7416.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := baseTree()
			tree.Property.PurchasePrice = params.Scalar(tt.base)
			tree.Property.MunicipalAssessment = params.Scalar(0)
			result := Calculate(tree)
			if result.TransferDuty != tt.expected {
				t.Errorf("transferDuty(%.0f) = %.2f, expected %.2f", tt.base, result.TransferDuty, tt.expected)
			}
		})
	}
}

func TestTransferDutyUsesMunicipalAssessmentWhenHigher(t *testing.T) {
	tree := baseTree()
	tree.Property.PurchasePrice = params.Scalar(400000)
	tree.Property.MunicipalAssessment = params.Scalar(600000)
	result := Calculate(tree)
	if result.TransferDuty != 7416.00 {
		t.Errorf("transferDuty = %.2f, expected 7416.00 on the higher assessment", result.TransferDuty)
	}

	// A non-positive assessment never overrides the price.
	tree.Property.MunicipalAssessment = params.Scalar(-1)
	result = Calculate(tree)
	if result.TransferDuty != 4416.00 {
		t.Errorf("transferDuty = %.2f, expected 4416.00 on the purchase price", result.TransferDuty)
	}
}

func TestZeroInterestPayment(t *testing.T) {
	tree := baseTree()
	tree.Financing.InterestRate = params.Scalar(0)
	tree.Financing.AmortizationYears = params.Scalar(10)
	result := Calculate(tree)

	// 320,000 over 120 payments with no interest.
	if result.PeriodicPayment != 2666.67 {
		t.Errorf("periodicPayment = %.2f, expected 2666.67", result.PeriodicPayment)
	}
	if result.FirstYearPrincipal != mathutil.Round(result.PeriodicPayment*12) {
		t.Errorf("firstYearPrincipal = %.2f, expected full payments %.2f",
			result.FirstYearPrincipal, mathutil.Round(result.PeriodicPayment*12))
	}
}

func TestPaymentFrequencies(t *testing.T) {
	tests := []struct {
		frequency       string
		paymentsPerYear float64
	}{
		{"monthly", 12},
		{"biweekly", 26},
		{"weekly", 52},
		{"annual", 1},
	}

	for _, tt := range tests {
		t.Run(tt.frequency, func(t *testing.T) {
			tree := baseTree()
			tree.Financing.PaymentFrequency = tt.frequency
			result := Calculate(tree)
			expected := mathutil.Round(result.PeriodicPayment * tt.paymentsPerYear)
			if result.AnnualDebtService != expected {
				t.Errorf("annualDebtService = %.2f, expected periodicPayment * %v = %.2f",
					result.AnnualDebtService, tt.paymentsPerYear, expected)
			}
		})
	}
}

func TestRangeResolutionInEngine(t *testing.T) {
	tree := baseTree()
	tree.Revenue.DailyRate = params.ScalarOrRange{
		Value: 150,
		Range: &params.Range{Min: 100, Max: 200, Default: 180, UseRange: false},
	}
	inactive := Calculate(tree)
	if inactive.AnnualRevenue != 35587.50 {
		t.Errorf("annualRevenue with inactive range = %.2f, expected scalar-based 35587.50", inactive.AnnualRevenue)
	}

	tree.Revenue.DailyRate.Range.UseRange = true
	active := Calculate(tree)
	expected := mathutil.Round(180 * 237.25)
	if active.AnnualRevenue != expected {
		t.Errorf("annualRevenue with active range = %.2f, expected default-based %.2f", active.AnnualRevenue, expected)
	}
}

// Package kpi implements the cascading KPI calculation engine. Calculate is
// a pure function over a resolved parameter tree: the same tree always
// yields bit-identical output, and every metric carries a full computation
// trace (formula, inputs used, result).
package kpi

import (
	"fmt"

	"github.com/mlavoie/rentwise/internal/params"
	"github.com/mlavoie/rentwise/pkg/constants"
	"github.com/mlavoie/rentwise/pkg/loans"
	"github.com/mlavoie/rentwise/pkg/mathutil"
)

// Metric names. These key the Traces map and are the vocabulary the
// optimizer and Monte Carlo engine use to select a target metric.
const (
	MetricNightsSold           = "nightsSold"
	MetricAnnualRevenue        = "annualRevenue"
	MetricTotalExpenses        = "totalExpenses"
	MetricNetOperatingIncome   = "netOperatingIncome"
	MetricLoanAmount           = "loanAmount"
	MetricPeriodicPayment      = "periodicPayment"
	MetricAnnualDebtService    = "annualDebtService"
	MetricTransferDuty         = "transferDuty"
	MetricTotalAcquisitionFees = "totalAcquisitionFees"
	MetricInitialInvestment    = "initialInvestment"
	MetricAnnualCashflow       = "annualCashflow"
	MetricFirstYearPrincipal   = "firstYearPrincipal"
	MetricPropertyAppreciation = "propertyAppreciation"
	MetricCashflowROI          = "cashflowROI"
	MetricCapitalizationROI    = "capitalizationROI"
	MetricAppreciationROI      = "appreciationROI"
	MetricTotalROI             = "totalROI"
	MetricCashOnCash           = "cashOnCash"
	MetricCapRate              = "capRate"
)

// MetricNames lists every metric in pipeline order.
var MetricNames = []string{
	MetricNightsSold,
	MetricAnnualRevenue,
	MetricTotalExpenses,
	MetricNetOperatingIncome,
	MetricLoanAmount,
	MetricPeriodicPayment,
	MetricAnnualDebtService,
	MetricTransferDuty,
	MetricTotalAcquisitionFees,
	MetricInitialInvestment,
	MetricAnnualCashflow,
	MetricFirstYearPrincipal,
	MetricPropertyAppreciation,
	MetricCashflowROI,
	MetricCapitalizationROI,
	MetricAppreciationROI,
	MetricTotalROI,
	MetricCashOnCash,
	MetricCapRate,
}

// Trace records how one metric was computed: the human-readable formula,
// the named inputs actually used, and the result. A fresh trace is produced
// on every calculation call; traces are never cached across calls.
type Trace struct {
	Formula   string              `json:"formula"`
	Variables map[string]float64  `json:"variables"`
	Result    float64             `json:"result"`
	Note      string              `json:"note,omitempty"`
	Sources   []params.SourceInfo `json:"sources,omitempty"`
}

// Result is the flat record of derived metrics plus per-category expense
// sums and the trace for every metric. Every metric has a trace whose
// result equals the metric exactly (same rounding).
type Result struct {
	NightsSold           float64 `json:"nightsSold"`
	AnnualRevenue        float64 `json:"annualRevenue"`
	TotalExpenses        float64 `json:"totalExpenses"`
	NetOperatingIncome   float64 `json:"netOperatingIncome"`
	LoanAmount           float64 `json:"loanAmount"`
	PeriodicPayment      float64 `json:"periodicPayment"`
	AnnualDebtService    float64 `json:"annualDebtService"`
	TransferDuty         float64 `json:"transferDuty"`
	TotalAcquisitionFees float64 `json:"totalAcquisitionFees"`
	InitialInvestment    float64 `json:"initialInvestment"`
	AnnualCashflow       float64 `json:"annualCashflow"`
	FirstYearPrincipal   float64 `json:"firstYearPrincipal"`
	PropertyAppreciation float64 `json:"propertyAppreciation"`
	CashflowROI          float64 `json:"cashflowROI"`
	CapitalizationROI    float64 `json:"capitalizationROI"`
	AppreciationROI      float64 `json:"appreciationROI"`
	TotalROI             float64 `json:"totalROI"`
	CashOnCash           float64 `json:"cashOnCash"`
	CapRate              float64 `json:"capRate"`

	ExpensesByCategory map[string]float64 `json:"expensesByCategory"`
	Traces             map[string]Trace   `json:"traces"`
}

// Metric returns the named metric value.
func (r Result) Metric(name string) (float64, bool) {
	switch name {
	case MetricNightsSold:
		return r.NightsSold, true
	case MetricAnnualRevenue:
		return r.AnnualRevenue, true
	case MetricTotalExpenses:
		return r.TotalExpenses, true
	case MetricNetOperatingIncome:
		return r.NetOperatingIncome, true
	case MetricLoanAmount:
		return r.LoanAmount, true
	case MetricPeriodicPayment:
		return r.PeriodicPayment, true
	case MetricAnnualDebtService:
		return r.AnnualDebtService, true
	case MetricTransferDuty:
		return r.TransferDuty, true
	case MetricTotalAcquisitionFees:
		return r.TotalAcquisitionFees, true
	case MetricInitialInvestment:
		return r.InitialInvestment, true
	case MetricAnnualCashflow:
		return r.AnnualCashflow, true
	case MetricFirstYearPrincipal:
		return r.FirstYearPrincipal, true
	case MetricPropertyAppreciation:
		return r.PropertyAppreciation, true
	case MetricCashflowROI:
		return r.CashflowROI, true
	case MetricCapitalizationROI:
		return r.CapitalizationROI, true
	case MetricAppreciationROI:
		return r.AppreciationROI, true
	case MetricTotalROI:
		return r.TotalROI, true
	case MetricCashOnCash:
		return r.CashOnCash, true
	case MetricCapRate:
		return r.CapRate, true
	}
	return 0, false
}

func sources(values ...params.ScalarOrRange) []params.SourceInfo {
	var out []params.SourceInfo
	for _, v := range values {
		if v.Source != nil {
			out = append(out, *v.Source)
		}
	}
	return out
}

// Calculate runs the fixed KPI pipeline over a validated parameter tree.
// Each stage consumes only already-computed (and already-rounded) upstream
// metrics; the rounding order is part of the engine's observable contract.
func Calculate(tree *params.ParameterTree) Result {
	res := Result{
		ExpensesByCategory: make(map[string]float64),
		Traces:             make(map[string]Trace),
	}

	// Stage 1: nights sold.
	daysPerYear := tree.Revenue.DaysPerYear.Effective()
	occupancy := tree.Revenue.OccupancyRate.Effective()
	res.NightsSold = mathutil.Round(daysPerYear * occupancy / constants.PercentageMultiplier)
	res.Traces[MetricNightsSold] = Trace{
		Formula:   "nightsSold = daysPerYear * occupancyRate / 100",
		Variables: map[string]float64{"daysPerYear": daysPerYear, "occupancyRate": occupancy},
		Result:    res.NightsSold,
		Sources:   sources(tree.Revenue.DaysPerYear, tree.Revenue.OccupancyRate),
	}

	// Stage 2: annual revenue.
	dailyRate := tree.Revenue.DailyRate.Effective()
	res.AnnualRevenue = mathutil.Round(dailyRate * res.NightsSold)
	res.Traces[MetricAnnualRevenue] = Trace{
		Formula:   "annualRevenue = dailyRate * nightsSold",
		Variables: map[string]float64{"dailyRate": dailyRate, "nightsSold": res.NightsSold},
		Result:    res.AnnualRevenue,
		Sources:   sources(tree.Revenue.DailyRate),
	}

	// Stage 3: expense annualization and per-category sums.
	purchasePrice := tree.Property.PurchasePrice.Effective()
	res.TotalExpenses, res.ExpensesByCategory, res.Traces[MetricTotalExpenses] =
		annualizeExpenses(tree.Expenses, res.AnnualRevenue, purchasePrice)

	// Net operating income excludes debt service by definition.
	res.NetOperatingIncome = mathutil.Round(res.AnnualRevenue - res.TotalExpenses)
	res.Traces[MetricNetOperatingIncome] = Trace{
		Formula:   "netOperatingIncome = annualRevenue - totalExpenses",
		Variables: map[string]float64{"annualRevenue": res.AnnualRevenue, "totalExpenses": res.TotalExpenses},
		Result:    res.NetOperatingIncome,
	}

	// Stage 4: loan amount.
	downPayment := tree.Financing.DownPayment.Effective()
	res.LoanAmount = mathutil.Round(purchasePrice - downPayment)
	res.Traces[MetricLoanAmount] = Trace{
		Formula:   "loanAmount = purchasePrice - downPayment",
		Variables: map[string]float64{"purchasePrice": purchasePrice, "downPayment": downPayment},
		Result:    res.LoanAmount,
		Sources:   sources(tree.Property.PurchasePrice, tree.Financing.DownPayment),
	}

	// Stage 5 and 6: periodic payment and annual debt service. The payment
	// frequency was validated upstream; an unknown value degrades to monthly
	// rather than breaking purity with an error return.
	paymentsPerYear, err := tree.Financing.PaymentsPerYear()
	if err != nil {
		paymentsPerYear = constants.PaymentsPerYearMonthly
	}
	interestRate := tree.Financing.InterestRate.Effective()
	amortizationYears := tree.Financing.AmortizationYears.Effective()
	res.PeriodicPayment = mathutil.Round(loans.PeriodicPayment(res.LoanAmount, interestRate, amortizationYears, paymentsPerYear))
	res.Traces[MetricPeriodicPayment] = Trace{
		Formula: "periodicPayment = loanAmount * r / (1 - (1 + r)^-n), r = interestRate / 100 / paymentsPerYear, n = amortizationYears * paymentsPerYear",
		Variables: map[string]float64{
			"loanAmount":        res.LoanAmount,
			"interestRate":      interestRate,
			"amortizationYears": amortizationYears,
			"paymentsPerYear":   float64(paymentsPerYear),
		},
		Result:  res.PeriodicPayment,
		Sources: sources(tree.Financing.InterestRate, tree.Financing.AmortizationYears),
	}

	res.AnnualDebtService = mathutil.Round(res.PeriodicPayment * float64(paymentsPerYear))
	res.Traces[MetricAnnualDebtService] = Trace{
		Formula:   "annualDebtService = periodicPayment * paymentsPerYear",
		Variables: map[string]float64{"periodicPayment": res.PeriodicPayment, "paymentsPerYear": float64(paymentsPerYear)},
		Result:    res.AnnualDebtService,
	}

	// Stage 7: transfer duty on the greater of the price and a positive
	// municipal assessment, applied marginally across the brackets.
	assessment := tree.Property.MunicipalAssessment.Effective()
	dutyBase := purchasePrice
	if assessment > 0 && assessment > purchasePrice {
		dutyBase = assessment
	}
	res.TransferDuty = mathutil.Round(transferDuty(dutyBase))
	res.Traces[MetricTransferDuty] = Trace{
		Formula: "transferDuty = 0.5% of base up to 52,800 + 1.0% of base from 52,800 to 264,000 + 1.5% of base above 264,000, base = max(purchasePrice, municipalAssessment)",
		Variables: map[string]float64{
			"purchasePrice":       purchasePrice,
			"municipalAssessment": assessment,
			"base":                dutyBase,
		},
		Result:  res.TransferDuty,
		Sources: sources(tree.Property.PurchasePrice, tree.Property.MunicipalAssessment),
	}

	// Stage 8: acquisition fees and initial investment.
	notaryFees := tree.Acquisition.NotaryFees.Effective()
	otherFees := tree.Acquisition.OtherFees.Effective()
	res.TotalAcquisitionFees = mathutil.Round(res.TransferDuty + notaryFees + otherFees)
	res.Traces[MetricTotalAcquisitionFees] = Trace{
		Formula:   "totalAcquisitionFees = transferDuty + notaryFees + otherFees",
		Variables: map[string]float64{"transferDuty": res.TransferDuty, "notaryFees": notaryFees, "otherFees": otherFees},
		Result:    res.TotalAcquisitionFees,
		Sources:   sources(tree.Acquisition.NotaryFees, tree.Acquisition.OtherFees),
	}

	res.InitialInvestment = mathutil.Round(downPayment + res.TotalAcquisitionFees)
	res.Traces[MetricInitialInvestment] = Trace{
		Formula:   "initialInvestment = downPayment + totalAcquisitionFees",
		Variables: map[string]float64{"downPayment": downPayment, "totalAcquisitionFees": res.TotalAcquisitionFees},
		Result:    res.InitialInvestment,
	}

	// Stage 9: annual cashflow.
	res.AnnualCashflow = mathutil.Round(res.AnnualRevenue - res.TotalExpenses - res.AnnualDebtService)
	res.Traces[MetricAnnualCashflow] = Trace{
		Formula: "annualCashflow = annualRevenue - totalExpenses - annualDebtService",
		Variables: map[string]float64{
			"annualRevenue":     res.AnnualRevenue,
			"totalExpenses":     res.TotalExpenses,
			"annualDebtService": res.AnnualDebtService,
		},
		Result: res.AnnualCashflow,
	}

	// Stage 10: first-year principal via an amortization-schedule walk.
	res.FirstYearPrincipal = mathutil.Round(loans.FirstYearPrincipal(res.LoanAmount, interestRate, res.PeriodicPayment, paymentsPerYear))
	res.Traces[MetricFirstYearPrincipal] = Trace{
		Formula: "firstYearPrincipal = sum of (periodicPayment - balance * r) over the first year's payments against a declining balance",
		Variables: map[string]float64{
			"loanAmount":      res.LoanAmount,
			"interestRate":    interestRate,
			"periodicPayment": res.PeriodicPayment,
			"paymentsPerYear": float64(paymentsPerYear),
		},
		Result: res.FirstYearPrincipal,
	}

	// Stage 11: appreciation.
	appreciationRate := tree.Property.AppreciationRate.Effective()
	res.PropertyAppreciation = mathutil.Round(mathutil.ApplyPercentage(purchasePrice, appreciationRate))
	res.Traces[MetricPropertyAppreciation] = Trace{
		Formula:   "propertyAppreciation = purchasePrice * appreciationRate / 100",
		Variables: map[string]float64{"purchasePrice": purchasePrice, "appreciationRate": appreciationRate},
		Result:    res.PropertyAppreciation,
		Sources:   sources(tree.Property.AppreciationRate),
	}

	// Stages 12-14: component ROIs, total ROI and cash-on-cash, each
	// independently zero-guarded against a non-positive initial investment.
	res.CashflowROI, res.Traces[MetricCashflowROI] = guardedRatio(
		"cashflowROI = annualCashflow / initialInvestment * 100",
		"annualCashflow", res.AnnualCashflow, res.InitialInvestment)
	res.CapitalizationROI, res.Traces[MetricCapitalizationROI] = guardedRatio(
		"capitalizationROI = firstYearPrincipal / initialInvestment * 100",
		"firstYearPrincipal", res.FirstYearPrincipal, res.InitialInvestment)
	res.AppreciationROI, res.Traces[MetricAppreciationROI] = guardedRatio(
		"appreciationROI = propertyAppreciation / initialInvestment * 100",
		"propertyAppreciation", res.PropertyAppreciation, res.InitialInvestment)
	res.TotalROI, res.Traces[MetricTotalROI] = guardedRatio(
		"totalROI = (annualCashflow + firstYearPrincipal + propertyAppreciation) / initialInvestment * 100",
		"components", res.AnnualCashflow+res.FirstYearPrincipal+res.PropertyAppreciation, res.InitialInvestment)
	res.CashOnCash, res.Traces[MetricCashOnCash] = guardedRatio(
		"cashOnCash = annualCashflow / initialInvestment * 100",
		"annualCashflow", res.AnnualCashflow, res.InitialInvestment)

	// Stage 15: cap rate, zero-guarded on the purchase price.
	capTrace := Trace{
		Formula: "capRate = (annualRevenue - totalExpenses) / purchasePrice * 100",
		Variables: map[string]float64{
			"annualRevenue": res.AnnualRevenue,
			"totalExpenses": res.TotalExpenses,
			"purchasePrice": purchasePrice,
		},
	}
	if purchasePrice <= 0 {
		capTrace.Note = "purchase price is not positive; cap rate reported as 0"
		capTrace.Result = 0
	} else {
		capTrace.Result = mathutil.Round(res.NetOperatingIncome / purchasePrice * constants.PercentageMultiplier)
	}
	res.CapRate = capTrace.Result
	res.Traces[MetricCapRate] = capTrace

	return res
}

// guardedRatio computes component / initialInvestment * 100, returning 0
// with an explanatory trace note instead of NaN or Inf when the investment
// is not positive.
func guardedRatio(formula, numeratorName string, numerator, initialInvestment float64) (float64, Trace) {
	trace := Trace{
		Formula: formula,
		Variables: map[string]float64{
			numeratorName:       numerator,
			"initialInvestment": initialInvestment,
		},
	}
	if initialInvestment <= 0 {
		trace.Note = "initial investment is not positive; ratio reported as 0"
		trace.Result = 0
		return 0, trace
	}
	trace.Result = mathutil.Round(numerator / initialInvestment * constants.PercentageMultiplier)
	return trace.Result, trace
}

// transferDuty applies the progressive brackets additively, not as a flat
// rate on the whole base.
func transferDuty(base float64) float64 {
	if base <= 0 {
		return 0
	}
	duty := mathutil.ApplyPercentage(mathutil.Min(base, constants.TransferDutyTier1Limit), constants.TransferDutyTier1Rate)
	if base > constants.TransferDutyTier1Limit {
		tier2 := mathutil.Min(base, constants.TransferDutyTier2Limit) - constants.TransferDutyTier1Limit
		duty += mathutil.ApplyPercentage(tier2, constants.TransferDutyTier2Rate)
	}
	if base > constants.TransferDutyTier2Limit {
		duty += mathutil.ApplyPercentage(base-constants.TransferDutyTier2Limit, constants.TransferDutyTier3Rate)
	}
	return duty
}

// annualizeExpenses converts each expense line to an annual amount per its
// type, summing a total and per-category amounts. Lines without a category
// land in "Other".
func annualizeExpenses(lines []params.ExpenseLine, annualRevenue, purchasePrice float64) (float64, map[string]float64, Trace) {
	total := 0.00
	byCategory := make(map[string]float64)
	variables := make(map[string]float64, len(lines))
	var lineSources []params.SourceInfo

	for i, line := range lines {
		amount := line.Amount.Effective()
		var annual float64
		switch line.Type {
		case params.ExpenseFixedAnnual:
			annual = amount
		case params.ExpenseFixedMonthly:
			annual = amount * constants.MonthsPerYear
		case params.ExpensePercentageRevenue:
			annual = mathutil.ApplyPercentage(annualRevenue, amount)
		case params.ExpensePercentagePropertyValue:
			annual = mathutil.ApplyPercentage(purchasePrice, amount)
		}
		annual = mathutil.Round(annual)

		name := line.Name
		if name == "" {
			name = fmt.Sprintf("expenses[%d]", i)
		}
		variables[name] = annual

		category := line.Category
		if category == "" {
			category = constants.ExpenseCategoryOther
		}
		byCategory[category] = mathutil.Round(byCategory[category] + annual)
		total = mathutil.Round(total + annual)
		if line.Amount.Source != nil {
			lineSources = append(lineSources, *line.Amount.Source)
		}
	}

	trace := Trace{
		Formula:   "totalExpenses = sum of annualized expense lines (FIXED_ANNUAL as-is, FIXED_MONTHLY * 12, PERCENTAGE_REVENUE and PERCENTAGE_PROPERTY_VALUE applied to their bases)",
		Variables: variables,
		Result:    total,
		Sources:   lineSources,
	}
	return total, byCategory, trace
}

// Package params defines the parameter tree for a rental property scenario
// and the scalar-or-range value wrapper every numeric input is expressed in.
package params

import (
	"fmt"
	"strings"

	"github.com/mlavoie/rentwise/pkg/constants"
)

// SourceInfo carries provenance metadata for a parameter. It is reported in
// calculation traces but never used in arithmetic.
type SourceInfo struct {
	Source  string `yaml:"source,omitempty" json:"source,omitempty" mapstructure:"source"`
	Remarks string `yaml:"remarks,omitempty" json:"remarks,omitempty" mapstructure:"remarks"`
}

// Range describes the bounded alternative of a parameter. When UseRange is
// set the effective value of the parameter is Default rather than the
// parameter's scalar Value.
type Range struct {
	Min      float64 `yaml:"min" json:"min" mapstructure:"min"`
	Max      float64 `yaml:"max" json:"max" mapstructure:"max"`
	Default  float64 `yaml:"default" json:"default" mapstructure:"default"`
	UseRange bool    `yaml:"useRange" json:"useRange" mapstructure:"useRange"`
}

// ScalarOrRange is the atomic numeric input: either a fixed scalar or a
// bounded range with a default. All consumers resolve it through Effective
// so the duality never leaks into calculation formulas.
type ScalarOrRange struct {
	Value  float64     `yaml:"value" json:"value" mapstructure:"value"`
	Range  *Range      `yaml:"range,omitempty" json:"range,omitempty" mapstructure:"range"`
	Source *SourceInfo `yaml:"sourceInfo,omitempty" json:"sourceInfo,omitempty" mapstructure:"sourceInfo"`
}

// Scalar constructs a fixed-value parameter.
func Scalar(value float64) ScalarOrRange {
	return ScalarOrRange{Value: value}
}

// Ranged constructs a range-enabled parameter.
func Ranged(min, max, def float64) ScalarOrRange {
	return ScalarOrRange{Value: def, Range: &Range{Min: min, Max: max, Default: def, UseRange: true}}
}

// Effective resolves the scalar-or-range duality: Range.Default when the
// range is active, the scalar Value otherwise.
func (s ScalarOrRange) Effective() float64 {
	if s.Range != nil && s.Range.UseRange {
		return s.Range.Default
	}
	return s.Value
}

// RangeActive reports whether the parameter currently resolves through its range.
func (s ScalarOrRange) RangeActive() bool {
	return s.Range != nil && s.Range.UseRange
}

// SetEffective writes a trial value while preserving the parameter's
// scalar-vs-range intent: range-active parameters receive the value in
// Range.Default, all others in Value.
func (s *ScalarOrRange) SetEffective(value float64) {
	if s.Range != nil && s.Range.UseRange {
		s.Range.Default = value
		return
	}
	s.Value = value
}

// Clone returns a copy sharing no pointers with the receiver.
func (s ScalarOrRange) Clone() ScalarOrRange {
	out := s
	if s.Range != nil {
		r := *s.Range
		out.Range = &r
	}
	if s.Source != nil {
		src := *s.Source
		out.Source = &src
	}
	return out
}

// Validate checks the range invariant. Violations are reported, never
// silently clamped, and apply whether or not the range is active.
func (s ScalarOrRange) Validate(path string) error {
	if s.Range == nil {
		return nil
	}
	r := s.Range
	if r.Min >= r.Max {
		return fmt.Errorf("%s: range min %.4f must be less than max %.4f", path, r.Min, r.Max)
	}
	if r.Default < r.Min || r.Default > r.Max {
		return fmt.Errorf("%s: range default %.4f must be within [%.4f, %.4f]", path, r.Default, r.Min, r.Max)
	}
	return nil
}

// ExpenseType determines how an expense line's amount is annualized.
type ExpenseType string

const (
	ExpenseFixedAnnual             ExpenseType = "FIXED_ANNUAL"
	ExpenseFixedMonthly            ExpenseType = "FIXED_MONTHLY"
	ExpensePercentageRevenue       ExpenseType = "PERCENTAGE_REVENUE"
	ExpensePercentagePropertyValue ExpenseType = "PERCENTAGE_PROPERTY_VALUE"
)

// Valid reports whether the expense type is one of the supported kinds.
func (t ExpenseType) Valid() bool {
	switch t {
	case ExpenseFixedAnnual, ExpenseFixedMonthly, ExpensePercentageRevenue, ExpensePercentagePropertyValue:
		return true
	}
	return false
}

// ExpenseLine is one recurring cost attached to the property.
type ExpenseLine struct {
	ID       string        `yaml:"id,omitempty" json:"id,omitempty" mapstructure:"id"`
	Name     string        `yaml:"name" json:"name" mapstructure:"name"`
	Type     ExpenseType   `yaml:"type" json:"type" mapstructure:"type"`
	Amount   ScalarOrRange `yaml:"amount" json:"amount" mapstructure:"amount"`
	Category string        `yaml:"category,omitempty" json:"category,omitempty" mapstructure:"category"`
}

// Property groups the asset-level parameters.
type Property struct {
	PurchasePrice       ScalarOrRange `yaml:"purchasePrice" json:"purchasePrice" mapstructure:"purchasePrice"`
	MunicipalAssessment ScalarOrRange `yaml:"municipalAssessment" json:"municipalAssessment" mapstructure:"municipalAssessment"`
	AppreciationRate    ScalarOrRange `yaml:"appreciationRate" json:"appreciationRate" mapstructure:"appreciationRate"`
}

// Financing groups the mortgage parameters.
type Financing struct {
	DownPayment       ScalarOrRange `yaml:"downPayment" json:"downPayment" mapstructure:"downPayment"`
	InterestRate      ScalarOrRange `yaml:"interestRate" json:"interestRate" mapstructure:"interestRate"`
	AmortizationYears ScalarOrRange `yaml:"amortizationYears" json:"amortizationYears" mapstructure:"amortizationYears"`
	PaymentFrequency  string        `yaml:"paymentFrequency,omitempty" json:"paymentFrequency,omitempty" mapstructure:"paymentFrequency"`
}

// Revenue groups the rental income parameters.
type Revenue struct {
	DailyRate     ScalarOrRange `yaml:"dailyRate" json:"dailyRate" mapstructure:"dailyRate"`
	OccupancyRate ScalarOrRange `yaml:"occupancyRate" json:"occupancyRate" mapstructure:"occupancyRate"`
	DaysPerYear   ScalarOrRange `yaml:"daysPerYear" json:"daysPerYear" mapstructure:"daysPerYear"`
}

// Acquisition groups the one-time closing costs other than transfer duty.
type Acquisition struct {
	NotaryFees ScalarOrRange `yaml:"notaryFees" json:"notaryFees" mapstructure:"notaryFees"`
	OtherFees  ScalarOrRange `yaml:"otherFees" json:"otherFees" mapstructure:"otherFees"`
}

// ParameterTree is the full input to the calculation engine. A tree is
// treated opaquely regardless of how it was assembled; the engine never
// mutates one.
type ParameterTree struct {
	Property    Property      `yaml:"property" json:"property" mapstructure:"property"`
	Financing   Financing     `yaml:"financing" json:"financing" mapstructure:"financing"`
	Revenue     Revenue       `yaml:"revenue" json:"revenue" mapstructure:"revenue"`
	Acquisition Acquisition   `yaml:"acquisition" json:"acquisition" mapstructure:"acquisition"`
	Expenses    []ExpenseLine `yaml:"expenses,omitempty" json:"expenses,omitempty" mapstructure:"expenses"`
}

// PaymentsPerYear maps the configured payment frequency to the number of
// payments per year. An empty frequency defaults to monthly.
func (f Financing) PaymentsPerYear() (int, error) {
	switch strings.ToLower(strings.TrimSpace(f.PaymentFrequency)) {
	case "", constants.PaymentFrequencyMonthly:
		return constants.PaymentsPerYearMonthly, nil
	case constants.PaymentFrequencyBiWeekly:
		return constants.PaymentsPerYearBiWeekly, nil
	case constants.PaymentFrequencyWeekly:
		return constants.PaymentsPerYearWeekly, nil
	case constants.PaymentFrequencyAnnual:
		return constants.PaymentsPerYearAnnual, nil
	default:
		return 0, fmt.Errorf("payment frequency %q is not supported", f.PaymentFrequency)
	}
}

// Clone returns a structurally independent deep copy of the tree. The
// optimizer and Monte Carlo engine apply trial mutations against clones so
// the shared baseline is never aliased.
func (t *ParameterTree) Clone() *ParameterTree {
	out := *t
	out.Property.PurchasePrice = t.Property.PurchasePrice.Clone()
	out.Property.MunicipalAssessment = t.Property.MunicipalAssessment.Clone()
	out.Property.AppreciationRate = t.Property.AppreciationRate.Clone()
	out.Financing.DownPayment = t.Financing.DownPayment.Clone()
	out.Financing.InterestRate = t.Financing.InterestRate.Clone()
	out.Financing.AmortizationYears = t.Financing.AmortizationYears.Clone()
	out.Revenue.DailyRate = t.Revenue.DailyRate.Clone()
	out.Revenue.OccupancyRate = t.Revenue.OccupancyRate.Clone()
	out.Revenue.DaysPerYear = t.Revenue.DaysPerYear.Clone()
	out.Acquisition.NotaryFees = t.Acquisition.NotaryFees.Clone()
	out.Acquisition.OtherFees = t.Acquisition.OtherFees.Clone()
	if t.Expenses != nil {
		out.Expenses = make([]ExpenseLine, len(t.Expenses))
		for i, line := range t.Expenses {
			copied := line
			copied.Amount = line.Amount.Clone()
			out.Expenses[i] = copied
		}
	}
	return &out
}

// Validate checks every range invariant plus the expense and financing
// enumerations. The calculation engine assumes a validated tree.
func (t *ParameterTree) Validate() error {
	for _, leaf := range Leaves(t) {
		if err := leaf.Param.Validate(leaf.Path); err != nil {
			return err
		}
	}
	if _, err := t.Financing.PaymentsPerYear(); err != nil {
		return err
	}
	for i, line := range t.Expenses {
		if !line.Type.Valid() {
			return fmt.Errorf("expenses[%d] (%s): expense type %q is not supported", i, line.Name, line.Type)
		}
	}
	return nil
}

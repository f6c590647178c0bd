package params

import (
	"strings"
	"testing"
)

func testTree() *ParameterTree {
	return &ParameterTree{
		Property: Property{
			PurchasePrice:       Scalar(400000),
			MunicipalAssessment: Scalar(380000),
			AppreciationRate:    Scalar(3),
		},
		Financing: Financing{
			DownPayment:       Scalar(80000),
			InterestRate:      Scalar(5),
			AmortizationYears: Scalar(25),
			PaymentFrequency:  "monthly",
		},
		Revenue: Revenue{
			DailyRate:     Scalar(150),
			OccupancyRate: Scalar(65),
			DaysPerYear:   Scalar(365),
		},
		Acquisition: Acquisition{
			NotaryFees: Scalar(1500),
			OtherFees:  Scalar(1000),
		},
		Expenses: []ExpenseLine{
			{ID: "ins", Name: "Insurance", Type: ExpenseFixedAnnual, Amount: Scalar(2400), Category: "Insurance"},
			{ID: "mgmt", Name: "Management", Type: ExpensePercentageRevenue, Amount: Scalar(10)},
		},
	}
}

func TestEffectiveValueResolution(t *testing.T) {
	tests := []struct {
		name     string
		param    ScalarOrRange
		expected float64
	}{
		{
			name:     "Plain scalar",
			param:    Scalar(42),
			expected: 42,
		},
		{
			name: "Inactive range falls back to value",
			param: ScalarOrRange{
				Value: 42,
				Range: &Range{Min: 0, Max: 100, Default: 75, UseRange: false},
			},
			expected: 42,
		},
		{
			name: "Active range resolves to default",
			param: ScalarOrRange{
				Value: 42,
				Range: &Range{Min: 0, Max: 100, Default: 75, UseRange: true},
			},
			expected: 75,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.param.Effective(); got != tt.expected {
				t.Errorf("Effective() = %.2f, expected %.2f", got, tt.expected)
			}
		})
	}
}

func TestSetEffectivePreservesIntent(t *testing.T) {
	scalar := Scalar(10)
	scalar.SetEffective(20)
	if scalar.Value != 20 {
		t.Errorf("scalar write landed in Value = %.2f, expected 20", scalar.Value)
	}

	ranged := Ranged(0, 100, 50)
	ranged.SetEffective(60)
	if ranged.Range.Default != 60 {
		t.Errorf("ranged write landed in Range.Default = %.2f, expected 60", ranged.Range.Default)
	}
	if ranged.Value != 50 {
		t.Errorf("ranged write disturbed Value = %.2f, expected 50", ranged.Value)
	}
}

func TestRangeValidation(t *testing.T) {
	tests := []struct {
		name    string
		param   ScalarOrRange
		wantErr bool
	}{
		{
			name:    "No range is always valid",
			param:   Scalar(5),
			wantErr: false,
		},
		{
			name:    "Well-formed range",
			param:   ScalarOrRange{Range: &Range{Min: 0, Max: 10, Default: 5}},
			wantErr: false,
		},
		{
			name:    "Min equals max",
			param:   ScalarOrRange{Range: &Range{Min: 10, Max: 10, Default: 10}},
			wantErr: true,
		},
		{
			name:    "Min above max",
			param:   ScalarOrRange{Range: &Range{Min: 20, Max: 10, Default: 15}},
			wantErr: true,
		},
		{
			name:    "Default below min",
			param:   ScalarOrRange{Range: &Range{Min: 0, Max: 10, Default: -1}},
			wantErr: true,
		},
		{
			name:    "Default above max",
			param:   ScalarOrRange{Range: &Range{Min: 0, Max: 10, Default: 11}},
			wantErr: true,
		},
		{
			name:    "Inactive range is still validated",
			param:   ScalarOrRange{Range: &Range{Min: 5, Max: 1, Default: 3, UseRange: false}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.param.Validate("test.path")
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCloneIndependence(t *testing.T) {
	tree := testTree()
	tree.Revenue.OccupancyRate = Ranged(40, 90, 65)

	clone := tree.Clone()
	clone.Revenue.OccupancyRate.Range.Default = 80
	clone.Expenses[0].Amount.Value = 9999
	clone.Property.PurchasePrice.Value = 1

	if tree.Revenue.OccupancyRate.Range.Default != 65 {
		t.Errorf("clone shares range pointer with original")
	}
	if tree.Expenses[0].Amount.Value != 2400 {
		t.Errorf("clone shares expense slice with original")
	}
	if tree.Property.PurchasePrice.Value != 400000 {
		t.Errorf("clone shares property leaf with original")
	}
}

func TestPaymentsPerYear(t *testing.T) {
	tests := []struct {
		frequency string
		expected  int
		wantErr   bool
	}{
		{"monthly", 12, false},
		{"biweekly", 26, false},
		{"weekly", 52, false},
		{"annual", 1, false},
		{"", 12, false},
		{"Monthly", 12, false},
		{"fortnightly", 0, true},
	}

	for _, tt := range tests {
		t.Run("frequency "+tt.frequency, func(t *testing.T) {
			f := Financing{PaymentFrequency: tt.frequency}
			got, err := f.PaymentsPerYear()
			if (err != nil) != tt.wantErr {
				t.Fatalf("PaymentsPerYear() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.expected {
				t.Errorf("PaymentsPerYear() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestTreeValidate(t *testing.T) {
	tree := testTree()
	if err := tree.Validate(); err != nil {
		t.Fatalf("Validate() on well-formed tree failed: %v", err)
	}

	bad := testTree()
	bad.Revenue.DailyRate.Range = &Range{Min: 200, Max: 100, Default: 150}
	err := bad.Validate()
	if err == nil {
		t.Fatal("Validate() accepted inverted range bounds")
	}
	if !strings.Contains(err.Error(), "revenue.dailyRate") {
		t.Errorf("Validate() error %q does not name the offending path", err)
	}

	badType := testTree()
	badType.Expenses[0].Type = "FIXED_WEEKLY"
	if err := badType.Validate(); err == nil {
		t.Fatal("Validate() accepted unknown expense type")
	}
}

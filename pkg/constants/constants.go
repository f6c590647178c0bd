// Package constants provides shared constants for the rentwise engine.
package constants

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01
)

// Transfer duty brackets (Quebec-style progressive levy on the greater of
// the purchase price and the municipal assessment). Rates apply marginally.
const (
	TransferDutyTier1Limit = 52800.0
	TransferDutyTier2Limit = 264000.0

	TransferDutyTier1Rate = 0.5
	TransferDutyTier2Rate = 1.0
	TransferDutyTier3Rate = 1.5
)

// Payment frequency values expected in config files.
const (
	PaymentFrequencyMonthly  = "monthly"
	PaymentFrequencyBiWeekly = "biweekly"
	PaymentFrequencyWeekly   = "weekly"
	PaymentFrequencyAnnual   = "annual"
)

// Payments per year for each payment frequency.
const (
	PaymentsPerYearMonthly  = 12
	PaymentsPerYearBiWeekly = 26
	PaymentsPerYearWeekly   = 52
	PaymentsPerYearAnnual   = 1
)

// Optimizer defaults
const (
	// DefaultMaxIterations caps the grid enumeration when the caller does
	// not supply a budget.
	DefaultMaxIterations = 10000

	// DefaultTopK is the number of ranked solutions returned.
	DefaultTopK = 10

	// ConstraintEqualityTolerance is the half-width of the band accepted
	// for equality constraints.
	ConstraintEqualityTolerance = 0.01
)

// Monte Carlo defaults
const (
	// DefaultMonteCarloIterations is the trial count when unspecified.
	DefaultMonteCarloIterations = 1000

	// SigmaDivisor maps a [min,max] range onto a normal distribution so
	// that the range spans six standard deviations.
	SigmaDivisor = 6.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (256 KB)
	DefaultMaxBodySizeBytes int64 = 256 * 1024
)

// ExpenseCategoryOther is assigned to expense lines without a category.
const ExpenseCategoryOther = "Other"

// Package loans provides common loan processing utilities.
package loans

import (
	"math"

	"github.com/mlavoie/rentwise/pkg/constants"
)

// Payment holds the values for a given payment.
type Payment struct {
	Payment            float64
	Principal          float64
	Interest           float64
	RemainingPrincipal float64
}

// PeriodicRate converts an annual percentage rate to the per-period rate for
// the given payment cadence.
func PeriodicRate(annualRatePct float64, paymentsPerYear int) float64 {
	return annualRatePct / (constants.PercentageMultiplier * float64(paymentsPerYear))
}

// PeriodicPayment calculates the per-period payment for a loan using the
// standard amortization formula. A zero rate degenerates to principal spread
// evenly over the term so the annuity denominator never divides by zero.
func PeriodicPayment(principal, annualRatePct, amortizationYears float64, paymentsPerYear int) float64 {
	totalPayments := int(math.Round(amortizationYears * float64(paymentsPerYear)))
	if totalPayments <= 0 || principal <= 0 {
		return 0
	}

	if annualRatePct == 0 {
		// For zero interest, simply divide the principal by term
		return principal / float64(totalPayments)
	}

	rate := PeriodicRate(annualRatePct, paymentsPerYear)
	power := math.Pow(1.00+rate, float64(totalPayments))
	discountFactor := (power - 1.00) / power
	return principal * rate / discountFactor
}

// InterestPayment calculates the interest portion of one payment.
func InterestPayment(remainingPrincipal, annualRatePct float64, paymentsPerYear int) float64 {
	return remainingPrincipal * PeriodicRate(annualRatePct, paymentsPerYear)
}

// FirstYearSchedule simulates the first year of payments sequentially
// against a declining balance. This is a real amortization-schedule walk,
// not a closed-form approximation.
func FirstYearSchedule(principal, annualRatePct, payment float64, paymentsPerYear int) []Payment {
	schedule := make([]Payment, 0, paymentsPerYear)
	balance := principal
	for i := 0; i < paymentsPerYear; i++ {
		interest := InterestPayment(balance, annualRatePct, paymentsPerYear)
		principalPaid := payment - interest
		if principalPaid > balance {
			// Cap the final payment so the walk never overpays the balance.
			principalPaid = balance
		}
		balance -= principalPaid
		schedule = append(schedule, Payment{
			Payment:            payment,
			Principal:          principalPaid,
			Interest:           interest,
			RemainingPrincipal: balance,
		})
	}
	return schedule
}

// FirstYearPrincipal sums the principal portion across the first year of the
// amortization schedule.
func FirstYearPrincipal(principal, annualRatePct, payment float64, paymentsPerYear int) float64 {
	total := 0.00
	for _, p := range FirstYearSchedule(principal, annualRatePct, payment, paymentsPerYear) {
		total += p.Principal
	}
	return total
}

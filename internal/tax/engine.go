// Package tax computes self-employment withholding for revenue events.
//
// FICA is assessed on the gross charge and split into employee and employer
// halves. The employer half is deductible, so federal and state income tax
// apply to a reduced basis:
//
//	basis = gross - fees - (fica_employee + fica_employer) / 2
//
// The basis may go negative when fees exceed gross minus half-FICA; negative
// federal/state amounts represent a loss and are preserved, never clamped.
package tax

import "math"

// Rates holds the four configured withholding rates.
type Rates struct {
	FICAEmployee  float64
	FICAEmployer  float64
	FederalIncome float64
	StateIncome   float64
}

// TotalFICA returns the combined employee + employer FICA rate.
func (r Rates) TotalFICA() float64 {
	return r.FICAEmployee + r.FICAEmployer
}

// TotalIncomeTax returns the combined federal + state income tax rate.
func (r Rates) TotalIncomeTax() float64 {
	return r.FederalIncome + r.StateIncome
}

// Withholding is the per-category result of a calculation.
type Withholding struct {
	FICAEmployee float64
	FICAEmployer float64
	Federal      float64
	State        float64
}

// Total returns the sum of all four withholding components.
func (w Withholding) Total() float64 {
	return w.FICAEmployee + w.FICAEmployer + w.Federal + w.State
}

// Calculate computes withholding for a single charge. Pure function of its
// inputs; gross and fees are expected to be non-negative.
func Calculate(gross, fees float64, rates Rates, roundToCents bool) Withholding {
	ficaEmployee := gross * rates.FICAEmployee
	ficaEmployer := gross * rates.FICAEmployer

	// The employer half of SE tax is deductible from income.
	basis := gross - fees - (ficaEmployee+ficaEmployer)*0.5

	w := Withholding{
		FICAEmployee: ficaEmployee,
		FICAEmployer: ficaEmployer,
		Federal:      basis * rates.FederalIncome,
		State:        basis * rates.StateIncome,
	}

	if roundToCents {
		w.FICAEmployee = roundCents(w.FICAEmployee)
		w.FICAEmployer = roundCents(w.FICAEmployer)
		w.Federal = roundCents(w.Federal)
		w.State = roundCents(w.State)
	}
	return w
}

// AvailableForOperating returns what remains of the net charge after
// withholding is set aside.
func AvailableForOperating(gross, fees float64, rates Rates, roundToCents bool) float64 {
	return (gross - fees) - Calculate(gross, fees, rates, roundToCents).Total()
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

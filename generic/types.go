/*
Package generic provides the domain-agnostic core of the cost ledger.

PURPOSE:
  Everything the time ledger and the cost engine share lives here:
  decimal quantities, calendar dates and clock times, periods, the
  approval state machine, the error taxonomy, pagination, and the
  contracts of the external collaborators (user directory, project
  directory, authorization).

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: UserID, ProjectID (foreign-key style, never embedded objects)
  - Actor: the caller on whose behalf an operation runs
  - Quantities: hours and money as decimal.Decimal with 2 fractional digits

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 for money or hours
  2. Explicit actor: every mutating call receives the Actor as a parameter
  3. Non-owning links: entities reference users/projects by ID only

SEE ALSO:
  - time.go: Date and Clock
  - period.go: Period and Granularity
  - approval.go: Shared pending → approved/rejected state machine
  - errors.go: Error kinds and reasons
*/
package generic

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type ProjectID string

// Actor is the authenticated caller. It is passed explicitly into every
// ledger and engine call; nothing reads a request-scoped global.
type Actor struct {
	ID UserID
}

func (a Actor) IsZero() bool { return a.ID == "" }

// =============================================================================
// QUANTITIES - Hours and money
// =============================================================================

// Scale is the number of fractional digits kept for hours and currency.
const Scale = 2

// Round rounds to Scale fractional digits (half away from zero).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Ratio returns num/den rounded to Scale, or zero when den is zero.
// Ratios are always derived from summed totals, never averaged per row.
func Ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.DivRound(den, Scale)
}

// Cost returns hours × rate rounded to Scale.
func Cost(hours, rate decimal.Decimal) decimal.Decimal {
	return Round(hours.Mul(rate))
}

// HoursBetween returns (end − start) in minutes / 60, rounded to Scale.
func HoursBetween(start, end Clock) decimal.Decimal {
	minutes := int64(end.Minutes() - start.Minutes())
	return decimal.NewFromInt(minutes).DivRound(decimal.NewFromInt(60), Scale)
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Fixed renders d as a JSON number with exactly Scale fractional digits.
// Zero renders as 0.00, never omitted.
func Fixed(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(Scale))
}

// Sum adds a list of decimals.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Package calculator implements the pure split computation for expenses.
//
// All functions are deterministic: given the same amount, method and
// participant set (in any order) they produce identical splits, so retried
// calls are idempotent. Amounts are rounded to the currency minor unit
// (2 decimals) and the rounding remainder is always assigned to the first
// participant in ascending user-ID order, never left to map iteration order.
package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/voyago/tripledger/internal/errs"
	"github.com/voyago/tripledger/internal/models"
)

// epsilon is the tolerance for sum comparisons: one cent.
var epsilon = decimal.New(1, -2)

var hundred = decimal.New(100, 0)

// Compute divides amount among participants according to method.
//
// The participant list must already be resolved: an "all current members"
// selection is expanded by the caller before Compute runs. Membership
// checks are likewise the caller's concern; Compute only validates shape
// and arithmetic.
//
// The returned splits are ordered by ascending user ID and always sum
// exactly to amount.
func Compute(amount decimal.Decimal, method models.SplitMethod, participants []models.Participant) ([]models.Split, error) {
	if !amount.IsPositive() {
		return nil, errs.Validationf("amount", "must be positive, got %s", amount)
	}
	if len(participants) == 0 {
		return nil, errs.Validationf("participants", "at least one participant required")
	}

	sorted := make([]models.Participant, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UserID < sorted[j].UserID })

	seen := make(map[string]struct{}, len(sorted))
	for _, p := range sorted {
		if p.UserID == "" {
			return nil, errs.Validationf("participants", "participant with empty user id")
		}
		if _, dup := seen[p.UserID]; dup {
			return nil, errs.Validationf("participants", "duplicate participant %q", p.UserID)
		}
		seen[p.UserID] = struct{}{}
	}

	switch method {
	case models.SplitEqual:
		return computeEqual(amount, sorted)
	case models.SplitPercentage:
		return computePercentage(amount, sorted)
	case models.SplitCustom:
		return computeCustom(amount, sorted)
	default:
		return nil, errs.Validationf("splitMethod", "unknown split method %q", method)
	}
}

// computeEqual gives every participant amount/n rounded down to the cent,
// with the leftover cents folded into the first participant. Rounding down
// keeps the remainder non-negative, so no share can dip below zero.
func computeEqual(amount decimal.Decimal, sorted []models.Participant) ([]models.Split, error) {
	n := decimal.New(int64(len(sorted)), 0)
	share := amount.Div(n).RoundDown(2)

	splits := make([]models.Split, len(sorted))
	for i, p := range sorted {
		splits[i] = models.Split{UserID: p.UserID, Amount: share}
	}
	return applyRemainder(amount, splits), nil
}

// computePercentage gives each participant amount*pct/100 rounded down to
// the cent, remainder to the first participant. Percentages must each be
// within [0, 100] and sum to 100 within epsilon.
func computePercentage(amount decimal.Decimal, sorted []models.Participant) ([]models.Split, error) {
	total := decimal.Zero
	for _, p := range sorted {
		if p.Percent == nil {
			return nil, errs.Validationf("participants", "participant %q has no percentage", p.UserID)
		}
		if p.Percent.IsNegative() || p.Percent.GreaterThan(hundred) {
			return nil, errs.Validationf("participants", "participant %q percentage %s out of range", p.UserID, p.Percent)
		}
		total = total.Add(*p.Percent)
	}
	if total.Sub(hundred).Abs().GreaterThan(epsilon) {
		return nil, errs.Validationf("participants", "percentages sum to %s, want 100", total)
	}

	splits := make([]models.Split, len(sorted))
	for i, p := range sorted {
		splits[i] = models.Split{
			UserID: p.UserID,
			Amount: amount.Mul(*p.Percent).Div(hundred).RoundDown(2),
		}
	}
	return applyRemainder(amount, splits), nil
}

// computeCustom validates caller-supplied amounts: no negatives, at most
// cent precision, and a sum within epsilon of the expense amount. Any
// sub-cent residual from the tolerance is folded into the first participant
// so the splits still sum exactly.
func computeCustom(amount decimal.Decimal, sorted []models.Participant) ([]models.Split, error) {
	total := decimal.Zero
	splits := make([]models.Split, len(sorted))
	for i, p := range sorted {
		if p.Amount == nil {
			return nil, errs.Validationf("participants", "participant %q has no amount", p.UserID)
		}
		if p.Amount.IsNegative() {
			return nil, errs.Validationf("participants", "participant %q has negative amount %s", p.UserID, p.Amount)
		}
		if !p.Amount.Equal(p.Amount.Round(2)) {
			return nil, errs.Validationf("participants", "participant %q amount %s has sub-cent precision", p.UserID, p.Amount)
		}
		total = total.Add(*p.Amount)
		splits[i] = models.Split{UserID: p.UserID, Amount: *p.Amount}
	}
	if total.Sub(amount).Abs().GreaterThan(epsilon) {
		return nil, errs.Validationf("participants", "custom amounts sum to %s, want %s", total, amount)
	}
	return applyRemainder(amount, splits), nil
}

// applyRemainder assigns amount minus the current split sum to one split so
// the total is exact to the cent. A positive remainder always goes to the
// first split; a negative one (only possible for custom's epsilon
// tolerance) goes to the first split large enough to absorb it. Splits are
// already in ascending user-ID order, which makes the assignment
// deterministic.
func applyRemainder(amount decimal.Decimal, splits []models.Split) []models.Split {
	sum := decimal.Zero
	for _, s := range splits {
		sum = sum.Add(s.Amount)
	}
	rem := amount.Sub(sum)
	if rem.IsZero() {
		return splits
	}
	for i := range splits {
		if adjusted := splits[i].Amount.Add(rem); !adjusted.IsNegative() {
			splits[i].Amount = adjusted
			break
		}
	}
	return splits
}

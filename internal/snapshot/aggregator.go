// Package snapshot derives the budget read model from stored state.
//
// Compute is pure and referentially transparent: it never blocks, never
// mutates its inputs, and identical inputs always yield identical
// snapshots, so it is safe to call concurrently and on every read.
package snapshot

import (
	"github.com/shopspring/decimal"

	"github.com/voyago/tripledger/internal/errs"
	"github.com/voyago/tripledger/internal/models"
)

// epsilon is the tolerance for cross-checking aggregate sums: one cent.
var epsilon = decimal.New(1, -2)

// Compute aggregates a budget and its expenses into a snapshot.
//
// Member summaries keep the budget's member insertion order so a caller's
// "current user" row stays in a predictable position. A split referencing a
// user who is neither a current nor a past member, or expense totals that
// disagree with the split sums, is a Consistency error: stored state is
// corrupt and the operation must not pretend otherwise.
func Compute(budget *models.Budget, expenses []*models.Expense) (*models.BudgetSnapshot, error) {
	if budget == nil {
		return nil, errs.Validationf("budget", "budget required")
	}

	spentByMember := make(map[string]decimal.Decimal, len(budget.Members))
	for _, m := range budget.Members {
		spentByMember[m.UserID] = decimal.Zero
	}

	totalSpent := decimal.Zero
	splitTotal := decimal.Zero
	for _, exp := range expenses {
		totalSpent = totalSpent.Add(exp.Amount)
		for _, split := range exp.Splits {
			spent, known := spentByMember[split.UserID]
			if !known {
				return nil, errs.Consistencyf(
					"expense %s splits against unknown member %q", exp.ID, split.UserID)
			}
			spentByMember[split.UserID] = spent.Add(split.Amount)
			splitTotal = splitTotal.Add(split.Amount)
		}
	}

	// The two ways of computing total spend must agree; a mismatch means a
	// stored expense violates the split-sum invariant.
	if totalSpent.Sub(splitTotal).Abs().GreaterThan(epsilon) {
		return nil, errs.Consistencyf(
			"expense totals (%s) disagree with split sums (%s)", totalSpent, splitTotal)
	}

	totalPlanned := decimal.Zero
	summaries := make([]models.MemberSummary, 0, len(budget.Members))
	for _, m := range budget.Members {
		spent := spentByMember[m.UserID]
		totalPlanned = totalPlanned.Add(m.PlannedContribution)
		summaries = append(summaries, models.MemberSummary{
			UserID:       m.UserID,
			IsPastMember: m.IsPastMember,
			Planned:      m.PlannedContribution,
			Spent:        spent,
			Remaining:    m.PlannedContribution.Sub(spent),
		})
	}

	summary := models.SnapshotSummary{
		TotalPlanned: totalPlanned,
		TotalSpent:   totalSpent,
		Remaining:    totalPlanned.Sub(totalSpent),
	}
	if budget.BaseBudgetAmount != nil {
		// Positive delta: member commitments fall short of the target.
		delta := budget.BaseBudgetAmount.Sub(totalPlanned)
		summary.TargetDelta = &delta
	}

	return &models.BudgetSnapshot{
		Budget:          budget,
		Expenses:        expenses,
		Summary:         summary,
		MemberSummaries: summaries,
	}, nil
}

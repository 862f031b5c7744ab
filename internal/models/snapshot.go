package models

import "github.com/shopspring/decimal"

// BudgetSnapshot is the fully aggregated read model. It is derived, never
// persisted, and recomputed on every query and every mutation response so a
// caller can always treat it as the authoritative current state.
type BudgetSnapshot struct {
	Budget   *Budget
	Expenses []*Expense

	// Summary holds the trip-level totals.
	Summary SnapshotSummary

	// MemberSummaries has one entry per member (current and past), in
	// Budget.Members insertion order.
	MemberSummaries []MemberSummary
}

// SnapshotSummary is the trip-level view.
type SnapshotSummary struct {
	// TotalPlanned is the sum of all member planned contributions.
	TotalPlanned decimal.Decimal

	// TotalSpent is the sum of all expense amounts.
	TotalSpent decimal.Decimal

	// Remaining is TotalPlanned - TotalSpent.
	Remaining decimal.Decimal

	// TargetDelta is BaseBudgetAmount - TotalPlanned when a target is set,
	// nil otherwise. Positive means the members' commitments fall short of
	// the target; negative means they exceed it.
	TargetDelta *decimal.Decimal
}

// MemberSummary is one member's planned/spent/remaining line.
type MemberSummary struct {
	UserID       string
	IsPastMember bool
	Planned      decimal.Decimal
	Spent        decimal.Decimal
	Remaining    decimal.Decimal
}

package models

import "github.com/shopspring/decimal"

// Budget is the per-trip financial record: an optional target amount, a
// currency label, and each member's planned contribution.
type Budget struct {
	// TripID identifies the trip this budget belongs to. At most one budget
	// exists per trip.
	TripID string

	// CreatedBy is the user ID of the trip creator, who owns the budget.
	CreatedBy string

	// BaseCurrency is the ISO currency code all amounts are labelled with.
	// It is a label only; the engine never converts currencies.
	BaseCurrency string

	// BaseBudgetAmount is the trip-level target. Nil means no target has
	// been declared. It is independent of the sum of member contributions.
	BaseBudgetAmount *decimal.Decimal

	// Members holds one record per user who is or ever was part of the
	// budget, in the order they were added. Members are never removed once
	// they have financial history; they are flagged as past instead.
	Members []BudgetMember

	// Rules govern what non-creator members may do.
	Rules BudgetRules

	// Version is the optimistic-concurrency revision. Every persisted
	// mutation of the budget or its expenses bumps it.
	Version int64

	// CreatedAt is the Unix timestamp when the budget was created.
	CreatedAt int64
}

// BudgetMember is one user's contribution record within a budget.
type BudgetMember struct {
	// UserID identifies the member.
	UserID string

	// PlannedContribution is the amount this member has committed to
	// contribute. Never negative.
	PlannedContribution decimal.Decimal

	// IsPastMember is set once the membership directory no longer lists the
	// user. Past members keep their history but lose mutation rights.
	IsPastMember bool
}

// BudgetRules are the creator-controlled switches for member permissions.
// All default to true for a newly created budget.
type BudgetRules struct {
	AllowMemberExpenseCreation   bool
	AllowMemberContributionEdits bool
	AllowMemberExpenseEdits      bool
}

// DefaultBudgetRules returns the permissive default rule set.
func DefaultBudgetRules() BudgetRules {
	return BudgetRules{
		AllowMemberExpenseCreation:   true,
		AllowMemberContributionEdits: true,
		AllowMemberExpenseEdits:      true,
	}
}

// Member returns the member record for userID, or nil if the user has never
// been part of the budget.
func (b *Budget) Member(userID string) *BudgetMember {
	for i := range b.Members {
		if b.Members[i].UserID == userID {
			return &b.Members[i]
		}
	}
	return nil
}

// IsCurrentMember reports whether userID is a present (non-past) member.
func (b *Budget) IsCurrentMember(userID string) bool {
	m := b.Member(userID)
	return m != nil && !m.IsPastMember
}

// IsKnownMember reports whether userID is a current or past member.
func (b *Budget) IsKnownMember(userID string) bool {
	return b.Member(userID) != nil
}

// CurrentMemberIDs returns the user IDs of all non-past members in member
// insertion order.
func (b *Budget) CurrentMemberIDs() []string {
	ids := make([]string, 0, len(b.Members))
	for _, m := range b.Members {
		if !m.IsPastMember {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

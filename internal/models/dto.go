package models

import "github.com/shopspring/decimal"

// CreateBudgetInput creates the trip's budget. TotalBudgetAmount, when set,
// becomes the base target and is distributed evenly across the trip's
// current members as their initial planned contributions.
type CreateBudgetInput struct {
	BaseCurrency      string
	TotalBudgetAmount *decimal.Decimal
}

// UpdateBudgetInput changes the base target. A nil BaseBudgetAmount clears
// the target; member contributions are left untouched either way.
type UpdateBudgetInput struct {
	BaseBudgetAmount *decimal.Decimal
}

// UpdateMemberInput changes one member's planned contribution.
type UpdateMemberInput struct {
	PlannedContribution decimal.Decimal
}

// CreateExpenseInput records a new expense. PaidBy defaults to the acting
// user and Currency to the budget's base currency when omitted.
type CreateExpenseInput struct {
	Title        string
	Amount       decimal.Decimal
	Currency     string
	Category     string
	PaidBy       string
	Date         int64
	Notes        string
	SplitMethod  SplitMethod
	Participants Participants
}

// UpdateExpenseInput is a partial update; nil fields are left unchanged.
// Changing Amount, SplitMethod or Participants recomputes the splits.
type UpdateExpenseInput struct {
	Title        *string
	Amount       *decimal.Decimal
	Currency     *string
	Category     *string
	PaidBy       *string
	Date         *int64
	Notes        *string
	SplitMethod  *SplitMethod
	Participants *Participants
}

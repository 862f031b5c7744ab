package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SplitMethod selects how an expense's amount is divided among participants.
type SplitMethod string

const (
	// SplitEqual divides the amount evenly among the participants.
	SplitEqual SplitMethod = "equal"
	// SplitPercentage divides the amount by per-participant percentages
	// that must sum to 100.
	SplitPercentage SplitMethod = "percentage"
	// SplitCustom uses caller-supplied per-participant amounts that must
	// sum to the expense amount.
	SplitCustom SplitMethod = "custom"
)

// ParseSplitMethod validates a raw method string.
func ParseSplitMethod(s string) (SplitMethod, error) {
	switch SplitMethod(s) {
	case SplitEqual, SplitPercentage, SplitCustom:
		return SplitMethod(s), nil
	default:
		return "", fmt.Errorf("unknown split method %q", s)
	}
}

// Expense is a single recorded spend against a trip's budget.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// TripID is the trip (and therefore budget) this expense belongs to.
	TripID string

	// Title is the human-readable name of the expense.
	Title string

	// Amount is the total spent. Always positive.
	Amount decimal.Decimal

	// Currency labels the amount. Defaults to the budget's base currency.
	Currency string

	// Category is optional free text ("food", "transport", ...).
	Category string

	// PaidBy is the user who fronted the money.
	PaidBy string

	// Date is the Unix timestamp of the spend.
	Date int64

	// Notes is optional free text.
	Notes string

	// SplitMethod records how Splits were derived.
	SplitMethod SplitMethod

	// Splits is the per-participant division of Amount. The split amounts
	// always sum exactly to Amount.
	Splits []Split

	// CreatedBy is the user who recorded the expense. May differ from
	// PaidBy.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64
}

// Split is one participant's share of an expense.
type Split struct {
	UserID string
	Amount decimal.Decimal
}

// Participant is one entry of an explicit participant selection. Percent is
// set for percentage splits, Amount for custom splits; equal splits need
// only the UserID.
type Participant struct {
	UserID  string
	Percent *decimal.Decimal
	Amount  *decimal.Decimal
}

// Participants is a tagged selection of who shares an expense: either every
// current member of the budget, or an explicit list. The two are mutually
// exclusive; an empty explicit list does not mean "everyone".
type Participants struct {
	// Everyone selects all current (non-past) members of the budget at the
	// time the expense is created or edited.
	Everyone bool

	// Explicit is the caller-supplied participant list. Meaningful only
	// when Everyone is false.
	Explicit []Participant
}

// AllCurrentMembers selects every current member of the budget.
func AllCurrentMembers() Participants {
	return Participants{Everyone: true}
}

// ExplicitParticipants selects exactly the given entries.
func ExplicitParticipants(entries ...Participant) Participants {
	return Participants{Explicit: entries}
}

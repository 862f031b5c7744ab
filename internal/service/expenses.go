package service

import (
	"github.com/shopspring/decimal"

	"github.com/voyago/tripledger/internal/calculator"
	"github.com/voyago/tripledger/internal/errs"
	"github.com/voyago/tripledger/internal/models"
	"github.com/voyago/tripledger/internal/roster"
)

// validateCurrency accepts three-letter uppercase ISO codes. The engine
// never converts currencies, so this is a shape check only.
func validateCurrency(code string) error {
	if len(code) != 3 {
		return errs.Validationf("baseCurrency", "must be a three-letter ISO code, got %q", code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return errs.Validationf("baseCurrency", "must be a three-letter ISO code, got %q", code)
		}
	}
	return nil
}

func rosterContains(members []roster.Member, userID string) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// seedContributions distributes an optional budget target evenly across the
// initial members, reusing the equal-split remainder rule so the planned
// amounts sum exactly to the target. Without a target everyone starts at
// zero.
func seedContributions(total *decimal.Decimal, members []roster.Member) (map[string]decimal.Decimal, error) {
	planned := make(map[string]decimal.Decimal, len(members))
	for _, m := range members {
		planned[m.UserID] = decimal.Zero
	}
	if total == nil || total.IsZero() {
		return planned, nil
	}

	participants := make([]models.Participant, len(members))
	for i, m := range members {
		participants[i] = models.Participant{UserID: m.UserID}
	}
	splits, err := calculator.Compute(*total, models.SplitEqual, participants)
	if err != nil {
		return nil, err
	}
	for _, s := range splits {
		planned[s.UserID] = s.Amount
	}
	return planned, nil
}

// buildExpense validates a create request against the budget and computes
// its splits.
func buildExpense(budget *models.Budget, actor string, input models.CreateExpenseInput) (*models.Expense, error) {
	if input.Title == "" {
		return nil, errs.Validationf("title", "title required")
	}
	if !input.Amount.IsPositive() {
		return nil, errs.Validationf("amount", "must be positive, got %s", input.Amount)
	}
	if _, err := models.ParseSplitMethod(string(input.SplitMethod)); err != nil {
		return nil, errs.Validationf("splitMethod", "%v", err)
	}

	currency := input.Currency
	if currency == "" {
		currency = budget.BaseCurrency
	} else if err := validateCurrency(currency); err != nil {
		return nil, err
	}

	paidBy := input.PaidBy
	if paidBy == "" {
		paidBy = actor
	}
	if !budget.IsKnownMember(paidBy) {
		return nil, errs.Validationf("paidBy", "user %q is not a member of budget %q", paidBy, budget.TripID)
	}

	participants, err := resolveParticipants(budget, input.Participants, input.SplitMethod)
	if err != nil {
		return nil, err
	}
	splits, err := calculator.Compute(input.Amount, input.SplitMethod, participants)
	if err != nil {
		return nil, err
	}

	return &models.Expense{
		TripID:      budget.TripID,
		Title:       input.Title,
		Amount:      input.Amount,
		Currency:    currency,
		Category:    input.Category,
		PaidBy:      paidBy,
		Date:        input.Date,
		Notes:       input.Notes,
		SplitMethod: input.SplitMethod,
		Splits:      splits,
		CreatedBy:   actor,
	}, nil
}

// resolveParticipants expands the participant selection against the
// budget's member set. "Everyone" means all current members and only makes
// sense for equal splits; explicit entries may reference past members so
// historical expenses can be recorded faithfully.
func resolveParticipants(budget *models.Budget, selection models.Participants, method models.SplitMethod) ([]models.Participant, error) {
	if selection.Everyone {
		if len(selection.Explicit) > 0 {
			return nil, errs.Validationf("participants", "everyone and an explicit list are mutually exclusive")
		}
		if method != models.SplitEqual {
			return nil, errs.Validationf("participants", "%s splits need an explicit participant list", method)
		}
		ids := budget.CurrentMemberIDs()
		participants := make([]models.Participant, len(ids))
		for i, id := range ids {
			participants[i] = models.Participant{UserID: id}
		}
		return participants, nil
	}

	for _, p := range selection.Explicit {
		if p.UserID != "" && !budget.IsKnownMember(p.UserID) {
			return nil, errs.Validationf("participants", "user %q is not a member of budget %q", p.UserID, budget.TripID)
		}
	}
	return selection.Explicit, nil
}

// applyExpenseUpdate folds a partial update into the expense, recomputing
// splits when the amount, method or participant selection changed.
func applyExpenseUpdate(budget *models.Budget, expense *models.Expense, input models.UpdateExpenseInput) error {
	if input.Title != nil {
		if *input.Title == "" {
			return errs.Validationf("title", "title required")
		}
		expense.Title = *input.Title
	}
	if input.Currency != nil {
		if err := validateCurrency(*input.Currency); err != nil {
			return err
		}
		expense.Currency = *input.Currency
	}
	if input.Category != nil {
		expense.Category = *input.Category
	}
	if input.Notes != nil {
		expense.Notes = *input.Notes
	}
	if input.Date != nil {
		expense.Date = *input.Date
	}
	if input.PaidBy != nil {
		if !budget.IsKnownMember(*input.PaidBy) {
			return errs.Validationf("paidBy", "user %q is not a member of budget %q", *input.PaidBy, budget.TripID)
		}
		expense.PaidBy = *input.PaidBy
	}

	resplit := input.Participants != nil
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return errs.Validationf("amount", "must be positive, got %s", input.Amount)
		}
		if !expense.Amount.Equal(*input.Amount) {
			resplit = true
		}
		expense.Amount = *input.Amount
	}
	if input.SplitMethod != nil {
		if _, err := models.ParseSplitMethod(string(*input.SplitMethod)); err != nil {
			return errs.Validationf("splitMethod", "%v", err)
		}
		if expense.SplitMethod != *input.SplitMethod {
			resplit = true
		}
		expense.SplitMethod = *input.SplitMethod
	}
	if !resplit {
		return nil
	}

	var participants []models.Participant
	switch {
	case input.Participants != nil:
		resolved, err := resolveParticipants(budget, *input.Participants, expense.SplitMethod)
		if err != nil {
			return err
		}
		participants = resolved
	case expense.SplitMethod == models.SplitEqual:
		// Equal splits can be recomputed from the existing participant
		// set; percentage and custom need fresh weights.
		participants = make([]models.Participant, len(expense.Splits))
		for i, s := range expense.Splits {
			participants[i] = models.Participant{UserID: s.UserID}
		}
	default:
		return errs.Validationf("participants",
			"participants required when changing a %s split", expense.SplitMethod)
	}

	splits, err := calculator.Compute(expense.Amount, expense.SplitMethod, participants)
	if err != nil {
		return err
	}
	expense.Splits = splits
	return nil
}

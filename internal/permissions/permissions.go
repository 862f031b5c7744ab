// Package permissions decides who may mutate what on a budget.
//
// The engine is a stateless policy table over four roles: the budget
// creator, current members, past members and non-members. A denied
// permission is a false return, never an error; errors are reserved for
// malformed input such as a nil budget or an empty actor id. Translating a
// denial into an authorization failure is the service layer's job.
package permissions

import (
	"github.com/voyago/tripledger/internal/errs"
	"github.com/voyago/tripledger/internal/models"
)

// Engine evaluates permission checks against a budget's creator, member
// roster and rules.
type Engine struct{}

// New returns a permission engine.
func New() *Engine {
	return &Engine{}
}

// CanAddExpense reports whether actor may record a new expense. Creators
// always may; current members only when the budget's rules allow it.
func (e *Engine) CanAddExpense(actor string, budget *models.Budget) (bool, error) {
	if err := checkInput(actor, budget); err != nil {
		return false, err
	}
	if actor == budget.CreatedBy {
		return true, nil
	}
	return budget.IsCurrentMember(actor) && budget.Rules.AllowMemberExpenseCreation, nil
}

// CanEditBaseBudget reports whether actor may change the trip-level target.
// Creator only.
func (e *Engine) CanEditBaseBudget(actor string, budget *models.Budget) (bool, error) {
	if err := checkInput(actor, budget); err != nil {
		return false, err
	}
	return actor == budget.CreatedBy, nil
}

// CanEditContribution reports whether actor may change targetUserID's
// planned contribution. Creators may edit anyone's; a current member may
// edit their own when the rules allow it. Past members may not edit even
// their own.
func (e *Engine) CanEditContribution(actor, targetUserID string, budget *models.Budget) (bool, error) {
	if err := checkInput(actor, budget); err != nil {
		return false, err
	}
	if targetUserID == "" {
		return false, errs.Validationf("userId", "target user id required")
	}
	if actor == budget.CreatedBy {
		return true, nil
	}
	if actor != targetUserID {
		return false, nil
	}
	return budget.IsCurrentMember(actor) && budget.Rules.AllowMemberContributionEdits, nil
}

// CanEditOrDeleteExpense reports whether actor may edit or delete expense.
// Creators always may; the expense's recorder may while they remain a
// current member and the rules allow it. A past member loses edit rights
// even over their own historical expenses.
func (e *Engine) CanEditOrDeleteExpense(actor string, expense *models.Expense, budget *models.Budget) (bool, error) {
	if err := checkInput(actor, budget); err != nil {
		return false, err
	}
	if expense == nil {
		return false, errs.Validationf("expense", "expense required")
	}
	if actor == budget.CreatedBy {
		return true, nil
	}
	return actor == expense.CreatedBy &&
		budget.IsCurrentMember(actor) &&
		budget.Rules.AllowMemberExpenseEdits, nil
}

func checkInput(actor string, budget *models.Budget) error {
	if budget == nil {
		return errs.Validationf("budget", "budget required")
	}
	if actor == "" {
		return errs.Validationf("actor", "actor id required")
	}
	return nil
}

// Package service orchestrates the budget engine: permission checks, split
// computation, storage writes and snapshot derivation.
//
// Every mutating operation follows the same shape: load the current budget,
// reconcile it against the membership roster, check permissions, validate,
// write conditionally on the stored version, and return a freshly computed
// snapshot. A lost version race is retried up to maxRetries times before a
// Conflict error reaches the caller; no operation ever leaves partial state
// behind.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voyago/tripledger/internal/errs"
	"github.com/voyago/tripledger/internal/metrics"
	"github.com/voyago/tripledger/internal/models"
	"github.com/voyago/tripledger/internal/permissions"
	"github.com/voyago/tripledger/internal/roster"
	"github.com/voyago/tripledger/internal/snapshot"
	"github.com/voyago/tripledger/internal/storage"
)

// maxRetries bounds how often a conflicting conditional write is retried
// before the Conflict error is surfaced.
const maxRetries = 3

// BudgetService exposes the budget engine's operations.
type BudgetService struct {
	store     storage.Store
	directory roster.Directory
	perms     *permissions.Engine
	metrics   *metrics.Metrics
}

// New creates a BudgetService. metrics may be nil.
func New(store storage.Store, directory roster.Directory, m *metrics.Metrics) *BudgetService {
	return &BudgetService{
		store:     store,
		directory: directory,
		perms:     permissions.New(),
		metrics:   m,
	}
}

// CreateBudget creates the trip's budget, seeding members from the current
// roster. When a target amount is given it is distributed evenly across the
// members as their initial planned contributions, using the same remainder
// rule as equal expense splits.
func (s *BudgetService) CreateBudget(ctx context.Context, tripID, actor string, input models.CreateBudgetInput) (snap *models.BudgetSnapshot, err error) {
	defer s.observe("create_budget", time.Now(), &err)

	if tripID == "" {
		return nil, errs.Validationf("tripId", "trip id required")
	}
	if actor == "" {
		return nil, errs.Validationf("actor", "actor id required")
	}
	if err := validateCurrency(input.BaseCurrency); err != nil {
		return nil, err
	}
	if input.TotalBudgetAmount != nil && input.TotalBudgetAmount.IsNegative() {
		return nil, errs.Validationf("totalBudgetAmount", "must not be negative, got %s", input.TotalBudgetAmount)
	}

	members, err := s.directory.GetCurrentMembers(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, errs.Validationf("tripId", "trip %q has no members", tripID)
	}
	if !rosterContains(members, actor) {
		return nil, errs.Authorizationf("user %q is not a member of trip %q", actor, tripID)
	}

	budget := &models.Budget{
		TripID:           tripID,
		CreatedBy:        actor,
		BaseCurrency:     input.BaseCurrency,
		BaseBudgetAmount: input.TotalBudgetAmount,
		Rules:            models.DefaultBudgetRules(),
	}
	planned, err := seedContributions(input.TotalBudgetAmount, members)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		budget.Members = append(budget.Members, models.BudgetMember{
			UserID:              m.UserID,
			PlannedContribution: planned[m.UserID],
		})
	}

	if err := s.store.CreateBudget(ctx, budget); err != nil {
		slog.Warn("CreateBudget failed", "trip_id", tripID, "error", err)
		return nil, err
	}
	slog.Info("Budget created", "trip_id", tripID, "created_by", actor, "members", len(budget.Members))

	return s.snapshotOf(ctx, budget)
}

// UpdateBaseBudget changes or clears the trip-level target. Creator only.
// Member contributions are never touched; clearing the target does not
// rewrite planned amounts.
func (s *BudgetService) UpdateBaseBudget(ctx context.Context, tripID, actor string, input models.UpdateBudgetInput) (snap *models.BudgetSnapshot, err error) {
	defer s.observe("update_base_budget", time.Now(), &err)

	if input.BaseBudgetAmount != nil && input.BaseBudgetAmount.IsNegative() {
		return nil, errs.Validationf("baseBudgetAmount", "must not be negative, got %s", input.BaseBudgetAmount)
	}

	return s.retryMutation(ctx, "UpdateBaseBudget", func(ctx context.Context) (*models.BudgetSnapshot, error) {
		budget, _, err := s.loadReconciled(ctx, tripID)
		if err != nil {
			return nil, err
		}

		allowed, err := s.perms.CanEditBaseBudget(actor, budget)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, errs.Authorizationf("user %q may not edit the base budget of trip %q", actor, tripID)
		}

		budget.BaseBudgetAmount = input.BaseBudgetAmount
		if err := s.store.UpdateBudget(ctx, budget); err != nil {
			return nil, err
		}
		return s.snapshotOf(ctx, budget)
	})
}

// UpdateMemberContribution changes one member's planned contribution.
// Allowed for the creator, or for the member themself while they are a
// current member and the budget's rules permit it.
func (s *BudgetService) UpdateMemberContribution(ctx context.Context, tripID, actor, userID string, input models.UpdateMemberInput) (snap *models.BudgetSnapshot, err error) {
	defer s.observe("update_member_contribution", time.Now(), &err)

	if input.PlannedContribution.IsNegative() {
		return nil, errs.Validationf("plannedContribution", "must not be negative, got %s", input.PlannedContribution)
	}

	return s.retryMutation(ctx, "UpdateMemberContribution", func(ctx context.Context) (*models.BudgetSnapshot, error) {
		budget, _, err := s.loadReconciled(ctx, tripID)
		if err != nil {
			return nil, err
		}

		allowed, err := s.perms.CanEditContribution(actor, userID, budget)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, errs.Authorizationf("user %q may not edit the contribution of %q", actor, userID)
		}

		member := budget.Member(userID)
		if member == nil {
			return nil, errs.NotFoundf("user %q is not a member of budget %q", userID, tripID)
		}
		member.PlannedContribution = input.PlannedContribution

		if err := s.store.UpdateBudget(ctx, budget); err != nil {
			return nil, err
		}
		return s.snapshotOf(ctx, budget)
	})
}

// UpdateRules replaces the budget's member-permission rules. Creator only,
// under the same check as the base target.
func (s *BudgetService) UpdateRules(ctx context.Context, tripID, actor string, rules models.BudgetRules) (snap *models.BudgetSnapshot, err error) {
	defer s.observe("update_rules", time.Now(), &err)

	return s.retryMutation(ctx, "UpdateRules", func(ctx context.Context) (*models.BudgetSnapshot, error) {
		budget, _, err := s.loadReconciled(ctx, tripID)
		if err != nil {
			return nil, err
		}

		allowed, err := s.perms.CanEditBaseBudget(actor, budget)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, errs.Authorizationf("user %q may not edit the rules of trip %q", actor, tripID)
		}

		budget.Rules = rules
		if err := s.store.UpdateBudget(ctx, budget); err != nil {
			return nil, err
		}
		return s.snapshotOf(ctx, budget)
	})
}

// CreateExpense records a new expense, computing its splits from the
// requested method and participants. PaidBy defaults to the actor and
// Currency to the budget's base currency.
func (s *BudgetService) CreateExpense(ctx context.Context, tripID, actor string, input models.CreateExpenseInput) (snap *models.BudgetSnapshot, err error) {
	defer s.observe("create_expense", time.Now(), &err)

	return s.retryMutation(ctx, "CreateExpense", func(ctx context.Context) (*models.BudgetSnapshot, error) {
		budget, reconciled, err := s.loadReconciled(ctx, tripID)
		if err != nil {
			return nil, err
		}

		allowed, err := s.perms.CanAddExpense(actor, budget)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, errs.Authorizationf("user %q may not add expenses to trip %q", actor, tripID)
		}

		expense, err := buildExpense(budget, actor, input)
		if err != nil {
			return nil, err
		}

		// A reconciled member set must be durable before an expense can
		// split against it.
		if err := s.persistIfReconciled(ctx, budget, reconciled); err != nil {
			return nil, err
		}
		if err := s.store.CreateExpense(ctx, expense, budget.Version); err != nil {
			return nil, err
		}
		budget.Version++
		slog.Info("Expense created",
			"trip_id", tripID, "expense_id", expense.ID,
			"amount", expense.Amount, "method", expense.SplitMethod)

		return s.snapshotOf(ctx, budget)
	})
}

// UpdateExpense applies a partial update to an expense, re-running the
// split computation when the amount, method or participants change.
func (s *BudgetService) UpdateExpense(ctx context.Context, expenseID, actor string, input models.UpdateExpenseInput) (snap *models.BudgetSnapshot, err error) {
	defer s.observe("update_expense", time.Now(), &err)

	return s.retryMutation(ctx, "UpdateExpense", func(ctx context.Context) (*models.BudgetSnapshot, error) {
		expense, err := s.store.GetExpense(ctx, expenseID)
		if err != nil {
			return nil, err
		}
		budget, reconciled, err := s.loadReconciled(ctx, expense.TripID)
		if err != nil {
			return nil, err
		}

		allowed, err := s.perms.CanEditOrDeleteExpense(actor, expense, budget)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, errs.Authorizationf("user %q may not edit expense %q", actor, expenseID)
		}

		if err := applyExpenseUpdate(budget, expense, input); err != nil {
			return nil, err
		}

		if err := s.persistIfReconciled(ctx, budget, reconciled); err != nil {
			return nil, err
		}
		if err := s.store.UpdateExpense(ctx, expense, budget.Version); err != nil {
			return nil, err
		}
		budget.Version++
		slog.Info("Expense updated", "trip_id", budget.TripID, "expense_id", expenseID)

		return s.snapshotOf(ctx, budget)
	})
}

// DeleteExpense removes an expense under the same permission rule as
// editing it.
func (s *BudgetService) DeleteExpense(ctx context.Context, expenseID, actor string) (snap *models.BudgetSnapshot, err error) {
	defer s.observe("delete_expense", time.Now(), &err)

	return s.retryMutation(ctx, "DeleteExpense", func(ctx context.Context) (*models.BudgetSnapshot, error) {
		expense, err := s.store.GetExpense(ctx, expenseID)
		if err != nil {
			return nil, err
		}
		budget, reconciled, err := s.loadReconciled(ctx, expense.TripID)
		if err != nil {
			return nil, err
		}

		allowed, err := s.perms.CanEditOrDeleteExpense(actor, expense, budget)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, errs.Authorizationf("user %q may not delete expense %q", actor, expenseID)
		}

		if err := s.persistIfReconciled(ctx, budget, reconciled); err != nil {
			return nil, err
		}
		if err := s.store.DeleteExpense(ctx, expenseID, budget.Version); err != nil {
			return nil, err
		}
		budget.Version++
		slog.Info("Expense deleted", "trip_id", budget.TripID, "expense_id", expenseID)

		return s.snapshotOf(ctx, budget)
	})
}

// GetSnapshot computes the current read model for a trip. Reads reconcile
// the roster in memory only; they never write.
func (s *BudgetService) GetSnapshot(ctx context.Context, tripID string) (snap *models.BudgetSnapshot, err error) {
	defer s.observe("get_snapshot", time.Now(), &err)

	budget, _, err := s.loadReconciled(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return s.snapshotOf(ctx, budget)
}

// retryMutation runs fn, retrying on optimistic-write conflicts. Each
// attempt re-reads the budget, so a retry applies the mutation on top of
// the concurrent writer's result instead of overwriting it.
func (s *BudgetService) retryMutation(ctx context.Context, op string, fn func(context.Context) (*models.BudgetSnapshot, error)) (*models.BudgetSnapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		snap, err := fn(ctx)
		if err == nil {
			return snap, nil
		}
		if !errs.Is(err, errs.Conflict) {
			s.logFailure(op, err)
			return nil, err
		}
		lastErr = err
		slog.Debug("Retrying after write conflict", "op", op, "attempt", attempt)
	}
	slog.Warn("Giving up after repeated write conflicts", "op", op, "error", lastErr)
	return nil, lastErr
}

// loadReconciled fetches the budget and folds in the current roster:
// members missing from the roster are flagged past, returning users are
// reactivated, and new roster members are added with a zero planned
// contribution. The second return reports whether anything changed; the
// change is not persisted here. Mutations that depend on the member set
// persist it via persistIfReconciled before any dependent write.
func (s *BudgetService) loadReconciled(ctx context.Context, tripID string) (*models.Budget, bool, error) {
	budget, err := s.store.GetBudget(ctx, tripID)
	if err != nil {
		return nil, false, err
	}

	members, err := s.directory.GetCurrentMembers(ctx, tripID)
	if err != nil {
		return nil, false, err
	}

	current := make(map[string]struct{}, len(members))
	for _, m := range members {
		current[m.UserID] = struct{}{}
	}

	reconciled := false
	for i := range budget.Members {
		_, present := current[budget.Members[i].UserID]
		if budget.Members[i].IsPastMember == present {
			budget.Members[i].IsPastMember = !present
			reconciled = true
		}
	}
	for _, m := range members {
		if budget.Member(m.UserID) == nil {
			budget.Members = append(budget.Members, models.BudgetMember{
				UserID:              m.UserID,
				PlannedContribution: decimal.Zero,
			})
			reconciled = true
		}
	}

	if reconciled {
		slog.Debug("Roster reconciled", "trip_id", tripID, "members", len(budget.Members))
	}
	return budget, reconciled, nil
}

// persistIfReconciled writes the budget when roster reconciliation changed
// it, so expense splits never reference members the store does not know.
func (s *BudgetService) persistIfReconciled(ctx context.Context, budget *models.Budget, reconciled bool) error {
	if !reconciled {
		return nil
	}
	return s.store.UpdateBudget(ctx, budget)
}

// snapshotOf lists the trip's expenses and aggregates the snapshot.
// A Consistency error here means stored state is corrupt; it is logged
// loudly and propagated, never masked.
func (s *BudgetService) snapshotOf(ctx context.Context, budget *models.Budget) (*models.BudgetSnapshot, error) {
	expenses, err := s.store.ListExpenses(ctx, budget.TripID)
	if err != nil {
		return nil, err
	}
	snap, err := snapshot.Compute(budget, expenses)
	if err != nil {
		if errs.Is(err, errs.Consistency) {
			slog.Error("Snapshot aggregation found corrupt state", "trip_id", budget.TripID, "error", err)
		}
		return nil, err
	}
	return snap, nil
}

func (s *BudgetService) observe(op string, start time.Time, err *error) {
	s.metrics.Observe(op, start, *err)
}

func (s *BudgetService) logFailure(op string, err error) {
	switch errs.KindOf(err) {
	case errs.Validation, errs.Authorization, errs.NotFound:
		slog.Debug("Operation rejected", "op", op, "error", err)
	case errs.Consistency:
		// Already logged at the source.
	default:
		slog.Error("Operation failed", "op", op, "error", err)
	}
}

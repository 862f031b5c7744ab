// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/voyago/tripledger/internal/models"
)

// Store defines budget and expense persistence. The abstraction allows
// swapping storage backends (SQLite, PostgreSQL, ...) without changing the
// service layer.
//
// Concurrency contract: every mutation is conditional on the owning
// budget's Version. Expense writes also bump the budget version so that a
// snapshot read after a successful write observes a consistent
// budget/expense pair. A mutation losing the version race fails with a
// Conflict error and must not leave partial state behind; callers re-read
// and retry.
type Store interface {
	// CreateBudget persists a new budget with Version 1. Fails with a
	// Conflict error if the trip already has one. CreatedAt is populated
	// by the store when zero.
	CreateBudget(ctx context.Context, budget *models.Budget) error

	// GetBudget retrieves the budget for a trip, members included, or a
	// NotFound error.
	GetBudget(ctx context.Context, tripID string) (*models.Budget, error)

	// UpdateBudget writes the budget and its member set conditionally on
	// budget.Version, then bumps budget.Version in place. A stale version
	// is a Conflict error.
	UpdateBudget(ctx context.Context, budget *models.Budget) error

	// CreateExpense inserts the expense and its splits, conditionally
	// bumping the owning budget from budgetVersion. The expense ID and
	// CreatedAt are populated by the store when empty.
	CreateExpense(ctx context.Context, expense *models.Expense, budgetVersion int64) error

	// GetExpense retrieves an expense by ID, splits included, or a
	// NotFound error.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// UpdateExpense rewrites the expense and its splits, conditionally
	// bumping the owning budget from budgetVersion.
	UpdateExpense(ctx context.Context, expense *models.Expense, budgetVersion int64) error

	// DeleteExpense removes the expense and its splits, conditionally
	// bumping the owning budget from budgetVersion.
	DeleteExpense(ctx context.Context, expenseID string, budgetVersion int64) error

	// ListExpenses returns all of a trip's expenses ordered by date, then
	// ID for a stable tiebreak.
	ListExpenses(ctx context.Context, tripID string) ([]*models.Expense, error)

	// Close releases any resources held by the store.
	Close() error
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/voyago/tripledger/internal/errs"
	"github.com/voyago/tripledger/internal/models"
)

// CreateBudget persists a new budget with its initial member set.
func (s *SQLiteStore) CreateBudget(ctx context.Context, budget *models.Budget) error {
	if budget.CreatedAt == 0 {
		budget.CreatedAt = time.Now().Unix()
	}
	budget.Version = 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM budgets WHERE trip_id = ?", budget.TripID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check budget existence: %w", err)
	}
	if exists > 0 {
		return errs.Conflictf("budget for trip %q already exists", budget.TripID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO budgets (
			trip_id, created_by, base_currency, base_budget_amount,
			allow_member_expense_creation, allow_member_contribution_edits,
			allow_member_expense_edits, version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		budget.TripID, budget.CreatedBy, budget.BaseCurrency,
		nullableAmount(budget),
		budget.Rules.AllowMemberExpenseCreation,
		budget.Rules.AllowMemberContributionEdits,
		budget.Rules.AllowMemberExpenseEdits,
		budget.Version, budget.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert budget: %w", err)
	}

	if err := insertMembers(ctx, tx, budget); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBudget retrieves a budget and its members by trip ID.
func (s *SQLiteStore) GetBudget(ctx context.Context, tripID string) (*models.Budget, error) {
	budget := &models.Budget{}
	var baseAmount sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT trip_id, created_by, base_currency, base_budget_amount,
		       allow_member_expense_creation, allow_member_contribution_edits,
		       allow_member_expense_edits, version, created_at
		FROM budgets WHERE trip_id = ?`,
		tripID,
	).Scan(
		&budget.TripID, &budget.CreatedBy, &budget.BaseCurrency, &baseAmount,
		&budget.Rules.AllowMemberExpenseCreation,
		&budget.Rules.AllowMemberContributionEdits,
		&budget.Rules.AllowMemberExpenseEdits,
		&budget.Version, &budget.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("budget for trip %q not found", tripID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	if baseAmount.Valid {
		d, err := scanDecimal(baseAmount.String, "base_budget_amount")
		if err != nil {
			return nil, err
		}
		budget.BaseBudgetAmount = &d
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, planned_contribution, is_past_member
		FROM budget_members WHERE trip_id = ? ORDER BY position`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get budget members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.BudgetMember
		var planned string
		if err := rows.Scan(&m.UserID, &planned, &m.IsPastMember); err != nil {
			return nil, fmt.Errorf("failed to scan budget member: %w", err)
		}
		if m.PlannedContribution, err = scanDecimal(planned, "planned_contribution"); err != nil {
			return nil, err
		}
		budget.Members = append(budget.Members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate budget members: %w", err)
	}

	return budget, nil
}

// UpdateBudget rewrites the budget row and member set conditionally on the
// stored version, then advances budget.Version to match the database.
func (s *SQLiteStore) UpdateBudget(ctx context.Context, budget *models.Budget) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, budget.TripID, budget.Version); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE budgets SET
			base_currency = ?, base_budget_amount = ?,
			allow_member_expense_creation = ?, allow_member_contribution_edits = ?,
			allow_member_expense_edits = ?
		WHERE trip_id = ?`,
		budget.BaseCurrency, nullableAmount(budget),
		budget.Rules.AllowMemberExpenseCreation,
		budget.Rules.AllowMemberContributionEdits,
		budget.Rules.AllowMemberExpenseEdits,
		budget.TripID,
	)
	if err != nil {
		return fmt.Errorf("failed to update budget: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM budget_members WHERE trip_id = ?", budget.TripID,
	); err != nil {
		return fmt.Errorf("failed to clear budget members: %w", err)
	}
	if err := insertMembers(ctx, tx, budget); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	budget.Version++
	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, budget *models.Budget) error {
	for i, m := range budget.Members {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO budget_members (trip_id, user_id, planned_contribution, is_past_member, position)
			VALUES (?, ?, ?, ?, ?)`,
			budget.TripID, m.UserID, m.PlannedContribution.String(), m.IsPastMember, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert budget member: %w", err)
		}
	}
	return nil
}

func nullableAmount(budget *models.Budget) any {
	if budget.BaseBudgetAmount == nil {
		return nil
	}
	return budget.BaseBudgetAmount.String()
}

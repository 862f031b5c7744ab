package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voyago/tripledger/internal/errs"
	"github.com/voyago/tripledger/internal/models"
)

// CreateExpense inserts an expense and its splits, bumping the owning
// budget's version from budgetVersion.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense, budgetVersion int64) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.Date == 0 {
		expense.Date = expense.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, expense.TripID, budgetVersion); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO expenses (
			id, trip_id, title, amount, currency, category,
			paid_by, date, notes, split_method, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.TripID, expense.Title, expense.Amount.String(),
		expense.Currency, expense.Category, expense.PaidBy, expense.Date,
		expense.Notes, string(expense.SplitMethod), expense.CreatedBy, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertSplits(ctx, tx, expense); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense and its splits by ID.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense := &models.Expense{}
	var amount, method string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, trip_id, title, amount, currency, category,
		       paid_by, date, notes, split_method, created_by, created_at
		FROM expenses WHERE id = ?`,
		expenseID,
	).Scan(
		&expense.ID, &expense.TripID, &expense.Title, &amount,
		&expense.Currency, &expense.Category, &expense.PaidBy, &expense.Date,
		&expense.Notes, &method, &expense.CreatedBy, &expense.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("expense %q not found", expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	if expense.Amount, err = scanDecimal(amount, "amount"); err != nil {
		return nil, err
	}
	expense.SplitMethod = models.SplitMethod(method)

	if expense.Splits, err = s.loadSplits(ctx, expenseID); err != nil {
		return nil, err
	}
	return expense, nil
}

// UpdateExpense rewrites an expense and its splits, bumping the owning
// budget's version from budgetVersion.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense, budgetVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := bumpVersion(ctx, tx, expense.TripID, budgetVersion); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE expenses SET
			title = ?, amount = ?, currency = ?, category = ?,
			paid_by = ?, date = ?, notes = ?, split_method = ?
		WHERE id = ?`,
		expense.Title, expense.Amount.String(), expense.Currency, expense.Category,
		expense.PaidBy, expense.Date, expense.Notes, string(expense.SplitMethod),
		expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return errs.NotFoundf("expense %q not found", expense.ID)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM expense_splits WHERE expense_id = ?", expense.ID,
	); err != nil {
		return fmt.Errorf("failed to clear expense splits: %w", err)
	}
	if err := insertSplits(ctx, tx, expense); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense, bumping the owning budget's version
// from budgetVersion.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string, budgetVersion int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var tripID string
	err = tx.QueryRowContext(ctx,
		"SELECT trip_id FROM expenses WHERE id = ?", expenseID,
	).Scan(&tripID)
	if err == sql.ErrNoRows {
		return errs.NotFoundf("expense %q not found", expenseID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up expense: %w", err)
	}

	if err := bumpVersion(ctx, tx, tripID, budgetVersion); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM expenses WHERE id = ?", expenseID,
	); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListExpenses returns a trip's expenses ordered by date, then ID.
func (s *SQLiteStore) ListExpenses(ctx context.Context, tripID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trip_id, title, amount, currency, category,
		       paid_by, date, notes, split_method, created_by, created_at
		FROM expenses WHERE trip_id = ? ORDER BY date, id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense := &models.Expense{}
		var amount, method string
		if err := rows.Scan(
			&expense.ID, &expense.TripID, &expense.Title, &amount,
			&expense.Currency, &expense.Category, &expense.PaidBy, &expense.Date,
			&expense.Notes, &method, &expense.CreatedBy, &expense.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if expense.Amount, err = scanDecimal(amount, "amount"); err != nil {
			return nil, err
		}
		expense.SplitMethod = models.SplitMethod(method)
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for _, expense := range expenses {
		if expense.Splits, err = s.loadSplits(ctx, expense.ID); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

func (s *SQLiteStore) loadSplits(ctx context.Context, expenseID string) ([]models.Split, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, amount FROM expense_splits WHERE expense_id = ? ORDER BY user_id",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense splits: %w", err)
	}
	defer rows.Close()

	var splits []models.Split
	for rows.Next() {
		var split models.Split
		var amount string
		if err := rows.Scan(&split.UserID, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		if split.Amount, err = scanDecimal(amount, "split amount"); err != nil {
			return nil, err
		}
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

func insertSplits(ctx context.Context, tx *sql.Tx, expense *models.Expense) error {
	for _, split := range expense.Splits {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_splits (expense_id, user_id, amount) VALUES (?, ?, ?)",
			expense.ID, split.UserID, split.Amount.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}
	return nil
}

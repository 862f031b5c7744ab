package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Amounts are stored as decimal strings, never floats, so money survives
// round-trips exactly.
const schema = `
CREATE TABLE IF NOT EXISTS budgets (
    trip_id TEXT PRIMARY KEY,
    created_by TEXT NOT NULL,
    base_currency TEXT NOT NULL,
    base_budget_amount TEXT,
    allow_member_expense_creation INTEGER NOT NULL DEFAULT 1,
    allow_member_contribution_edits INTEGER NOT NULL DEFAULT 1,
    allow_member_expense_edits INTEGER NOT NULL DEFAULT 1,
    version INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS budget_members (
    trip_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    planned_contribution TEXT NOT NULL,
    is_past_member INTEGER NOT NULL DEFAULT 0,
    position INTEGER NOT NULL,
    PRIMARY KEY (trip_id, user_id),
    FOREIGN KEY (trip_id) REFERENCES budgets(trip_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    trip_id TEXT NOT NULL,
    title TEXT NOT NULL,
    amount TEXT NOT NULL,
    currency TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    paid_by TEXT NOT NULL,
    date INTEGER NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    split_method TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (trip_id) REFERENCES budgets(trip_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS expense_splits (
    expense_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    PRIMARY KEY (expense_id, user_id),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_budget_members_trip_id ON budget_members(trip_id);
CREATE INDEX IF NOT EXISTS idx_expenses_trip_id ON expenses(trip_id);
CREATE INDEX IF NOT EXISTS idx_expense_splits_expense_id ON expense_splits(expense_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

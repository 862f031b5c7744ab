package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/tripledger/internal/errs"
	"github.com/voyago/tripledger/internal/models"
	"github.com/voyago/tripledger/internal/roster"
	"github.com/voyago/tripledger/internal/storage/sqlite"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func strp(s string) *string { return &s }

// newTestService wires a BudgetService against a temp-file SQLite store and
// a static roster of alice (creator), bob and carol on trip-1.
func newTestService(t *testing.T) (*BudgetService, *roster.Static) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "tripledger-svc-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	dir := roster.NewStatic()
	dir.SetMembers("trip-1", []roster.Member{
		{UserID: "alice", Name: "Alice"},
		{UserID: "bob", Name: "Bob"},
		{UserID: "carol", Name: "Carol"},
	})

	return New(store, dir, nil), dir
}

func createTestBudget(t *testing.T, svc *BudgetService, target string) *models.BudgetSnapshot {
	t.Helper()
	input := models.CreateBudgetInput{BaseCurrency: "EUR"}
	if target != "" {
		input.TotalBudgetAmount = decp(target)
	}
	snap, err := svc.CreateBudget(context.Background(), "trip-1", "alice", input)
	require.NoError(t, err)
	return snap
}

func TestCreateBudget(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds members with even distribution", func(t *testing.T) {
		svc, _ := newTestService(t)
		snap := createTestBudget(t, svc, "9000")

		require.Len(t, snap.Budget.Members, 3)
		for _, m := range snap.Budget.Members {
			assert.True(t, m.PlannedContribution.Equal(dec("3000")),
				"%s planned %s", m.UserID, m.PlannedContribution)
		}
		assert.True(t, snap.Summary.TotalPlanned.Equal(dec("9000")))
		require.NotNil(t, snap.Summary.TargetDelta)
		assert.True(t, snap.Summary.TargetDelta.IsZero())
	})

	t.Run("uneven target keeps exact sum", func(t *testing.T) {
		svc, _ := newTestService(t)
		snap := createTestBudget(t, svc, "100")

		total := decimal.Zero
		for _, m := range snap.Budget.Members {
			total = total.Add(m.PlannedContribution)
		}
		assert.True(t, total.Equal(dec("100")), "planned sum %s", total)
		// Remainder cent goes to the first user in sorted order.
		assert.True(t, snap.Budget.Members[0].PlannedContribution.Equal(dec("33.34")))
	})

	t.Run("without target everyone starts at zero", func(t *testing.T) {
		svc, _ := newTestService(t)
		snap := createTestBudget(t, svc, "")

		for _, m := range snap.Budget.Members {
			assert.True(t, m.PlannedContribution.IsZero())
		}
		assert.Nil(t, snap.Summary.TargetDelta)
	})

	t.Run("duplicate creation conflicts", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		_, err := svc.CreateBudget(ctx, "trip-1", "alice", models.CreateBudgetInput{BaseCurrency: "EUR"})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Conflict), "got %v", err)
	})

	t.Run("non-member cannot create", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.CreateBudget(ctx, "trip-1", "mallory", models.CreateBudgetInput{BaseCurrency: "EUR"})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Authorization), "got %v", err)
	})

	t.Run("bad currency rejected", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.CreateBudget(ctx, "trip-1", "alice", models.CreateBudgetInput{BaseCurrency: "euros"})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Validation), "got %v", err)
	})
}

func TestUpdateBaseBudget(t *testing.T) {
	ctx := context.Background()

	t.Run("creator adjusts and clears target", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		snap, err := svc.UpdateBaseBudget(ctx, "trip-1", "alice", models.UpdateBudgetInput{
			BaseBudgetAmount: decp("12000"),
		})
		require.NoError(t, err)
		require.NotNil(t, snap.Budget.BaseBudgetAmount)
		assert.True(t, snap.Budget.BaseBudgetAmount.Equal(dec("12000")))
		// Contributions are untouched: 9000 planned against the new target.
		require.NotNil(t, snap.Summary.TargetDelta)
		assert.True(t, snap.Summary.TargetDelta.Equal(dec("3000")))

		snap, err = svc.UpdateBaseBudget(ctx, "trip-1", "alice", models.UpdateBudgetInput{})
		require.NoError(t, err)
		assert.Nil(t, snap.Budget.BaseBudgetAmount)
		assert.Nil(t, snap.Summary.TargetDelta)
		assert.True(t, snap.Summary.TotalPlanned.Equal(dec("9000")))
	})

	t.Run("member denied", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		_, err := svc.UpdateBaseBudget(ctx, "trip-1", "bob", models.UpdateBudgetInput{
			BaseBudgetAmount: decp("1"),
		})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Authorization), "got %v", err)
	})

	t.Run("missing budget", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.UpdateBaseBudget(ctx, "trip-1", "alice", models.UpdateBudgetInput{})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.NotFound), "got %v", err)
	})
}

func TestUpdateMemberContribution(t *testing.T) {
	ctx := context.Background()

	t.Run("target mismatch closes after raise", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		// Lower bob's contribution: 3000+2400+3000 = 8400 against 9000.
		snap, err := svc.UpdateMemberContribution(ctx, "trip-1", "bob", "bob", models.UpdateMemberInput{
			PlannedContribution: dec("2400"),
		})
		require.NoError(t, err)
		require.NotNil(t, snap.Summary.TargetDelta)
		assert.True(t, snap.Summary.TargetDelta.Equal(dec("600")), "delta %s", snap.Summary.TargetDelta)

		snap, err = svc.UpdateMemberContribution(ctx, "trip-1", "bob", "bob", models.UpdateMemberInput{
			PlannedContribution: dec("3000"),
		})
		require.NoError(t, err)
		assert.True(t, snap.Summary.TargetDelta.IsZero())
	})

	t.Run("negative contribution rejected", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		_, err := svc.UpdateMemberContribution(ctx, "trip-1", "bob", "bob", models.UpdateMemberInput{
			PlannedContribution: dec("-1"),
		})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Validation), "got %v", err)
	})

	t.Run("member cannot edit another member", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		_, err := svc.UpdateMemberContribution(ctx, "trip-1", "bob", "carol", models.UpdateMemberInput{
			PlannedContribution: dec("1"),
		})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Authorization), "got %v", err)
	})

	t.Run("creator edits anyone", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		snap, err := svc.UpdateMemberContribution(ctx, "trip-1", "alice", "carol", models.UpdateMemberInput{
			PlannedContribution: dec("4000"),
		})
		require.NoError(t, err)
		assert.True(t, snap.Budget.Member("carol").PlannedContribution.Equal(dec("4000")))
	})

	t.Run("concurrent edits both land", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		var wg sync.WaitGroup
		errA := make(chan error, 1)
		errB := make(chan error, 1)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateMemberContribution(ctx, "trip-1", "alice", "alice", models.UpdateMemberInput{
				PlannedContribution: dec("5000"),
			})
			errA <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.UpdateMemberContribution(ctx, "trip-1", "bob", "bob", models.UpdateMemberInput{
				PlannedContribution: dec("1000"),
			})
			errB <- err
		}()
		wg.Wait()

		require.NoError(t, <-errA)
		require.NoError(t, <-errB)

		snap, err := svc.GetSnapshot(ctx, "trip-1")
		require.NoError(t, err)
		assert.True(t, snap.Budget.Member("alice").PlannedContribution.Equal(dec("5000")))
		assert.True(t, snap.Budget.Member("bob").PlannedContribution.Equal(dec("1000")))
	})
}

func TestCreateExpense(t *testing.T) {
	ctx := context.Background()

	t.Run("equal split across everyone", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		snap, err := svc.CreateExpense(ctx, "trip-1", "bob", models.CreateExpenseInput{
			Title:        "Hotel",
			Amount:       dec("100"),
			Category:     "lodging",
			SplitMethod:  models.SplitEqual,
			Participants: models.AllCurrentMembers(),
		})
		require.NoError(t, err)

		require.Len(t, snap.Expenses, 1)
		exp := snap.Expenses[0]
		assert.Equal(t, "bob", exp.PaidBy, "paidBy defaults to actor")
		assert.Equal(t, "bob", exp.CreatedBy)
		assert.Equal(t, "EUR", exp.Currency, "currency defaults to base")

		require.Len(t, exp.Splits, 3)
		assert.Equal(t, "alice", exp.Splits[0].UserID)
		assert.True(t, exp.Splits[0].Amount.Equal(dec("33.34")))
		assert.True(t, exp.Splits[1].Amount.Equal(dec("33.33")))
		assert.True(t, exp.Splits[2].Amount.Equal(dec("33.33")))

		assert.True(t, snap.Summary.TotalSpent.Equal(dec("100")))
		assert.True(t, snap.Summary.Remaining.Equal(dec("8900")))
		assert.True(t, snap.MemberSummaries[0].Spent.Equal(dec("33.34")))
	})

	t.Run("percentage split", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		snap, err := svc.CreateExpense(ctx, "trip-1", "alice", models.CreateExpenseInput{
			Title:       "Car rental",
			Amount:      dec("400"),
			SplitMethod: models.SplitPercentage,
			Participants: models.ExplicitParticipants(
				models.Participant{UserID: "alice", Percent: decp("75")},
				models.Participant{UserID: "bob", Percent: decp("25")},
			),
		})
		require.NoError(t, err)

		exp := snap.Expenses[0]
		require.Len(t, exp.Splits, 2)
		assert.True(t, exp.Splits[0].Amount.Equal(dec("300")))
		assert.True(t, exp.Splits[1].Amount.Equal(dec("100")))
	})

	t.Run("unknown participant rejected", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		_, err := svc.CreateExpense(ctx, "trip-1", "alice", models.CreateExpenseInput{
			Title:       "Dinner",
			Amount:      dec("60"),
			SplitMethod: models.SplitEqual,
			Participants: models.ExplicitParticipants(
				models.Participant{UserID: "mallory"},
			),
		})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Validation), "got %v", err)
	})

	t.Run("member denied when rule disabled", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		rules := models.DefaultBudgetRules()
		rules.AllowMemberExpenseCreation = false
		_, err := svc.UpdateRules(ctx, "trip-1", "alice", rules)
		require.NoError(t, err)

		_, err = svc.CreateExpense(ctx, "trip-1", "bob", models.CreateExpenseInput{
			Title:        "Snacks",
			Amount:       dec("10"),
			SplitMethod:  models.SplitEqual,
			Participants: models.AllCurrentMembers(),
		})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Authorization), "got %v", err)

		// The creator is unaffected by the rule.
		_, err = svc.CreateExpense(ctx, "trip-1", "alice", models.CreateExpenseInput{
			Title:        "Snacks",
			Amount:       dec("10"),
			SplitMethod:  models.SplitEqual,
			Participants: models.AllCurrentMembers(),
		})
		require.NoError(t, err)
	})
}

func TestUpdateAndDeleteExpense(t *testing.T) {
	ctx := context.Background()

	t.Run("amount change recomputes equal splits", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		snap, err := svc.CreateExpense(ctx, "trip-1", "bob", models.CreateExpenseInput{
			Title:        "Hotel",
			Amount:       dec("100"),
			SplitMethod:  models.SplitEqual,
			Participants: models.AllCurrentMembers(),
		})
		require.NoError(t, err)
		expenseID := snap.Expenses[0].ID

		snap, err = svc.UpdateExpense(ctx, expenseID, "bob", models.UpdateExpenseInput{
			Amount: decp("150"),
			Title:  strp("Hotel incl. breakfast"),
		})
		require.NoError(t, err)

		exp := snap.Expenses[0]
		assert.Equal(t, "Hotel incl. breakfast", exp.Title)
		assert.True(t, exp.Amount.Equal(dec("150")))
		require.Len(t, exp.Splits, 3)
		assert.True(t, exp.Splits[0].Amount.Equal(dec("50")))
		assert.True(t, snap.Summary.TotalSpent.Equal(dec("150")))
	})

	t.Run("changing custom amount needs participants", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		snap, err := svc.CreateExpense(ctx, "trip-1", "alice", models.CreateExpenseInput{
			Title:       "Tickets",
			Amount:      dec("90"),
			SplitMethod: models.SplitCustom,
			Participants: models.ExplicitParticipants(
				models.Participant{UserID: "alice", Amount: decp("60")},
				models.Participant{UserID: "bob", Amount: decp("30")},
			),
		})
		require.NoError(t, err)
		expenseID := snap.Expenses[0].ID

		_, err = svc.UpdateExpense(ctx, expenseID, "alice", models.UpdateExpenseInput{
			Amount: decp("120"),
		})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Validation), "got %v", err)

		parts := models.ExplicitParticipants(
			models.Participant{UserID: "alice", Amount: decp("80")},
			models.Participant{UserID: "bob", Amount: decp("40")},
		)
		snap, err = svc.UpdateExpense(ctx, expenseID, "alice", models.UpdateExpenseInput{
			Amount:       decp("120"),
			Participants: &parts,
		})
		require.NoError(t, err)
		assert.True(t, snap.Expenses[0].Splits[0].Amount.Equal(dec("80")))
	})

	t.Run("member cannot edit another member's expense", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		snap, err := svc.CreateExpense(ctx, "trip-1", "bob", models.CreateExpenseInput{
			Title:        "Hotel",
			Amount:       dec("100"),
			SplitMethod:  models.SplitEqual,
			Participants: models.AllCurrentMembers(),
		})
		require.NoError(t, err)

		_, err = svc.UpdateExpense(ctx, snap.Expenses[0].ID, "carol", models.UpdateExpenseInput{
			Title: strp("Hijacked"),
		})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Authorization), "got %v", err)

		// The creator can.
		_, err = svc.UpdateExpense(ctx, snap.Expenses[0].ID, "alice", models.UpdateExpenseInput{
			Title: strp("Hotel (fixed)"),
		})
		require.NoError(t, err)
	})

	t.Run("delete removes expense from snapshot", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		snap, err := svc.CreateExpense(ctx, "trip-1", "bob", models.CreateExpenseInput{
			Title:        "Hotel",
			Amount:       dec("100"),
			SplitMethod:  models.SplitEqual,
			Participants: models.AllCurrentMembers(),
		})
		require.NoError(t, err)

		snap, err = svc.DeleteExpense(ctx, snap.Expenses[0].ID, "bob")
		require.NoError(t, err)
		assert.Empty(t, snap.Expenses)
		assert.True(t, snap.Summary.TotalSpent.IsZero())
	})

	t.Run("missing expense", func(t *testing.T) {
		svc, _ := newTestService(t)
		createTestBudget(t, svc, "9000")

		_, err := svc.DeleteExpense(ctx, "no-such-expense", "alice")
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.NotFound), "got %v", err)
	})
}

func TestPastMemberLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, dir := newTestService(t)
	createTestBudget(t, svc, "9000")

	// Carol records an expense, then leaves the trip.
	snap, err := svc.CreateExpense(ctx, "trip-1", "carol", models.CreateExpenseInput{
		Title:        "Museum",
		Amount:       dec("45"),
		SplitMethod:  models.SplitEqual,
		Participants: models.AllCurrentMembers(),
	})
	require.NoError(t, err)
	expenseID := snap.Expenses[0].ID

	dir.RemoveMember("trip-1", "carol")

	t.Run("history is retained", func(t *testing.T) {
		snap, err := svc.GetSnapshot(ctx, "trip-1")
		require.NoError(t, err)

		require.Len(t, snap.Budget.Members, 3)
		carol := snap.Budget.Member("carol")
		require.NotNil(t, carol)
		assert.True(t, carol.IsPastMember)

		require.Len(t, snap.Expenses, 1)
		assert.Equal(t, "carol", snap.Expenses[0].PaidBy)
		assert.True(t, snap.MemberSummaries[2].Spent.Equal(dec("15")))
	})

	t.Run("past member loses edit rights over own expense", func(t *testing.T) {
		_, err := svc.UpdateExpense(ctx, expenseID, "carol", models.UpdateExpenseInput{
			Title: strp("Museum + gift shop"),
		})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Authorization), "got %v", err)

		_, err = svc.DeleteExpense(ctx, expenseID, "carol")
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Authorization), "got %v", err)
	})

	t.Run("past member cannot edit own contribution", func(t *testing.T) {
		_, err := svc.UpdateMemberContribution(ctx, "trip-1", "carol", "carol", models.UpdateMemberInput{
			PlannedContribution: dec("0"),
		})
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Authorization), "got %v", err)
	})

	t.Run("returning member is reactivated", func(t *testing.T) {
		dir.SetMembers("trip-1", []roster.Member{
			{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"},
		})

		snap, err := svc.GetSnapshot(ctx, "trip-1")
		require.NoError(t, err)
		assert.False(t, snap.Budget.Member("carol").IsPastMember)
	})
}

func TestNewRosterMemberJoins(t *testing.T) {
	ctx := context.Background()
	svc, dir := newTestService(t)
	createTestBudget(t, svc, "9000")

	dir.SetMembers("trip-1", []roster.Member{
		{UserID: "alice"}, {UserID: "bob"}, {UserID: "carol"}, {UserID: "dave"},
	})

	snap, err := svc.GetSnapshot(ctx, "trip-1")
	require.NoError(t, err)

	dave := snap.Budget.Member("dave")
	require.NotNil(t, dave)
	assert.True(t, dave.PlannedContribution.IsZero())
	assert.False(t, dave.IsPastMember)

	// A new member can be split against immediately.
	snap, err = svc.CreateExpense(ctx, "trip-1", "dave", models.CreateExpenseInput{
		Title:        "Ferry",
		Amount:       dec("80"),
		SplitMethod:  models.SplitEqual,
		Participants: models.AllCurrentMembers(),
	})
	require.NoError(t, err)
	require.Len(t, snap.Expenses[0].Splits, 4)
	assert.True(t, snap.Summary.TotalSpent.Equal(dec("80")))
}

func TestSnapshotIsAuthoritative(t *testing.T) {
	// Every mutation returns the same view a fresh query would.
	ctx := context.Background()
	svc, _ := newTestService(t)
	createTestBudget(t, svc, "9000")

	mutated, err := svc.CreateExpense(ctx, "trip-1", "bob", models.CreateExpenseInput{
		Title:        "Hotel",
		Amount:       dec("100"),
		SplitMethod:  models.SplitEqual,
		Participants: models.AllCurrentMembers(),
	})
	require.NoError(t, err)

	queried, err := svc.GetSnapshot(ctx, "trip-1")
	require.NoError(t, err)

	assert.Equal(t, mutated.Summary, queried.Summary)
	assert.Equal(t, mutated.MemberSummaries, queried.MemberSummaries)
	require.Len(t, queried.Expenses, 1)
	assert.Equal(t, mutated.Expenses[0].ID, queried.Expenses[0].ID)
}

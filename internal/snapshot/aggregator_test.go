package snapshot

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/tripledger/internal/errs"
	"github.com/voyago/tripledger/internal/models"
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

func testBudget() *models.Budget {
	return &models.Budget{
		TripID:       "trip-1",
		CreatedBy:    "alice",
		BaseCurrency: "EUR",
		Members: []models.BudgetMember{
			{UserID: "alice", PlannedContribution: dec("3000")},
			{UserID: "bob", PlannedContribution: dec("2700")},
			{UserID: "carol", PlannedContribution: dec("2700")},
		},
		Rules: models.DefaultBudgetRules(),
	}
}

func expense(id, paidBy, amount string, splits ...models.Split) *models.Expense {
	return &models.Expense{
		ID:          id,
		TripID:      "trip-1",
		Title:       id,
		Amount:      dec(amount),
		Currency:    "EUR",
		PaidBy:      paidBy,
		SplitMethod: models.SplitCustom,
		Splits:      splits,
		CreatedBy:   paidBy,
	}
}

func TestComputeAggregates(t *testing.T) {
	budget := testBudget()
	expenses := []*models.Expense{
		expense("hotel", "alice", "600",
			models.Split{UserID: "alice", Amount: dec("200")},
			models.Split{UserID: "bob", Amount: dec("200")},
			models.Split{UserID: "carol", Amount: dec("200")},
		),
		expense("dinner", "bob", "90",
			models.Split{UserID: "alice", Amount: dec("30")},
			models.Split{UserID: "bob", Amount: dec("60")},
		),
	}

	snap, err := Compute(budget, expenses)
	require.NoError(t, err)

	assert.True(t, snap.Summary.TotalPlanned.Equal(dec("8400")))
	assert.True(t, snap.Summary.TotalSpent.Equal(dec("690")))
	assert.True(t, snap.Summary.Remaining.Equal(dec("7710")))
	assert.Nil(t, snap.Summary.TargetDelta)

	require.Len(t, snap.MemberSummaries, 3)
	// Insertion order of budget.Members, not sorted by amount.
	assert.Equal(t, "alice", snap.MemberSummaries[0].UserID)
	assert.Equal(t, "bob", snap.MemberSummaries[1].UserID)
	assert.Equal(t, "carol", snap.MemberSummaries[2].UserID)

	assert.True(t, snap.MemberSummaries[0].Spent.Equal(dec("230")))
	assert.True(t, snap.MemberSummaries[0].Remaining.Equal(dec("2770")))
	assert.True(t, snap.MemberSummaries[1].Spent.Equal(dec("260")))
	assert.True(t, snap.MemberSummaries[2].Spent.Equal(dec("200")))
}

func TestComputeTargetDelta(t *testing.T) {
	budget := testBudget()
	budget.BaseBudgetAmount = decp("9000")

	snap, err := Compute(budget, nil)
	require.NoError(t, err)

	// Contributions sum to 8400 against a 9000 target: 600 short.
	require.NotNil(t, snap.Summary.TargetDelta)
	assert.True(t, snap.Summary.TargetDelta.Equal(dec("600")))

	// Raising one member's contribution by 600 closes the gap.
	budget.Members[1].PlannedContribution = dec("3300")
	snap, err = Compute(budget, nil)
	require.NoError(t, err)
	assert.True(t, snap.Summary.TargetDelta.IsZero())

	// Overshooting flips the sign: negative means buffer.
	budget.Members[1].PlannedContribution = dec("3500")
	snap, err = Compute(budget, nil)
	require.NoError(t, err)
	assert.True(t, snap.Summary.TargetDelta.Equal(dec("-200")))
}

func TestComputePastMembersRetained(t *testing.T) {
	budget := testBudget()
	budget.Members[2].IsPastMember = true

	expenses := []*models.Expense{
		expense("museum", "carol", "45",
			models.Split{UserID: "alice", Amount: dec("15")},
			models.Split{UserID: "bob", Amount: dec("15")},
			models.Split{UserID: "carol", Amount: dec("15")},
		),
	}

	snap, err := Compute(budget, expenses)
	require.NoError(t, err)

	require.Len(t, snap.MemberSummaries, 3)
	carol := snap.MemberSummaries[2]
	assert.Equal(t, "carol", carol.UserID)
	assert.True(t, carol.IsPastMember)
	assert.True(t, carol.Spent.Equal(dec("15")))
}

func TestComputeIdempotent(t *testing.T) {
	budget := testBudget()
	budget.BaseBudgetAmount = decp("9000")
	expenses := []*models.Expense{
		expense("hotel", "alice", "600",
			models.Split{UserID: "alice", Amount: dec("300")},
			models.Split{UserID: "bob", Amount: dec("300")},
		),
	}

	first, err := Compute(budget, expenses)
	require.NoError(t, err)
	second, err := Compute(budget, expenses)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeConsistencyErrors(t *testing.T) {
	t.Run("split references unknown member", func(t *testing.T) {
		budget := testBudget()
		expenses := []*models.Expense{
			expense("taxi", "alice", "20",
				models.Split{UserID: "mallory", Amount: dec("20")},
			),
		}

		_, err := Compute(budget, expenses)
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Consistency), "got %v", err)
	})

	t.Run("split sums disagree with expense totals", func(t *testing.T) {
		budget := testBudget()
		expenses := []*models.Expense{
			expense("taxi", "alice", "20",
				models.Split{UserID: "alice", Amount: dec("5")},
			),
		}

		_, err := Compute(budget, expenses)
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Consistency), "got %v", err)
	})
}

package main

import (
	"github.com/shopspring/decimal"

	"github.com/voyago/tripledger/internal/models"
)

type snapshotView struct {
	Budget          budgetView          `json:"budget"`
	Expenses        []expenseView       `json:"expenses"`
	Summary         summaryView         `json:"summary"`
	MemberSummaries []memberSummaryView `json:"memberSummaries"`
}

type budgetView struct {
	TripID           string           `json:"tripId"`
	CreatedBy        string           `json:"createdBy"`
	BaseCurrency     string           `json:"baseCurrency"`
	BaseBudgetAmount *decimal.Decimal `json:"baseBudgetAmount,omitempty"`
	Members          []memberView     `json:"members"`
	Rules            rulesView        `json:"rules"`
	Version          int64            `json:"version"`
	CreatedAt        int64            `json:"createdAt"`
}

type memberView struct {
	UserID              string          `json:"userId"`
	PlannedContribution decimal.Decimal `json:"plannedContribution"`
	IsPastMember        bool            `json:"isPastMember,omitempty"`
}

type rulesView struct {
	AllowMemberExpenseCreation   bool `json:"allowMemberExpenseCreation"`
	AllowMemberContributionEdits bool `json:"allowMemberContributionEdits"`
	AllowMemberExpenseEdits      bool `json:"allowMemberExpenseEdits"`
}

type expenseView struct {
	ID          string          `json:"id"`
	TripID      string          `json:"tripId"`
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category,omitempty"`
	PaidBy      string          `json:"paidBy"`
	Date        int64           `json:"date"`
	Notes       string          `json:"notes,omitempty"`
	SplitMethod string          `json:"splitMethod"`
	Splits      []splitView     `json:"splits"`
	CreatedBy   string          `json:"createdBy"`
	CreatedAt   int64           `json:"createdAt"`
}

type splitView struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

type summaryView struct {
	TotalPlanned decimal.Decimal  `json:"totalPlanned"`
	TotalSpent   decimal.Decimal  `json:"totalSpent"`
	Remaining    decimal.Decimal  `json:"remaining"`
	TargetDelta  *decimal.Decimal `json:"targetDelta,omitempty"`
}

type memberSummaryView struct {
	UserID       string          `json:"userId"`
	IsPastMember bool            `json:"isPastMember,omitempty"`
	Planned      decimal.Decimal `json:"planned"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
}

func snapshotResponse(snap *models.BudgetSnapshot) snapshotView {
	out := snapshotView{
		Budget: budgetView{
			TripID:           snap.Budget.TripID,
			CreatedBy:        snap.Budget.CreatedBy,
			BaseCurrency:     snap.Budget.BaseCurrency,
			BaseBudgetAmount: snap.Budget.BaseBudgetAmount,
			Rules: rulesView{
				AllowMemberExpenseCreation:   snap.Budget.Rules.AllowMemberExpenseCreation,
				AllowMemberContributionEdits: snap.Budget.Rules.AllowMemberContributionEdits,
				AllowMemberExpenseEdits:      snap.Budget.Rules.AllowMemberExpenseEdits,
			},
			Version:   snap.Budget.Version,
			CreatedAt: snap.Budget.CreatedAt,
		},
		Expenses:        make([]expenseView, 0, len(snap.Expenses)),
		MemberSummaries: make([]memberSummaryView, 0, len(snap.MemberSummaries)),
		Summary: summaryView{
			TotalPlanned: snap.Summary.TotalPlanned,
			TotalSpent:   snap.Summary.TotalSpent,
			Remaining:    snap.Summary.Remaining,
			TargetDelta:  snap.Summary.TargetDelta,
		},
	}

	for _, m := range snap.Budget.Members {
		out.Budget.Members = append(out.Budget.Members, memberView{
			UserID:              m.UserID,
			PlannedContribution: m.PlannedContribution,
			IsPastMember:        m.IsPastMember,
		})
	}

	for _, e := range snap.Expenses {
		ev := expenseView{
			ID:          e.ID,
			TripID:      e.TripID,
			Title:       e.Title,
			Amount:      e.Amount,
			Currency:    e.Currency,
			Category:    e.Category,
			PaidBy:      e.PaidBy,
			Date:        e.Date,
			Notes:       e.Notes,
			SplitMethod: string(e.SplitMethod),
			CreatedBy:   e.CreatedBy,
			CreatedAt:   e.CreatedAt,
		}
		for _, s := range e.Splits {
			ev.Splits = append(ev.Splits, splitView{UserID: s.UserID, Amount: s.Amount})
		}
		out.Expenses = append(out.Expenses, ev)
	}

	for _, ms := range snap.MemberSummaries {
		out.MemberSummaries = append(out.MemberSummaries, memberSummaryView{
			UserID:       ms.UserID,
			IsPastMember: ms.IsPastMember,
			Planned:      ms.Planned,
			Spent:        ms.Spent,
			Remaining:    ms.Remaining,
		})
	}

	return out
}

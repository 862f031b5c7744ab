package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voyago/tripledger/internal/errs"
	"github.com/voyago/tripledger/internal/models"
	"github.com/voyago/tripledger/internal/service"
)

// The caller's identity arrives on this header. Authentication itself lives
// in the surrounding application; this server trusts its gateway.
const userHeader = "X-User-ID"

func registerRoutes(mux *http.ServeMux, svc *service.BudgetService) {
	h := &handlers{svc: svc}

	mux.HandleFunc("POST /api/trips/{tripID}/budget", h.createBudget)
	mux.HandleFunc("GET /api/trips/{tripID}/budget", h.getSnapshot)
	mux.HandleFunc("PATCH /api/trips/{tripID}/budget", h.updateBaseBudget)
	mux.HandleFunc("PUT /api/trips/{tripID}/budget/rules", h.updateRules)
	mux.HandleFunc("PATCH /api/trips/{tripID}/budget/members/{userID}", h.updateMemberContribution)
	mux.HandleFunc("POST /api/trips/{tripID}/expenses", h.createExpense)
	mux.HandleFunc("PATCH /api/expenses/{expenseID}", h.updateExpense)
	mux.HandleFunc("DELETE /api/expenses/{expenseID}", h.deleteExpense)
}

type handlers struct {
	svc *service.BudgetService
}

type createBudgetRequest struct {
	BaseCurrency      string           `json:"baseCurrency"`
	TotalBudgetAmount *decimal.Decimal `json:"totalBudgetAmount,omitempty"`
}

type updateBudgetRequest struct {
	BaseBudgetAmount *decimal.Decimal `json:"baseBudgetAmount,omitempty"`
}

type updateMemberRequest struct {
	PlannedContribution decimal.Decimal `json:"plannedContribution"`
}

type rulesRequest struct {
	AllowMemberExpenseCreation   bool `json:"allowMemberExpenseCreation"`
	AllowMemberContributionEdits bool `json:"allowMemberContributionEdits"`
	AllowMemberExpenseEdits      bool `json:"allowMemberExpenseEdits"`
}

type participantPayload struct {
	UserID  string           `json:"userId"`
	Percent *decimal.Decimal `json:"percent,omitempty"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
}

type participantsPayload struct {
	Everyone bool                 `json:"everyone,omitempty"`
	Members  []participantPayload `json:"members,omitempty"`
}

type createExpenseRequest struct {
	Title        string              `json:"title"`
	Amount       decimal.Decimal     `json:"amount"`
	Currency     string              `json:"currency,omitempty"`
	Category     string              `json:"category,omitempty"`
	PaidBy       string              `json:"paidBy,omitempty"`
	Date         int64               `json:"date,omitempty"`
	Notes        string              `json:"notes,omitempty"`
	SplitMethod  string              `json:"splitMethod"`
	Participants participantsPayload `json:"participants"`
}

type updateExpenseRequest struct {
	Title        *string              `json:"title,omitempty"`
	Amount       *decimal.Decimal     `json:"amount,omitempty"`
	Currency     *string              `json:"currency,omitempty"`
	Category     *string              `json:"category,omitempty"`
	PaidBy       *string              `json:"paidBy,omitempty"`
	Date         *int64               `json:"date,omitempty"`
	Notes        *string              `json:"notes,omitempty"`
	SplitMethod  *string              `json:"splitMethod,omitempty"`
	Participants *participantsPayload `json:"participants,omitempty"`
}

func (p participantsPayload) toModel() models.Participants {
	out := models.Participants{Everyone: p.Everyone}
	for _, m := range p.Members {
		out.Explicit = append(out.Explicit, models.Participant{
			UserID:  m.UserID,
			Percent: m.Percent,
			Amount:  m.Amount,
		})
	}
	return out
}

func (h *handlers) createBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createBudgetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.svc.CreateBudget(r.Context(), r.PathValue("tripID"), actor, models.CreateBudgetInput{
		BaseCurrency:      req.BaseCurrency,
		TotalBudgetAmount: req.TotalBudgetAmount,
	})
	respond(w, snap, err, http.StatusCreated)
}

func (h *handlers) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.GetSnapshot(r.Context(), r.PathValue("tripID"))
	respond(w, snap, err, http.StatusOK)
}

func (h *handlers) updateBaseBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateBudgetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.svc.UpdateBaseBudget(r.Context(), r.PathValue("tripID"), actor, models.UpdateBudgetInput{
		BaseBudgetAmount: req.BaseBudgetAmount,
	})
	respond(w, snap, err, http.StatusOK)
}

func (h *handlers) updateRules(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req rulesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.svc.UpdateRules(r.Context(), r.PathValue("tripID"), actor, models.BudgetRules{
		AllowMemberExpenseCreation:   req.AllowMemberExpenseCreation,
		AllowMemberContributionEdits: req.AllowMemberContributionEdits,
		AllowMemberExpenseEdits:      req.AllowMemberExpenseEdits,
	})
	respond(w, snap, err, http.StatusOK)
}

func (h *handlers) updateMemberContribution(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateMemberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.svc.UpdateMemberContribution(r.Context(), r.PathValue("tripID"), actor,
		r.PathValue("userID"), models.UpdateMemberInput{PlannedContribution: req.PlannedContribution})
	respond(w, snap, err, http.StatusOK)
}

func (h *handlers) createExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := h.svc.CreateExpense(r.Context(), r.PathValue("tripID"), actor, models.CreateExpenseInput{
		Title:        req.Title,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Category:     req.Category,
		PaidBy:       req.PaidBy,
		Date:         req.Date,
		Notes:        req.Notes,
		SplitMethod:  models.SplitMethod(req.SplitMethod),
		Participants: req.Participants.toModel(),
	})
	respond(w, snap, err, http.StatusCreated)
}

func (h *handlers) updateExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	input := models.UpdateExpenseInput{
		Title:    req.Title,
		Amount:   req.Amount,
		Currency: req.Currency,
		Category: req.Category,
		PaidBy:   req.PaidBy,
		Date:     req.Date,
		Notes:    req.Notes,
	}
	if req.SplitMethod != nil {
		m := models.SplitMethod(*req.SplitMethod)
		input.SplitMethod = &m
	}
	if req.Participants != nil {
		p := req.Participants.toModel()
		input.Participants = &p
	}
	snap, err := h.svc.UpdateExpense(r.Context(), r.PathValue("expenseID"), actor, input)
	respond(w, snap, err, http.StatusOK)
}

func (h *handlers) deleteExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	snap, err := h.svc.DeleteExpense(r.Context(), r.PathValue("expenseID"), actor)
	respond(w, snap, err, http.StatusOK)
}

func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := r.Header.Get(userHeader)
	if actor == "" {
		writeError(w, http.StatusUnauthorized, "missing "+userHeader+" header")
		return "", false
	}
	return actor, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

func respond(w http.ResponseWriter, snap *models.BudgetSnapshot, err error, okStatus int) {
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(okStatus)
	if err := json.NewEncoder(w).Encode(snapshotResponse(snap)); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": msg})
}

func statusForError(err error) int {
	var e *errs.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case errs.Validation:
		return http.StatusUnprocessableEntity
	case errs.Authorization:
		return http.StatusForbidden
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// loggingMiddleware logs all incoming requests.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+userHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

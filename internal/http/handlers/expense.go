package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hongminglow/budget-api/internal/cache"
	"github.com/hongminglow/budget-api/internal/http/respond"
	"github.com/hongminglow/budget-api/internal/middleware"
	"github.com/hongminglow/budget-api/internal/models"
	"github.com/hongminglow/budget-api/internal/models/dto"
	"github.com/hongminglow/budget-api/internal/storage"
)

// ExpenseHandler implements CRUD over the expenses of a single budget.
// Every operation is scoped through the budget's owner.
type ExpenseHandler struct {
	expenses storage.ExpenseStore
	cache    cache.Store
}

// NewExpenseHandler constructs the handler.
func NewExpenseHandler(expenses storage.ExpenseStore, cache cache.Store) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses, cache: cache}
}

// Register attaches expense routes to the protected mux.
func (h *ExpenseHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/budget/{id}/expenses", h.handleList)
	mux.HandleFunc("POST /api/budget/{id}/expenses", h.handleCreate)
	mux.HandleFunc("GET /api/budget/{id}/expenses/{expense_id}", h.handleGet)
	mux.HandleFunc("PUT /api/budget/{id}/expenses/{expense_id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/budget/{id}/expenses/{expense_id}", h.handleDelete)
}

type expenseScope struct {
	userID    uuid.UUID
	budgetID  uuid.UUID
	expenseID uuid.UUID
}

func (h *ExpenseHandler) scope(w http.ResponseWriter, r *http.Request, withExpense bool) (expenseScope, bool) {
	var s expenseScope
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return s, false
	}
	budgetID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid budget id")
		return s, false
	}
	s = expenseScope{userID: userID, budgetID: budgetID}
	if withExpense {
		expenseID, err := uuid.Parse(r.PathValue("expense_id"))
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid expense id")
			return s, false
		}
		s.expenseID = expenseID
	}
	return s, true
}

func (h *ExpenseHandler) handleList(w http.ResponseWriter, r *http.Request) {
	s, ok := h.scope(w, r, false)
	if !ok {
		return
	}

	expenses, err := h.expenses.ListExpenses(r.Context(), s.userID, s.budgetID)
	if err != nil {
		log.Printf("list expenses for budget %s: %v", s.budgetID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch expenses")
		return
	}
	respond.JSON(w, http.StatusOK, expenses)
}

func (h *ExpenseHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.scope(w, r, false)
	if !ok {
		return
	}

	var req dto.NewExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Amount <= 0 {
		respond.Error(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	now := time.Now().UTC()
	expense := models.Expense{
		ID:          uuid.New(),
		BudgetID:    s.budgetID,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		Date:        now.Format("2006-01-02"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := h.expenses.CreateExpense(r.Context(), s.userID, expense); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "budget not found")
			return
		}
		log.Printf("create expense under budget %s: %v", s.budgetID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to create expense")
		return
	}

	created, err := h.expenses.FindExpense(r.Context(), s.userID, s.budgetID, expense.ID)
	if err != nil {
		log.Printf("read back created expense %s: %v", expense.ID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to create expense")
		return
	}
	respond.JSON(w, http.StatusOK, created)
}

func (h *ExpenseHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.scope(w, r, true)
	if !ok {
		return
	}

	key := cache.ExpenseKey(s.userID, s.budgetID, s.expenseID)
	if cached, ok := cacheGet(r.Context(), h.cache, key); ok {
		respond.Raw(w, http.StatusOK, cached)
		return
	}

	expense, err := h.expenses.FindExpense(r.Context(), s.userID, s.budgetID, s.expenseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "expense not found")
			return
		}
		log.Printf("fetch expense %s: %v", s.expenseID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch expense")
		return
	}

	cachePut(r.Context(), h.cache, key, expense)
	respond.JSON(w, http.StatusOK, expense)
}

func (h *ExpenseHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.scope(w, r, true)
	if !ok {
		return
	}

	var req dto.UpdateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	key := cache.ExpenseKey(s.userID, s.budgetID, s.expenseID)
	cacheDrop(r.Context(), h.cache, key)

	expense, err := h.expenses.FindExpense(r.Context(), s.userID, s.budgetID, s.expenseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "expense not found")
			return
		}
		log.Printf("fetch expense %s: %v", s.expenseID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to update expense")
		return
	}

	if req.Amount != nil {
		expense.Amount = *req.Amount
	}
	if req.Description != nil {
		expense.Description = strings.TrimSpace(*req.Description)
	}
	expense.UpdatedAt = time.Now().UTC()

	updated, err := h.expenses.UpdateExpense(r.Context(), s.userID, expense)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "expense not found")
			return
		}
		log.Printf("update expense %s: %v", s.expenseID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to update expense")
		return
	}

	cachePut(r.Context(), h.cache, key, updated)
	respond.JSON(w, http.StatusOK, updated)
}

func (h *ExpenseHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.scope(w, r, true)
	if !ok {
		return
	}

	cacheDrop(r.Context(), h.cache, cache.ExpenseKey(s.userID, s.budgetID, s.expenseID))

	if _, err := h.expenses.DeleteExpense(r.Context(), s.userID, s.budgetID, s.expenseID); err != nil {
		log.Printf("delete expense %s: %v", s.expenseID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

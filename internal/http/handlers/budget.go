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

// BudgetHandler implements CRUD over a user's budgets.
type BudgetHandler struct {
	budgets storage.BudgetStore
	cache   cache.Store
}

// NewBudgetHandler constructs the handler.
func NewBudgetHandler(budgets storage.BudgetStore, cache cache.Store) *BudgetHandler {
	return &BudgetHandler{budgets: budgets, cache: cache}
}

// Register attaches budget routes to the protected mux. POST on /budget/{id}
// creates too, for clients that post back to a resource URL.
func (h *BudgetHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/budget", h.handleList)
	mux.HandleFunc("POST /api/budget", h.handleCreate)
	mux.HandleFunc("GET /api/budget/{id}", h.handleGet)
	mux.HandleFunc("POST /api/budget/{id}", h.handleCreate)
	mux.HandleFunc("PUT /api/budget/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/budget/{id}", h.handleDelete)
}

func (h *BudgetHandler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	budgets, err := h.budgets.ListBudgets(r.Context(), userID)
	if err != nil {
		log.Printf("list budgets for %s: %v", userID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch budgets")
		return
	}
	respond.JSON(w, http.StatusOK, budgets)
}

func (h *BudgetHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req dto.NewBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respond.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	now := time.Now().UTC()
	budget := models.Budget{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        strings.TrimSpace(req.Name),
		TotalAmount: req.TotalAmount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := h.budgets.CreateBudget(r.Context(), budget); err != nil {
		log.Printf("create budget for %s: %v", userID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to create budget")
		return
	}

	created, err := h.budgets.FindBudget(r.Context(), userID, budget.ID)
	if err != nil {
		log.Printf("read back created budget %s: %v", budget.ID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to create budget")
		return
	}
	respond.JSON(w, http.StatusOK, created)
}

func (h *BudgetHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	budgetID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid budget id")
		return
	}

	key := cache.BudgetKey(userID, budgetID)
	if cached, ok := cacheGet(r.Context(), h.cache, key); ok {
		respond.Raw(w, http.StatusOK, cached)
		return
	}

	budget, err := h.budgets.FindBudget(r.Context(), userID, budgetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "budget not found")
			return
		}
		log.Printf("fetch budget %s: %v", budgetID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch budget")
		return
	}

	cachePut(r.Context(), h.cache, key, budget)
	respond.JSON(w, http.StatusOK, budget)
}

func (h *BudgetHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	budgetID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid budget id")
		return
	}

	var req dto.UpdateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	key := cache.BudgetKey(userID, budgetID)
	cacheDrop(r.Context(), h.cache, key)

	budget, err := h.budgets.FindBudget(r.Context(), userID, budgetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "budget not found")
			return
		}
		log.Printf("fetch budget %s: %v", budgetID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to update budget")
		return
	}

	if req.Name != nil {
		budget.Name = strings.TrimSpace(*req.Name)
	}
	if req.TotalAmount != nil {
		budget.TotalAmount = *req.TotalAmount
	}
	budget.UpdatedAt = time.Now().UTC()

	updated, err := h.budgets.UpdateBudget(r.Context(), userID, budget)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "budget not found")
			return
		}
		log.Printf("update budget %s: %v", budgetID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to update budget")
		return
	}

	cachePut(r.Context(), h.cache, key, updated)
	respond.JSON(w, http.StatusOK, updated)
}

func (h *BudgetHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	budgetID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid budget id")
		return
	}

	cacheDrop(r.Context(), h.cache, cache.BudgetKey(userID, budgetID))

	// Deleting an absent or foreign budget is still a 200; the scoped filter
	// just matches nothing.
	if _, err := h.budgets.DeleteBudget(r.Context(), userID, budgetID); err != nil {
		log.Printf("delete budget %s: %v", budgetID, err)
		respond.Error(w, http.StatusInternalServerError, "failed to delete budget")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

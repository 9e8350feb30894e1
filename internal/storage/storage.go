package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hongminglow/budget-api/internal/models"
)

// ErrNotFound indicates a record does not exist within the caller's scope.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore captures user persistence operations needed by handlers.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	FindUserByUsername(ctx context.Context, username string) (models.User, error)
	UpdateUser(ctx context.Context, user models.User) (models.User, error)
}

// BudgetStore captures budget persistence operations. Every lookup and
// mutation is filtered by the owning user's ID; a row owned by someone
// else is indistinguishable from a missing row.
type BudgetStore interface {
	CreateBudget(ctx context.Context, budget models.Budget) (models.Budget, error)
	FindBudget(ctx context.Context, userID, budgetID uuid.UUID) (models.Budget, error)
	ListBudgets(ctx context.Context, userID uuid.UUID) ([]models.Budget, error)
	UpdateBudget(ctx context.Context, userID uuid.UUID, budget models.Budget) (models.Budget, error)
	DeleteBudget(ctx context.Context, userID, budgetID uuid.UUID) (int64, error)
}

// ExpenseStore captures expense persistence operations, scoped transitively
// through the owning budget's user.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, userID uuid.UUID, expense models.Expense) (models.Expense, error)
	FindExpense(ctx context.Context, userID, budgetID, expenseID uuid.UUID) (models.Expense, error)
	ListExpenses(ctx context.Context, userID, budgetID uuid.UUID) ([]models.Expense, error)
	UpdateExpense(ctx context.Context, userID uuid.UUID, expense models.Expense) (models.Expense, error)
	DeleteExpense(ctx context.Context, userID, budgetID, expenseID uuid.UUID) (int64, error)
}

// Store bundles the per-entity interfaces implemented by the Postgres backend.
type Store interface {
	UserStore
	BudgetStore
	ExpenseStore
}

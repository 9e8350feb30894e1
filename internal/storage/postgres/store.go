package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hongminglow/budget-api/internal/models"
	"github.com/hongminglow/budget-api/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensure Store satisfies the storage interfaces at compile time.
var _ storage.Store = (*Store)(nil)

// Store provides Postgres-backed persistence for users, budgets, and expenses.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects a pool and runs migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS budgets (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			total_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS budgets_user_id_idx ON budgets (user_id);`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id UUID PRIMARY KEY,
			budget_id UUID NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
			amount NUMERIC(14,2) NOT NULL DEFAULT 0,
			description TEXT NOT NULL DEFAULT '',
			expense_date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS expenses_budget_id_idx ON expenses (budget_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, email, password_hash, created_at;`
	row := s.pool.QueryRow(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return created, nil
}

// FindUserByID fetches a user by primary key.
func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	const query = `
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE id = $1;`
	return scanUser(s.pool.QueryRow(ctx, query, id))
}

// FindUserByUsername fetches a user by username. Used by login, so unscoped.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	const query = `
		SELECT id, username, email, password_hash, created_at
		FROM users WHERE username = $1;`
	return scanUser(s.pool.QueryRow(ctx, query, username))
}

// UpdateUser persists profile fields for an existing user.
func (s *Store) UpdateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		UPDATE users SET username = $2, email = $3, password_hash = $4
		WHERE id = $1
		RETURNING id, username, email, password_hash, created_at;`
	row := s.pool.QueryRow(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash)
	updated, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return updated, nil
}

// CreateBudget inserts a new budget row for its owner.
func (s *Store) CreateBudget(ctx context.Context, budget models.Budget) (models.Budget, error) {
	const query = `
		INSERT INTO budgets (id, user_id, name, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, name, total_amount, created_at, updated_at;`
	row := s.pool.QueryRow(ctx, query,
		budget.ID, budget.UserID, budget.Name, budget.TotalAmount, budget.CreatedAt, budget.UpdatedAt)
	return scanBudget(row)
}

// FindBudget fetches a budget by ID, scoped to its owner.
func (s *Store) FindBudget(ctx context.Context, userID, budgetID uuid.UUID) (models.Budget, error) {
	const query = `
		SELECT id, user_id, name, total_amount, created_at, updated_at
		FROM budgets WHERE id = $1 AND user_id = $2;`
	return scanBudget(s.pool.QueryRow(ctx, query, budgetID, userID))
}

// ListBudgets returns all budgets owned by the user.
func (s *Store) ListBudgets(ctx context.Context, userID uuid.UUID) ([]models.Budget, error) {
	const query = `
		SELECT id, user_id, name, total_amount, created_at, updated_at
		FROM budgets WHERE user_id = $1;`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	budgets := []models.Budget{}
	for rows.Next() {
		var b models.Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.TotalAmount, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// UpdateBudget persists budget fields, scoped to the owner.
func (s *Store) UpdateBudget(ctx context.Context, userID uuid.UUID, budget models.Budget) (models.Budget, error) {
	const query = `
		UPDATE budgets SET name = $3, total_amount = $4, updated_at = $5
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, total_amount, created_at, updated_at;`
	row := s.pool.QueryRow(ctx, query,
		budget.ID, userID, budget.Name, budget.TotalAmount, budget.UpdatedAt)
	return scanBudget(row)
}

// DeleteBudget removes a budget scoped to the owner and reports rows affected.
func (s *Store) DeleteBudget(ctx context.Context, userID, budgetID uuid.UUID) (int64, error) {
	const query = `DELETE FROM budgets WHERE id = $1 AND user_id = $2;`
	tag, err := s.pool.Exec(ctx, query, budgetID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CreateExpense inserts an expense after verifying the budget belongs to the caller.
func (s *Store) CreateExpense(ctx context.Context, userID uuid.UUID, expense models.Expense) (models.Expense, error) {
	if _, err := s.FindBudget(ctx, userID, expense.BudgetID); err != nil {
		return models.Expense{}, err
	}
	const query = `
		INSERT INTO expenses (id, budget_id, amount, description, expense_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, budget_id, amount, description, expense_date::text, created_at, updated_at;`
	row := s.pool.QueryRow(ctx, query,
		expense.ID, expense.BudgetID, expense.Amount, expense.Description,
		expense.Date, expense.CreatedAt, expense.UpdatedAt)
	return scanExpense(row)
}

// FindExpense fetches an expense scoped through its budget's owner.
func (s *Store) FindExpense(ctx context.Context, userID, budgetID, expenseID uuid.UUID) (models.Expense, error) {
	const query = `
		SELECT e.id, e.budget_id, e.amount, e.description, e.expense_date::text, e.created_at, e.updated_at
		FROM expenses e
		JOIN budgets b ON b.id = e.budget_id
		WHERE e.id = $1 AND e.budget_id = $2 AND b.user_id = $3;`
	return scanExpense(s.pool.QueryRow(ctx, query, expenseID, budgetID, userID))
}

// ListExpenses returns all expenses under a budget owned by the user.
func (s *Store) ListExpenses(ctx context.Context, userID, budgetID uuid.UUID) ([]models.Expense, error) {
	const query = `
		SELECT e.id, e.budget_id, e.amount, e.description, e.expense_date::text, e.created_at, e.updated_at
		FROM expenses e
		JOIN budgets b ON b.id = e.budget_id
		WHERE e.budget_id = $1 AND b.user_id = $2;`
	rows, err := s.pool.Query(ctx, query, budgetID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.BudgetID, &e.Amount, &e.Description, &e.Date, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// UpdateExpense persists expense fields, scoped through the budget's owner.
func (s *Store) UpdateExpense(ctx context.Context, userID uuid.UUID, expense models.Expense) (models.Expense, error) {
	const query = `
		UPDATE expenses e SET amount = $3, description = $4, updated_at = $5
		FROM budgets b
		WHERE e.id = $1 AND e.budget_id = b.id AND b.user_id = $2
		RETURNING e.id, e.budget_id, e.amount, e.description, e.expense_date::text, e.created_at, e.updated_at;`
	row := s.pool.QueryRow(ctx, query,
		expense.ID, userID, expense.Amount, expense.Description, expense.UpdatedAt)
	return scanExpense(row)
}

// DeleteExpense removes an expense scoped through the budget's owner and
// reports rows affected.
func (s *Store) DeleteExpense(ctx context.Context, userID, budgetID, expenseID uuid.UUID) (int64, error) {
	const query = `
		DELETE FROM expenses e
		USING budgets b
		WHERE e.id = $1 AND e.budget_id = $2 AND e.budget_id = b.id AND b.user_id = $3;`
	tag, err := s.pool.Exec(ctx, query, expenseID, budgetID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func scanBudget(row pgx.Row) (models.Budget, error) {
	var b models.Budget
	if err := row.Scan(&b.ID, &b.UserID, &b.Name, &b.TotalAmount, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Budget{}, storage.ErrNotFound
		}
		return models.Budget{}, err
	}
	return b, nil
}

func scanExpense(row pgx.Row) (models.Expense, error) {
	var e models.Expense
	if err := row.Scan(&e.ID, &e.BudgetID, &e.Amount, &e.Description, &e.Date, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Expense{}, storage.ErrNotFound
		}
		return models.Expense{}, err
	}
	return e, nil
}

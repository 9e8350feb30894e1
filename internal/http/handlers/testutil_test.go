package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hongminglow/budget-api/internal/auth"
	"github.com/hongminglow/budget-api/internal/cache"
	"github.com/hongminglow/budget-api/internal/middleware"
	"github.com/hongminglow/budget-api/internal/models"
	"github.com/hongminglow/budget-api/internal/storage"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory storage.Store with the same scoping rules as the
// Postgres implementation. Queries counts every read so tests can assert
// whether a request hit the store at all.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	budgets  map[uuid.UUID]models.Budget
	expenses map[uuid.UUID]models.Expense
	queries  int
}

var _ storage.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		users:    map[uuid.UUID]models.User{},
		budgets:  map[uuid.UUID]models.Budget{},
		expenses: map[uuid.UUID]models.Expense{},
	}
}

func (s *memStore) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

func (s *memStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	user.CreatedAt = time.Now().UTC()
	s.users[user.ID] = user
	return user, nil
}

func (s *memStore) FindUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (s *memStore) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *memStore) UpdateUser(ctx context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return models.User{}, storage.ErrNotFound
	}
	for id, existing := range s.users {
		if id != user.ID && existing.Username == user.Username {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *memStore) CreateBudget(ctx context.Context, budget models.Budget) (models.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[budget.ID] = budget
	return budget, nil
}

func (s *memStore) FindBudget(ctx context.Context, userID, budgetID uuid.UUID) (models.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	budget, ok := s.budgets[budgetID]
	if !ok || budget.UserID != userID {
		return models.Budget{}, storage.ErrNotFound
	}
	return budget, nil
}

func (s *memStore) ListBudgets(ctx context.Context, userID uuid.UUID) ([]models.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	budgets := []models.Budget{}
	for _, budget := range s.budgets {
		if budget.UserID == userID {
			budgets = append(budgets, budget)
		}
	}
	return budgets, nil
}

func (s *memStore) UpdateBudget(ctx context.Context, userID uuid.UUID, budget models.Budget) (models.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.budgets[budget.ID]
	if !ok || existing.UserID != userID {
		return models.Budget{}, storage.ErrNotFound
	}
	s.budgets[budget.ID] = budget
	return budget, nil
}

func (s *memStore) DeleteBudget(ctx context.Context, userID, budgetID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	budget, ok := s.budgets[budgetID]
	if !ok || budget.UserID != userID {
		return 0, nil
	}
	delete(s.budgets, budgetID)
	for id, expense := range s.expenses {
		if expense.BudgetID == budgetID {
			delete(s.expenses, id)
		}
	}
	return 1, nil
}

func (s *memStore) ownsBudget(userID, budgetID uuid.UUID) bool {
	budget, ok := s.budgets[budgetID]
	return ok && budget.UserID == userID
}

func (s *memStore) CreateExpense(ctx context.Context, userID uuid.UUID, expense models.Expense) (models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ownsBudget(userID, expense.BudgetID) {
		return models.Expense{}, storage.ErrNotFound
	}
	s.expenses[expense.ID] = expense
	return expense, nil
}

func (s *memStore) FindExpense(ctx context.Context, userID, budgetID, expenseID uuid.UUID) (models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	expense, ok := s.expenses[expenseID]
	if !ok || expense.BudgetID != budgetID || !s.ownsBudget(userID, budgetID) {
		return models.Expense{}, storage.ErrNotFound
	}
	return expense, nil
}

func (s *memStore) ListExpenses(ctx context.Context, userID, budgetID uuid.UUID) ([]models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if !s.ownsBudget(userID, budgetID) {
		return []models.Expense{}, nil
	}
	expenses := []models.Expense{}
	for _, expense := range s.expenses {
		if expense.BudgetID == budgetID {
			expenses = append(expenses, expense)
		}
	}
	return expenses, nil
}

func (s *memStore) UpdateExpense(ctx context.Context, userID uuid.UUID, expense models.Expense) (models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.expenses[expense.ID]
	if !ok || !s.ownsBudget(userID, existing.BudgetID) {
		return models.Expense{}, storage.ErrNotFound
	}
	s.expenses[expense.ID] = expense
	return expense, nil
}

func (s *memStore) DeleteExpense(ctx context.Context, userID, budgetID, expenseID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expense, ok := s.expenses[expenseID]
	if !ok || expense.BudgetID != budgetID || !s.ownsBudget(userID, budgetID) {
		return 0, nil
	}
	delete(s.expenses, expenseID)
	return 1, nil
}

// memCache is an in-memory cache.Store. With broken set, every operation
// errors, which handlers must absorb as a miss.
type memCache struct {
	mu     sync.Mutex
	data   map[string]string
	broken bool
}

var _ cache.Store = (*memCache)(nil)

func newMemCache() *memCache {
	return &memCache{data: map[string]string{}}
}

func (c *memCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return "", errors.New("cache backend down")
	}
	value, ok := c.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return value, nil
}

func (c *memCache) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("cache backend down")
	}
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("cache backend down")
	}
	delete(c.data, key)
	return nil
}

func (c *memCache) peek(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	return value, ok
}

func (c *memCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *memCache) setBroken(broken bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broken = broken
}

// testEnv runs the full route table, auth middleware included, over the
// in-memory fakes.
type testEnv struct {
	ts     *httptest.Server
	store  *memStore
	cache  *memCache
	tokens *auth.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	cacheStore := newMemCache()
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	mux := http.NewServeMux()
	NewAuthHandler(store, tokens).Register(mux)

	protected := http.NewServeMux()
	NewProfileHandler(store, cacheStore).Register(protected)
	NewBudgetHandler(store, cacheStore).Register(protected)
	NewExpenseHandler(store, cacheStore).Register(protected)
	mux.Handle("/api/", middleware.Auth(tokens, protected))

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: store, cache: cacheStore, tokens: tokens}
}

// do issues a request and returns the response. An empty token skips the
// Authorization header.
func (env *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, env.ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// registerAndLogin creates a user through the API and returns the user plus a
// valid bearer token.
func (env *testEnv) registerAndLogin(t *testing.T, username, password string) (models.User, string) {
	t.Helper()

	resp := env.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": username,
		"password": password,
		"email":    username + "@example.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decodeBody[models.User](t, resp)

	resp = env.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decodeBody[map[string]string](t, resp)
	require.NotEmpty(t, login["token"])

	return user, login["token"]
}

// createBudget posts a budget and returns the persisted row.
func (env *testEnv) createBudget(t *testing.T, token, name string, total float64) models.Budget {
	t.Helper()
	resp := env.do(t, http.MethodPost, "/api/budget", token, map[string]any{
		"name":         name,
		"total_amount": total,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[models.Budget](t, resp)
}

// createExpense posts an expense under a budget and returns the persisted row.
func (env *testEnv) createExpense(t *testing.T, token string, budgetID uuid.UUID, amount float64, description string) models.Expense {
	t.Helper()
	resp := env.do(t, http.MethodPost, "/api/budget/"+budgetID.String()+"/expenses", token, map[string]any{
		"amount":      amount,
		"description": description,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[models.Expense](t, resp)
}

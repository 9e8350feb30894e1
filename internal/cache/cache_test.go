package cache

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeyScheme(t *testing.T) {
	userID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	budgetID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	expenseID := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	assert.Equal(t, fmt.Sprintf("user_profile_%s", userID), ProfileKey(userID))
	assert.Equal(t, fmt.Sprintf("budget_%s_%s", userID, budgetID), BudgetKey(userID, budgetID))
	assert.Equal(t, fmt.Sprintf("expense_%s_%s_%s", userID, budgetID, expenseID), ExpenseKey(userID, budgetID, expenseID))
}

func TestKeysScopeByOwner(t *testing.T) {
	budgetID := uuid.New()
	a, b := uuid.New(), uuid.New()
	assert.NotEqual(t, BudgetKey(a, budgetID), BudgetKey(b, budgetID))
}

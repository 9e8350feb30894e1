package dto

type NewBudgetRequest struct {
	Name        string  `json:"name"`
	TotalAmount float64 `json:"total_amount"`
}

type UpdateBudgetRequest struct {
	Name        *string  `json:"name"`
	TotalAmount *float64 `json:"total_amount"`
}

type NewExpenseRequest struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

type UpdateExpenseRequest struct {
	Amount      *float64 `json:"amount"`
	Description *string  `json:"description"`
}

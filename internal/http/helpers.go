package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"tally/internal/core"
	"tally/internal/services"
)

// expensePayload is the request body of create and update. Money accepts an
// integer number of cents or a decimal string; category is the category id.
type expensePayload struct {
	Money    core.Money `json:"money"`
	Category int64      `json:"category"`
	Date     string     `json:"createdAt"`
	Note     string     `json:"note"`
}

// decodeExpense reads and normalizes the expense body. An absent date means
// today; any date is truncated to day granularity so the write path and the
// reporting windows agree.
func decodeExpense(r *http.Request) (services.ExpenseInput, error) {
	var p expensePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			return services.ExpenseInput{}, err
		}
		return services.ExpenseInput{}, fmt.Errorf("malformed request body: %w", core.ErrInvalidArgument)
	}

	date := core.Today()
	if p.Date != "" {
		var err error
		if date, err = core.ParseDate(p.Date); err != nil {
			return services.ExpenseInput{}, err
		}
	}

	return services.ExpenseInput{
		CategoryID: p.Category,
		Money:      p.Money,
		Date:       date,
		Note:       p.Note,
	}, nil
}

// expenseID reads the expensesId query parameter.
func expenseID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("expensesId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid expensesId %q: %w", raw, core.ErrInvalidArgument)
	}
	return id, nil
}

package core

// SumExpenses reduces a list of expenses to the exact sum of their amounts.
// The empty list sums to zero.
func SumExpenses(list []Expense) Money {
	var total int64
	for _, e := range list {
		total += e.Money.Cents
	}
	return Money{Cents: total}
}

// GroupByCategory folds a list of expenses into one merged record per
// distinct category identity, in first-seen key order. The merged record's
// money is the sum over the group; every other field is taken from the last
// record seen for that key. Expenses whose category did not resolve share a
// single uncategorized group.
//
// The last-wins merge of non-money fields mirrors the behavior callers
// already depend on; do not "fix" it to first-wins without a product call.
func GroupByCategory(list []Expense) []Expense {
	index := make(map[int64]int)
	out := make([]Expense, 0, len(list))

	for _, e := range list {
		var key int64 // zero is the uncategorized bucket; row ids start at 1
		if e.Category != nil {
			key = e.Category.ID
		}
		if i, ok := index[key]; ok {
			merged := e
			merged.Money = Money{Cents: out[i].Money.Cents + e.Money.Cents}
			out[i] = merged
			continue
		}
		index[key] = len(out)
		out = append(out, e)
	}
	return out
}

// DailyReport is the payload of the daily reporting endpoint.
type DailyReport struct {
	Expenses []Expense `json:"dailyExpensesList"`
	Total    Money     `json:"totalMoney"`
}

// MonthlyReport is the payload of the monthly reporting endpoint. Expenses
// holds one merged record per category, see GroupByCategory.
type MonthlyReport struct {
	Expenses []Expense `json:"monthlyExpensesList"`
	Total    Money     `json:"totalMoney"`
}

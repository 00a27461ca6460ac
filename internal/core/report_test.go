package core

import (
	"testing"
	"time"
)

func exp(cents int64, cat *Category, day int, note string) Expense {
	return Expense{
		Category: cat,
		Money:    Money{Cents: cents},
		Date:     NewDate(2026, time.August, day),
		Note:     note,
	}
}

func TestSumExpenses(t *testing.T) {
	if got := SumExpenses(nil); got.Cents != 0 {
		t.Fatalf("empty sum = %d, want 0", got.Cents)
	}

	list := []Expense{exp(100, nil, 1, ""), exp(-30, nil, 2, ""), exp(55, nil, 3, "")}
	if got := SumExpenses(list); got.Cents != 125 {
		t.Fatalf("sum = %d, want 125", got.Cents)
	}

	// Order independence
	reversed := []Expense{list[2], list[1], list[0]}
	if SumExpenses(list) != SumExpenses(reversed) {
		t.Fatalf("sum is order dependent")
	}

	// Additivity over concatenation
	a := []Expense{exp(10, nil, 1, ""), exp(20, nil, 2, "")}
	b := []Expense{exp(30, nil, 3, "")}
	if SumExpenses(append(append([]Expense{}, a...), b...)).Cents != SumExpenses(a).Cents+SumExpenses(b).Cents {
		t.Fatalf("sum is not additive over concatenation")
	}
}

func TestGroupByCategory(t *testing.T) {
	food := &Category{ID: 1, Name: "food"}
	travel := &Category{ID: 2, Name: "travel"}

	list := []Expense{
		exp(100, food, 3, "lunch"),
		exp(30, travel, 15, "bus"),
		exp(50, food, 20, "dinner"),
	}

	got := GroupByCategory(list)
	if len(got) != 2 {
		t.Fatalf("groups = %d, want 2", len(got))
	}
	// First-seen key order
	if got[0].Category.ID != 1 || got[1].Category.ID != 2 {
		t.Fatalf("unexpected group order: %v, %v", got[0].Category, got[1].Category)
	}
	if got[0].Money.Cents != 150 || got[1].Money.Cents != 30 {
		t.Fatalf("group totals = %d, %d, want 150, 30", got[0].Money.Cents, got[1].Money.Cents)
	}
	// Non-money fields come from the last record seen per key
	if got[0].Note != "dinner" || got[0].Date.Day() != 20 {
		t.Fatalf("expected last-wins metadata, got note=%q day=%d", got[0].Note, got[0].Date.Day())
	}
	// Grouped money is conserved
	if SumExpenses(got) != SumExpenses(list) {
		t.Fatalf("grouping does not conserve total")
	}
}

func TestGroupByCategoryUncategorized(t *testing.T) {
	food := &Category{ID: 1, Name: "food"}
	list := []Expense{
		exp(10, nil, 1, "a"),
		exp(20, food, 2, "b"),
		exp(5, nil, 3, "c"),
	}
	got := GroupByCategory(list)
	if len(got) != 2 {
		t.Fatalf("groups = %d, want 2", len(got))
	}
	if got[0].Category != nil {
		t.Fatalf("expected uncategorized bucket first, got %v", got[0].Category)
	}
	if got[0].Money.Cents != 15 || got[0].Note != "c" {
		t.Fatalf("uncategorized bucket = %d cents, note %q", got[0].Money.Cents, got[0].Note)
	}
}

func TestGroupByCategoryEmpty(t *testing.T) {
	if got := GroupByCategory(nil); len(got) != 0 {
		t.Fatalf("expected no groups, got %d", len(got))
	}
}

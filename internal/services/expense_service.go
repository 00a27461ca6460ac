// Package services provides business logic and orchestration services.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tally/internal/amqp"
	"tally/internal/core"
)

// Store is the persistence surface the expense service needs.
type Store interface {
	CreateCategory(ctx context.Context, ownerID int64, name string) (*core.Category, error)
	GetCategory(ctx context.Context, ownerID, id int64) (*core.Category, error)
	ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error)

	CreateExpense(ctx context.Context, e core.Expense) (*core.Expense, error)
	GetExpense(ctx context.Context, ownerID, id int64) (*core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) (*core.Expense, error)
	DeleteExpense(ctx context.Context, ownerID, id int64) (*core.Expense, error)
	ListExpenses(ctx context.Context, ownerID int64) ([]core.Expense, error)
	ListExpensesByDay(ctx context.Context, ownerID int64, day core.Date) ([]core.Expense, error)
	ListExpensesByRange(ctx context.Context, ownerID int64, from, to core.Date) ([]core.Expense, error)
	ListExpensesByRangeAndCategory(ctx context.Context, ownerID int64, from, to core.Date, categoryID *int64) ([]core.Expense, error)
}

// Publisher emits expense mutation events. The AMQP client implements it.
type Publisher interface {
	PublishExpenseEvent(ctx context.Context, event *amqp.ExpenseEvent) error
}

// ExpenseInput is the mutable part of an expense as accepted from callers.
// A category is mandatory and must belong to the caller.
type ExpenseInput struct {
	CategoryID int64
	Money      core.Money
	Date       core.Date
	Note       string
}

// ExpenseService orchestrates expense operations across storage and AMQP.
// Mutations are write-then-publish: a failed publish is logged and swallowed,
// the periodic export sweep picks the row up later.
type ExpenseService struct {
	store     Store
	publisher Publisher
}

// NewExpenseService creates the service. publisher may be nil, in which case
// events are skipped entirely.
func NewExpenseService(store Store, publisher Publisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
	}
}

// resolveCategory maps a caller-supplied category id to the caller's own
// category row. A missing or foreign id is an invalid argument, not a 404:
// the referenced resource of the request is the expense, not the category.
func (s *ExpenseService) resolveCategory(ctx context.Context, owner *core.User, categoryID int64) (*core.Category, error) {
	cat, err := s.store.GetCategory(ctx, owner.ID, categoryID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("category %d not found: %w", categoryID, core.ErrInvalidArgument)
		}
		return nil, err
	}
	return cat, nil
}

// CreateExpense validates, saves and announces a new expense.
func (s *ExpenseService) CreateExpense(ctx context.Context, owner *core.User, in ExpenseInput) (*core.Expense, error) {
	cat, err := s.resolveCategory(ctx, owner, in.CategoryID)
	if err != nil {
		return nil, err
	}

	e := core.Expense{
		OwnerID:  owner.ID,
		Category: cat,
		Money:    in.Money,
		Date:     in.Date,
		Note:     in.Note,
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, core.ErrInvalidArgument)
	}

	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, saved.ID, owner.ID, amqp.ActionCreated)
	return saved, nil
}

// UpdateExpense overwrites an existing expense of the caller.
func (s *ExpenseService) UpdateExpense(ctx context.Context, owner *core.User, id int64, in ExpenseInput) (*core.Expense, error) {
	cat, err := s.resolveCategory(ctx, owner, in.CategoryID)
	if err != nil {
		return nil, err
	}

	e := core.Expense{
		ID:       id,
		OwnerID:  owner.ID,
		Category: cat,
		Money:    in.Money,
		Date:     in.Date,
		Note:     in.Note,
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, core.ErrInvalidArgument)
	}

	saved, err := s.store.UpdateExpense(ctx, e)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, saved.ID, owner.ID, amqp.ActionUpdated)
	return saved, nil
}

// DeleteExpense removes an expense of the caller and echoes the deleted record.
func (s *ExpenseService) DeleteExpense(ctx context.Context, owner *core.User, id int64) (*core.Expense, error) {
	deleted, err := s.store.DeleteExpense(ctx, owner.ID, id)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, id, owner.ID, amqp.ActionDeleted)
	return deleted, nil
}

// GetExpense returns one expense of the caller, or core.ErrNotFound.
func (s *ExpenseService) GetExpense(ctx context.Context, owner *core.User, id int64) (*core.Expense, error) {
	return s.store.GetExpense(ctx, owner.ID, id)
}

// ListExpenses returns every expense of the caller, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, owner *core.User) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, owner.ID)
}

// DailyReport lists the caller's expenses on one day together with their sum.
func (s *ExpenseService) DailyReport(ctx context.Context, owner *core.User, day core.Date) (*core.DailyReport, error) {
	list, err := s.store.ListExpensesByDay(ctx, owner.ID, day)
	if err != nil {
		return nil, err
	}
	return &core.DailyReport{
		Expenses: list,
		Total:    core.SumExpenses(list),
	}, nil
}

// MonthlyReport aggregates the month containing the designator date by
// category. The total is the sum over the raw rows, which equals the sum over
// the groups.
func (s *ExpenseService) MonthlyReport(ctx context.Context, owner *core.User, designator string) (*core.MonthlyReport, error) {
	from, to, err := core.MonthRange(designator)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListExpensesByRange(ctx, owner.ID, from, to)
	if err != nil {
		return nil, err
	}
	return &core.MonthlyReport{
		Expenses: core.GroupByCategory(list),
		Total:    core.SumExpenses(list),
	}, nil
}

// MonthlyCategoryDetail lists the raw rows behind one group of the monthly
// report. categoryID nil selects the uncategorized rows.
func (s *ExpenseService) MonthlyCategoryDetail(ctx context.Context, owner *core.User, designator string, categoryID *int64) (*core.DailyReport, error) {
	from, to, err := core.MonthRange(designator)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListExpensesByRangeAndCategory(ctx, owner.ID, from, to, categoryID)
	if err != nil {
		return nil, err
	}
	return &core.DailyReport{
		Expenses: list,
		Total:    core.SumExpenses(list),
	}, nil
}

// CreateCategory creates a category owned by the caller.
func (s *ExpenseService) CreateCategory(ctx context.Context, owner *core.User, name string) (*core.Category, error) {
	c := core.Category{OwnerID: owner.ID, Name: strings.TrimSpace(name)}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, core.ErrInvalidArgument)
	}
	return s.store.CreateCategory(ctx, owner.ID, c.Name)
}

// ListCategories returns every category of the caller sorted by name.
func (s *ExpenseService) ListCategories(ctx context.Context, owner *core.User) ([]core.Category, error) {
	return s.store.ListCategories(ctx, owner.ID)
}

func (s *ExpenseService) publish(ctx context.Context, id, userID int64, action string) {
	if s.publisher == nil {
		return
	}
	event := amqp.NewExpenseEvent(id, userID, action)
	if err := s.publisher.PublishExpenseEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"id", id, "action", action, "error", err)
		// Don't fail the request - the expense is saved locally and the
		// periodic export sweep will catch up.
	}
}

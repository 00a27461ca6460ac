package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tally/internal/core"
	"tally/internal/services"
)

type fakeResolver struct {
	users map[string]*core.User
}

func (f *fakeResolver) ResolveToken(_ context.Context, token string) (*core.User, error) {
	u, ok := f.users[token]
	if !ok {
		return nil, core.ErrUnauthorized
	}
	return u, nil
}

// fakeService returns canned values and records what it was called with.
type fakeService struct {
	expense  *core.Expense
	expenses []core.Expense
	category *core.Category
	daily    *core.DailyReport
	monthly  *core.MonthlyReport
	err      error

	gotOwner      *core.User
	gotID         int64
	gotInput      services.ExpenseInput
	gotDesignator string
	gotCategoryID *int64
}

func (f *fakeService) CreateExpense(_ context.Context, owner *core.User, in services.ExpenseInput) (*core.Expense, error) {
	f.gotOwner, f.gotInput = owner, in
	return f.expense, f.err
}

func (f *fakeService) UpdateExpense(_ context.Context, owner *core.User, id int64, in services.ExpenseInput) (*core.Expense, error) {
	f.gotOwner, f.gotID, f.gotInput = owner, id, in
	return f.expense, f.err
}

func (f *fakeService) DeleteExpense(_ context.Context, owner *core.User, id int64) (*core.Expense, error) {
	f.gotOwner, f.gotID = owner, id
	return f.expense, f.err
}

func (f *fakeService) GetExpense(_ context.Context, owner *core.User, id int64) (*core.Expense, error) {
	f.gotOwner, f.gotID = owner, id
	return f.expense, f.err
}

func (f *fakeService) ListExpenses(_ context.Context, owner *core.User) ([]core.Expense, error) {
	f.gotOwner = owner
	return f.expenses, f.err
}

func (f *fakeService) DailyReport(_ context.Context, owner *core.User, day core.Date) (*core.DailyReport, error) {
	f.gotOwner, f.gotDesignator = owner, day.String()
	return f.daily, f.err
}

func (f *fakeService) MonthlyReport(_ context.Context, owner *core.User, designator string) (*core.MonthlyReport, error) {
	f.gotOwner, f.gotDesignator = owner, designator
	if _, _, err := core.MonthRange(designator); err != nil {
		return nil, err
	}
	return f.monthly, f.err
}

func (f *fakeService) MonthlyCategoryDetail(_ context.Context, owner *core.User, designator string, categoryID *int64) (*core.DailyReport, error) {
	f.gotOwner, f.gotDesignator, f.gotCategoryID = owner, designator, categoryID
	return f.daily, f.err
}

func (f *fakeService) CreateCategory(_ context.Context, owner *core.User, name string) (*core.Category, error) {
	f.gotOwner = owner
	return f.category, f.err
}

func (f *fakeService) ListCategories(_ context.Context, owner *core.User) ([]core.Category, error) {
	f.gotOwner = owner
	return []core.Category{}, f.err
}

func newTestServer(svc *fakeService) *Server {
	resolver := &fakeResolver{users: map[string]*core.User{
		"good-token": {ID: 1, Username: "alice"},
	}}
	return NewServer(":0", resolver, svc, nil)
}

func doRequest(s *Server, method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v\n%s", err, rec.Body.String())
	}
	return env
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(&fakeService{})

	cases := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"unknown token", "bogus"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodGet, "/api/expenses", "", tc.token)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if env := decodeEnvelope(t, rec); env.Success {
				t.Fatal("envelope success must be false")
			}
		})
	}
}

func TestListExpenses(t *testing.T) {
	svc := &fakeService{expenses: []core.Expense{{ID: 1, Money: core.Money{Cents: 100}}}}
	s := newTestServer(svc)

	rec := doRequest(s, http.MethodGet, "/api/expenses", "", "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success || env.Message != "" || env.Data == nil {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if svc.gotOwner == nil || svc.gotOwner.ID != 1 {
		t.Fatalf("handler did not pass the resolved caller: %+v", svc.gotOwner)
	}
}

func TestGetExpenseMissIsSuccessWithNull(t *testing.T) {
	svc := &fakeService{err: core.ErrNotFound}
	s := newTestServer(svc)

	rec := doRequest(s, http.MethodGet, "/api/expenses/single?expensesId=42", "", "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success || env.Data != nil {
		t.Fatalf("miss must be success with null data, got %+v", env)
	}
	if svc.gotID != 42 {
		t.Fatalf("id = %d, want 42", svc.gotID)
	}
}

func TestGetExpenseBadID(t *testing.T) {
	s := newTestServer(&fakeService{})
	rec := doRequest(s, http.MethodGet, "/api/expenses/single?expensesId=abc", "", "good-token")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateExpense(t *testing.T) {
	svc := &fakeService{expense: &core.Expense{ID: 7, Money: core.Money{Cents: 1234}}}
	s := newTestServer(svc)

	body := `{"money": "12.34", "category": 3, "createdAt": "2026-08-05T18:30:00Z", "note": "dinner"}`
	rec := doRequest(s, http.MethodPost, "/api/expenses/create", body, "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success || env.Message != "expense created" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	if svc.gotInput.Money.Cents != 1234 || svc.gotInput.CategoryID != 3 || svc.gotInput.Note != "dinner" {
		t.Fatalf("unexpected input: %+v", svc.gotInput)
	}
	// Time-of-day is dropped before the input reaches the service
	if svc.gotInput.Date.String() != "2026-08-05" {
		t.Fatalf("date = %s, want 2026-08-05", svc.gotInput.Date)
	}
}

func TestCreateExpenseDefaultsToToday(t *testing.T) {
	svc := &fakeService{expense: &core.Expense{ID: 7}}
	s := newTestServer(svc)

	rec := doRequest(s, http.MethodPost, "/api/expenses/create", `{"money": 100, "category": 1}`, "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.gotInput.Date.String() != core.Today().String() {
		t.Fatalf("date = %s, want today", svc.gotInput.Date)
	}
}

func TestCreateExpenseBadInput(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"bad money", `{"money": "abc", "category": 1}`},
		{"fractional money number", `{"money": 12.34, "category": 1}`},
		{"bad date", `{"money": 100, "category": 1, "createdAt": "31/08/2026"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&fakeService{})
			rec := doRequest(s, http.MethodPost, "/api/expenses/create", tc.body, "good-token")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400\n%s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateExpenseForeignCategory(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("category 9 not found: %w", core.ErrInvalidArgument)}
	s := newTestServer(svc)

	rec := doRequest(s, http.MethodPost, "/api/expenses/create", `{"money": 100, "category": 9}`, "good-token")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateExpenseNotFound(t *testing.T) {
	svc := &fakeService{err: core.ErrNotFound}
	s := newTestServer(svc)

	rec := doRequest(s, http.MethodPut, "/api/expenses/update?expensesId=5", `{"money": 100, "category": 1}`, "good-token")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteExpenseEchoes(t *testing.T) {
	svc := &fakeService{expense: &core.Expense{ID: 5, Note: "bye"}}
	s := newTestServer(svc)

	rec := doRequest(s, http.MethodDelete, "/api/expenses/delete?expensesId=5", "", "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "expense deleted" || env.Data == nil {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestDailyReportDayParam(t *testing.T) {
	svc := &fakeService{daily: &core.DailyReport{Expenses: []core.Expense{}}}
	s := newTestServer(svc)

	rec := doRequest(s, http.MethodGet, "/api/expenses/daily?day=2026-08-05", "", "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.gotDesignator != "2026-08-05" {
		t.Fatalf("day = %s, want 2026-08-05", svc.gotDesignator)
	}

	if rec := doRequest(s, http.MethodGet, "/api/expenses/daily?day=bad", "", "good-token"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad day status = %d, want 400", rec.Code)
	}
}

func TestMonthlyReport(t *testing.T) {
	svc := &fakeService{monthly: &core.MonthlyReport{Expenses: []core.Expense{}}}
	s := newTestServer(svc)

	rec := doRequest(s, http.MethodGet, "/api/expenses/monthly?date=2026-08-15", "", "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if rec := doRequest(s, http.MethodGet, "/api/expenses/monthly?date=whenever", "", "good-token"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status = %d, want 400", rec.Code)
	}
}

func TestMonthlyDetailCategoryCoercion(t *testing.T) {
	svc := &fakeService{daily: &core.DailyReport{Expenses: []core.Expense{}}}
	s := newTestServer(svc)

	rec := doRequest(s, http.MethodGet, "/api/expenses/monthly/detail?date=2026-08-01&categoryId=3", "", "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.gotCategoryID == nil || *svc.gotCategoryID != 3 {
		t.Fatalf("categoryID = %v, want 3", svc.gotCategoryID)
	}

	// An unparseable categoryId selects the uncategorized bucket
	rec = doRequest(s, http.MethodGet, "/api/expenses/monthly/detail?date=2026-08-01&categoryId=null", "", "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.gotCategoryID != nil {
		t.Fatalf("categoryID = %v, want nil", svc.gotCategoryID)
	}
}

func TestCreateCategory(t *testing.T) {
	svc := &fakeService{category: &core.Category{ID: 1, Name: "food"}}
	s := newTestServer(svc)

	rec := doRequest(s, http.MethodPost, "/api/categories/create", `{"name": "food"}`, "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "category created" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	svc := &fakeService{err: errors.New("sqlite exploded: secret path /data/tally.db")}
	s := newTestServer(svc)

	rec := doRequest(s, http.MethodGet, "/api/expenses", "", "good-token")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "internal server error" {
		t.Fatalf("internal error must not leak details, got %q", env.Message)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(&fakeService{})

	if rec := doRequest(s, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("/healthz status = %d, want 200", rec.Code)
	}
	if rec := doRequest(s, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("/readyz status = %d, want 200", rec.Code)
	}
}

func TestReadyzFailsWhenBackendDown(t *testing.T) {
	resolver := &fakeResolver{users: map[string]*core.User{}}
	s := NewServer(":0", resolver, &fakeService{}, pingerFunc(func(context.Context) error {
		return errors.New("db gone")
	}))

	if rec := doRequest(s, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("/readyz status = %d, want 503", rec.Code)
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRateLimitOnMutations(t *testing.T) {
	svc := &fakeService{expense: &core.Expense{ID: 1}}
	s := newTestServer(svc)

	var last int
	for i := 0; i < 61; i++ {
		rec := doRequest(s, http.MethodPost, "/api/expenses/create", `{"money": 1, "category": 1}`, "good-token")
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("61st mutation status = %d, want 429", last)
	}

	// Reads stay unmetered
	if rec := doRequest(s, http.MethodGet, "/api/expenses", "", "good-token"); rec.Code != http.StatusOK {
		t.Fatalf("read after limit status = %d, want 200", rec.Code)
	}
}

// Package storage provides the SQLite persistence layer. Every query that
// touches categories or expenses is scoped by the owning user id; rows
// belonging to other users are indistinguishable from rows that do not exist.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tally/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" && !strings.HasPrefix(dbPath, ":memory:") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection keeps in-memory databases coherent and sidesteps
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable, used by readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- users ---

// ResolveToken maps a bearer token to its user. An unknown token is
// core.ErrUnauthorized; tokens are opaque, so there is nothing to parse.
func (r *SQLiteRepository) ResolveToken(ctx context.Context, token string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, api_token, created_at FROM users WHERE api_token = ?`, token)

	var u core.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.APIToken, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrUnauthorized
		}
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return &u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash, apiToken string) (*core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, api_token) VALUES (?, ?, ?)`,
		username, passwordHash, apiToken)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username %q already taken: %w", username, core.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create user id: %w", err)
	}
	return r.getUser(ctx, id)
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, api_token, created_at FROM users WHERE username = ?`, username)

	var u core.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.APIToken, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return &u, nil
}

func (r *SQLiteRepository) getUser(ctx context.Context, id int64) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, api_token, created_at FROM users WHERE id = ?`, id)

	var u core.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.APIToken, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// --- categories ---

func (r *SQLiteRepository) CreateCategory(ctx context.Context, ownerID int64, name string) (*core.Category, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name) VALUES (?, ?)`, ownerID, name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category %q already exists: %w", name, core.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create category id: %w", err)
	}
	return r.GetCategory(ctx, ownerID, id)
}

// GetCategory returns a category only when it belongs to ownerID.
func (r *SQLiteRepository) GetCategory(ctx context.Context, ownerID, id int64) (*core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM categories WHERE id = ? AND user_id = ?`, id, ownerID)

	var c core.Category
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, ownerID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at FROM categories WHERE user_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// --- expenses ---

// The category join carries the owner scope too so that a dangling or foreign
// category_id resolves to no category instead of leaking another user's row.
const expenseColumns = `
	e.id, e.user_id, e.amount_cents, e.note, e.spent_on,
	c.id, c.name, c.created_at
FROM expenses e
LEFT JOIN categories c ON c.id = e.category_id AND c.user_id = e.user_id`

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e         core.Expense
		spentOn   string
		catID     sql.NullInt64
		catName   sql.NullString
		catCreate sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Money.Cents, &e.Note, &spentOn, &catID, &catName, &catCreate); err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(spentOn)
	if err != nil {
		return core.Expense{}, fmt.Errorf("stored date %q: %w", spentOn, err)
	}
	e.Date = d
	if catID.Valid {
		e.Category = &core.Category{
			ID:        catID.Int64,
			OwnerID:   e.OwnerID,
			Name:      catName.String,
			CreatedAt: catCreate.Time,
		}
	}
	return e, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (*core.Expense, error) {
	var categoryID sql.NullInt64
	if e.Category != nil {
		categoryID = sql.NullInt64{Int64: e.Category.ID, Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, category_id, amount_cents, note, spent_on) VALUES (?, ?, ?, ?, ?)`,
		e.OwnerID, categoryID, e.Money.Cents, e.Note, e.Date.String())
	if err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create expense id: %w", err)
	}
	return r.GetExpense(ctx, e.OwnerID, id)
}

// GetExpense returns an expense only when it belongs to ownerID.
func (r *SQLiteRepository) GetExpense(ctx context.Context, ownerID, id int64) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` WHERE e.id = ? AND e.user_id = ?`, id, ownerID)

	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return &e, nil
}

// UpdateExpense overwrites every mutable field of the expense identified by
// e.ID and e.OwnerID and clears the exported flag so the worker re-exports it.
// A miss (wrong owner or no such row) is core.ErrNotFound.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (*core.Expense, error) {
	var categoryID sql.NullInt64
	if e.Category != nil {
		categoryID = sql.NullInt64{Int64: e.Category.ID, Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET category_id = ?, amount_cents = ?, note = ?, spent_on = ?, exported = 0
		 WHERE id = ? AND user_id = ?`,
		categoryID, e.Money.Cents, e.Note, e.Date.String(), e.ID, e.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update expense rows: %w", err)
	}
	if n == 0 {
		return nil, core.ErrNotFound
	}
	return r.GetExpense(ctx, e.OwnerID, e.ID)
}

// DeleteExpense removes the expense and echoes the deleted record.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, ownerID, id int64) (*core.Expense, error) {
	e, err := r.GetExpense(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, ownerID); err != nil {
		return nil, fmt.Errorf("delete expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, ownerID int64) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` WHERE e.user_id = ? ORDER BY e.spent_on DESC, e.id DESC`, ownerID)
}

func (r *SQLiteRepository) ListExpensesByDay(ctx context.Context, ownerID int64, day core.Date) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` WHERE e.user_id = ? AND e.spent_on = ? ORDER BY e.id DESC`,
		ownerID, day.String())
}

// ListExpensesByRange returns expenses with from <= spent_on <= to. Dates are
// stored as ISO strings, so lexicographic BETWEEN is chronological.
func (r *SQLiteRepository) ListExpensesByRange(ctx context.Context, ownerID int64, from, to core.Date) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` WHERE e.user_id = ? AND e.spent_on BETWEEN ? AND ? ORDER BY e.spent_on, e.id`,
		ownerID, from.String(), to.String())
}

// ListExpensesByRangeAndCategory narrows a range to one category identity.
// A nil categoryID selects the uncategorized rows.
func (r *SQLiteRepository) ListExpensesByRangeAndCategory(ctx context.Context, ownerID int64, from, to core.Date, categoryID *int64) ([]core.Expense, error) {
	if categoryID == nil {
		return r.queryExpenses(ctx,
			`SELECT `+expenseColumns+` WHERE e.user_id = ? AND e.spent_on BETWEEN ? AND ? AND c.id IS NULL ORDER BY e.spent_on, e.id`,
			ownerID, from.String(), to.String())
	}
	return r.queryExpenses(ctx,
		`SELECT `+expenseColumns+` WHERE e.user_id = ? AND e.spent_on BETWEEN ? AND ? AND c.id = ? ORDER BY e.spent_on, e.id`,
		ownerID, from.String(), to.String(), *categoryID)
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	return out, nil
}

// --- export ---

// ExportRow is an expense joined with its owner's username, the shape the
// spreadsheet export wants.
type ExportRow struct {
	Expense  core.Expense
	Username string
}

// GetExpenseForExport loads one expense regardless of owner; the export
// worker acts on events, not on behalf of a caller.
func (r *SQLiteRepository) GetExpenseForExport(ctx context.Context, id int64) (*ExportRow, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` WHERE e.id = ?`, id)

	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get expense for export: %w", err)
	}

	var username string
	if err := r.db.QueryRowContext(ctx,
		`SELECT username FROM users WHERE id = ?`, e.OwnerID).Scan(&username); err != nil {
		return nil, fmt.Errorf("get expense owner: %w", err)
	}
	return &ExportRow{Expense: e, Username: username}, nil
}

// ListUnexported returns up to limit expenses that have not been exported,
// oldest first.
func (r *SQLiteRepository) ListUnexported(ctx context.Context, limit int) ([]ExportRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` WHERE e.exported = 0 ORDER BY e.id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unexported: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unexported: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unexported: %w", err)
	}

	out := make([]ExportRow, 0, len(expenses))
	for _, e := range expenses {
		var username string
		if err := r.db.QueryRowContext(ctx,
			`SELECT username FROM users WHERE id = ?`, e.OwnerID).Scan(&username); err != nil {
			return nil, fmt.Errorf("get unexported owner: %w", err)
		}
		out = append(out, ExportRow{Expense: e, Username: username})
	}
	return out, nil
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET exported = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

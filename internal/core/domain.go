package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Money is an exact monetary amount in minor units (cents).
	// It marshals as a plain integer; see money.go for the decimal-string form.
	Money struct {
		Cents int64
	}

	// User is an authenticated owner of categories and expenses.
	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		PasswordHash string    `json:"-"`
		APIToken     string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// Category is a per-user classification tag referenced by expenses.
	Category struct {
		ID        int64     `json:"id"`
		OwnerID   int64     `json:"-"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Expense is a single spending record. Category is the resolved category
	// row, or nil when the reference is absent or dangling.
	Expense struct {
		ID       int64     `json:"id"`
		OwnerID  int64     `json:"-"`
		Category *Category `json:"category"`
		Money    Money     `json:"money"`
		Date     Date      `json:"createdAt"`
		Note     string    `json:"note,omitempty"`
	}
)

var (
	ErrUnauthorized    = errors.New("unknown user")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrEmptyName     = errors.New("empty category name")
)

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 32 {
		return errors.New("category name too long (max 32 characters)")
	}
	return nil
}

func (e Expense) Validate() error {
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if len(e.Note) > 255 {
		return errors.New("note too long (max 255 characters)")
	}
	return nil
}

package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Monthly  BudgetPeriod = "month"
	Semester BudgetPeriod = "semester"

	// SocialSlug marks budgets that presentation layers render differently.
	SocialSlug = "social"
	// IncomeSlug is never part of spending heuristics.
	IncomeSlug = "income"
)

type (
	TransactionType string
	BudgetPeriod    string

	Category struct {
		ID    int64
		Slug  string
		Name  string
		Color string
	}

	Transaction struct {
		ID                  string
		UserID              string
		Amount              Money
		Type                TransactionType
		Date                time.Time
		Description         string
		CategoryID          *int64
		SuggestedCategoryID *int64
		CategoryConfidence  *float64
		IncomeSource        string // only meaningful for income
		CreatedAt           time.Time
	}

	// LedgerEntry is an expense row joined with its category, as read by
	// the insight heuristics.
	LedgerEntry struct {
		Amount       Money
		Date         time.Time
		CategoryID   *int64
		CategorySlug string
		CategoryName string
	}

	Budget struct {
		ID          string
		UserID      string
		CategoryID  *int64 // nil means an overall budget
		LimitAmount Money
		Period      BudgetPeriod
		StartAt     time.Time
		EndAt       time.Time
		CreatedAt   time.Time
	}

	Goal struct {
		ID            string
		UserID        string
		Name          string
		TargetAmount  Money
		CurrentAmount Money
		Deadline      *time.Time
		CreatedAt     time.Time
	}

	// Prediction is the classifier's suggestion for a transaction description.
	Prediction struct {
		CategorySlug string
		Confidence   float64
	}

	// Requester identifies who is acting on a resource.
	Requester struct {
		UserID string
		Admin  bool
	}
)

var (
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidType      = errors.New("type must be income or expense")
	ErrEmptyUser        = errors.New("empty user id")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (p BudgetPeriod) Valid() bool {
	return p == Monthly || p == Semester
}

// OwnerID implements access.Owned.
func (b Budget) OwnerID() string { return b.UserID }

// OwnerID implements access.Owned.
func (g Goal) OwnerID() string { return g.UserID }

// OwnerID implements access.Owned.
func (t Transaction) OwnerID() string { return t.UserID }

// CanAccess reports whether the requester may act on data owned by ownerID.
func (r Requester) CanAccess(ownerID string) bool {
	return r.Admin || (r.UserID != "" && r.UserID == ownerID)
}

// Normalize enforces the income-source invariant in place.
func (t *Transaction) Normalize() {
	t.Description = strings.TrimSpace(t.Description)
	if t.Type == Expense {
		t.IncomeSource = ""
	}
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if t.CategoryConfidence != nil && (*t.CategoryConfidence < 0 || *t.CategoryConfidence > 1) {
		return errors.New("category confidence must be between 0 and 1")
	}
	return nil
}

// Validate checks the budget fields that do not need the store.
func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return Validationf("budget owner is required")
	}
	if b.LimitAmount.Cents <= 0 {
		return Validationf("limitAmount must be greater than 0")
	}
	if !b.Period.Valid() {
		return Validationf("period must be one of %q or %q", Monthly, Semester)
	}
	if b.StartAt.IsZero() || b.EndAt.IsZero() {
		return Validationf("startAt and endAt are required")
	}
	if !b.EndAt.After(b.StartAt) {
		return Validationf("endAt (%s) must be after startAt (%s)",
			b.EndAt.Format(time.RFC3339), b.StartAt.Format(time.RFC3339))
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.UserID) == "" {
		return Validationf("goal owner is required")
	}
	if strings.TrimSpace(g.Name) == "" {
		return Validationf("goal name is required")
	}
	if g.TargetAmount.Cents <= 0 {
		return Validationf("targetAmount must be greater than 0")
	}
	if g.CurrentAmount.Cents < 0 {
		return Validationf("currentAmount cannot be negative")
	}
	return nil
}

// Package budget validates budget windows and derives spend summaries and
// alert tiers from the ledger.
package budget

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"finsight/internal/access"
	"finsight/internal/core"
	"finsight/internal/log"
)

const (
	NearThreshold = 80.0
	OverThreshold = 100.0
)

type AlertStatus string

const (
	StatusOK   AlertStatus = "ok"
	StatusNear AlertStatus = "near"
	StatusOver AlertStatus = "over"
)

// Store is the part of the ledger store the tracker reads and writes.
type Store interface {
	CreateBudget(ctx context.Context, b core.Budget) error
	UpdateBudget(ctx context.Context, b core.Budget, recheck bool) error
	GetBudget(ctx context.Context, id string) (core.Budget, error)
	ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
	DeleteBudget(ctx context.Context, id string) error
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	SumExpenses(ctx context.Context, userID string, categoryID *int64, from, to time.Time) (core.Money, error)
}

// Summary is a budget enriched with spend figures computed at read time.
type Summary struct {
	core.Budget
	CategorySlug   string
	CategoryName   string
	TotalSpent     core.Money
	Remaining      core.Money
	PercentageUsed float64
	AlertStatus    AlertStatus
	IsSocial       bool
}

// Draft is the input of Create.
type Draft struct {
	UserID      string
	CategoryID  *int64
	LimitAmount core.Money
	Period      core.BudgetPeriod
	StartAt     time.Time
	EndAt       time.Time
}

// Patch is the input of Update. Nil fields are left unchanged; SetCategory
// distinguishes "make it overall" (CategoryID nil) from "keep the category".
type Patch struct {
	SetCategory bool
	CategoryID  *int64
	LimitAmount *core.Money
	Period      *core.BudgetPeriod
	StartAt     *time.Time
	EndAt       *time.Time
}

type Tracker struct {
	store  Store
	now    func() time.Time
	logger *log.Logger
}

func NewTracker(store Store, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.Discard()
	}
	return &Tracker{
		store:  store,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentBudget),
	}
}

// WithClock replaces the time source. Used in tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Create validates the draft and stores it. An overlapping window of the
// same user and category yields a Conflict naming the existing budget.
func (t *Tracker) Create(ctx context.Context, req core.Requester, d Draft) (Summary, error) {
	if err := access.Scope(req, d.UserID); err != nil {
		return Summary{}, err
	}

	b := core.Budget{
		ID:          uuid.NewString(),
		UserID:      d.UserID,
		CategoryID:  d.CategoryID,
		LimitAmount: d.LimitAmount,
		Period:      d.Period,
		StartAt:     d.StartAt.UTC().Truncate(time.Second),
		EndAt:       d.EndAt.UTC().Truncate(time.Second),
		CreatedAt:   t.now().UTC().Truncate(time.Second),
	}
	if err := b.Validate(); err != nil {
		return Summary{}, err
	}
	if err := t.checkCategory(ctx, b.CategoryID); err != nil {
		return Summary{}, err
	}

	if err := t.store.CreateBudget(ctx, b); err != nil {
		return Summary{}, mapStoreError(err)
	}

	t.logger.Info("Budget created",
		log.FieldBudgetID, b.ID,
		log.FieldUserID, b.UserID,
		log.FieldAmountCents, b.LimitAmount.Cents)
	return t.ComputeSummary(ctx, b)
}

// Update applies the patch. The overlap rule is re-checked only when the
// window or the category actually changes.
func (t *Tracker) Update(ctx context.Context, req core.Requester, id string, p Patch) (Summary, error) {
	b, err := access.Authorize(ctx, req, "budget", id, t.store.GetBudget)
	if err != nil {
		return Summary{}, err
	}

	prev := b
	if p.SetCategory {
		b.CategoryID = p.CategoryID
	}
	if p.LimitAmount != nil {
		b.LimitAmount = *p.LimitAmount
	}
	if p.Period != nil {
		b.Period = *p.Period
	}
	if p.StartAt != nil {
		b.StartAt = p.StartAt.UTC().Truncate(time.Second)
	}
	if p.EndAt != nil {
		b.EndAt = p.EndAt.UTC().Truncate(time.Second)
	}

	if err := b.Validate(); err != nil {
		return Summary{}, err
	}

	categoryChanged := !sameCategory(prev.CategoryID, b.CategoryID)
	windowChanged := !prev.StartAt.Equal(b.StartAt) || !prev.EndAt.Equal(b.EndAt)
	if categoryChanged {
		if err := t.checkCategory(ctx, b.CategoryID); err != nil {
			return Summary{}, err
		}
	}

	if err := t.store.UpdateBudget(ctx, b, categoryChanged || windowChanged); err != nil {
		return Summary{}, mapStoreError(err)
	}

	t.logger.Info("Budget updated",
		log.FieldBudgetID, b.ID,
		log.FieldUserID, b.UserID,
		"rechecked_overlap", categoryChanged || windowChanged)
	return t.ComputeSummary(ctx, b)
}

func (t *Tracker) Delete(ctx context.Context, req core.Requester, id string) error {
	if _, err := access.Authorize(ctx, req, "budget", id, t.store.GetBudget); err != nil {
		return err
	}
	if err := t.store.DeleteBudget(ctx, id); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (t *Tracker) Get(ctx context.Context, req core.Requester, id string) (Summary, error) {
	b, err := access.Authorize(ctx, req, "budget", id, t.store.GetBudget)
	if err != nil {
		return Summary{}, err
	}
	return t.ComputeSummary(ctx, b)
}

// List returns the summaries of every budget of userID.
func (t *Tracker) List(ctx context.Context, req core.Requester, userID string) ([]Summary, error) {
	if err := access.Scope(req, userID); err != nil {
		return nil, err
	}
	return t.Summaries(ctx, userID)
}

// ComputeSummary aggregates the ledger spend inside the budget window.
func (t *Tracker) ComputeSummary(ctx context.Context, b core.Budget) (Summary, error) {
	spent, err := t.store.SumExpenses(ctx, b.UserID, b.CategoryID, b.StartAt, b.EndAt)
	if err != nil {
		return Summary{}, fmt.Errorf("sum spend for budget %s: %w", b.ID, err)
	}

	var cat core.Category
	if b.CategoryID != nil {
		c, err := t.store.GetCategory(ctx, *b.CategoryID)
		switch {
		case err == nil:
			cat = c
		case !errors.Is(err, core.ErrNotFound):
			return Summary{}, fmt.Errorf("load category of budget %s: %w", b.ID, err)
		}
	}
	return Summarize(b, spent, cat), nil
}

// ListAlerts returns the summaries whose status is not ok, over before
// near, then by percentage used descending.
func (t *Tracker) ListAlerts(ctx context.Context, userID string) ([]Summary, error) {
	all, err := t.Summaries(ctx, userID)
	if err != nil {
		return nil, err
	}

	alerts := make([]Summary, 0, len(all))
	for _, s := range all {
		if s.AlertStatus != StatusOK {
			alerts = append(alerts, s)
		}
	}
	SortAlerts(alerts)
	return alerts, nil
}

// Summaries computes every budget of userID without an ownership check.
// Callers scope userID first.
func (t *Tracker) Summaries(ctx context.Context, userID string) ([]Summary, error) {
	budgets, err := t.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets of %s: %w", userID, err)
	}

	out := make([]Summary, 0, len(budgets))
	for _, b := range budgets {
		s, err := t.ComputeSummary(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (t *Tracker) checkCategory(ctx context.Context, id *int64) error {
	if id == nil {
		return nil
	}
	if _, err := t.store.GetCategory(ctx, *id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Validationf("category %d does not exist", *id)
		}
		return fmt.Errorf("check category %d: %w", *id, err)
	}
	return nil
}

// Summarize is the pure part of ComputeSummary.
// cat is the zero Category for overall budgets.
func Summarize(b core.Budget, spent core.Money, cat core.Category) Summary {
	var pct float64
	if b.LimitAmount.Cents > 0 {
		pct = round2(float64(spent.Cents) * 100 / float64(b.LimitAmount.Cents))
	}
	return Summary{
		Budget:         b,
		CategorySlug:   cat.Slug,
		CategoryName:   cat.Name,
		TotalSpent:     spent,
		Remaining:      b.LimitAmount.Sub(spent),
		PercentageUsed: pct,
		AlertStatus:    StatusFor(pct),
		IsSocial:       cat.Slug == core.SocialSlug,
	}
}

// StatusFor maps a usage percentage to its alert tier.
func StatusFor(pct float64) AlertStatus {
	switch {
	case pct >= OverThreshold:
		return StatusOver
	case pct >= NearThreshold:
		return StatusNear
	default:
		return StatusOK
	}
}

// SortAlerts orders summaries over before near, then by percentage used
// descending.
func SortAlerts(s []Summary) {
	slices.SortStableFunc(s, func(a, b Summary) int {
		if ra, rb := rank(a.AlertStatus), rank(b.AlertStatus); ra != rb {
			return ra - rb
		}
		switch {
		case a.PercentageUsed > b.PercentageUsed:
			return -1
		case a.PercentageUsed < b.PercentageUsed:
			return 1
		}
		return 0
	})
}

func rank(s AlertStatus) int {
	switch s {
	case StatusOver:
		return 0
	case StatusNear:
		return 1
	default:
		return 2
	}
}

func mapStoreError(err error) error {
	var overlap *core.WindowOverlapError
	if errors.As(err, &overlap) {
		return core.Conflictf("budget window overlaps existing budget %s", overlap.ConflictingID)
	}
	if errors.Is(err, core.ErrNotFound) {
		return core.NotFoundf("budget not found")
	}
	return err
}

func sameCategory(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

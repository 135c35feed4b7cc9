// Package goal tracks savings goals: balance changes through allocate and
// withdraw, and progress derived on every read.
package goal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"finsight/internal/access"
	"finsight/internal/core"
	"finsight/internal/log"
)

type Store interface {
	CreateGoal(ctx context.Context, g core.Goal) error
	GetGoal(ctx context.Context, id string) (core.Goal, error)
	ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
	DeleteGoal(ctx context.Context, id string) error
	AdjustGoalBalance(ctx context.Context, id string, deltaCents int64) (core.Goal, error)
}

// Draft is the input of Create. Goals always start with nothing saved.
type Draft struct {
	UserID       string
	Name         string
	TargetAmount core.Money
	Deadline     *time.Time
}

type Engine struct {
	store  Store
	now    func() time.Time
	logger *log.Logger
}

func NewEngine(store Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{
		store:  store,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentGoal),
	}
}

// WithClock replaces the time source. Used in tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) Create(ctx context.Context, req core.Requester, d Draft) (Summary, error) {
	if err := access.Scope(req, d.UserID); err != nil {
		return Summary{}, err
	}

	now := e.now().UTC().Truncate(time.Second)
	g := core.Goal{
		ID:           uuid.NewString(),
		UserID:       d.UserID,
		Name:         strings.TrimSpace(d.Name),
		TargetAmount: d.TargetAmount,
		CreatedAt:    now,
	}
	if d.Deadline != nil {
		deadline := d.Deadline.UTC().Truncate(time.Second)
		if !deadline.After(now) {
			return Summary{}, core.Validationf("deadline %s must be in the future", deadline.Format(time.RFC3339))
		}
		g.Deadline = &deadline
	}
	if err := g.Validate(); err != nil {
		return Summary{}, err
	}

	if err := e.store.CreateGoal(ctx, g); err != nil {
		return Summary{}, fmt.Errorf("create goal: %w", err)
	}

	e.logger.Info("Goal created",
		log.FieldGoalID, g.ID,
		log.FieldUserID, g.UserID,
		log.FieldAmountCents, g.TargetAmount.Cents)
	return Summarize(g, e.now()), nil
}

func (e *Engine) Get(ctx context.Context, req core.Requester, id string) (Summary, error) {
	g, err := access.Authorize(ctx, req, "goal", id, e.store.GetGoal)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(g, e.now()), nil
}

// List returns the summaries of every goal of userID.
func (e *Engine) List(ctx context.Context, req core.Requester, userID string) ([]Summary, error) {
	if err := access.Scope(req, userID); err != nil {
		return nil, err
	}

	goals, err := e.store.ListGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals of %s: %w", userID, err)
	}

	now := e.now()
	out := make([]Summary, 0, len(goals))
	for _, g := range goals {
		out = append(out, Summarize(g, now))
	}
	return out, nil
}

func (e *Engine) Delete(ctx context.Context, req core.Requester, id string) error {
	if _, err := access.Authorize(ctx, req, "goal", id, e.store.GetGoal); err != nil {
		return err
	}
	if err := e.store.DeleteGoal(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundf("goal %s not found", id)
		}
		return err
	}
	return nil
}

// Allocate adds amount to the goal's saved balance.
func (e *Engine) Allocate(ctx context.Context, req core.Requester, id string, amount core.Money) (Summary, error) {
	return e.adjust(ctx, req, id, amount, log.OpAllocate, amount.Cents)
}

// Withdraw takes amount out of the saved balance. A withdrawal larger than
// the balance is rejected and leaves the balance unchanged.
func (e *Engine) Withdraw(ctx context.Context, req core.Requester, id string, amount core.Money) (Summary, error) {
	return e.adjust(ctx, req, id, amount, log.OpWithdraw, -amount.Cents)
}

func (e *Engine) adjust(ctx context.Context, req core.Requester, id string, amount core.Money, op string, delta int64) (Summary, error) {
	if amount.Cents <= 0 {
		return Summary{}, core.Validationf("amount must be greater than 0")
	}
	if _, err := access.Authorize(ctx, req, "goal", id, e.store.GetGoal); err != nil {
		return Summary{}, err
	}

	g, err := e.store.AdjustGoalBalance(ctx, id, delta)
	if err != nil {
		var insufficient *core.InsufficientBalanceError
		switch {
		case errors.As(err, &insufficient):
			return Summary{}, core.Invariantf("cannot withdraw %s: only %s available",
				insufficient.Requested, insufficient.Available)
		case errors.Is(err, core.ErrNotFound):
			return Summary{}, core.NotFoundf("goal %s not found", id)
		}
		return Summary{}, fmt.Errorf("%s goal %s: %w", op, id, err)
	}

	e.logger.Info("Goal balance changed",
		log.FieldOperation, op,
		log.FieldGoalID, id,
		log.FieldAmountCents, amount.Cents)
	return Summarize(g, e.now()), nil
}

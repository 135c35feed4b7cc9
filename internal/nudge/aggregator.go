// Package nudge merges budget alerts, behavioural insights and goal nudges
// into the single response shown on the dashboard.
package nudge

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"finsight/internal/access"
	"finsight/internal/budget"
	"finsight/internal/core"
	"finsight/internal/goal"
	"finsight/internal/log"
)

type BudgetAlerts interface {
	ListAlerts(ctx context.Context, userID string) ([]budget.Summary, error)
}

type Heuristics interface {
	WeekendPattern(ctx context.Context, userID string) (*core.Insight, error)
	UnderBudget(ctx context.Context, userID string) (*core.Insight, error)
}

type Goals interface {
	List(ctx context.Context, req core.Requester, userID string) ([]goal.Summary, error)
}

// Alerts is the aggregated dashboard payload.
type Alerts struct {
	BudgetAlerts []budget.Summary
	Nudges       []core.Nudge
}

type Aggregator struct {
	budgets    BudgetAlerts
	heuristics Heuristics
	goals      Goals
	logger     *log.Logger
}

func NewAggregator(budgets BudgetAlerts, heuristics Heuristics, goals Goals, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Aggregator{
		budgets:    budgets,
		heuristics: heuristics,
		goals:      goals,
		logger:     logger.WithComponent(log.ComponentNudge),
	}
}

// GetAlerts runs the budget alert listing, the weekend check and the
// under-budget check concurrently. Any failure fails the whole call. Goal
// nudges are appended after the insight nudges without deduplication.
func (a *Aggregator) GetAlerts(ctx context.Context, userID string, goalNudges []core.Nudge) (Alerts, error) {
	var (
		alerts  []budget.Summary
		weekend *core.Insight
		under   *core.Insight
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		alerts, err = a.budgets.ListAlerts(gctx, userID)
		if err != nil {
			return fmt.Errorf("budget alerts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		weekend, err = a.heuristics.WeekendPattern(gctx, userID)
		if err != nil {
			return fmt.Errorf("weekend pattern: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		under, err = a.heuristics.UnderBudget(gctx, userID)
		if err != nil {
			return fmt.Errorf("under budget: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		a.logger.Error("Alert aggregation failed",
			log.FieldOperation, log.OpAlerts,
			log.FieldUserID, userID,
			log.FieldError, err)
		return Alerts{}, err
	}

	out := Alerts{
		BudgetAlerts: alerts,
		Nudges:       make([]core.Nudge, 0, 2+len(goalNudges)),
	}
	if out.BudgetAlerts == nil {
		out.BudgetAlerts = []budget.Summary{}
	}
	if weekend != nil {
		out.Nudges = append(out.Nudges, *weekend)
	}
	if under != nil {
		out.Nudges = append(out.Nudges, *under)
	}
	out.Nudges = append(out.Nudges, goalNudges...)
	return out, nil
}

// Dashboard derives the goal nudges for userID and aggregates them with
// the other alerts.
func (a *Aggregator) Dashboard(ctx context.Context, req core.Requester, userID string) (Alerts, error) {
	if err := access.Scope(req, userID); err != nil {
		return Alerts{}, err
	}

	goals, err := a.goals.List(ctx, req, userID)
	if err != nil {
		return Alerts{}, fmt.Errorf("goal summaries: %w", err)
	}
	return a.GetAlerts(ctx, userID, goal.EarlyFinishNudges(goals))
}

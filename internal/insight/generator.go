// Package insight detects spending patterns in the ledger: weekend skew,
// month-over-month category spikes and budgets comfortably under limit.
package insight

import (
	"context"
	"fmt"
	"sort"
	"time"

	"finsight/internal/budget"
	"finsight/internal/config"
	"finsight/internal/core"
	"finsight/internal/log"
)

// Thresholds are the fixed heuristic parameters. They are injected so
// tests and deployments can tune them.
type Thresholds struct {
	LookbackDays          int
	WeekendRatio          float64
	SpikeRatio            float64
	UnderBudgetUsagePct   float64
	UnderBudgetElapsedPct float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		LookbackDays:          30,
		WeekendRatio:          1.2,
		SpikeRatio:            2,
		UnderBudgetUsagePct:   85,
		UnderBudgetElapsedPct: 25,
	}
}

// ThresholdsFromConfig maps the INSIGHT_* settings.
func ThresholdsFromConfig(c config.Insights) Thresholds {
	return Thresholds{
		LookbackDays:          c.LookbackDays,
		WeekendRatio:          c.WeekendRatio,
		SpikeRatio:            c.SpikeRatio,
		UnderBudgetUsagePct:   c.UnderBudgetUsagePct,
		UnderBudgetElapsedPct: c.UnderBudgetElapsedPct,
	}
}

type Ledger interface {
	ExpensesBetween(ctx context.Context, userID string, from, to time.Time) ([]core.LedgerEntry, error)
}

type Budgets interface {
	Summaries(ctx context.Context, userID string) ([]budget.Summary, error)
}

const (
	IDWeekendPattern = "weekend-pattern"
	IDUnderBudget    = "under-budget"
	idSpikePrefix    = "spike-"
)

type Generator struct {
	ledger  Ledger
	budgets Budgets
	th      Thresholds
	now     func() time.Time
	logger  *log.Logger
}

func NewGenerator(ledger Ledger, budgets Budgets, th Thresholds, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Generator{
		ledger:  ledger,
		budgets: budgets,
		th:      th,
		now:     time.Now,
		logger:  logger.WithComponent(log.ComponentInsight),
	}
}

// WithClock replaces the time source. Used in tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate runs every heuristic for the insights page.
func (g *Generator) Generate(ctx context.Context, userID string) ([]core.Insight, error) {
	var out []core.Insight

	weekend, err := g.WeekendPattern(ctx, userID)
	if err != nil {
		return nil, err
	}
	if weekend != nil {
		out = append(out, *weekend)
	}

	spikes, err := g.CategorySpikes(ctx, userID)
	if err != nil {
		return nil, err
	}
	out = append(out, spikes...)

	under, err := g.UnderBudget(ctx, userID)
	if err != nil {
		return nil, err
	}
	if under != nil {
		out = append(out, *under)
	}

	g.logger.Debug("Insights generated", log.FieldUserID, userID, "count", len(out))
	return out, nil
}

// WeekendPattern compares weekend and weekday spend over the lookback window.
func (g *Generator) WeekendPattern(ctx context.Context, userID string) (*core.Insight, error) {
	now := g.now().UTC()
	from := now.AddDate(0, 0, -g.th.LookbackDays)

	entries, err := g.ledger.ExpensesBetween(ctx, userID, from, now)
	if err != nil {
		return nil, fmt.Errorf("load expenses for weekend pattern: %w", err)
	}
	return DetectWeekendPattern(entries, g.th.WeekendRatio), nil
}

// CategorySpikes compares this calendar month with the previous one.
func (g *Generator) CategorySpikes(ctx context.Context, userID string) ([]core.Insight, error) {
	now := g.now().UTC()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	entries, err := g.ledger.ExpensesBetween(ctx, userID, lastMonth, now)
	if err != nil {
		return nil, fmt.Errorf("load expenses for category spikes: %w", err)
	}
	return DetectSpikes(entries, thisMonth, g.th.SpikeRatio), nil
}

// UnderBudget praises active budgets that are well under their limit.
func (g *Generator) UnderBudget(ctx context.Context, userID string) (*core.Insight, error) {
	summaries, err := g.budgets.Summaries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load budgets for under-budget check: %w", err)
	}
	return DetectUnderBudget(summaries, g.now().UTC(), g.th), nil
}

// DetectWeekendPattern averages spend per distinct spending day in each
// bucket. A zero weekday average never triggers.
func DetectWeekendPattern(entries []core.LedgerEntry, ratio float64) *core.Insight {
	var weekendCents, weekdayCents int64
	weekendDays := map[string]struct{}{}
	weekdayDays := map[string]struct{}{}

	for _, e := range entries {
		d := e.Date.UTC()
		key := d.Format(time.DateOnly)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekendCents += e.Amount.Cents
			weekendDays[key] = struct{}{}
		} else {
			weekdayCents += e.Amount.Cents
			weekdayDays[key] = struct{}{}
		}
	}

	if len(weekdayDays) == 0 || len(weekendDays) == 0 {
		return nil
	}
	weekdayAvg := float64(weekdayCents) / float64(len(weekdayDays))
	weekendAvg := float64(weekendCents) / float64(len(weekendDays))
	if weekdayAvg <= 0 || weekendAvg < weekdayAvg*ratio {
		return nil
	}

	pct := (weekendAvg/weekdayAvg - 1) * 100
	return &core.Insight{
		ID:   IDWeekendPattern,
		Type: core.NudgeWeekendSpending,
		Message: fmt.Sprintf("You spend %.0f%% more per day on weekends (%.2f vs %.2f on weekdays).",
			pct, weekendAvg/100, weekdayAvg/100),
		Severity: core.SeverityWarning,
	}
}

type monthTotals struct {
	name       string
	this, last int64
}

// DetectSpikes emits one insight per category whose spend since thisMonth
// is at least ratio times its spend in the month before. Income and
// uncategorised entries are ignored.
func DetectSpikes(entries []core.LedgerEntry, thisMonth time.Time, ratio float64) []core.Insight {
	lastMonth := thisMonth.AddDate(0, -1, 0)
	totals := map[string]*monthTotals{}

	for _, e := range entries {
		if e.CategorySlug == "" || e.CategorySlug == core.IncomeSlug {
			continue
		}
		t := totals[e.CategorySlug]
		if t == nil {
			t = &monthTotals{name: e.CategoryName}
			totals[e.CategorySlug] = t
		}
		switch d := e.Date.UTC(); {
		case !d.Before(thisMonth):
			t.this += e.Amount.Cents
		case !d.Before(lastMonth):
			t.last += e.Amount.Cents
		}
	}

	slugs := make([]string, 0, len(totals))
	for slug := range totals {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	var out []core.Insight
	for _, slug := range slugs {
		t := totals[slug]
		if t.last <= 0 || float64(t.this) < ratio*float64(t.last) {
			continue
		}
		name := t.name
		if name == "" {
			name = slug
		}
		out = append(out, core.Insight{
			ID:   idSpikePrefix + slug,
			Type: core.NudgeCategorySpike,
			Message: fmt.Sprintf("%s spending is %.1fx last month (%s vs %s).",
				name, float64(t.this)/float64(t.last),
				core.Money{Cents: t.this}, core.Money{Cents: t.last}),
			Severity: core.SeverityWarning,
		})
	}
	return out
}

// DetectUnderBudget considers budgets still running at now with enough of
// their period elapsed. One qualifying budget is named; several are counted.
func DetectUnderBudget(summaries []budget.Summary, now time.Time, th Thresholds) *core.Insight {
	var qualifying []budget.Summary
	for _, s := range summaries {
		if !s.EndAt.After(now) || s.StartAt.After(now) {
			continue
		}
		period := s.EndAt.Sub(s.StartAt)
		if period <= 0 {
			continue
		}
		elapsed := float64(now.Sub(s.StartAt)) * 100 / float64(period)
		if elapsed < th.UnderBudgetElapsedPct || s.PercentageUsed >= th.UnderBudgetUsagePct {
			continue
		}
		qualifying = append(qualifying, s)
	}

	switch len(qualifying) {
	case 0:
		return nil
	case 1:
		s := qualifying[0]
		return &core.Insight{
			ID:   IDUnderBudget,
			Type: core.NudgeUnderBudget,
			Message: fmt.Sprintf("Nice work: only %.0f%% of your %s budget used so far.",
				s.PercentageUsed, budgetLabel(s)),
			Severity: core.SeveritySuccess,
		}
	default:
		return &core.Insight{
			ID:       IDUnderBudget,
			Type:     core.NudgeUnderBudget,
			Message:  fmt.Sprintf("Nice work: %d budgets are comfortably under their limit.", len(qualifying)),
			Severity: core.SeveritySuccess,
		}
	}
}

func budgetLabel(s budget.Summary) string {
	switch {
	case s.CategoryName != "":
		return s.CategoryName
	case s.CategorySlug != "":
		return s.CategorySlug
	default:
		return "overall"
	}
}

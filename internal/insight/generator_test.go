package insight

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/budget"
	"finsight/internal/core"
)

// 2025-06-18 is a Wednesday.
var now = time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

func entry(units int64, at time.Time, slug string) core.LedgerEntry {
	return core.LedgerEntry{Amount: core.Money{Cents: units * 100}, Date: at, CategorySlug: slug, CategoryName: slug}
}

func TestDetectSpikes(t *testing.T) {
	june := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	may := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		entries []core.LedgerEntry
		wantIDs []string
	}{
		{
			name:    "4000 vs 1800 spikes",
			entries: []core.LedgerEntry{entry(4000, june.AddDate(0, 0, 3), "food-dining"), entry(1800, may, "food-dining")},
			wantIDs: []string{"spike-food-dining"},
		},
		{
			name:    "3000 vs 1800 does not",
			entries: []core.LedgerEntry{entry(3000, june.AddDate(0, 0, 3), "food-dining"), entry(1800, may, "food-dining")},
		},
		{
			name:    "exactly double spikes",
			entries: []core.LedgerEntry{entry(200, june, "transport"), entry(100, may, "transport")},
			wantIDs: []string{"spike-transport"},
		},
		{
			name:    "no prior spend never spikes",
			entries: []core.LedgerEntry{entry(9000, june, "health")},
		},
		{
			name:    "income ignored",
			entries: []core.LedgerEntry{entry(9000, june, core.IncomeSlug), entry(10, may, core.IncomeSlug)},
		},
		{
			name:    "uncategorised ignored",
			entries: []core.LedgerEntry{entry(9000, june, ""), entry(10, may, "")},
		},
		{
			name: "several categories sorted",
			entries: []core.LedgerEntry{
				entry(500, june, "transport"), entry(100, may, "transport"),
				entry(500, june, "clothing"), entry(100, may, "clothing"),
				entry(101, june, "social"), entry(100, may, "social"),
			},
			wantIDs: []string{"spike-clothing", "spike-transport"},
		},
		{
			name:    "entries older than last month ignored",
			entries: []core.LedgerEntry{entry(500, june, "transport"), entry(100, may.AddDate(0, -1, 0), "transport")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectSpikes(tt.entries, june, 2)
			var ids []string
			for _, in := range got {
				ids = append(ids, in.ID)
				assert.Equal(t, core.NudgeCategorySpike, in.Type)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestDetectWeekendPattern(t *testing.T) {
	sat := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	sun := sat.AddDate(0, 0, 1)
	mon := sat.AddDate(0, 0, 2)
	tue := sat.AddDate(0, 0, 3)

	t.Run("weekend heavy", func(t *testing.T) {
		got := DetectWeekendPattern([]core.LedgerEntry{
			entry(60, sat, "social"), entry(60, sun, "social"),
			entry(50, mon, "food-dining"), entry(50, tue, "food-dining"),
		}, 1.2)
		require.NotNil(t, got)
		assert.Equal(t, IDWeekendPattern, got.ID)
		assert.Equal(t, core.NudgeWeekendSpending, got.Type)
		assert.Equal(t, core.SeverityWarning, got.Severity)
	})

	t.Run("below ratio", func(t *testing.T) {
		assert.Nil(t, DetectWeekendPattern([]core.LedgerEntry{
			entry(59, sat, "social"), entry(50, mon, "food-dining"),
		}, 1.2))
	})

	t.Run("average per distinct day", func(t *testing.T) {
		// Two weekday purchases on the same Monday count as one day.
		assert.Nil(t, DetectWeekendPattern([]core.LedgerEntry{
			entry(100, sat, "social"), entry(50, mon, "food-dining"), entry(50, mon.Add(time.Hour), "transport"),
		}, 1.2))
	})

	t.Run("no weekday spend", func(t *testing.T) {
		assert.Nil(t, DetectWeekendPattern([]core.LedgerEntry{entry(100, sat, "social")}, 1.2))
	})

	t.Run("empty ledger", func(t *testing.T) {
		assert.Nil(t, DetectWeekendPattern(nil, 1.2))
	})
}

func summary(id, name string, start, end time.Time, pct float64) budget.Summary {
	return budget.Summary{
		Budget:         core.Budget{ID: id, StartAt: start, EndAt: end},
		CategoryName:   name,
		PercentageUsed: pct,
	}
}

func TestDetectUnderBudget(t *testing.T) {
	th := DefaultThresholds()
	monthStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("one qualifying budget is named", func(t *testing.T) {
		got := DetectUnderBudget([]budget.Summary{
			summary("a", "Transport", monthStart, monthEnd, 40),
			summary("b", "Social", monthStart, monthEnd, 90),
		}, now, th)
		require.NotNil(t, got)
		assert.Equal(t, core.SeveritySuccess, got.Severity)
		assert.Contains(t, got.Message, "Transport")
	})

	t.Run("several are counted", func(t *testing.T) {
		got := DetectUnderBudget([]budget.Summary{
			summary("a", "Transport", monthStart, monthEnd, 40),
			summary("b", "Health", monthStart, monthEnd, 10),
		}, now, th)
		require.NotNil(t, got)
		assert.Contains(t, got.Message, "2 budgets")
	})

	t.Run("too early in the period", func(t *testing.T) {
		early := time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)
		assert.Nil(t, DetectUnderBudget([]budget.Summary{
			summary("a", "Transport", early, early.AddDate(0, 1, 0), 0),
		}, now, th))
	})

	t.Run("expired and future budgets ignored", func(t *testing.T) {
		assert.Nil(t, DetectUnderBudget([]budget.Summary{
			summary("old", "Transport", monthStart.AddDate(0, -1, 0), monthStart, 10),
			summary("next", "Transport", monthEnd, monthEnd.AddDate(0, 1, 0), 0),
		}, now, th))
	})

	t.Run("overall budget label", func(t *testing.T) {
		got := DetectUnderBudget([]budget.Summary{summary("a", "", monthStart, monthEnd, 10)}, now, th)
		require.NotNil(t, got)
		assert.Contains(t, got.Message, "overall")
	})
}

type fakeLedger struct {
	entries []core.LedgerEntry
	err     error
	calls   [][2]time.Time
}

func (f *fakeLedger) ExpensesBetween(_ context.Context, _ string, from, to time.Time) ([]core.LedgerEntry, error) {
	f.calls = append(f.calls, [2]time.Time{from, to})
	if f.err != nil {
		return nil, f.err
	}
	var out []core.LedgerEntry
	for _, e := range f.entries {
		if !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeBudgets struct {
	summaries []budget.Summary
	err       error
}

func (f *fakeBudgets) Summaries(context.Context, string) ([]budget.Summary, error) {
	return f.summaries, f.err
}

func TestGenerator_Generate(t *testing.T) {
	ledger := &fakeLedger{entries: []core.LedgerEntry{
		entry(4000, time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC), "food-dining"), // Saturday
		entry(100, time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC), "transport"),   // Monday
		entry(1800, time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC), "food-dining"),
	}}
	budgets := &fakeBudgets{summaries: []budget.Summary{
		summary("a", "Transport", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), 5),
	}}

	g := NewGenerator(ledger, budgets, DefaultThresholds(), nil).WithClock(func() time.Time { return now })
	got, err := g.Generate(context.Background(), "alice")
	require.NoError(t, err)

	var ids []string
	for _, in := range got {
		ids = append(ids, in.ID)
	}
	assert.Equal(t, []string{IDWeekendPattern, "spike-food-dining", IDUnderBudget}, ids)

	require.Len(t, ledger.calls, 2)
	assert.Equal(t, now.AddDate(0, 0, -30), ledger.calls[0][0], "weekend check looks back 30 days")
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), ledger.calls[1][0], "spike check starts at last month")
}

func TestGenerator_PropagatesStoreErrors(t *testing.T) {
	g := NewGenerator(&fakeLedger{err: errors.New("db down")}, &fakeBudgets{}, DefaultThresholds(), nil)
	_, err := g.Generate(context.Background(), "alice")
	assert.ErrorContains(t, err, "db down")
}

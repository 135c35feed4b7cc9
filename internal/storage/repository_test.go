package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/core"
)

var june = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "finsight.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func slug(t *testing.T, repo *SQLiteRepository, s string) int64 {
	t.Helper()
	c, err := repo.GetCategoryBySlug(context.Background(), s)
	require.NoError(t, err)
	return c.ID
}

func addTx(t *testing.T, repo *SQLiteRepository, id string, typ core.TransactionType, cents int64, at time.Time, cat *int64) {
	t.Helper()
	require.NoError(t, repo.CreateTransaction(context.Background(), core.Transaction{
		ID: id, UserID: "alice", Amount: core.Money{Cents: cents}, Type: typ,
		Date: at, Description: id, CategoryID: cat, CreatedAt: at,
	}))
}

func TestMigrationsSeedCategories(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	slugs := make([]string, 0, len(cats))
	for _, c := range cats {
		slugs = append(slugs, c.Slug)
	}
	assert.ElementsMatch(t, []string{
		"food-dining", "transport", "social", "entertainment", "utilities", "health",
		"education", "clothing", "rent-housing", "savings", "income", "other",
	}, slugs)

	n, err := repo.GetCategoryCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(cats)), n)

	_, err = repo.GetCategoryBySlug(ctx, "crypto")
	assert.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, repo.Ping(ctx))
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finsight.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.CreateGoal(context.Background(), core.Goal{
		ID: "g1", UserID: "alice", Name: "Bike", TargetAmount: core.Money{Cents: 100}, CreatedAt: june,
	}))
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err, "migrations are idempotent")
	defer repo.Close()
	g, err := repo.GetGoal(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "Bike", g.Name)
}

func TestSumExpenses_InclusiveBoundsAndFilters(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	food := slug(t, repo, "food-dining")
	transport := slug(t, repo, "transport")
	end := june.AddDate(0, 1, 0)

	addTx(t, repo, "at-start", core.Expense, 100, june, &food)
	addTx(t, repo, "at-end", core.Expense, 200, end, &food)
	addTx(t, repo, "after", core.Expense, 400, end.Add(time.Second), &food)
	addTx(t, repo, "before", core.Expense, 800, june.Add(-time.Second), &food)
	addTx(t, repo, "other-cat", core.Expense, 1600, june.AddDate(0, 0, 3), &transport)
	addTx(t, repo, "income", core.Income, 3200, june.AddDate(0, 0, 3), nil)
	addTx(t, repo, "uncategorised", core.Expense, 6400, june.AddDate(0, 0, 4), nil)

	got, err := repo.SumExpenses(ctx, "alice", &food, june, end)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.Cents)

	got, err = repo.SumExpenses(ctx, "alice", nil, june, end)
	require.NoError(t, err)
	assert.Equal(t, int64(100+200+1600+6400), got.Cents, "overall sums every expense category, never income")

	got, err = repo.SumExpenses(ctx, "bob", nil, june, end)
	require.NoError(t, err)
	assert.Zero(t, got.Cents)
}

func TestExpensesBetween(t *testing.T) {
	repo := newRepo(t)
	food := slug(t, repo, "food-dining")

	addTx(t, repo, "b", core.Expense, 200, june.AddDate(0, 0, 2), &food)
	addTx(t, repo, "a", core.Expense, 100, june.AddDate(0, 0, 1), nil)
	addTx(t, repo, "inc", core.Income, 999, june.AddDate(0, 0, 1), nil)

	entries, err := repo.ExpensesBetween(context.Background(), "alice", june, june.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(100), entries[0].Amount.Cents, "ordered by date")
	assert.Empty(t, entries[0].CategorySlug)
	assert.Nil(t, entries[0].CategoryID)
	assert.Equal(t, "food-dining", entries[1].CategorySlug)
	assert.Equal(t, "Food & Dining", entries[1].CategoryName)

	list, err := repo.ListTransactions(context.Background(), "alice", june, june.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, list, 3, "listing includes income")
	assert.Equal(t, "b", list[0].ID, "newest first")
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	food := slug(t, repo, "food-dining")
	conf := 0.42

	want := core.Transaction{
		ID: "t1", UserID: "alice", Amount: core.Money{Cents: 1250}, Type: core.Expense,
		Date: june, Description: "lunch", SuggestedCategoryID: &food, CategoryConfidence: &conf,
		CreatedAt: june,
	}
	require.NoError(t, repo.CreateTransaction(ctx, want))

	got, err := repo.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, repo.SetTransactionCategory(ctx, "t1", &food))
	got, err = repo.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, food, *got.CategoryID)

	assert.ErrorIs(t, repo.SetTransactionCategory(ctx, "missing", &food), core.ErrNotFound)
	_, err = repo.GetTransaction(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	bad := want
	bad.ID = "t2"
	bad.Amount = core.Money{}
	assert.Error(t, repo.CreateTransaction(ctx, bad), "schema rejects non-positive amounts")
}

func TestBudgetOverlap(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	food := slug(t, repo, "food-dining")

	budget := func(id string, cat *int64, start time.Time, months int) core.Budget {
		return core.Budget{
			ID: id, UserID: "alice", CategoryID: cat, LimitAmount: core.Money{Cents: 5000},
			Period: core.Monthly, StartAt: start, EndAt: start.AddDate(0, months, 0), CreatedAt: june,
		}
	}

	require.NoError(t, repo.CreateBudget(ctx, budget("june", &food, june, 1)))

	err := repo.CreateBudget(ctx, budget("mid-june", &food, june.AddDate(0, 0, 15), 1))
	var overlap *core.WindowOverlapError
	require.True(t, errors.As(err, &overlap))
	assert.Equal(t, "june", overlap.ConflictingID)

	require.NoError(t, repo.CreateBudget(ctx, budget("july", &food, june.AddDate(0, 1, 0), 1)), "touching windows do not overlap")
	require.NoError(t, repo.CreateBudget(ctx, budget("overall", nil, june, 1)), "overall budgets only collide with each other")
	require.Error(t, repo.CreateBudget(ctx, budget("overall-2", nil, june, 6)))

	moved := budget("july", &food, june.AddDate(0, 0, 20), 1)
	require.Error(t, repo.UpdateBudget(ctx, moved, true))
	require.NoError(t, repo.UpdateBudget(ctx, budget("july", &food, june.AddDate(0, 1, 0), 2), true), "a budget never collides with itself")

	list, err := repo.ListBudgets(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	require.NoError(t, repo.DeleteBudget(ctx, "june"))
	assert.ErrorIs(t, repo.DeleteBudget(ctx, "june"), core.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateBudget(ctx, budget("ghost", &food, june, 1), false), core.ErrNotFound)
}

func TestAdjustGoalBalance(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	deadline := june.AddDate(0, 6, 0)
	require.NoError(t, repo.CreateGoal(ctx, core.Goal{
		ID: "g", UserID: "alice", Name: "Trip", TargetAmount: core.Money{Cents: 10000},
		Deadline: &deadline, CreatedAt: june,
	}))

	g, err := repo.AdjustGoalBalance(ctx, "g", 3000)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), g.CurrentAmount.Cents)
	assert.Equal(t, deadline, *g.Deadline)

	_, err = repo.AdjustGoalBalance(ctx, "g", -5000)
	var insufficient *core.InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(3000), insufficient.Available.Cents)
	assert.Equal(t, int64(5000), insufficient.Requested.Cents)

	g, err = repo.GetGoal(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), g.CurrentAmount.Cents, "failed withdrawal leaves the balance")

	g, err = repo.AdjustGoalBalance(ctx, "g", -3000)
	require.NoError(t, err)
	assert.Zero(t, g.CurrentAmount.Cents)

	_, err = repo.AdjustGoalBalance(ctx, "missing", 10)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, repo.DeleteGoal(ctx, "g"))
	assert.ErrorIs(t, repo.DeleteGoal(ctx, "g"), core.ErrNotFound)
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/budget"
	"finsight/internal/classifier"
	"finsight/internal/core"
	"finsight/internal/goal"
	"finsight/internal/insight"
	"finsight/internal/nudge"
	"finsight/internal/services"
	"finsight/internal/storage"
)

type stubClassifier struct {
	prediction *core.Prediction
	feedback   []string
}

func (c *stubClassifier) Classify(context.Context, string, core.TransactionType) *core.Prediction {
	return c.prediction
}

func (c *stubClassifier) SendFeedback(_ context.Context, _, slug string) {
	c.feedback = append(c.feedback, slug)
}

type stubHealth struct{ health classifier.Health }

func (h stubHealth) Ping(context.Context) classifier.Health { return h.health }

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("disk gone") }

type testEnv struct {
	server *Server
	repo   *storage.SQLiteRepository
	cls    *stubClassifier
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	cls := &stubClassifier{prediction: &core.Prediction{CategorySlug: "food-dining", Confidence: 0.7}}
	tracker := budget.NewTracker(repo, nil)
	goals := goal.NewEngine(repo, nil)
	gen := insight.NewGenerator(repo, tracker, insight.DefaultThresholds(), nil)

	count := 12
	s := NewServer(":0", Deps{
		Transactions: services.NewTransactionService(repo, cls, nil),
		Budgets:      tracker,
		Goals:        goals,
		Insights:     gen,
		Dashboard:    nudge.NewAggregator(tracker, gen, goals, nil),
		Classifier:   stubHealth{classifier.Health{Available: true, CategoriesCount: &count}},
		DB:           repo,
	}, nil)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return &testEnv{server: s, repo: repo, cls: cls}
}

func (e *testEnv) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		r.Header.Set(headerUserID, user)
	}
	if user == "root" {
		r.Header.Set(headerUserRole, roleAdmin)
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func categoryID(t *testing.T, repo *storage.SQLiteRepository, slug string) int64 {
	t.Helper()
	c, err := repo.GetCategoryBySlug(context.Background(), slug)
	require.NoError(t, err)
	return c.ID
}

func TestHealthAndReadiness(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)
	assert.Contains(t, rec.Body.String(), `"classifier":"ok"`)

	env.server.deps.DB = failingPinger{}
	rec = env.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk gone")
}

func TestClassifierHealth(t *testing.T) {
	env := setup(t)
	rec := env.do(t, http.MethodGet, "/v1/classifier/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available":true,"categoriesCount":12}`, rec.Body.String())
}

func TestMissingIdentity(t *testing.T) {
	env := setup(t)
	rec := env.do(t, http.MethodGet, "/v1/budgets", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransactions(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/v1/transactions", "alice",
		`{"amount": 12.5, "type": "expense", "date": "2025-06-03", "description": "pizza", "incomeSource": "x"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := decode[transactionResponse](t, rec)
	assert.Equal(t, "alice", tx.UserID)
	assert.Equal(t, 12.5, tx.Amount)
	assert.Empty(t, tx.IncomeSource)
	require.NotNil(t, tx.SuggestedCategoryID)
	assert.Equal(t, categoryID(t, env.repo, "food-dining"), *tx.SuggestedCategoryID)

	t.Run("recategorize sends feedback", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/v1/transactions/"+tx.ID+"/category", "alice", `{"categorySlug": "social"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, []string{"social"}, env.cls.feedback)
	})

	t.Run("list and export", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/transactions?from=2025-06-01&to=2025-06-03", "alice", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]transactionResponse](t, rec), 1, "plain-date to covers the whole day")

		rec = env.do(t, http.MethodGet, "/v1/transactions/export.csv?from=2025-06-01&to=2025-06-30", "alice", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "pizza,social,food-dining")
	})

	t.Run("validation", func(t *testing.T) {
		for _, body := range []string{
			`{"amount": 0, "type": "expense", "description": "x"}`,
			`{"amount": 1.234, "type": "expense", "description": "x"}`,
			`{"amount": "abc", "type": "expense", "description": "x"}`,
			`{"amount": null, "type": "expense", "description": "x"}`,
			`{"amount": 1, "type": "expense", "description": "x", "unknown": 1}`,
			`{"amount": 1, "type": "expense", "description": "x", "date": "June 3rd"}`,
			`not json`,
		} {
			rec := env.do(t, http.MethodPost, "/v1/transactions", "alice", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("amount as string with comma", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/v1/transactions", "alice",
			`{"amount": "7,25", "type": "income", "date": "2025-05-20", "description": "refund"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, 7.25, decode[transactionResponse](t, rec).Amount)
	})

	t.Run("other user forbidden", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/transactions?userId=alice", "bob", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = env.do(t, http.MethodGet, "/v1/transactions?userId=alice&from=2025-06-01", "root", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBudgets(t *testing.T) {
	env := setup(t)
	food := categoryID(t, env.repo, "food-dining")
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -10).Format(time.RFC3339)
	end := now.AddDate(0, 0, 20).Format(time.RFC3339)

	body := fmt.Sprintf(`{"categoryId": %d, "limitAmount": 50, "period": "month", "startAt": %q, "endAt": %q}`, food, start, end)
	rec := env.do(t, http.MethodPost, "/v1/budgets", "alice", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode[budgetResponse](t, rec)
	assert.Equal(t, "ok", b.AlertStatus)
	assert.Equal(t, "food-dining", b.CategorySlug)

	rec = env.do(t, http.MethodPost, "/v1/budgets", "alice", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Message, b.ID)

	rec = env.do(t, http.MethodPost, "/v1/transactions", "alice",
		fmt.Sprintf(`{"amount": "42.00", "type": "expense", "date": %q, "description": "groceries", "categoryId": %d}`,
			now.Add(-time.Hour).Format(time.RFC3339), food))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/budgets/"+b.ID, "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[budgetResponse](t, rec)
	assert.Equal(t, 42.0, got.TotalSpent)
	assert.Equal(t, 84.0, got.PercentageUsed)
	assert.Equal(t, "near", got.AlertStatus)

	t.Run("patch to overall", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/v1/budgets/"+b.ID, "alice", `{"categoryId": null, "limitAmount": 100}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		p := decode[budgetResponse](t, rec)
		assert.Nil(t, p.CategoryID)
		assert.Equal(t, 100.0, p.LimitAmount)
	})

	t.Run("alerts", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/alerts", "alice", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		a := decode[alertsResponse](t, rec)
		assert.NotNil(t, a.BudgetAlerts)
		assert.NotNil(t, a.Nudges)
	})

	t.Run("forbidden and missing", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/v1/budgets/"+b.ID, "bob", "").Code)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/budgets/nope", "alice", "").Code)
	})

	rec = env.do(t, http.MethodDelete, "/v1/budgets/"+b.ID, "alice", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/v1/budgets", "alice", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGoals(t *testing.T) {
	env := setup(t)
	deadline := time.Now().UTC().AddDate(0, 3, 0).Format(time.DateOnly)

	rec := env.do(t, http.MethodPost, "/v1/goals", "alice",
		fmt.Sprintf(`{"name": "Laptop", "targetAmount": 1000, "deadline": %q}`, deadline))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	g := decode[goalResponse](t, rec)
	assert.Equal(t, 0.0, g.CurrentAmount)

	rec = env.do(t, http.MethodPost, "/v1/goals/"+g.ID+"/allocate", "alice", `{"amount": 250}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 25.0, decode[goalResponse](t, rec).Percentage)

	rec = env.do(t, http.MethodPost, "/v1/goals/"+g.ID+"/withdraw", "alice", `{"amount": 300}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invariant", decode[errorResponse](t, rec).Error)

	rec = env.do(t, http.MethodPost, "/v1/goals/"+g.ID+"/withdraw", "alice", `{"amount": -5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/goals", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]goalResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, 250.0, list[0].CurrentAmount)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, "/v1/goals/"+g.ID, "bob", "").Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/v1/goals/"+g.ID, "alice", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/goals/"+g.ID, "alice", "").Code)
}

func TestInsights(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/v1/insights", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/insights?userId=alice", "bob", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWriteError_HidesInternalDetail(t *testing.T) {
	env := setup(t)
	rec := httptest.NewRecorder()
	env.server.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), "read", errors.New("sql: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sql")
}

func TestRateLimitOnWrites(t *testing.T) {
	env := setup(t)
	var last *httptest.ResponseRecorder
	for i := 0; i < 61; i++ {
		last = env.do(t, http.MethodPost, "/v1/goals", "alice", `{}`)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/v1/goals", "bob", `{}`).Code, "each user has its own budget")
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/goals", "alice", "").Code, "reads are not limited")
}

func TestDecodeJSON_SingleObject(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"amount": 1}{"amount": 2}`))
	var body amountRequest
	err := decodeJSON(httptest.NewRecorder(), r, &body)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

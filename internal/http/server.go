// Package http exposes the insight engine as a JSON API. Callers are
// identified by headers set by the upstream gateway.
package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"finsight/internal/budget"
	"finsight/internal/classifier"
	"finsight/internal/core"
	"finsight/internal/goal"
	"finsight/internal/log"
	"finsight/internal/middleware/ratelimit"
	"finsight/internal/middleware/security"
	"finsight/internal/middleware/trace"
	"finsight/internal/nudge"
	"finsight/internal/services"
)

type Transactions interface {
	Create(ctx context.Context, req core.Requester, d services.TransactionDraft) (core.Transaction, error)
	Recategorize(ctx context.Context, req core.Requester, id, slug string) (core.Transaction, error)
	List(ctx context.Context, req core.Requester, userID string, from, to time.Time) ([]core.Transaction, error)
	ExportCSV(ctx context.Context, req core.Requester, userID string, from, to time.Time, w io.Writer) error
	Categories(ctx context.Context) ([]core.Category, error)
}

type Budgets interface {
	Create(ctx context.Context, req core.Requester, d budget.Draft) (budget.Summary, error)
	Update(ctx context.Context, req core.Requester, id string, p budget.Patch) (budget.Summary, error)
	Delete(ctx context.Context, req core.Requester, id string) error
	Get(ctx context.Context, req core.Requester, id string) (budget.Summary, error)
	List(ctx context.Context, req core.Requester, userID string) ([]budget.Summary, error)
}

type Goals interface {
	Create(ctx context.Context, req core.Requester, d goal.Draft) (goal.Summary, error)
	Get(ctx context.Context, req core.Requester, id string) (goal.Summary, error)
	List(ctx context.Context, req core.Requester, userID string) ([]goal.Summary, error)
	Delete(ctx context.Context, req core.Requester, id string) error
	Allocate(ctx context.Context, req core.Requester, id string, amount core.Money) (goal.Summary, error)
	Withdraw(ctx context.Context, req core.Requester, id string, amount core.Money) (goal.Summary, error)
}

type Insights interface {
	Generate(ctx context.Context, userID string) ([]core.Insight, error)
}

type Dashboard interface {
	Dashboard(ctx context.Context, req core.Requester, userID string) (nudge.Alerts, error)
}

type ClassifierHealth interface {
	Ping(ctx context.Context) classifier.Health
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the API serves. Classifier and DB may be nil.
type Deps struct {
	Transactions Transactions
	Budgets      Budgets
	Goals        Goals
	Insights     Insights
	Dashboard    Dashboard
	Classifier   ClassifierHealth
	DB           Pinger

	// WritesPerMinute caps POST, PATCH and DELETE per caller. Zero means 60.
	WritesPerMinute int
}

type Server struct {
	http.Server
	deps     Deps
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		deps:     deps,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{Limit: deps.WritesPerMinute, Window: time.Minute}),
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /v1/classifier/health", s.handleClassifierHealth)
	mux.HandleFunc("GET /v1/categories", s.handleListCategories)

	mux.HandleFunc("POST /v1/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /v1/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /v1/transactions/export.csv", s.handleExportTransactions)
	mux.HandleFunc("PATCH /v1/transactions/{id}/category", s.handleRecategorize)

	mux.HandleFunc("POST /v1/budgets", s.handleCreateBudget)
	mux.HandleFunc("GET /v1/budgets", s.handleListBudgets)
	mux.HandleFunc("GET /v1/budgets/{id}", s.handleGetBudget)
	mux.HandleFunc("PATCH /v1/budgets/{id}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /v1/budgets/{id}", s.handleDeleteBudget)

	mux.HandleFunc("POST /v1/goals", s.handleCreateGoal)
	mux.HandleFunc("GET /v1/goals", s.handleListGoals)
	mux.HandleFunc("GET /v1/goals/{id}", s.handleGetGoal)
	mux.HandleFunc("DELETE /v1/goals/{id}", s.handleDeleteGoal)
	mux.HandleFunc("POST /v1/goals/{id}/allocate", s.handleAllocate)
	mux.HandleFunc("POST /v1/goals/{id}/withdraw", s.handleWithdraw)

	mux.HandleFunc("GET /v1/alerts", s.handleAlerts)
	mux.HandleFunc("GET /v1/insights", s.handleInsights)

	limit := s.limiter.Middleware(s.rateKey, s.writeRateLimited,
		http.MethodPost, http.MethodPatch, http.MethodDelete)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Handler(security.Headers(security.DefaultHeadersConfig())(s.inspect(limit(mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// inspect logs requests that look like probes and lets them through.
func (s *Server) inspect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.IsSuspicious(r) {
			s.logger.WarnContext(r.Context(), "Suspicious request",
				log.FieldRequestID, trace.RequestID(r.Context()),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				"user_agent", r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

// rateKey buckets writes per authenticated user, or per client IP when
// the identity header is missing.
func (s *Server) rateKey(r *http.Request) string {
	if req, ok := requester(r); ok {
		return "user:" + req.UserID
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate_limited", Message: "too many requests, retry later"})
}

// Shutdown stops the background sweeper and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

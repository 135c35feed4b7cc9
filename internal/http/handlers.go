package http

import (
	"context"
	"net/http"
	"time"

	"finsight/internal/core"
	"finsight/internal/log"
)

// identify resolves the caller or answers 401.
func (s *Server) identify(w http.ResponseWriter, r *http.Request) (core.Requester, bool) {
	req, ok := requester(r)
	if !ok {
		writeUnauthorized(w)
	}
	return req, ok
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the database. The classifier is optional and only
// reported, never a reason to be unready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if s.deps.DB == nil {
		checks["database"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.DB.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		checks["database"] = "unavailable"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if s.deps.Classifier != nil {
		if s.deps.Classifier.Ping(ctx).Available {
			checks["classifier"] = "ok"
		} else {
			checks["classifier"] = "degraded"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"refused":        s.limiter.Hits(),
	}
	checks["suspicious_requests"] = s.detector.SuspiciousRequests()

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleClassifierHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Classifier == nil {
		writeJSON(w, http.StatusOK, map[string]any{"available": false, "categoriesCount": nil})
		return
	}
	h := s.deps.Classifier.Ping(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"available": h.Available, "categoriesCount": h.CategoriesCount})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.identify(w, r); !ok {
		return
	}
	cats, err := s.deps.Transactions.Categories(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(cats, toCategory))
}

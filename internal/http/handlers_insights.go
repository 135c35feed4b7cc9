package http

import (
	"net/http"

	"finsight/internal/access"
	"finsight/internal/core"
	"finsight/internal/log"
)

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}
	alerts, err := s.deps.Dashboard.Dashboard(r.Context(), req, targetUser(r, req))
	if err != nil {
		s.writeError(w, r, log.OpAlerts, err)
		return
	}
	writeJSON(w, http.StatusOK, toAlerts(alerts))
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}
	userID := targetUser(r, req)
	if err := access.Scope(req, userID); err != nil {
		s.writeError(w, r, log.OpInsights, err)
		return
	}

	insights, err := s.deps.Insights.Generate(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, log.OpInsights, err)
		return
	}
	if insights == nil {
		insights = []core.Insight{}
	}
	writeJSON(w, http.StatusOK, insights)
}

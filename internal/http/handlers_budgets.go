package http

import (
	"net/http"
	"strings"

	"finsight/internal/budget"
	"finsight/internal/core"
	"finsight/internal/log"
)

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}

	var body budgetRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	limit, err := amount("limitAmount", body.LimitAmount)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	if body.StartAt == nil || body.EndAt == nil {
		s.writeError(w, r, log.OpCreate, core.Validationf("startAt and endAt are required"))
		return
	}

	d := budget.Draft{
		UserID:      body.UserID,
		CategoryID:  body.CategoryID,
		LimitAmount: limit,
		Period:      core.BudgetPeriod(strings.ToLower(strings.TrimSpace(body.Period))),
		StartAt:     body.StartAt.Time,
		EndAt:       body.EndAt.Time,
	}
	if d.UserID == "" {
		d.UserID = req.UserID
	}

	sum, err := s.deps.Budgets.Create(r.Context(), req, d)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudget(sum))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}
	list, err := s.deps.Budgets.List(r.Context(), req, targetUser(r, req))
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toBudget))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}
	sum, err := s.deps.Budgets.Get(r.Context(), req, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudget(sum))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}

	var body budgetPatch
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}

	p := budget.Patch{
		SetCategory: body.CategoryID.Set,
		CategoryID:  body.CategoryID.Value,
		StartAt:     body.StartAt.ptr(),
		EndAt:       body.EndAt.ptr(),
	}
	if body.LimitAmount != nil {
		limit, err := amount("limitAmount", body.LimitAmount)
		if err != nil {
			s.writeError(w, r, log.OpUpdate, err)
			return
		}
		p.LimitAmount = &limit
	}
	if body.Period != nil {
		period := core.BudgetPeriod(strings.ToLower(strings.TrimSpace(*body.Period)))
		p.Period = &period
	}

	sum, err := s.deps.Budgets.Update(r.Context(), req, r.PathValue("id"), p)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudget(sum))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}
	if err := s.deps.Budgets.Delete(r.Context(), req, r.PathValue("id")); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

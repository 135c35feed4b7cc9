package http

import (
	"context"
	"net/http"

	"finsight/internal/core"
	"finsight/internal/goal"
	"finsight/internal/log"
)

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}

	var body goalRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	target, err := amount("targetAmount", body.TargetAmount)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	d := goal.Draft{
		UserID:       body.UserID,
		Name:         body.Name,
		TargetAmount: target,
		Deadline:     body.Deadline.ptr(),
	}
	if d.UserID == "" {
		d.UserID = req.UserID
	}

	sum, err := s.deps.Goals.Create(r.Context(), req, d)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoal(sum))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}
	list, err := s.deps.Goals.List(r.Context(), req, targetUser(r, req))
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, toGoal))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}
	sum, err := s.deps.Goals.Get(r.Context(), req, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoal(sum))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}
	if err := s.deps.Goals.Delete(r.Context(), req, r.PathValue("id")); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	s.adjustGoal(w, r, log.OpAllocate, s.deps.Goals.Allocate)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.adjustGoal(w, r, log.OpWithdraw, s.deps.Goals.Withdraw)
}

type adjustFunc func(ctx context.Context, req core.Requester, id string, amount core.Money) (goal.Summary, error)

func (s *Server) adjustGoal(w http.ResponseWriter, r *http.Request, op string, apply adjustFunc) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}

	var body amountRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, op, err)
		return
	}
	amt, err := amount("amount", body.Amount)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}

	sum, err := apply(r.Context(), req, r.PathValue("id"), amt)
	if err != nil {
		s.writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoal(sum))
}

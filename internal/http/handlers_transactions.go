package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/services"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}

	var body transactionRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	amt, err := amount("amount", body.Amount)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}

	d := services.TransactionDraft{
		UserID:       body.UserID,
		Amount:       amt,
		Type:         core.TransactionType(strings.ToLower(strings.TrimSpace(body.Type))),
		Description:  body.Description,
		CategoryID:   body.CategoryID,
		IncomeSource: body.IncomeSource,
		Date:         time.Now().UTC(),
	}
	if d.UserID == "" {
		d.UserID = req.UserID
	}
	if body.Date != nil {
		d.Date = body.Date.Time
	}

	t, err := s.deps.Transactions.Create(r.Context(), req, d)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransaction(t))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}
	from, to, err := dateRange(r, time.Now())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}

	txs, err := s.deps.Transactions.List(r.Context(), req, targetUser(r, req), from, to)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(txs, toTransaction))
}

// handleExportTransactions buffers the CSV so a failure can still be
// reported as JSON.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}
	from, to, err := dateRange(r, time.Now())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Transactions.ExportCSV(r.Context(), req, targetUser(r, req), from, to, &buf); err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transactions-%s-%s.csv"`,
		from.Format("20060102"), to.Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleRecategorize(w http.ResponseWriter, r *http.Request) {
	req, ok := s.identify(w, r)
	if !ok {
		return
	}

	var body recategorizeRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	slug := strings.TrimSpace(body.CategorySlug)
	if slug == "" {
		s.writeError(w, r, log.OpUpdate, core.Validationf("categorySlug is required"))
		return
	}

	t, err := s.deps.Transactions.Recategorize(r.Context(), req, r.PathValue("id"), slug)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransaction(t))
}

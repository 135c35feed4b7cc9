package services

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"finsight/internal/core"
)

// transactionRow is the CSV layout of an exported transaction.
type transactionRow struct {
	ID                string `csv:"id"`
	Date              string `csv:"date"`
	Type              string `csv:"type"`
	Amount            string `csv:"amount"`
	Description       string `csv:"description"`
	Category          string `csv:"category"`
	SuggestedCategory string `csv:"suggested_category"`
	Confidence        string `csv:"confidence"`
	IncomeSource      string `csv:"income_source"`
}

// ExportCSV writes the transactions of userID dated within [from, to] as
// CSV, newest first.
func (s *TransactionService) ExportCSV(ctx context.Context, req core.Requester, userID string, from, to time.Time, w io.Writer) error {
	txs, err := s.List(ctx, req, userID, from, to)
	if err != nil {
		return err
	}

	cats, err := s.Categories(ctx)
	if err != nil {
		return err
	}
	slugs := make(map[int64]string, len(cats))
	for _, c := range cats {
		slugs[c.ID] = c.Slug
	}

	rows := make([]*transactionRow, 0, len(txs))
	for _, t := range txs {
		row := &transactionRow{
			ID:           t.ID,
			Date:         t.Date.Format(time.DateOnly),
			Type:         string(t.Type),
			Amount:       t.Amount.String(),
			Description:  t.Description,
			IncomeSource: t.IncomeSource,
		}
		if t.CategoryID != nil {
			row.Category = slugs[*t.CategoryID]
		}
		if t.SuggestedCategoryID != nil {
			row.SuggestedCategory = slugs[*t.SuggestedCategoryID]
		}
		if t.CategoryConfidence != nil {
			row.Confidence = strconv.FormatFloat(*t.CategoryConfidence, 'f', 4, 64)
		}
		rows = append(rows, row)
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

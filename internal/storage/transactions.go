package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"finsight/internal/core"
)

const transactionColumns = `id, user_id, amount_cents, type, occurred_at, description,
	category_id, suggested_category_id, category_confidence, income_source, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t                 core.Transaction
		typ               string
		occurred, created int64
		category, sugg    sql.NullInt64
		confidence        sql.NullFloat64
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Amount.Cents, &typ, &occurred, &t.Description,
		&category, &sugg, &confidence, &t.IncomeSource, &created)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Date = fromUnix(occurred)
	t.CreatedAt = fromUnix(created)
	t.CategoryID = ptrInt64(category)
	t.SuggestedCategoryID = ptrInt64(sugg)
	t.CategoryConfidence = ptrFloat64(confidence)
	return t, nil
}

// CreateTransaction appends a transaction to the ledger.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Amount.Cents, string(t.Type), unix(t.Date), t.Description,
		nullInt64(t.CategoryID), nullInt64(t.SuggestedCategoryID), nullFloat64(t.CategoryConfidence),
		t.IncomeSource, unix(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"user_id", t.UserID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents)
	return nil
}

// GetTransaction returns a single transaction by id.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if err != nil {
		return core.Transaction{}, notFound(err, "get transaction "+id)
	}
	return t, nil
}

// ListTransactions returns the user's transactions with from <= date <= to,
// newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? AND occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at DESC, created_at DESC`,
		userID, unix(from), unix(to))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetTransactionCategory records the user's chosen category.
func (r *SQLiteRepository) SetTransactionCategory(ctx context.Context, id string, categoryID *int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET category_id = ? WHERE id = ?`,
		nullInt64(categoryID), id)
	if err != nil {
		return fmt.Errorf("set transaction category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set transaction category %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// SumExpenses totals the user's expenses with from <= date <= to. A nil
// categoryID sums across every category.
func (r *SQLiteRepository) SumExpenses(ctx context.Context, userID string, categoryID *int64, from, to time.Time) (core.Money, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		WHERE user_id = ? AND type = 'expense' AND occurred_at >= ? AND occurred_at <= ?`
	args := []any{userID, unix(from), unix(to)}
	if categoryID != nil {
		query += ` AND category_id = ?`
		args = append(args, *categoryID)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: total}, nil
}

// ExpensesBetween returns the user's expenses with from <= date <= to,
// joined with their category (empty slug when uncategorised).
func (r *SQLiteRepository) ExpensesBetween(ctx context.Context, userID string, from, to time.Time) ([]core.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT t.amount_cents, t.occurred_at, t.category_id,
			COALESCE(c.slug, ''), COALESCE(c.name, '')
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.type = 'expense' AND t.occurred_at >= ? AND t.occurred_at <= ?
		ORDER BY t.occurred_at`,
		userID, unix(from), unix(to))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.LedgerEntry
	for rows.Next() {
		var (
			e        core.LedgerEntry
			occurred int64
			category sql.NullInt64
		)
		if err := rows.Scan(&e.Amount.Cents, &occurred, &category, &e.CategorySlug, &e.CategoryName); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date = fromUnix(occurred)
		e.CategoryID = ptrInt64(category)
		out = append(out, e)
	}
	return out, rows.Err()
}

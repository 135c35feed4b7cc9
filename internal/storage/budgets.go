package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"finsight/internal/core"
)

const budgetColumns = `id, user_id, category_id, limit_cents, period, start_at, end_at, created_at`

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b                     core.Budget
		category              sql.NullInt64
		period                string
		start, end, createdAt int64
	)
	if err := row.Scan(&b.ID, &b.UserID, &category, &b.LimitAmount.Cents, &period, &start, &end, &createdAt); err != nil {
		return core.Budget{}, err
	}
	b.CategoryID = ptrInt64(category)
	b.Period = core.BudgetPeriod(period)
	b.StartAt = fromUnix(start)
	b.EndAt = fromUnix(end)
	b.CreatedAt = fromUnix(createdAt)
	return b, nil
}

// findOverlap looks for another budget of the same user and category whose
// [start_at, end_at) window intersects b's window. "category_id IS ?" makes
// NULL (overall) budgets collide only with each other.
func findOverlap(ctx context.Context, tx *sql.Tx, b core.Budget) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM budgets
		WHERE user_id = ? AND category_id IS ? AND start_at < ? AND end_at > ? AND id != ?
		ORDER BY start_at LIMIT 1`,
		b.UserID, nullInt64(b.CategoryID), unix(b.EndAt), unix(b.StartAt), b.ID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check budget overlap: %w", err)
	}
	return &core.WindowOverlapError{ConflictingID: id}
}

// CreateBudget inserts b unless its window overlaps an existing budget of the
// same user and category. The check and the insert share one IMMEDIATE
// transaction, so two concurrent creates cannot both pass the check.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := findOverlap(ctx, tx, b); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO budgets (`+budgetColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.UserID, nullInt64(b.CategoryID), b.LimitAmount.Cents, string(b.Period),
			unix(b.StartAt), unix(b.EndAt), unix(b.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert budget: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Budget saved to SQLite", "id", b.ID, "user_id", b.UserID)
	return nil
}

// UpdateBudget overwrites the stored budget. When recheck is set the overlap
// rule is evaluated inside the same transaction, excluding b itself.
func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b core.Budget, recheck bool) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if recheck {
			if err := findOverlap(ctx, tx, b); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `UPDATE budgets
			SET category_id = ?, limit_cents = ?, period = ?, start_at = ?, end_at = ?
			WHERE id = ?`,
			nullInt64(b.CategoryID), b.LimitAmount.Cents, string(b.Period),
			unix(b.StartAt), unix(b.EndAt), b.ID)
		if err != nil {
			return fmt.Errorf("update budget: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("update budget %s: %w", b.ID, core.ErrNotFound)
		}
		return nil
	})
}

// GetBudget returns a budget by id.
func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	b, err := scanBudget(r.db.QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if err != nil {
		return core.Budget{}, notFound(err, "get budget "+id)
	}
	return b, nil
}

// ListBudgets returns all budgets of a user ordered by window start.
func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? ORDER BY start_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBudget removes a budget.
func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete budget %s: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Budget deleted", "id", id)
	return nil
}

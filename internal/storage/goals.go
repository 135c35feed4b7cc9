package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"finsight/internal/core"
)

const goalColumns = `id, user_id, name, target_cents, current_cents, deadline, created_at`

func scanGoal(row interface{ Scan(...any) error }) (core.Goal, error) {
	var (
		g         core.Goal
		deadline  sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount.Cents, &g.CurrentAmount.Cents, &deadline, &createdAt); err != nil {
		return core.Goal{}, err
	}
	g.Deadline = ptrTime(deadline)
	g.CreatedAt = fromUnix(createdAt)
	return g, nil
}

// CreateGoal inserts a new goal.
func (r *SQLiteRepository) CreateGoal(ctx context.Context, g core.Goal) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.TargetAmount.Cents, g.CurrentAmount.Cents, nullUnix(g.Deadline), unix(g.CreatedAt))
	if err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	slog.InfoContext(ctx, "Goal saved to SQLite", "id", g.ID, "user_id", g.UserID)
	return nil
}

// GetGoal returns a goal by id.
func (r *SQLiteRepository) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	g, err := scanGoal(r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id))
	if err != nil {
		return core.Goal{}, notFound(err, "get goal "+id)
	}
	return g, nil
}

// ListGoals returns all goals of a user, oldest first.
func (r *SQLiteRepository) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// DeleteGoal removes a goal.
func (r *SQLiteRepository) DeleteGoal(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete goal %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// AdjustGoalBalance adds deltaCents to the goal's saved amount in a single
// conditional statement. A negative delta larger than the balance changes
// nothing and yields *core.InsufficientBalanceError.
func (r *SQLiteRepository) AdjustGoalBalance(ctx context.Context, id string, deltaCents int64) (core.Goal, error) {
	var g core.Goal
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE goals SET current_cents = current_cents + ?
			WHERE id = ? AND current_cents + ? >= 0`, deltaCents, id, deltaCents)
		if err != nil {
			return fmt.Errorf("adjust goal balance: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("adjust goal balance: %w", err)
		}

		g, err = scanGoal(tx.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id))
		if err != nil {
			return notFound(err, "get goal "+id)
		}
		if n == 0 {
			return &core.InsufficientBalanceError{
				Available: g.CurrentAmount,
				Requested: core.Money{Cents: -deltaCents},
			}
		}
		return nil
	})
	if err != nil {
		return core.Goal{}, err
	}
	return g, nil
}

package storage

import (
	"context"
	"fmt"

	"finsight/internal/core"
)

const categoryColumns = `id, slug, name, color`

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.Slug, &c.Name, &c.Color)
	return c, err
}

// GetCategory returns the category with the given id.
func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		return core.Category{}, notFound(err, fmt.Sprintf("get category %d", id))
	}
	return c, nil
}

// GetCategoryBySlug returns the category with the given slug.
func (r *SQLiteRepository) GetCategoryBySlug(ctx context.Context, slug string) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE slug = ?`, slug))
	if err != nil {
		return core.Category{}, notFound(err, fmt.Sprintf("get category %q", slug))
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategoryCount returns the number of categories in the database.
func (r *SQLiteRepository) GetCategoryCount(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/quickcart/internal/database"
	"github.com/safar/quickcart/internal/models"
)

func CreateCategory(ctx context.Context, db DBTX, slug, name, image string) (*models.Category, error) {
	category := &models.Category{}

	err := db.QueryRowContext(ctx,
		`INSERT INTO categories (slug, name, image)
		 VALUES ($1, $2, $3)
		 RETURNING id, slug, name, image`,
		slug, name, image).Scan(&category.ID, &category.Slug, &category.Name, &category.Image)
	if err != nil {
		return nil, database.Translate(err, "create category", database.ErrDuplicateEntry, nil)
	}

	return category, nil
}

func GetCategoryBySlug(ctx context.Context, db DBTX, slug string) (*models.Category, error) {
	category := &models.Category{}

	err := db.QueryRowContext(ctx,
		`SELECT id, slug, name, image FROM categories WHERE slug = $1`,
		slug).Scan(&category.ID, &category.Slug, &category.Name, &category.Image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return category, nil
}

func ListCategories(ctx context.Context, db DBTX) ([]models.Category, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, slug, name, image FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.Image); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

package store

import (
	"context"
	"fmt"

	"github.com/safar/quickcart/internal/database"
	"github.com/safar/quickcart/internal/models"
)

func InsertReview(ctx context.Context, db DBTX, r models.Review) (*models.Review, error) {
	review := &models.Review{}

	err := db.QueryRowContext(ctx,
		`INSERT INTO reviews (product_id, user_id, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id, product_id, user_id, rating, comment, created_at`,
		r.ProductID, r.UserID, r.Rating, r.Comment).Scan(
		&review.ID,
		&review.ProductID,
		&review.UserID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
	)
	if err != nil {
		return nil, database.Translate(err, "create review", nil, database.ErrProductNotFound)
	}

	return review, nil
}

// ListReviews returns a product's reviews, newest first.
func ListReviews(ctx context.Context, db DBTX, productID int64) ([]models.Review, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, user_id, rating, comment, created_at
		 FROM reviews
		 WHERE product_id = $1
		 ORDER BY created_at DESC, id DESC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return reviews, nil
}

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/quickcart/internal/database"
	"github.com/safar/quickcart/internal/models"
)

func ListWishlist(ctx context.Context, db DBTX, owner uuid.UUID) ([]models.WishlistEntry, error) {
	query := `
		SELECT w.id, w.user_id, w.product_id, w.created_at, ` + productColumns + `
		FROM wishlist w
		JOIN products p ON p.id = w.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC, w.id DESC`

	rows, err := db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	entries := []models.WishlistEntry{}
	for rows.Next() {
		var entry models.WishlistEntry
		ps := productScan{product: &entry.Product}
		dest := append([]any{&entry.ID, &entry.OwnerID, &entry.ProductID, &entry.CreatedAt}, ps.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan wishlist entry: %w", err)
		}
		ps.finish()
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}

// InsertWishlistEntry relies on the (user_id, product_id) unique
// constraint to reject duplicates with database.ErrDuplicateEntry.
func InsertWishlistEntry(ctx context.Context, db DBTX, owner uuid.UUID, productID int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO wishlist (user_id, product_id, created_at) VALUES ($1, $2, NOW())`,
		owner, productID)
	if err != nil {
		return database.Translate(err, "insert wishlist entry", database.ErrDuplicateEntry, database.ErrProductNotFound)
	}
	return nil
}

func DeleteWishlistEntry(ctx context.Context, db DBTX, owner uuid.UUID, productID int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM wishlist WHERE user_id = $1 AND product_id = $2`,
		owner, productID)
	if err != nil {
		return fmt.Errorf("delete wishlist entry: %w", err)
	}
	return nil
}

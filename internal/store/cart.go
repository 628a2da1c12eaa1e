package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/safar/quickcart/internal/database"
	"github.com/safar/quickcart/internal/models"
)

// ListCartLines returns the owner's cart joined with live product rows.
func ListCartLines(ctx context.Context, db DBTX, owner uuid.UUID) ([]models.CartLine, error) {
	query := `
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ` + productColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE ci.user_id = $1
		ORDER BY ci.id`

	rows, err := db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		var line models.CartLine
		ps := productScan{product: &line.Product}
		dest := append([]any{&line.ID, &line.OwnerID, &line.ProductID, &line.Quantity}, ps.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		ps.finish()
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

func InsertCartLine(ctx context.Context, db DBTX, owner uuid.UUID, productID int64, quantity int) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		owner, productID, quantity)
	if err != nil {
		return database.Translate(err, "insert cart line", database.ErrDuplicateEntry, database.ErrProductNotFound)
	}
	return nil
}

func UpdateCartLineQuantity(ctx context.Context, db DBTX, owner uuid.UUID, productID int64, quantity int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = $1
		 WHERE user_id = $2 AND product_id = $3`,
		quantity, owner, productID)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	return expectRow(result, database.ErrCartLineNotFound)
}

// DeleteCartLine removes the owner's line for productID. Deleting a line
// that does not exist is not an error.
func DeleteCartLine(ctx context.Context, db DBTX, owner uuid.UUID, productID int64) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		owner, productID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

func DeleteCartLines(ctx context.Context, db DBTX, owner uuid.UUID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, owner)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

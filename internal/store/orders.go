package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/quickcart/internal/database"
	"github.com/safar/quickcart/internal/models"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	UserID          uuid.UUID
	TotalAmount     decimal.Decimal
	ShippingAddress models.ShippingAddress
}

const orderColumns = `id, user_id, status, total_amount, shipping_address, created_at`

func scanOrder(row rowScanner, order *models.Order) error {
	return row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&order.ShippingAddress,
		&order.CreatedAt,
	)
}

// InsertOrder writes the order row only. Lines are written separately by
// InsertOrderLines.
func InsertOrder(ctx context.Context, db DBTX, req CreateOrderRequest) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrder(db.QueryRowContext(ctx,
		`INSERT INTO orders (id, user_id, status, total_amount, shipping_address, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING `+orderColumns,
		uuid.New(), req.UserID, models.OrderStatusPending, req.TotalAmount, req.ShippingAddress), order)
	if err != nil {
		return nil, database.Translate(err, "create order", nil, database.ErrUserNotFound)
	}

	return order, nil
}

// InsertOrderLines writes all lines of one order atomically: either every
// line is stored or none is.
func InsertOrderLines(ctx context.Context, db *sql.DB, lines []models.OrderLine) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		for _, line := range lines {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, price)
				 VALUES ($1, $2, $3, $4)`,
				line.OrderID, line.ProductID, line.Quantity, line.Price)
			if err != nil {
				return database.Translate(err, "create order item", nil, database.ErrProductNotFound)
			}
		}
		return nil
	})
}

func GetOrder(ctx context.Context, db DBTX, owner, id uuid.UUID) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`

	if err := scanOrder(db.QueryRowContext(ctx, query, id, owner), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if err := attachOrderLines(ctx, db, []*models.Order{order}); err != nil {
		return nil, err
	}

	return order, nil
}

// ListOrders returns every order of owner, newest first, with lines.
func ListOrders(ctx context.Context, db DBTX, owner uuid.UUID) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	if err := attachOrderLines(ctx, db, orderPointers(orders)); err != nil {
		return nil, err
	}

	return orders, nil
}

func ListOrdersCursor(ctx context.Context, db DBTX, owner uuid.UUID, cursor string, limit int) (*CursorPage[models.Order], error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, owner, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := attachOrderLines(ctx, db, orderPointers(orders)); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage[models.Order]{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func collectOrders(rows *sql.Rows) ([]models.Order, error) {
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func orderPointers(orders []models.Order) []*models.Order {
	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	return ptrs
}

func attachOrderLines(ctx context.Context, db DBTX, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[uuid.UUID]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID.String()
		o.Items = []models.OrderLine{}
		byID[o.ID] = o
	}

	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, ` + productColumns + `
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE oi.order_id = ANY($1::uuid[])
		ORDER BY oi.id`

	rows, err := db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line models.OrderLine
		ps := productScan{product: &line.Product}
		dest := append([]any{&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.Price}, ps.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		ps.finish()
		if order, ok := byID[line.OrderID]; ok {
			order.Items = append(order.Items, line)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}

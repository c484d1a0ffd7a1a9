package repository

import (
	"context"
	"fmt"

	"spotscan/internal/models"
	"spotscan/internal/money"
)

// CreateOrder persists one exchange order leg of a trade (entry fill,
// take-profit partial, stop-loss close).
func (r *Repository) CreateOrder(ctx context.Context, o models.Order) error {
	query := `
		INSERT INTO orders (id, trade_id, exchange_order_id, type, side, price, quantity, status,
			filled_quantity, average_price, fees, timestamp, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`

	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.TradeID, o.ExchangeOrderID, o.Type, o.Side, o.Price, o.Quantity, o.Status,
		o.FilledQuantity, o.AveragePrice, o.Fees, o.Timestamp,
	)
	if err != nil {
		// A caller retrying after a timed-out exchange fill ack may replay
		// an order ID that was already persisted; treat that as success
		// rather than surfacing a duplicate-key error up through the
		// trading engine.
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("create order %s: %w", o.ID, err)
	}
	return nil
}

// UpdateOrderStatus records a fill or rejection arriving after the
// order was first persisted as NEW.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, filledQuantity, averagePrice money.Decimal) error {
	query := `
		UPDATE orders SET status = $1, filled_quantity = $2, average_price = $3, updated_at = now()
		WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, status, filledQuantity, averagePrice, id)
	if err != nil {
		return fmt.Errorf("update order %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order %s: rows affected: %w", id, err)
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ListOrdersByTrade returns every order leg belonging to one trade, in
// execution order, for the dashboard's trade detail view.
func (r *Repository) ListOrdersByTrade(ctx context.Context, tradeID string) ([]models.Order, error) {
	query := `
		SELECT id, trade_id, exchange_order_id, type, side, price, quantity, status,
			filled_quantity, average_price, fees, timestamp, updated_at
		FROM orders
		WHERE trade_id = $1
		ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("list orders for trade %s: %w", tradeID, err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.TradeID, &o.ExchangeOrderID, &o.Type, &o.Side, &o.Price, &o.Quantity, &o.Status,
			&o.FilledQuantity, &o.AveragePrice, &o.Fees, &o.Timestamp, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmynk/canteen/internal/apperr"
	"github.com/mmynk/canteen/internal/models"
)

const orderColumns = "id, user_id, cafeteria_id, total_amount, instrument_id, status, session_id, created_at, updated_at, paid_at"

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	order := &models.Order{}
	var status string
	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.CafeteriaID,
		&order.TotalAmount,
		&order.InstrumentID,
		&status,
		&order.SessionID,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.PaidAt,
	); err != nil {
		return nil, err
	}
	order.Status = models.OrderStatus(status)
	return order, nil
}

// insertOrder writes an order and its items. queuedAt (unix nanoseconds) fixes
// the order's place in the kitchen queue.
func (s *Store) insertOrder(ctx context.Context, q execer, order *models.Order, queuedAt int64) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	_, err := q.ExecContext(ctx, s.rebind(`
		INSERT INTO orders (`+orderColumns+`, queued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		order.ID,
		order.UserID,
		order.CafeteriaID,
		int64(order.TotalAmount),
		order.InstrumentID,
		string(order.Status),
		order.SessionID,
		order.CreatedAt,
		order.UpdatedAt,
		order.PaidAt,
		queuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i, item := range order.Items {
		_, err := q.ExecContext(ctx, s.rebind(`
			INSERT INTO order_items (order_id, line_no, name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`),
			order.ID, i, item.Name, item.Quantity, int64(item.UnitPrice),
		)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}
	return nil
}

// GetOrder retrieves an order with its items.
func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+orderColumns+" FROM orders WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	if err := s.loadOrderItems(ctx, []*models.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrdersByUser returns a user's orders, newest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = ?
		ORDER BY queued_at DESC, id`, userID)
}

// ListQueueOrders returns the cafeteria's unfinished orders in the order they
// were paid for.
func (s *Store) ListQueueOrders(ctx context.Context, cafeteriaID string) ([]*models.Order, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE cafeteria_id = ? AND status IN (?, ?, ?)
		ORDER BY queued_at, id`,
		cafeteriaID,
		string(models.OrderPending), string(models.OrderCooking), string(models.OrderReadyForPickup),
	)
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	rows.Close()

	if err := s.loadOrderItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadOrderItems fills Items for every order with a single query.
func (s *Store) loadOrderItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[string]*models.Order, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		ids[i] = o.ID
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT order_id, name, quantity, unit_price FROM order_items
		WHERE order_id IN (`+placeholders(len(ids))+`)
		ORDER BY order_id, line_no`), stringArgs(ids)...)
	if err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			item    models.OrderItem
		)
		if err := rows.Scan(&orderID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

// TransitionOrder applies from → to only if the order is still in from.
func (s *Store) TransitionOrder(ctx context.Context, id string, from, to models.OrderStatus, now int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`),
		string(to), now, id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition order: %w", err)
	}
	return affected(res)
}

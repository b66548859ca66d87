package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"order-workflow/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound marks an unknown order or actor id.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict marks a compare-and-swap failure on save: the order
	// changed since it was loaded. The caller must reload and re-decide.
	ErrVersionConflict = errors.New("order version conflict")
)

// CreateOrder inserts the order and all of its lines in one transaction;
// either every row exists afterwards or none does.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, client_id, state, version, delivery_address, client_comment, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		order.ID, order.ClientID, order.State, order.Version,
		order.DeliveryAddress, order.ClientComment, order.PlacedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, quantity, cost_price, sell_price)
			VALUES ($1, $2, $3, $4, $5)`,
			line.OrderID, line.ProductID, line.Quantity, line.CostPrice, line.SellPrice)
		if err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order with its lines
func (s *Store) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	err = s.db.SelectContext(ctx, &order.Lines,
		"SELECT * FROM order_lines WHERE order_id = $1 ORDER BY product_id", id)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SaveOrder persists a transitioned order guarded by a compare-and-swap on
// version. The order row and any line pricing changes commit atomically; on
// success the in-memory version is bumped to match the stored one. A stale
// expectedVersion yields ErrVersionConflict and changes nothing.
func (s *Store) SaveOrder(ctx context.Context, order *models.Order, expectedVersion int64) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET
			state = $1, driver_id = $2, cancel_reason = $3,
			confirmed_at = $4, priced_at = $5, assigned_at = $6,
			delivered_at = $7, completed_at = $8, cancelled_at = $9,
			version = version + 1
		WHERE id = $10 AND version = $11`,
		order.State, order.DriverID, order.CancelReason,
		order.ConfirmedAt, order.PricedAt, order.AssignedAt,
		order.DeliveredAt, order.CompletedAt, order.CancelledAt,
		order.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err = tx.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", order.ID); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("order %s: %w", order.ID, ErrNotFound)
		}
		return fmt.Errorf("order %s at version %d: %w", order.ID, expectedVersion, ErrVersionConflict)
	}

	for _, line := range order.Lines {
		if !line.Priced() {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE order_lines SET cost_price = $1, sell_price = $2
			WHERE order_id = $3 AND product_id = $4`,
			line.CostPrice, line.SellPrice, line.OrderID, line.ProductID)
		if err != nil {
			return fmt.Errorf("failed to update order line: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	order.Version = expectedVersion + 1
	return nil
}

// ListConfirmedOrders retrieves every order currently in CONFIRMED with its
// lines, for the purchasing worksheet. Always a fresh read, never cached.
func (s *Store) ListConfirmedOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE state = $1 ORDER BY placed_at", models.StateConfirmed)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	query, args, err := sqlx.In("SELECT * FROM order_lines WHERE order_id IN (?) ORDER BY product_id", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var lines []models.OrderLine
	if err := s.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, err
	}

	byOrder := make(map[uuid.UUID][]models.OrderLine, len(orders))
	for _, line := range lines {
		byOrder[line.OrderID] = append(byOrder[line.OrderID], line)
	}
	for i := range orders {
		orders[i].Lines = byOrder[orders[i].ID]
	}
	return orders, nil
}

// ListOrdersByClient retrieves a client's orders, newest first
func (s *Store) ListOrdersByClient(ctx context.Context, clientID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE client_id = $1 ORDER BY placed_at DESC", clientID)
	return orders, err
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"larder/internal/domain"
)

const orderItemColumns = `id, order_id, product_id, quantity, unit_price, returned_quantity, status`

type MySQLOrderItemRepository struct {
	db *sqlx.DB
}

func NewMySQLOrderItemRepository(db *sqlx.DB) *MySQLOrderItemRepository {
	return &MySQLOrderItemRepository{db: db}
}

func (r *MySQLOrderItemRepository) Insert(ctx context.Context, tx *sqlx.Tx, item domain.OrderItem) (uint, error) {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, returned_quantity, status)
		VALUES (:order_id, :product_id, :quantity, :unit_price, :returned_quantity, :status)
	`

	result, err := tx.NamedExecContext(ctx, query, item)
	if err != nil {
		return 0, fmt.Errorf("inserting order item: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLOrderItemRepository) FindByOrder(ctx context.Context, orderID uint) ([]domain.OrderItem, error) {
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = ? ORDER BY id`

	var items []domain.OrderItem
	if err := r.db.SelectContext(ctx, &items, query, orderID); err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}

	return items, nil
}

func (r *MySQLOrderItemRepository) FindByOrderForUpdate(ctx context.Context, tx *sqlx.Tx, orderID uint) ([]domain.OrderItem, error) {
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = ? ORDER BY id FOR UPDATE`

	var items []domain.OrderItem
	if err := tx.SelectContext(ctx, &items, query, orderID); err != nil {
		return nil, fmt.Errorf("locking order items: %w", err)
	}

	return items, nil
}

func (r *MySQLOrderItemRepository) UpdateReturned(ctx context.Context, tx *sqlx.Tx, item domain.OrderItem) error {
	query := `UPDATE order_items SET returned_quantity = ?, status = ? WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, item.ReturnedQuantity, string(item.Status), item.ID)
	if err != nil {
		return fmt.Errorf("updating returned quantity: %w", err)
	}

	return expectRow(result, "order item", item.ID)
}

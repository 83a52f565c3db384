package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"larder/internal/domain"
)

type MySQLAllocationRepository struct {
	db *sqlx.DB
}

func NewMySQLAllocationRepository(db *sqlx.DB) *MySQLAllocationRepository {
	return &MySQLAllocationRepository{db: db}
}

func (r *MySQLAllocationRepository) Insert(ctx context.Context, tx *sqlx.Tx, a domain.Allocation) (uint, error) {
	query := `
		INSERT INTO order_item_batches (order_item_id, batch_id, product_id, quantity, unit_cost, fulfilled, returned_quantity)
		VALUES (:order_item_id, :batch_id, :product_id, :quantity, :unit_cost, :fulfilled, :returned_quantity)
	`

	result, err := tx.NamedExecContext(ctx, query, a)
	if err != nil {
		return 0, fmt.Errorf("inserting allocation: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

// FindByOrderForUpdate returns every allocation of the order's items in the
// order they were reserved.
func (r *MySQLAllocationRepository) FindByOrderForUpdate(ctx context.Context, tx *sqlx.Tx, orderID uint) ([]domain.Allocation, error) {
	query := `
		SELECT a.id, a.order_item_id, a.batch_id, a.product_id, a.quantity, a.unit_cost, a.fulfilled, a.returned_quantity
		FROM order_item_batches a
		JOIN order_items i ON i.id = a.order_item_id
		WHERE i.order_id = ?
		ORDER BY a.id
		FOR UPDATE
	`

	var allocations []domain.Allocation
	if err := tx.SelectContext(ctx, &allocations, query, orderID); err != nil {
		return nil, fmt.Errorf("locking allocations: %w", err)
	}

	return allocations, nil
}

func (r *MySQLAllocationRepository) MarkFulfilled(ctx context.Context, tx *sqlx.Tx, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`UPDATE order_item_batches SET fulfilled = 1 WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("building fulfillment query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("marking allocations fulfilled: %w", err)
	}

	return nil
}

func (r *MySQLAllocationRepository) UpdateReturned(ctx context.Context, tx *sqlx.Tx, id uint, returnedQuantity int) error {
	query := `UPDATE order_item_batches SET returned_quantity = ? WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, returnedQuantity, id)
	if err != nil {
		return fmt.Errorf("updating allocation returns: %w", err)
	}

	return expectRow(result, "allocation", id)
}

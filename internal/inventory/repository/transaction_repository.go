package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"larder/internal/domain"
)

type MySQLTransactionRepository struct {
	db *sqlx.DB
}

func NewMySQLTransactionRepository(db *sqlx.DB) *MySQLTransactionRepository {
	return &MySQLTransactionRepository{db: db}
}

func (r *MySQLTransactionRepository) Insert(ctx context.Context, tx *sqlx.Tx, t domain.InventoryTransaction) (uint, error) {
	query := `
		INSERT INTO inventory_transactions (batch_id, product_id, order_id, quantity_change, reserved_change,
		                                    cost_price, transaction_type, reason, expiry_date_snapshot,
		                                    batch_number_snapshot, created_at)
		VALUES (:batch_id, :product_id, :order_id, :quantity_change, :reserved_change,
		        :cost_price, :transaction_type, :reason, :expiry_date_snapshot,
		        :batch_number_snapshot, :created_at)
	`

	result, err := tx.NamedExecContext(ctx, query, t)
	if err != nil {
		return 0, fmt.Errorf("inserting inventory transaction: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLTransactionRepository) ListByProduct(ctx context.Context, productID uint, limit int) ([]domain.InventoryTransaction, error) {
	query := `
		SELECT id, batch_id, product_id, order_id, quantity_change, reserved_change, cost_price,
		       transaction_type, reason, expiry_date_snapshot, batch_number_snapshot, created_at
		FROM inventory_transactions
		WHERE product_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	var txns []domain.InventoryTransaction
	if err := r.db.SelectContext(ctx, &txns, query, productID, limit); err != nil {
		return nil, fmt.Errorf("querying inventory transactions: %w", err)
	}

	return txns, nil
}

func (r *MySQLTransactionRepository) ListByOrder(ctx context.Context, orderID uint) ([]domain.InventoryTransaction, error) {
	query := `
		SELECT id, batch_id, product_id, order_id, quantity_change, reserved_change, cost_price,
		       transaction_type, reason, expiry_date_snapshot, batch_number_snapshot, created_at
		FROM inventory_transactions
		WHERE order_id = ?
		ORDER BY id
	`

	var txns []domain.InventoryTransaction
	if err := r.db.SelectContext(ctx, &txns, query, orderID); err != nil {
		return nil, fmt.Errorf("querying inventory transactions by order: %w", err)
	}

	return txns, nil
}

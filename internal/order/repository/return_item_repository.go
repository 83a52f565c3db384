package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"larder/internal/domain"
)

type MySQLReturnItemRepository struct {
	db *sqlx.DB
}

func NewMySQLReturnItemRepository(db *sqlx.DB) *MySQLReturnItemRepository {
	return &MySQLReturnItemRepository{db: db}
}

func (r *MySQLReturnItemRepository) Insert(ctx context.Context, tx *sqlx.Tx, item domain.ReturnItem) (uint, error) {
	query := `
		INSERT INTO return_items (order_item_id, quantity, reason, restock, created_at)
		VALUES (:order_item_id, :quantity, :reason, :restock, :created_at)
	`

	result, err := tx.NamedExecContext(ctx, query, item)
	if err != nil {
		return 0, fmt.Errorf("inserting return item: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLReturnItemRepository) FindByOrderItem(ctx context.Context, orderItemID uint) ([]domain.ReturnItem, error) {
	query := `
		SELECT id, order_item_id, quantity, reason, restock, created_at
		FROM return_items
		WHERE order_item_id = ?
		ORDER BY id
	`

	var items []domain.ReturnItem
	if err := r.db.SelectContext(ctx, &items, query, orderItemID); err != nil {
		return nil, fmt.Errorf("querying return items: %w", err)
	}

	return items, nil
}

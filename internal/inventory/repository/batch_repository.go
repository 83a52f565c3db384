package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"larder/internal/domain"
	apperrors "larder/internal/errors"
)

const batchColumns = `id, product_id, quantity, reserved_quantity, unit_cost, expiry_date, batch_number,
	minimum_alert_quantity, is_active, created_at, updated_at`

type MySQLBatchRepository struct {
	db *sqlx.DB
}

func NewMySQLBatchRepository(db *sqlx.DB) *MySQLBatchRepository {
	return &MySQLBatchRepository{db: db}
}

func (r *MySQLBatchRepository) FindByID(ctx context.Context, id uint) (*domain.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM inventory_batches WHERE id = ?`

	var batch domain.Batch
	err := r.db.GetContext(ctx, &batch, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewBatchNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying batch by id: %w", err)
	}

	return &batch, nil
}

func (r *MySQLBatchRepository) FindByProduct(ctx context.Context, productID uint) ([]domain.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM inventory_batches WHERE product_id = ? ORDER BY id`

	var batches []domain.Batch
	if err := r.db.SelectContext(ctx, &batches, query, productID); err != nil {
		return nil, fmt.Errorf("querying batches by product: %w", err)
	}

	return batches, nil
}

func (r *MySQLBatchRepository) FindByProducts(ctx context.Context, productIDs []uint) ([]domain.Batch, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+batchColumns+` FROM inventory_batches WHERE product_id IN (?) ORDER BY id`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("building batches query: %w", err)
	}

	var batches []domain.Batch
	if err := r.db.SelectContext(ctx, &batches, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying batches by products: %w", err)
	}

	return batches, nil
}

// FindByProductForUpdate locks all batch rows of a product until tx ends.
func (r *MySQLBatchRepository) FindByProductForUpdate(ctx context.Context, tx *sqlx.Tx, productID uint) ([]domain.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM inventory_batches WHERE product_id = ? ORDER BY id FOR UPDATE`

	var batches []domain.Batch
	if err := tx.SelectContext(ctx, &batches, query, productID); err != nil {
		return nil, fmt.Errorf("locking batches by product: %w", err)
	}

	return batches, nil
}

func (r *MySQLBatchRepository) FindByIDsForUpdate(ctx context.Context, tx *sqlx.Tx, ids []uint) ([]domain.Batch, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+batchColumns+` FROM inventory_batches WHERE id IN (?) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("building batch lock query: %w", err)
	}

	var batches []domain.Batch
	if err := tx.SelectContext(ctx, &batches, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("locking batches by id: %w", err)
	}

	return batches, nil
}

func (r *MySQLBatchRepository) Insert(ctx context.Context, tx *sqlx.Tx, batch domain.Batch) (uint, error) {
	query := `
		INSERT INTO inventory_batches (product_id, quantity, reserved_quantity, unit_cost, expiry_date,
		                               batch_number, minimum_alert_quantity, is_active)
		VALUES (:product_id, :quantity, :reserved_quantity, :unit_cost, :expiry_date,
		        :batch_number, :minimum_alert_quantity, :is_active)
	`

	result, err := tx.NamedExecContext(ctx, query, batch)
	if err != nil {
		return 0, fmt.Errorf("inserting batch: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

// UpdateQuantities writes quantity and reserved_quantity. The table's CHECK
// constraint rejects any write breaking 0 <= reserved <= quantity.
func (r *MySQLBatchRepository) UpdateQuantities(ctx context.Context, tx *sqlx.Tx, batch domain.Batch) error {
	query := `UPDATE inventory_batches SET quantity = ?, reserved_quantity = ? WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, batch.Quantity, batch.ReservedQuantity, batch.ID)
	if err != nil {
		return fmt.Errorf("updating batch quantities: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewBatchNotFoundError(batch.ID)
	}

	return nil
}

func (r *MySQLBatchRepository) SetActive(ctx context.Context, tx *sqlx.Tx, id uint, active bool) error {
	result, err := tx.ExecContext(ctx, `UPDATE inventory_batches SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("updating batch status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewBatchNotFoundError(id)
	}

	return nil
}

func (r *MySQLBatchRepository) FindLowStock(ctx context.Context) ([]domain.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM inventory_batches
		WHERE is_active = 1 AND quantity - reserved_quantity <= minimum_alert_quantity
		ORDER BY product_id, id
	`

	var batches []domain.Batch
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, fmt.Errorf("querying low stock batches: %w", err)
	}

	return batches, nil
}

func (r *MySQLBatchRepository) FindExpiringBefore(ctx context.Context, until time.Time) ([]domain.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM inventory_batches
		WHERE is_active = 1 AND quantity > 0 AND expiry_date IS NOT NULL AND expiry_date <= ?
		ORDER BY expiry_date, id
	`

	var batches []domain.Batch
	if err := r.db.SelectContext(ctx, &batches, query, until); err != nil {
		return nil, fmt.Errorf("querying expiring batches: %w", err)
	}

	return batches, nil
}

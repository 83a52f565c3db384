package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"larder/internal/domain"
	apperrors "larder/internal/errors"
	"larder/internal/infrastructure/mysql"
)

const orderColumns = `id, client_id, client_name, status, order_source, delivery_method, address_details,
	latitude, longitude, total_amount, cost_price, delivery_id, idempotency_key, created_at, updated_at`

type MySQLOrderRepository struct {
	db *sqlx.DB
}

func NewMySQLOrderRepository(db *sqlx.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

// Insert stores a new order. A reused idempotency key surfaces as a
// ConflictError from the unique index.
func (r *MySQLOrderRepository) Insert(ctx context.Context, tx *sqlx.Tx, order domain.Order) (uint, error) {
	query := `
		INSERT INTO orders (client_id, client_name, status, order_source, delivery_method, address_details,
		                    latitude, longitude, total_amount, cost_price, delivery_id, idempotency_key,
		                    created_at, updated_at)
		VALUES (:client_id, :client_name, :status, :order_source, :delivery_method, :address_details,
		        :latitude, :longitude, :total_amount, :cost_price, :delivery_id, :idempotency_key,
		        :created_at, :updated_at)
	`

	result, err := tx.NamedExecContext(ctx, query, order)
	if mysql.IsDuplicateEntry(err) {
		return 0, apperrors.NewConflictError("an order with this idempotency key already exists")
	}
	if err != nil {
		return 0, fmt.Errorf("inserting order: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, id uint) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	var order domain.Order
	err := r.db.GetContext(ctx, &order, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewEntityNotFoundError("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by id: %w", err)
	}

	return &order, nil
}

func (r *MySQLOrderRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uint) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ? FOR UPDATE`

	var order domain.Order
	err := tx.GetContext(ctx, &order, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewEntityNotFoundError("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("locking order: %w", err)
	}

	return &order, nil
}

func (r *MySQLOrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = ?`

	var order domain.Order
	err := r.db.GetContext(ctx, &order, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order with idempotency key %q not found", key))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by idempotency key: %w", err)
	}

	return &order, nil
}

func (r *MySQLOrderRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id uint, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = ? WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}

	return expectRow(result, "order", id)
}

func (r *MySQLOrderRepository) UpdateDelivery(ctx context.Context, tx *sqlx.Tx, id uint, deliveryID *uint) error {
	query := `UPDATE orders SET delivery_id = ? WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, deliveryID, id)
	if err != nil {
		return fmt.Errorf("updating order delivery: %w", err)
	}

	return expectRow(result, "order", id)
}

func expectRow(result sql.Result, entity string, id uint) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewEntityNotFoundError(entity, id)
	}

	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"larder/internal/domain"
	apperrors "larder/internal/errors"
)

type MySQLDeliveryRepository struct {
	db *sqlx.DB
}

func NewMySQLDeliveryRepository(db *sqlx.DB) *MySQLDeliveryRepository {
	return &MySQLDeliveryRepository{db: db}
}

func (r *MySQLDeliveryRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uint) (*domain.Delivery, error) {
	query := `SELECT id, name, status FROM deliveries WHERE id = ? FOR UPDATE`

	var delivery domain.Delivery
	err := tx.GetContext(ctx, &delivery, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewEntityNotFoundError("delivery", id)
	}
	if err != nil {
		return nil, fmt.Errorf("locking delivery: %w", err)
	}

	return &delivery, nil
}

func (r *MySQLDeliveryRepository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id uint, status domain.DeliveryStatus) error {
	result, err := tx.ExecContext(ctx, `UPDATE deliveries SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating delivery status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewEntityNotFoundError("delivery", id)
	}

	return nil
}

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

const damagedGoodsColumns = `id, product_id, inventory_batch_id, return_item_id, quantity, reason, source, created_at`

type MySQLDamagedGoodsRepository struct {
	db *sqlx.DB
}

func NewMySQLDamagedGoodsRepository(db *sqlx.DB) *MySQLDamagedGoodsRepository {
	return &MySQLDamagedGoodsRepository{db: db}
}

func (r *MySQLDamagedGoodsRepository) Insert(ctx context.Context, tx *sqlx.Tx, dg domain.DamagedGoods) (uint, error) {
	query := `
		INSERT INTO damaged_goods (product_id, inventory_batch_id, return_item_id, quantity, reason, source, created_at)
		VALUES (:product_id, :inventory_batch_id, :return_item_id, :quantity, :reason, :source, :created_at)
	`

	result, err := tx.NamedExecContext(ctx, query, dg)
	if err != nil {
		return 0, fmt.Errorf("inserting damaged goods: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLDamagedGoodsRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uint) (*domain.DamagedGoods, error) {
	query := `SELECT ` + damagedGoodsColumns + ` FROM damaged_goods WHERE id = ? FOR UPDATE`

	var dg domain.DamagedGoods
	err := tx.GetContext(ctx, &dg, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewEntityNotFoundError("damaged goods", id)
	}
	if err != nil {
		return nil, fmt.Errorf("locking damaged goods: %w", err)
	}

	return &dg, nil
}

func (r *MySQLDamagedGoodsRepository) Delete(ctx context.Context, tx *sqlx.Tx, id uint) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM damaged_goods WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting damaged goods: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewEntityNotFoundError("damaged goods", id)
	}

	return nil
}

func (r *MySQLDamagedGoodsRepository) ListByProduct(ctx context.Context, productID uint) ([]domain.DamagedGoods, error) {
	query := `SELECT ` + damagedGoodsColumns + ` FROM damaged_goods WHERE product_id = ? ORDER BY id`

	var records []domain.DamagedGoods
	if err := r.db.SelectContext(ctx, &records, query, productID); err != nil {
		return nil, fmt.Errorf("querying damaged goods: %w", err)
	}

	return records, nil
}

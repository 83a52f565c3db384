package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"larder/internal/domain"
	apperrors "larder/internal/errors"
)

// adjustmentRow is the persisted form of domain.Adjustment; the source
// variant is split into a kind column and a nullable record ID.
type adjustmentRow struct {
	ID             uint            `db:"id"`
	Kind           string          `db:"kind"`
	Amount         decimal.Decimal `db:"amount"`
	Reason         string          `db:"reason"`
	Date           time.Time       `db:"date"`
	SourceKind     string          `db:"source_kind"`
	DamagedGoodsID *uint           `db:"damaged_goods_id"`
}

func toRow(a domain.Adjustment) adjustmentRow {
	row := adjustmentRow{
		ID:         a.ID,
		Kind:       string(a.Kind),
		Amount:     a.Amount,
		Reason:     a.Reason,
		Date:       a.Date,
		SourceKind: string(a.Source.Kind()),
	}
	if id, ok := a.Source.DamagedGoodsID(); ok {
		row.DamagedGoodsID = &id
	}
	return row
}

func (r adjustmentRow) toDomain() domain.Adjustment {
	return domain.Adjustment{
		ID:     r.ID,
		Kind:   domain.AdjustmentKind(r.Kind),
		Amount: r.Amount,
		Reason: r.Reason,
		Date:   r.Date,
		Source: domain.SourceFromColumns(r.SourceKind, r.DamagedGoodsID),
	}
}

const adjustmentColumns = `id, kind, amount, reason, date, source_kind, damaged_goods_id`

type MySQLAdjustmentRepository struct {
	db *sqlx.DB
}

func NewMySQLAdjustmentRepository(db *sqlx.DB) *MySQLAdjustmentRepository {
	return &MySQLAdjustmentRepository{db: db}
}

func (r *MySQLAdjustmentRepository) Insert(ctx context.Context, tx *sqlx.Tx, a domain.Adjustment) (uint, error) {
	query := `
		INSERT INTO adjustments (kind, amount, reason, date, source_kind, damaged_goods_id)
		VALUES (:kind, :amount, :reason, :date, :source_kind, :damaged_goods_id)
	`

	result, err := tx.NamedExecContext(ctx, query, toRow(a))
	if err != nil {
		return 0, fmt.Errorf("inserting adjustment: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLAdjustmentRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uint) (*domain.Adjustment, error) {
	query := `SELECT ` + adjustmentColumns + ` FROM adjustments WHERE id = ? FOR UPDATE`

	var row adjustmentRow
	err := tx.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewEntityNotFoundError("adjustment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("locking adjustment: %w", err)
	}

	a := row.toDomain()
	return &a, nil
}

func (r *MySQLAdjustmentRepository) FindByDamagedGoods(ctx context.Context, tx *sqlx.Tx, damagedGoodsID uint) ([]domain.Adjustment, error) {
	query := `SELECT ` + adjustmentColumns + ` FROM adjustments WHERE source_kind = ? AND damaged_goods_id = ? FOR UPDATE`

	var rows []adjustmentRow
	if err := tx.SelectContext(ctx, &rows, query, string(domain.SourceDamagedGoods), damagedGoodsID); err != nil {
		return nil, fmt.Errorf("querying adjustments by damaged goods: %w", err)
	}

	out := make([]domain.Adjustment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *MySQLAdjustmentRepository) Update(ctx context.Context, tx *sqlx.Tx, a domain.Adjustment) error {
	query := `
		UPDATE adjustments
		SET kind = :kind, amount = :amount, reason = :reason, date = :date
		WHERE id = :id
	`

	result, err := tx.NamedExecContext(ctx, query, toRow(a))
	if err != nil {
		return fmt.Errorf("updating adjustment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewEntityNotFoundError("adjustment", a.ID)
	}

	return nil
}

func (r *MySQLAdjustmentRepository) Delete(ctx context.Context, tx *sqlx.Tx, id uint) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM adjustments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting adjustment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewEntityNotFoundError("adjustment", id)
	}

	return nil
}

func (r *MySQLAdjustmentRepository) List(ctx context.Context, filter domain.AdjustmentFilter) ([]domain.Adjustment, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Kind != nil {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(*filter.Kind))
	}
	if filter.From != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, *filter.To)
	}

	query := `SELECT ` + adjustmentColumns + ` FROM adjustments`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY date, id`

	var rows []adjustmentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying adjustments: %w", err)
	}

	out := make([]domain.Adjustment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

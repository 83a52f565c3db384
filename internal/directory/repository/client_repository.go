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

type MySQLClientRepository struct {
	db *sqlx.DB
}

func NewMySQLClientRepository(db *sqlx.DB) *MySQLClientRepository {
	return &MySQLClientRepository{db: db}
}

func (r *MySQLClientRepository) FindByID(ctx context.Context, id uint) (*domain.Client, error) {
	query := `SELECT id, name, suspended FROM clients WHERE id = ?`

	var client domain.Client
	err := r.db.GetContext(ctx, &client, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewEntityNotFoundError("client", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying client by id: %w", err)
	}

	return &client, nil
}

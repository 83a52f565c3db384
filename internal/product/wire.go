package product

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	inventoryrepo "larder/internal/inventory/repository"
	"larder/internal/product/repository"
)

func NewModule(db *sqlx.DB, logger *zap.Logger) *Controller {
	repo := repository.NewMySQLRepository(db)
	batches := inventoryrepo.NewMySQLBatchRepository(db)
	svc := NewService(repo, batches)
	uc := NewSearchUseCase(svc)
	return NewController(uc, logger)
}

package controller

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"larder/internal/inventory/repository"
	"larder/internal/inventory/service"
	productrepo "larder/internal/product/repository"
)

func NewModule(db *sqlx.DB, txm service.TransactionManager, adjustments service.AdjustmentRecorder, logger *zap.Logger) *InventoryController {
	ledger := service.NewLedgerService(
		txm,
		productrepo.NewMySQLRepository(db),
		repository.NewMySQLBatchRepository(db),
		repository.NewMySQLTransactionRepository(db),
		repository.NewMySQLDamagedGoodsRepository(db),
		adjustments,
		logger,
	)
	return NewInventoryController(ledger, logger)
}

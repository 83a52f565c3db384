package order

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"larder/internal/config"
	directoryrepo "larder/internal/directory/repository"
	inventoryrepo "larder/internal/inventory/repository"
	"larder/internal/order/controller"
	orderrepo "larder/internal/order/repository"
	"larder/internal/order/service"
	"larder/internal/order/usecase"
	productrepo "larder/internal/product/repository"
)

func NewModule(
	db *sqlx.DB,
	txm service.TransactionManager,
	cfg *config.Config,
	idempotency usecase.IdempotencyStore,
	adjustments service.AdjustmentRecorder,
	logger *zap.Logger,
) *controller.OrderController {
	orderSvc := service.NewOrderService(
		txm,
		service.Repositories{
			Products:     productrepo.NewMySQLRepository(db),
			Clients:      directoryrepo.NewMySQLClientRepository(db),
			Deliveries:   directoryrepo.NewMySQLDeliveryRepository(db),
			Orders:       orderrepo.NewMySQLOrderRepository(db),
			Items:        orderrepo.NewMySQLOrderItemRepository(db),
			Allocations:  orderrepo.NewMySQLAllocationRepository(db),
			Returns:      orderrepo.NewMySQLReturnItemRepository(db),
			Batches:      inventoryrepo.NewMySQLBatchRepository(db),
			Transactions: inventoryrepo.NewMySQLTransactionRepository(db),
			DamagedGoods: inventoryrepo.NewMySQLDamagedGoodsRepository(db),
		},
		adjustments,
		logger,
	)

	uc := usecase.NewOrderUseCase(
		orderSvc,
		idempotency,
		logger,
		cfg.Order.MaxRetryAttempts,
	)

	return controller.NewOrderController(uc, logger, cfg.Order.MaxCartItems)
}

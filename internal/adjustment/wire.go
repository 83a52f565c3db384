package adjustment

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"larder/internal/adjustment/controller"
	"larder/internal/adjustment/repository"
	"larder/internal/adjustment/service"
)

// Module exposes the service so stock-side modules can book losses in their
// own transactions.
type Module struct {
	Service    *service.AdjustmentService
	Controller *controller.AdjustmentController
}

func NewModule(db *sqlx.DB, txm service.TransactionManager, logger *zap.Logger) *Module {
	svc := service.NewAdjustmentService(txm, repository.NewMySQLAdjustmentRepository(db), logger)
	return &Module{
		Service:    svc,
		Controller: controller.NewAdjustmentController(svc, logger),
	}
}

package product

import (
	"net/http"

	"go.uber.org/zap"

	"larder/internal/commons"
)

type Controller struct {
	useCase SearchUseCase
	logger  *zap.Logger
}

func NewController(useCase SearchUseCase, logger *zap.Logger) *Controller {
	return &Controller{
		useCase: useCase,
		logger:  logger,
	}
}

func (c *Controller) HandleSearchProducts(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	var req SearchProductsRequest
	if err := commons.DecodeAndValidate(r, &req); err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	resp, err := c.useCase.SearchProducts(r.Context(), req)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, resp)
}

func (c *Controller) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	id, err := commons.IDParam(r, "productId")
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	p, err := c.useCase.GetProduct(r.Context(), id)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, p)
}

package controller

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"larder/internal/commons"
	"larder/internal/domain"
	"larder/internal/dto"
	"larder/internal/order/service"
)

const idempotencyHeader = "Idempotency-Key"

type OrderUseCase interface {
	PlaceOrder(ctx context.Context, in service.CreateOrderInput, key string) (*domain.Order, bool, error)
	Get(ctx context.Context, orderID uint) (*domain.Order, error)
	Confirm(ctx context.Context, orderID uint) (*domain.Order, error)
	Cancel(ctx context.Context, orderID uint) (*domain.Order, error)
	AssignDelivery(ctx context.Context, orderID, deliveryID uint) (*domain.Order, error)
	Ship(ctx context.Context, orderID uint) (*domain.Order, error)
	Deliver(ctx context.Context, orderID uint) (*domain.Order, error)
	Complete(ctx context.Context, orderID uint) (*domain.Order, error)
	Return(ctx context.Context, orderID uint, in service.ReturnInput) (*domain.Order, error)
}

type OrderController struct {
	useCase      OrderUseCase
	logger       *zap.Logger
	maxCartItems int
}

func NewOrderController(useCase OrderUseCase, logger *zap.Logger, maxCartItems int) *OrderController {
	return &OrderController{
		useCase:      useCase,
		logger:       logger,
		maxCartItems: maxCartItems,
	}
}

func (c *OrderController) Create(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	var req dto.CreateOrderRequest
	if err := commons.DecodeAndValidate(r, &req); err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	entries, err := req.Cart.Entries(c.maxCartItems)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	in := service.CreateOrderInput{
		ClientID:       req.ClientID,
		ClientName:     req.ClientName,
		OrderSource:    domain.OrderSource(req.OrderSource),
		DeliveryMethod: domain.DeliveryMethod(req.DeliveryMethod),
		AddressDetails: req.AddressDetails,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		Items:          entries,
	}

	order, replayed, err := c.useCase.PlaceOrder(r.Context(), in, r.Header.Get(idempotencyHeader))
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	commons.WriteJSON(w, logger, status, dto.NewOrderResponse(traceID, order))
}

func (c *OrderController) Get(w http.ResponseWriter, r *http.Request) {
	c.handle(w, r, c.useCase.Get)
}

func (c *OrderController) Confirm(w http.ResponseWriter, r *http.Request) {
	c.handle(w, r, c.useCase.Confirm)
}

func (c *OrderController) Cancel(w http.ResponseWriter, r *http.Request) {
	c.handle(w, r, c.useCase.Cancel)
}

func (c *OrderController) Ship(w http.ResponseWriter, r *http.Request) {
	c.handle(w, r, c.useCase.Ship)
}

func (c *OrderController) Deliver(w http.ResponseWriter, r *http.Request) {
	c.handle(w, r, c.useCase.Deliver)
}

func (c *OrderController) Complete(w http.ResponseWriter, r *http.Request) {
	c.handle(w, r, c.useCase.Complete)
}

func (c *OrderController) AssignDelivery(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	orderID, err := commons.IDParam(r, "orderId")
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	var req dto.AssignDeliveryRequest
	if err := commons.DecodeAndValidate(r, &req); err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	order, err := c.useCase.AssignDelivery(r.Context(), orderID, req.DeliveryID)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, dto.NewOrderResponse(traceID, order))
}

func (c *OrderController) Return(w http.ResponseWriter, r *http.Request) {
	traceID, logger := commons.NewTrace(c.logger)

	orderID, err := commons.IDParam(r, "orderId")
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	var req dto.ReturnRequest
	if err := commons.DecodeAndValidate(r, &req); err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	order, err := c.useCase.Return(r.Context(), orderID, service.ReturnInput{
		OrderItemID: req.OrderItemID,
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		Restock:     req.Restock,
	})
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, dto.NewOrderResponse(traceID, order))
}

// handle serves the body-less order actions addressed by {orderId}.
func (c *OrderController) handle(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, orderID uint) (*domain.Order, error)) {
	traceID, logger := commons.NewTrace(c.logger)

	orderID, err := commons.IDParam(r, "orderId")
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	order, err := action(r.Context(), orderID)
	if err != nil {
		commons.WriteError(w, logger, traceID, err)
		return
	}

	commons.WriteJSON(w, logger, http.StatusOK, dto.NewOrderResponse(traceID, order))
}

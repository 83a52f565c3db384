package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"larder/internal/domain"
	"larder/internal/dto"
	apperrors "larder/internal/errors"
	"larder/internal/infrastructure/metrics"
	"larder/internal/inventory"
)

type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error
}

type ProductRepository interface {
	FindByIDs(ctx context.Context, ids []uint) ([]domain.Product, error)
}

type ClientRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.Client, error)
}

type DeliveryRepository interface {
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uint) (*domain.Delivery, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id uint, status domain.DeliveryStatus) error
}

type OrderRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, order domain.Order) (uint, error)
	FindByID(ctx context.Context, id uint) (*domain.Order, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id uint) (*domain.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id uint, status domain.OrderStatus) error
	UpdateDelivery(ctx context.Context, tx *sqlx.Tx, id uint, deliveryID *uint) error
}

type OrderItemRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, item domain.OrderItem) (uint, error)
	FindByOrder(ctx context.Context, orderID uint) ([]domain.OrderItem, error)
	FindByOrderForUpdate(ctx context.Context, tx *sqlx.Tx, orderID uint) ([]domain.OrderItem, error)
	UpdateReturned(ctx context.Context, tx *sqlx.Tx, item domain.OrderItem) error
}

type AllocationRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, a domain.Allocation) (uint, error)
	FindByOrderForUpdate(ctx context.Context, tx *sqlx.Tx, orderID uint) ([]domain.Allocation, error)
	MarkFulfilled(ctx context.Context, tx *sqlx.Tx, ids []uint) error
	UpdateReturned(ctx context.Context, tx *sqlx.Tx, id uint, returnedQuantity int) error
}

type ReturnItemRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, item domain.ReturnItem) (uint, error)
}

type DamagedGoodsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, dg domain.DamagedGoods) (uint, error)
}

type AdjustmentRecorder interface {
	RecordDamageLossInTx(ctx context.Context, tx *sqlx.Tx, damagedGoodsID uint, amount decimal.Decimal, reason string) (*domain.Adjustment, error)
}

// Repositories groups the stores the order service reads and writes.
type Repositories struct {
	Products     ProductRepository
	Clients      ClientRepository
	Deliveries   DeliveryRepository
	Orders       OrderRepository
	Items        OrderItemRepository
	Allocations  AllocationRepository
	Returns      ReturnItemRepository
	Batches      inventory.BatchStore
	Transactions inventory.TransactionStore
	DamagedGoods DamagedGoodsRepository
}

type CreateOrderInput struct {
	ClientID       *uint
	ClientName     *string
	OrderSource    domain.OrderSource
	DeliveryMethod domain.DeliveryMethod
	AddressDetails string
	Latitude       *float64
	Longitude      *float64
	Items          []dto.CartEntry
	IdempotencyKey *string
}

type ReturnInput struct {
	OrderItemID uint
	Quantity    int
	Reason      string
	Restock     bool
}

const (
	ActionCreate         = "create"
	ActionConfirm        = "confirm"
	ActionCancel         = "cancel"
	ActionAssignDelivery = "assign delivery"
	ActionShip           = "ship"
	ActionDeliver        = "deliver"
	ActionComplete       = "complete"
	ActionReturn         = "return"
)

type OrderService struct {
	txm         TransactionManager
	repos       Repositories
	adjustments AdjustmentRecorder
	logger      *zap.Logger
	now         func() time.Time
}

func NewOrderService(
	txm TransactionManager,
	repos Repositories,
	adjustments AdjustmentRecorder,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		txm:         txm,
		repos:       repos,
		adjustments: adjustments,
		logger:      logger,
		now:         time.Now,
	}
}

// Create reserves every cart line and persists a pending order. All products
// are allocated in one transaction: a single shortfall leaves every batch as
// it was.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	s.logger.Info("create order started", zap.Int("itemCount", len(in.Items)))

	products, err := s.validateCreate(ctx, in)
	if err != nil {
		return nil, err
	}

	productIDs := make([]uint, 0, len(in.Items))
	units := 0
	for _, entry := range in.Items {
		productIDs = append(productIDs, entry.ProductID)
		units += entry.Quantity
	}

	var created *domain.Order
	err = s.txm.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		start := time.Now()
		defer metrics.ObserveTx("create_order", start)

		now := s.now()
		uow := inventory.NewUnitOfWork(tx, s.repos.Batches, s.repos.Transactions, now)
		if err := uow.LoadProducts(ctx, productIDs...); err != nil {
			return err
		}
		for _, entry := range in.Items {
			if sellable := uow.Sellable(entry.ProductID); sellable < entry.Quantity {
				return apperrors.NewInsufficientStockError(entry.ProductID, entry.Quantity, sellable)
			}
		}

		reservations := make([]*inventory.Reservation, 0, len(in.Items))
		total := decimal.Zero
		cost := decimal.Zero
		for _, entry := range in.Items {
			res, err := uow.Reserve(entry.ProductID, entry.Quantity, "order reservation")
			if err != nil {
				return err
			}
			reservations = append(reservations, res)
			total = total.Add(products[entry.ProductID].Price.Mul(decimal.NewFromInt(int64(entry.Quantity))))
			cost = cost.Add(res.Cost)
		}

		order := domain.Order{
			ClientID:       in.ClientID,
			ClientName:     in.ClientName,
			Status:         domain.OrderStatusPending,
			OrderSource:    in.OrderSource,
			DeliveryMethod: in.DeliveryMethod,
			AddressDetails: in.AddressDetails,
			Latitude:       in.Latitude,
			Longitude:      in.Longitude,
			TotalAmount:    total,
			CostPrice:      cost,
			IdempotencyKey: in.IdempotencyKey,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		orderID, err := s.repos.Orders.Insert(ctx, tx, order)
		if err != nil {
			return err
		}
		order.ID = orderID

		for i, entry := range in.Items {
			item := domain.OrderItem{
				OrderID:   orderID,
				ProductID: entry.ProductID,
				Quantity:  entry.Quantity,
				UnitPrice: products[entry.ProductID].Price,
				Status:    domain.OrderItemStatusNormal,
			}
			itemID, err := s.repos.Items.Insert(ctx, tx, item)
			if err != nil {
				return err
			}
			item.ID = itemID

			for _, pick := range reservations[i].Picks {
				_, err := s.repos.Allocations.Insert(ctx, tx, domain.Allocation{
					OrderItemID: itemID,
					BatchID:     pick.BatchID,
					ProductID:   entry.ProductID,
					Quantity:    pick.Quantity,
					UnitCost:    pick.UnitCost,
				})
				if err != nil {
					return err
				}
			}
			order.Items = append(order.Items, item)
		}

		uow.AttachOrder(orderID)
		if err := uow.Flush(ctx); err != nil {
			return err
		}

		created = &order
		return nil
	})
	metrics.ObserveReservation(err, units)
	metrics.ObserveTransition(ActionCreate, err)
	if err != nil {
		s.logger.Warn("create order failed", zap.Error(err))
		return nil, err
	}

	s.logger.Info("order created",
		zap.Uint("orderId", created.ID),
		zap.String("totalAmount", created.TotalAmount.StringFixed(2)),
		zap.String("costPrice", created.CostPrice.StringFixed(2)),
	)
	return created, nil
}

// validateCreate runs the checks that need no lock: cart shape, client
// standing, product existence and per-order caps.
func (s *OrderService) validateCreate(ctx context.Context, in CreateOrderInput) (map[uint]domain.Product, error) {
	if len(in.Items) == 0 {
		return nil, apperrors.NewValidationError("cart must not be empty",
			apperrors.ValidationDetail{Field: "cart", Message: "cart must contain at least one product"})
	}

	var details []apperrors.ValidationDetail
	seen := make(map[uint]struct{}, len(in.Items))
	for _, entry := range in.Items {
		if entry.Quantity <= 0 {
			details = append(details, apperrors.ValidationDetail{
				Field:   fmt.Sprintf("cart[%d].quantity", entry.ProductID),
				Message: "quantity must be greater than zero",
			})
		}
		if _, dup := seen[entry.ProductID]; dup {
			details = append(details, apperrors.ValidationDetail{
				Field:   fmt.Sprintf("cart[%d]", entry.ProductID),
				Message: "product must not be duplicated",
			})
		}
		seen[entry.ProductID] = struct{}{}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid cart", details...)
	}

	switch {
	case in.ClientID != nil && in.ClientName != nil:
		return nil, apperrors.NewValidationError("invalid client",
			apperrors.ValidationDetail{Field: "clientId", Message: "provide either clientId or clientName, not both"})
	case in.ClientID != nil:
		client, err := s.repos.Clients.FindByID(ctx, *in.ClientID)
		if err != nil {
			return nil, err
		}
		if client.Suspended {
			return nil, apperrors.NewForbiddenError(fmt.Sprintf("client %d is suspended", client.ID))
		}
	case in.ClientName == nil || *in.ClientName == "":
		return nil, apperrors.NewValidationError("invalid client",
			apperrors.ValidationDetail{Field: "clientName", Message: "clientName is required for orders without a client"})
	}

	ids := make([]uint, 0, len(in.Items))
	for _, entry := range in.Items {
		ids = append(ids, entry.ProductID)
	}
	found, err := s.repos.Products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	products := make(map[uint]domain.Product, len(found))
	for _, p := range found {
		products[p.ID] = p
	}

	for _, entry := range in.Items {
		p, ok := products[entry.ProductID]
		if !ok || !p.IsActive {
			return nil, apperrors.NewProductNotFoundError(entry.ProductID)
		}
		if p.ExceedsMaxOrder(entry.Quantity) {
			details = append(details, apperrors.ValidationDetail{
				Field:   fmt.Sprintf("cart[%d].quantity", entry.ProductID),
				Message: fmt.Sprintf("quantity exceeds the maximum of %d per order", p.MaxOrderQuantity),
			})
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("maximum order quantity exceeded", details...)
	}

	return products, nil
}

// Get returns the order with its items.
func (s *OrderService) Get(ctx context.Context, orderID uint) (*domain.Order, error) {
	order, err := s.repos.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.repos.Items.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *OrderService) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	order, err := s.repos.Orders.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, order.ID)
}

type transitionFunc func(ctx context.Context, tx *sqlx.Tx, order *domain.Order) error

// transition locks the order, checks the move against the state table, runs
// the side effects and stores the new status, all in one transaction.
func (s *OrderService) transition(ctx context.Context, orderID uint, action string, to domain.OrderStatus, effects transitionFunc) (*domain.Order, error) {
	err := s.txm.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		start := time.Now()
		defer metrics.ObserveTx(action, start)

		order, err := s.repos.Orders.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.IsValid() {
			return apperrors.NewInternalError(fmt.Sprintf("order %d has unknown status %q", orderID, order.Status), nil)
		}
		if !order.Status.CanTransitionTo(to) {
			return apperrors.NewInvalidTransitionError(action, order.Status.String())
		}
		if effects != nil {
			if err := effects(ctx, tx, order); err != nil {
				return err
			}
		}
		return s.repos.Orders.UpdateStatus(ctx, tx, orderID, to)
	})
	metrics.ObserveTransition(action, err)
	if err != nil {
		s.logger.Warn("order transition failed",
			zap.Uint("orderId", orderID),
			zap.String("action", action),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("order transitioned",
		zap.Uint("orderId", orderID),
		zap.String("action", action),
		zap.String("status", to.String()),
	)
	return s.Get(ctx, orderID)
}

func (s *OrderService) Confirm(ctx context.Context, orderID uint) (*domain.Order, error) {
	return s.transition(ctx, orderID, ActionConfirm, domain.OrderStatusConfirmed, nil)
}

// Cancel hands every reserved unit back to the batch it was taken from.
func (s *OrderService) Cancel(ctx context.Context, orderID uint) (*domain.Order, error) {
	return s.transition(ctx, orderID, ActionCancel, domain.OrderStatusCanceled, func(ctx context.Context, tx *sqlx.Tx, order *domain.Order) error {
		allocations, err := s.repos.Allocations.FindByOrderForUpdate(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		held := make([]domain.Allocation, 0, len(allocations))
		for _, a := range allocations {
			if !a.Fulfilled {
				held = append(held, a)
			}
		}

		uow := inventory.NewUnitOfWork(tx, s.repos.Batches, s.repos.Transactions, s.now())
		if err := uow.LoadBatches(ctx, batchIDs(held)...); err != nil {
			return err
		}
		if err := uow.Release(held, "order canceled"); err != nil {
			return err
		}
		uow.AttachOrder(order.ID)
		if err := uow.Flush(ctx); err != nil {
			return err
		}

		return s.freeDelivery(ctx, tx, order)
	})
}

// AssignDelivery books an available delivery person for a confirmed order.
// The order status does not change.
func (s *OrderService) AssignDelivery(ctx context.Context, orderID, deliveryID uint) (*domain.Order, error) {
	err := s.txm.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		order, err := s.repos.Orders.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusConfirmed {
			return apperrors.NewInvalidTransitionError(ActionAssignDelivery, order.Status.String())
		}
		if order.DeliveryMethod == domain.DeliveryMethodPickup {
			return apperrors.NewValidationError("pickup orders take no delivery person",
				apperrors.ValidationDetail{Field: "deliveryId", Message: "order is picked up by the client"})
		}
		if order.DeliveryID != nil {
			return apperrors.NewConflictError(fmt.Sprintf("order %d already has delivery person %d", orderID, *order.DeliveryID))
		}

		delivery, err := s.repos.Deliveries.FindByIDForUpdate(ctx, tx, deliveryID)
		if err != nil {
			return err
		}
		if delivery.Status != domain.DeliveryAvailable {
			return apperrors.NewConflictError(fmt.Sprintf("delivery person %d is not available", deliveryID))
		}

		if err := s.repos.Deliveries.UpdateStatus(ctx, tx, deliveryID, domain.DeliveryBusy); err != nil {
			return err
		}
		return s.repos.Orders.UpdateDelivery(ctx, tx, orderID, &deliveryID)
	})
	metrics.ObserveTransition(ActionAssignDelivery, err)
	if err != nil {
		s.logger.Warn("assign delivery failed", zap.Uint("orderId", orderID), zap.Uint("deliveryId", deliveryID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("delivery assigned", zap.Uint("orderId", orderID), zap.Uint("deliveryId", deliveryID))
	return s.Get(ctx, orderID)
}

func (s *OrderService) Ship(ctx context.Context, orderID uint) (*domain.Order, error) {
	return s.transition(ctx, orderID, ActionShip, domain.OrderStatusShipped, nil)
}

// Deliver turns reservations into physical outflow: each allocation leaves
// its batch.
func (s *OrderService) Deliver(ctx context.Context, orderID uint) (*domain.Order, error) {
	return s.transition(ctx, orderID, ActionDeliver, domain.OrderStatusDelivered, func(ctx context.Context, tx *sqlx.Tx, order *domain.Order) error {
		allocations, err := s.repos.Allocations.FindByOrderForUpdate(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		pending := make([]domain.Allocation, 0, len(allocations))
		ids := make([]uint, 0, len(allocations))
		for _, a := range allocations {
			if !a.Fulfilled {
				pending = append(pending, a)
				ids = append(ids, a.ID)
			}
		}

		uow := inventory.NewUnitOfWork(tx, s.repos.Batches, s.repos.Transactions, s.now())
		if err := uow.LoadBatches(ctx, batchIDs(pending)...); err != nil {
			return err
		}
		if err := uow.Fulfill(pending, "order delivered"); err != nil {
			return err
		}
		uow.AttachOrder(order.ID)
		if err := uow.Flush(ctx); err != nil {
			return err
		}

		if len(ids) == 0 {
			return nil
		}
		return s.repos.Allocations.MarkFulfilled(ctx, tx, ids)
	})
}

func (s *OrderService) Complete(ctx context.Context, orderID uint) (*domain.Order, error) {
	return s.transition(ctx, orderID, ActionComplete, domain.OrderStatusDone, s.freeDelivery)
}

func (s *OrderService) freeDelivery(ctx context.Context, tx *sqlx.Tx, order *domain.Order) error {
	if order.DeliveryID == nil {
		return nil
	}
	return s.repos.Deliveries.UpdateStatus(ctx, tx, *order.DeliveryID, domain.DeliveryAvailable)
}

// Return books goods coming back from a delivered order. Restocked units go
// back onto the batches the item was fulfilled from, in allocation order.
// Anything else is written off as returned damaged goods with a loss valued
// at the same batches' unit cost.
func (s *OrderService) Return(ctx context.Context, orderID uint, in ReturnInput) (*domain.Order, error) {
	var details []apperrors.ValidationDetail
	if in.Quantity <= 0 {
		details = append(details, apperrors.ValidationDetail{Field: "quantity", Message: "quantity must be greater than zero"})
	}
	if in.Reason == "" {
		details = append(details, apperrors.ValidationDetail{Field: "reason", Message: "reason is required"})
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid return", details...)
	}

	return s.transition(ctx, orderID, ActionReturn, domain.OrderStatusReturned, func(ctx context.Context, tx *sqlx.Tx, order *domain.Order) error {
		items, err := s.repos.Items.FindByOrderForUpdate(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		var item *domain.OrderItem
		for i := range items {
			if items[i].ID == in.OrderItemID {
				item = &items[i]
				break
			}
		}
		if item == nil {
			return apperrors.NewEntityNotFoundError("order item", in.OrderItemID)
		}
		if in.Quantity > item.Returnable() {
			return apperrors.NewValidationError("return exceeds delivered quantity",
				apperrors.ValidationDetail{
					Field:   "quantity",
					Message: fmt.Sprintf("at most %d units of item %d can be returned", item.Returnable(), item.ID),
				})
		}

		allocations, err := s.repos.Allocations.FindByOrderForUpdate(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		var takes []domain.Allocation
		remaining := in.Quantity
		for _, a := range allocations {
			if remaining == 0 {
				break
			}
			if a.OrderItemID != item.ID {
				continue
			}
			take := min(remaining, a.Returnable())
			if take == 0 {
				continue
			}
			a.Quantity = take
			takes = append(takes, a)
			remaining -= take
		}
		if remaining > 0 {
			return fmt.Errorf("order item %d allocations cover %d of %d returned units", item.ID, in.Quantity-remaining, in.Quantity)
		}

		now := s.now()
		returnID, err := s.repos.Returns.Insert(ctx, tx, domain.ReturnItem{
			OrderItemID: item.ID,
			Quantity:    in.Quantity,
			Reason:      in.Reason,
			Restock:     in.Restock,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}

		if in.Restock {
			if err := s.restock(ctx, tx, order.ID, takes, now); err != nil {
				return err
			}
		} else if err := s.writeOffReturn(ctx, tx, item.ProductID, returnID, takes, in, now); err != nil {
			return err
		}

		for _, take := range takes {
			if err := s.repos.Allocations.UpdateReturned(ctx, tx, take.ID, take.ReturnedQuantity+take.Quantity); err != nil {
				return err
			}
		}

		item.ReturnedQuantity += in.Quantity
		if item.Returnable() == 0 {
			item.Status = domain.OrderItemStatusReturned
		}
		return s.repos.Items.UpdateReturned(ctx, tx, *item)
	})
}

func (s *OrderService) restock(ctx context.Context, tx *sqlx.Tx, orderID uint, takes []domain.Allocation, now time.Time) error {
	uow := inventory.NewUnitOfWork(tx, s.repos.Batches, s.repos.Transactions, now)
	if err := uow.LoadBatches(ctx, batchIDs(takes)...); err != nil {
		return err
	}
	for _, take := range takes {
		if err := uow.Increase(take.BatchID, take.Quantity, domain.TransactionRestock, "order return"); err != nil {
			return err
		}
	}
	uow.AttachOrder(orderID)
	return uow.Flush(ctx)
}

// writeOffReturn records unsellable returned units. They already left their
// batches at delivery, so no batch changes.
func (s *OrderService) writeOffReturn(ctx context.Context, tx *sqlx.Tx, productID, returnID uint, takes []domain.Allocation, in ReturnInput, now time.Time) error {
	loss := decimal.Zero
	for _, take := range takes {
		loss = loss.Add(take.Cost())
	}

	dg := domain.DamagedGoods{
		ProductID:    productID,
		ReturnItemID: &returnID,
		Quantity:     in.Quantity,
		Reason:       in.Reason,
		Source:       domain.DamageSourceReturned,
		CreatedAt:    now,
	}
	if len(takes) == 1 {
		batchID := takes[0].BatchID
		dg.InventoryBatchID = &batchID
	}
	dgID, err := s.repos.DamagedGoods.Insert(ctx, tx, dg)
	if err != nil {
		return err
	}

	_, err = s.adjustments.RecordDamageLossInTx(ctx, tx, dgID, loss, fmt.Sprintf("returned goods: %s", in.Reason))
	return err
}

func batchIDs(allocations []domain.Allocation) []uint {
	ids := make([]uint, 0, len(allocations))
	for _, a := range allocations {
		ids = append(ids, a.BatchID)
	}
	return ids
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	adjustmentservice "larder/internal/adjustment/service"
	"larder/internal/domain"
	"larder/internal/dto"
	apperrors "larder/internal/errors"
	"larder/internal/testutil"
)

var testNow = time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)

func date(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

type orderFixture struct {
	store    *testutil.MemoryStore
	svc      *OrderService
	client   uint
	rider    uint
	milk     uint
	bread    uint
	milkA    uint
	milkB    uint
	breadOne uint
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	store := testutil.NewMemoryStore()
	adjustments := adjustmentservice.NewAdjustmentService(store, store.Adjustments(), zap.NewNop())
	svc := NewOrderService(store, Repositories{
		Products:     store.Products(),
		Clients:      store.Clients(),
		Deliveries:   store.Deliveries(),
		Orders:       store.Orders(),
		Items:        store.OrderItems(),
		Allocations:  store.Allocations(),
		Returns:      store.ReturnItems(),
		Batches:      store.Batches(),
		Transactions: store.InventoryTxns(),
		DamagedGoods: store.DamagedGoods(),
	}, adjustments, zap.NewNop())
	svc.now = func() time.Time { return testNow }

	f := &orderFixture{store: store, svc: svc}
	f.client = store.AddClient(domain.Client{Name: "Hana"})
	f.rider = store.AddDelivery(domain.Delivery{Name: "Omar", Status: domain.DeliveryAvailable})
	f.milk = store.AddProduct(domain.Product{NameEn: "Milk", Price: decimal.RequireFromString("4.00"), MaxOrderQuantity: 50, IsActive: true})
	f.bread = store.AddProduct(domain.Product{NameEn: "Bread", Price: decimal.RequireFromString("1.50"), IsActive: true})
	f.milkA = store.AddBatch(domain.Batch{ProductID: f.milk, Quantity: 10, UnitCost: decimal.RequireFromString("2.00"), ExpiryDate: date("2025-01-01"), IsActive: true})
	f.milkB = store.AddBatch(domain.Batch{ProductID: f.milk, Quantity: 10, UnitCost: decimal.RequireFromString("2.50"), ExpiryDate: date("2025-06-01"), IsActive: true})
	f.breadOne = store.AddBatch(domain.Batch{ProductID: f.bread, Quantity: 5, UnitCost: decimal.RequireFromString("0.50"), IsActive: true})
	return f
}

func (f *orderFixture) input(items ...dto.CartEntry) CreateOrderInput {
	client := f.client
	return CreateOrderInput{
		ClientID:       &client,
		OrderSource:    domain.OrderSourceInsideCity,
		DeliveryMethod: domain.DeliveryMethodDelivery,
		AddressDetails: "12 Palm St",
		Items:          items,
	}
}

func (f *orderFixture) create(t *testing.T, items ...dto.CartEntry) *domain.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), f.input(items...))
	require.NoError(t, err)
	return order
}

func countType(txns []domain.InventoryTransaction, typ domain.TransactionType) int {
	n := 0
	for _, t := range txns {
		if t.TransactionType == typ {
			n++
		}
	}
	return n
}

func TestOrderService_CreateSpillsAcrossBatches(t *testing.T) {
	f := newOrderFixture(t)

	order := f.create(t, dto.CartEntry{ProductID: f.milk, Quantity: 15}, dto.CartEntry{ProductID: f.bread, Quantity: 2})

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("63.00")), order.TotalAmount.String())
	// 10 x 2.00 + 5 x 2.50 + 2 x 0.50
	assert.True(t, order.CostPrice.Equal(decimal.RequireFromString("33.50")), order.CostPrice.String())
	require.Len(t, order.Items, 2)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("4.00")))

	assert.Equal(t, 10, f.store.Batch(f.milkA).ReservedQuantity)
	assert.Equal(t, 5, f.store.Batch(f.milkB).ReservedQuantity)
	assert.Equal(t, 2, f.store.Batch(f.breadOne).ReservedQuantity)

	allocations := f.store.AllAllocations()
	require.Len(t, allocations, 3)
	assert.Equal(t, f.milkA, allocations[0].BatchID)
	assert.Equal(t, 10, allocations[0].Quantity)
	assert.Equal(t, f.milkB, allocations[1].BatchID)
	assert.Equal(t, 5, allocations[1].Quantity)

	txns := f.store.Transactions()
	assert.Equal(t, 3, countType(txns, domain.TransactionReservation))
	for _, txn := range txns {
		require.NotNil(t, txn.OrderID)
		assert.Equal(t, order.ID, *txn.OrderID)
	}
}

func TestOrderService_CreateInsufficientStockIsAtomic(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.Create(context.Background(), f.input(
		dto.CartEntry{ProductID: f.milk, Quantity: 5},
		dto.CartEntry{ProductID: f.bread, Quantity: 6},
	))

	ise, ok := apperrors.IsInsufficientStockError(err)
	require.True(t, ok)
	assert.Equal(t, f.bread, ise.ProductID)
	assert.Equal(t, 6, ise.Requested)
	assert.Equal(t, 5, ise.Available)

	assert.Zero(t, f.store.Batch(f.milkA).ReservedQuantity)
	assert.Zero(t, f.store.OrderCount())
	assert.Empty(t, f.store.Transactions())
	assert.Empty(t, f.store.AllAllocations())
}

func TestOrderService_CreateTwentyFiveOfTwentyFails(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.Create(context.Background(), f.input(dto.CartEntry{ProductID: f.milk, Quantity: 25}))

	ise, ok := apperrors.IsInsufficientStockError(err)
	require.True(t, ok)
	assert.Equal(t, 20, ise.Available)
	assert.Zero(t, f.store.Batch(f.milkA).ReservedQuantity)
	assert.Zero(t, f.store.Batch(f.milkB).ReservedQuantity)
}

func TestOrderService_CreateValidation(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.input())
		_, ok := apperrors.IsValidationError(err)
		assert.True(t, ok)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.input(dto.CartEntry{ProductID: 404, Quantity: 1}))
		nfe, ok := apperrors.IsNotFoundError(err)
		require.True(t, ok)
		assert.Equal(t, "product", nfe.Entity)
	})

	t.Run("above max order quantity", func(t *testing.T) {
		f.store.AddBatch(domain.Batch{ProductID: f.milk, Quantity: 100, IsActive: true})
		_, err := f.svc.Create(ctx, f.input(dto.CartEntry{ProductID: f.milk, Quantity: 51}))
		ve, ok := apperrors.IsValidationError(err)
		require.True(t, ok)
		assert.Contains(t, ve.Details[0].Message, "50")
	})

	t.Run("suspended client", func(t *testing.T) {
		suspended := f.store.AddClient(domain.Client{Name: "Late payer", Suspended: true})
		in := f.input(dto.CartEntry{ProductID: f.bread, Quantity: 1})
		in.ClientID = &suspended
		_, err := f.svc.Create(ctx, in)
		_, ok := apperrors.IsForbiddenError(err)
		assert.True(t, ok)
	})

	t.Run("manual order needs a name", func(t *testing.T) {
		in := f.input(dto.CartEntry{ProductID: f.bread, Quantity: 1})
		in.ClientID = nil
		_, err := f.svc.Create(ctx, in)
		_, ok := apperrors.IsValidationError(err)
		assert.True(t, ok)
	})

	assert.Zero(t, f.store.OrderCount())
}

func TestOrderService_ManualOrder(t *testing.T) {
	f := newOrderFixture(t)
	name := "Walk-in"
	in := f.input(dto.CartEntry{ProductID: f.bread, Quantity: 1})
	in.ClientID = nil
	in.ClientName = &name

	order, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, order.IsManual())
}

func TestOrderService_CreateRollsBackOnWriteFailure(t *testing.T) {
	f := newOrderFixture(t)
	f.store.FailOn("allocations.Insert", errors.New("disk full"))

	_, err := f.svc.Create(context.Background(), f.input(dto.CartEntry{ProductID: f.milk, Quantity: 3}))
	require.Error(t, err)

	assert.Zero(t, f.store.OrderCount())
	assert.Zero(t, f.store.Batch(f.milkA).ReservedQuantity)
	assert.Empty(t, f.store.Transactions())
}

func TestOrderService_CancelReleasesEveryAllocation(t *testing.T) {
	f := newOrderFixture(t)
	order := f.create(t, dto.CartEntry{ProductID: f.milk, Quantity: 15})

	canceled, err := f.svc.Cancel(context.Background(), order.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusCanceled, canceled.Status)
	assert.Zero(t, f.store.Batch(f.milkA).ReservedQuantity)
	assert.Zero(t, f.store.Batch(f.milkB).ReservedQuantity)
	assert.Equal(t, 10, f.store.Batch(f.milkA).Quantity)
	assert.Equal(t, 2, countType(f.store.Transactions(), domain.TransactionRelease))

	_, err = f.svc.Cancel(context.Background(), order.ID)
	ite, ok := apperrors.IsInvalidTransitionError(err)
	require.True(t, ok)
	assert.Equal(t, "canceled", ite.From)
	assert.Equal(t, 2, countType(f.store.Transactions(), domain.TransactionRelease))
}

func TestOrderService_FullLifecycle(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.create(t, dto.CartEntry{ProductID: f.milk, Quantity: 12})

	_, err := f.svc.Confirm(ctx, order.ID)
	require.NoError(t, err)

	assigned, err := f.svc.AssignDelivery(ctx, order.ID, f.rider)
	require.NoError(t, err)
	require.NotNil(t, assigned.DeliveryID)
	assert.Equal(t, domain.DeliveryBusy, f.store.Delivery(f.rider).Status)

	_, err = f.svc.Ship(ctx, order.ID)
	require.NoError(t, err)

	delivered, err := f.svc.Deliver(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, delivered.Status)

	a, b := f.store.Batch(f.milkA), f.store.Batch(f.milkB)
	assert.Equal(t, 0, a.Quantity)
	assert.Equal(t, 0, a.ReservedQuantity)
	assert.Equal(t, 8, b.Quantity)
	assert.Equal(t, 0, b.ReservedQuantity)
	assert.Equal(t, 2, countType(f.store.Transactions(), domain.TransactionFulfillment))
	for _, alloc := range f.store.AllAllocations() {
		assert.True(t, alloc.Fulfilled)
	}

	done, err := f.svc.Complete(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDone, done.Status)
	assert.Equal(t, domain.DeliveryAvailable, f.store.Delivery(f.rider).Status)

	_, err = f.svc.Return(ctx, order.ID, ReturnInput{OrderItemID: done.Items[0].ID, Quantity: 1, Reason: "late", Restock: true})
	_, ok := apperrors.IsInvalidTransitionError(err)
	assert.True(t, ok, "done is terminal")
}

func TestOrderService_IllegalTransitions(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.create(t, dto.CartEntry{ProductID: f.bread, Quantity: 1})

	_, err := f.svc.Ship(ctx, order.ID)
	ite, ok := apperrors.IsInvalidTransitionError(err)
	require.True(t, ok)
	assert.Equal(t, ActionShip, ite.Action)
	assert.Equal(t, "pending", ite.From)

	_, err = f.svc.Deliver(ctx, order.ID)
	_, ok = apperrors.IsInvalidTransitionError(err)
	assert.True(t, ok)

	_, err = f.svc.AssignDelivery(ctx, order.ID, f.rider)
	_, ok = apperrors.IsInvalidTransitionError(err)
	assert.True(t, ok)

	assert.Equal(t, domain.OrderStatusPending, f.store.Order(order.ID).Status)
	assert.Equal(t, 1, f.store.Batch(f.breadOne).ReservedQuantity)
}

func TestOrderService_AssignBusyDelivery(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	busy := f.store.AddDelivery(domain.Delivery{Name: "Sami", Status: domain.DeliveryBusy})
	order := f.create(t, dto.CartEntry{ProductID: f.bread, Quantity: 1})
	_, err := f.svc.Confirm(ctx, order.ID)
	require.NoError(t, err)

	_, err = f.svc.AssignDelivery(ctx, order.ID, busy)
	_, ok := apperrors.IsConflictError(err)
	assert.True(t, ok)
	assert.Nil(t, f.store.Order(order.ID).DeliveryID)
}

func TestOrderService_CancelFreesDelivery(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.create(t, dto.CartEntry{ProductID: f.bread, Quantity: 1})
	_, err := f.svc.Confirm(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.svc.AssignDelivery(ctx, order.ID, f.rider)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryAvailable, f.store.Delivery(f.rider).Status)
}

func (f *orderFixture) delivered(t *testing.T, items ...dto.CartEntry) *domain.Order {
	t.Helper()
	ctx := context.Background()
	order := f.create(t, items...)
	_, err := f.svc.Confirm(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.svc.Ship(ctx, order.ID)
	require.NoError(t, err)
	delivered, err := f.svc.Deliver(ctx, order.ID)
	require.NoError(t, err)
	return delivered
}

func TestOrderService_ReturnRestocksOriginalBatches(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.delivered(t, dto.CartEntry{ProductID: f.milk, Quantity: 15})
	itemID := order.Items[0].ID

	returned, err := f.svc.Return(ctx, order.ID, ReturnInput{OrderItemID: itemID, Quantity: 12, Reason: "wrong brand", Restock: true})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReturned, returned.Status)
	assert.Equal(t, 12, returned.Items[0].ReturnedQuantity)
	assert.Equal(t, domain.OrderItemStatusNormal, returned.Items[0].Status)

	// allocation order: all 10 back onto A, then 2 onto B
	assert.Equal(t, 10, f.store.Batch(f.milkA).Quantity)
	assert.Equal(t, 7, f.store.Batch(f.milkB).Quantity)
	assert.Equal(t, 2, countType(f.store.Transactions(), domain.TransactionRestock))

	again, err := f.svc.Return(ctx, order.ID, ReturnInput{OrderItemID: itemID, Quantity: 3, Reason: "wrong brand", Restock: true})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderItemStatusReturned, again.Items[0].Status)
	assert.Equal(t, 10, f.store.Batch(f.milkB).Quantity)

	_, err = f.svc.Return(ctx, order.ID, ReturnInput{OrderItemID: itemID, Quantity: 1, Reason: "extra", Restock: true})
	_, ok := apperrors.IsValidationError(err)
	assert.True(t, ok)
	assert.Len(t, f.store.AllReturnItems(), 2)
}

func TestOrderService_ReturnWithoutRestockBooksLoss(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.delivered(t, dto.CartEntry{ProductID: f.milk, Quantity: 12})

	_, err := f.svc.Return(ctx, order.ID, ReturnInput{OrderItemID: order.Items[0].ID, Quantity: 11, Reason: "spoiled in transit"})
	require.NoError(t, err)

	assert.Equal(t, 0, f.store.Batch(f.milkA).Quantity)
	assert.Equal(t, 8, f.store.Batch(f.milkB).Quantity)

	damaged := f.store.AllDamagedGoods()
	require.Len(t, damaged, 1)
	assert.Equal(t, domain.DamageSourceReturned, damaged[0].Source)
	assert.Equal(t, 11, damaged[0].Quantity)
	require.NotNil(t, damaged[0].ReturnItemID)

	adjustments := f.store.AllAdjustments()
	require.Len(t, adjustments, 1)
	assert.Equal(t, domain.AdjustmentLoss, adjustments[0].Kind)
	// 10 x 2.00 + 1 x 2.50
	assert.True(t, adjustments[0].Amount.Equal(decimal.RequireFromString("22.50")), adjustments[0].Amount.String())
	dgID, linked := adjustments[0].Source.DamagedGoodsID()
	assert.True(t, linked)
	assert.Equal(t, damaged[0].ID, dgID)
}

func TestOrderService_ReturnUnknownItem(t *testing.T) {
	f := newOrderFixture(t)
	order := f.delivered(t, dto.CartEntry{ProductID: f.bread, Quantity: 2})

	_, err := f.svc.Return(context.Background(), order.ID, ReturnInput{OrderItemID: 999, Quantity: 1, Reason: "?", Restock: true})
	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
	assert.Equal(t, domain.OrderStatusDelivered, f.store.Order(order.ID).Status)
	assert.Empty(t, f.store.AllReturnItems())
}

func TestOrderService_GetByIdempotencyKey(t *testing.T) {
	f := newOrderFixture(t)
	key := "k-1"
	in := f.input(dto.CartEntry{ProductID: f.bread, Quantity: 1})
	in.IdempotencyKey = &key

	order, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), in)
	_, ok := apperrors.IsConflictError(err)
	require.True(t, ok)
	assert.Equal(t, 1, f.store.Batch(f.breadOne).ReservedQuantity)

	found, err := f.svc.GetByIdempotencyKey(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	assert.Len(t, found.Items, 1)
}

func TestOrderService_CreateIgnoresExpiredStock(t *testing.T) {
	f := newOrderFixture(t)
	f.store.AddBatch(domain.Batch{ProductID: f.bread, Quantity: 10, UnitCost: decimal.RequireFromString("0.40"), ExpiryDate: date("2024-11-30"), IsActive: true})
	f.store.AddBatch(domain.Batch{ProductID: f.bread, Quantity: 10, UnitCost: decimal.RequireFromString("0.40"), IsActive: false})

	_, err := f.svc.Create(context.Background(), f.input(dto.CartEntry{ProductID: f.bread, Quantity: 6}))

	ise, ok := apperrors.IsInsufficientStockError(err)
	require.True(t, ok)
	assert.Equal(t, 5, ise.Available)
	assert.Empty(t, f.store.Transactions())
	assert.Equal(t, 0, f.store.Batch(f.breadOne).ReservedQuantity)
	assert.Equal(t, 0, f.store.OrderCount())
}

func TestOrderService_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	f := newOrderFixture(t)

	const shoppers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		shortages int
	)
	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), f.input(dto.CartEntry{ProductID: f.bread, Quantity: 1}))

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			if _, ok := apperrors.IsInsufficientStockError(err); ok {
				shortages++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, successes)
	assert.Equal(t, shoppers-5, shortages)
	assert.Equal(t, 5, f.store.Batch(f.breadOne).ReservedQuantity)
	assert.Equal(t, 5, f.store.OrderCount())
}

func TestOrderService_TransitionRejectsUnknownStatus(t *testing.T) {
	f := newOrderFixture(t)
	order := f.create(t, dto.CartEntry{ProductID: f.bread, Quantity: 1})
	require.NoError(t, f.store.Orders().UpdateStatus(context.Background(), nil, order.ID, domain.OrderStatus("lost")))

	_, err := f.svc.Confirm(context.Background(), order.ID)

	var internal *apperrors.InternalError
	require.True(t, errors.As(err, &internal))
	assert.Contains(t, err.Error(), "unknown status")
}

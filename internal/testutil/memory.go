package testutil

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"larder/internal/domain"
	apperrors "larder/internal/errors"
)

type memoryState struct {
	seq         map[string]uint
	products    map[uint]domain.Product
	batches     map[uint]domain.Batch
	txns        []domain.InventoryTransaction
	orders      map[uint]domain.Order
	items       map[uint]domain.OrderItem
	allocations map[uint]domain.Allocation
	returns     map[uint]domain.ReturnItem
	damaged     map[uint]domain.DamagedGoods
	adjustments map[uint]domain.Adjustment
	clients     map[uint]domain.Client
	deliveries  map[uint]domain.Delivery
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		seq:         maps.Clone(s.seq),
		products:    maps.Clone(s.products),
		batches:     maps.Clone(s.batches),
		txns:        slices.Clone(s.txns),
		orders:      maps.Clone(s.orders),
		items:       maps.Clone(s.items),
		allocations: maps.Clone(s.allocations),
		returns:     maps.Clone(s.returns),
		damaged:     maps.Clone(s.damaged),
		adjustments: maps.Clone(s.adjustments),
		clients:     maps.Clone(s.clients),
		deliveries:  maps.Clone(s.deliveries),
	}
}

func (s *memoryState) next(table string) uint {
	s.seq[table]++
	return s.seq[table]
}

// MemoryStore is an in-memory stand-in for the MySQL schema. RunInTx
// serializes transactions, which plays the role of row locks, and restores
// a snapshot when the callback fails. Repository views ignore the *sqlx.Tx
// they receive.
type MemoryStore struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	state  *memoryState
	faults map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			seq:         make(map[string]uint),
			products:    make(map[uint]domain.Product),
			batches:     make(map[uint]domain.Batch),
			orders:      make(map[uint]domain.Order),
			items:       make(map[uint]domain.OrderItem),
			allocations: make(map[uint]domain.Allocation),
			returns:     make(map[uint]domain.ReturnItem),
			damaged:     make(map[uint]domain.DamagedGoods),
			adjustments: make(map[uint]domain.Adjustment),
			clients:     make(map[uint]domain.Client),
			deliveries:  make(map[uint]domain.Delivery),
		},
		faults: make(map[string]error),
	}
}

func (m *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// FailOn makes the named operation (e.g. "orders.Insert") return err until
// cleared with a nil error.
func (m *MemoryStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

func (m *MemoryStore) with(op string, fn func(s *memoryState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.faults[op]; ok {
		return err
	}
	return fn(m.state)
}

// Seeding

func (m *MemoryStore) AddProduct(p domain.Product) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.state.next("products")
	}
	m.state.products[p.ID] = p
	return p.ID
}

func (m *MemoryStore) AddBatch(b domain.Batch) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == 0 {
		b.ID = m.state.next("batches")
	}
	m.state.batches[b.ID] = b
	return b.ID
}

func (m *MemoryStore) AddClient(c domain.Client) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.state.next("clients")
	}
	m.state.clients[c.ID] = c
	return c.ID
}

func (m *MemoryStore) AddDelivery(d domain.Delivery) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == 0 {
		d.ID = m.state.next("deliveries")
	}
	m.state.deliveries[d.ID] = d
	return d.ID
}

// Inspection

func (m *MemoryStore) Batch(id uint) domain.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.batches[id]
}

func (m *MemoryStore) Transactions() []domain.InventoryTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.txns)
}

func (m *MemoryStore) Order(id uint) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.orders[id]
}

func (m *MemoryStore) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

func (m *MemoryStore) Delivery(id uint) domain.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deliveries[id]
}

func (m *MemoryStore) AllAllocations() []domain.Allocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.state.allocations, func(a domain.Allocation) uint { return a.ID })
}

func (m *MemoryStore) AllDamagedGoods() []domain.DamagedGoods {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.state.damaged, func(d domain.DamagedGoods) uint { return d.ID })
}

func (m *MemoryStore) AllAdjustments() []domain.Adjustment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.state.adjustments, func(a domain.Adjustment) uint { return a.ID })
}

func (m *MemoryStore) AllReturnItems() []domain.ReturnItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.state.returns, func(r domain.ReturnItem) uint { return r.ID })
}

func sortedValues[T any](in map[uint]T, id func(T) uint) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

// Repository views

func (m *MemoryStore) Products() *MemoryProducts { return &MemoryProducts{m} }
func (m *MemoryStore) Batches() *MemoryBatches { return &MemoryBatches{m} }
func (m *MemoryStore) InventoryTxns() *MemoryTransactions { return &MemoryTransactions{m} }
func (m *MemoryStore) DamagedGoods() *MemoryDamagedGoods { return &MemoryDamagedGoods{m} }
func (m *MemoryStore) Adjustments() *MemoryAdjustments { return &MemoryAdjustments{m} }
func (m *MemoryStore) Clients() *MemoryClients { return &MemoryClients{m} }
func (m *MemoryStore) Deliveries() *MemoryDeliveries { return &MemoryDeliveries{m} }
func (m *MemoryStore) Orders() *MemoryOrders { return &MemoryOrders{m} }
func (m *MemoryStore) OrderItems() *MemoryOrderItems { return &MemoryOrderItems{m} }
func (m *MemoryStore) Allocations() *MemoryAllocations { return &MemoryAllocations{m} }
func (m *MemoryStore) ReturnItems() *MemoryReturnItems { return &MemoryReturnItems{m} }

type MemoryProducts struct{ m *MemoryStore }

func (r *MemoryProducts) FindByID(_ context.Context, id uint) (*domain.Product, error) {
	var out *domain.Product
	err := r.m.with("products.FindByID", func(s *memoryState) error {
		p, ok := s.products[id]
		if !ok {
			return apperrors.NewProductNotFoundError(id)
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *MemoryProducts) FindByIDs(_ context.Context, ids []uint) ([]domain.Product, error) {
	var out []domain.Product
	err := r.m.with("products.FindByIDs", func(s *memoryState) error {
		for _, id := range ids {
			if p, ok := s.products[id]; ok {
				out = append(out, p)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

type MemoryBatches struct{ m *MemoryStore }

func (s *memoryState) batchesOf(productID uint) []domain.Batch {
	var out []domain.Batch
	for _, b := range s.batches {
		if b.ProductID == productID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *MemoryBatches) FindByID(_ context.Context, id uint) (*domain.Batch, error) {
	var out *domain.Batch
	err := r.m.with("batches.FindByID", func(s *memoryState) error {
		b, ok := s.batches[id]
		if !ok {
			return apperrors.NewBatchNotFoundError(id)
		}
		out = &b
		return nil
	})
	return out, err
}

func (r *MemoryBatches) FindByProduct(_ context.Context, productID uint) ([]domain.Batch, error) {
	var out []domain.Batch
	err := r.m.with("batches.FindByProduct", func(s *memoryState) error {
		out = s.batchesOf(productID)
		return nil
	})
	return out, err
}

func (r *MemoryBatches) FindByProducts(_ context.Context, productIDs []uint) ([]domain.Batch, error) {
	var out []domain.Batch
	err := r.m.with("batches.FindByProducts", func(s *memoryState) error {
		for _, b := range s.batches {
			if slices.Contains(productIDs, b.ProductID) {
				out = append(out, b)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (r *MemoryBatches) FindByProductForUpdate(_ context.Context, _ *sqlx.Tx, productID uint) ([]domain.Batch, error) {
	var out []domain.Batch
	err := r.m.with("batches.FindByProductForUpdate", func(s *memoryState) error {
		out = s.batchesOf(productID)
		return nil
	})
	return out, err
}

func (r *MemoryBatches) FindByIDsForUpdate(_ context.Context, _ *sqlx.Tx, ids []uint) ([]domain.Batch, error) {
	var out []domain.Batch
	err := r.m.with("batches.FindByIDsForUpdate", func(s *memoryState) error {
		for _, id := range ids {
			if b, ok := s.batches[id]; ok {
				out = append(out, b)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (r *MemoryBatches) Insert(_ context.Context, _ *sqlx.Tx, b domain.Batch) (uint, error) {
	var id uint
	err := r.m.with("batches.Insert", func(s *memoryState) error {
		b.ID = s.next("batches")
		s.batches[b.ID] = b
		id = b.ID
		return nil
	})
	return id, err
}

// UpdateQuantities enforces the same CHECK constraint as the MySQL schema.
func (r *MemoryBatches) UpdateQuantities(_ context.Context, _ *sqlx.Tx, batch domain.Batch) error {
	return r.m.with("batches.UpdateQuantities", func(s *memoryState) error {
		b, ok := s.batches[batch.ID]
		if !ok {
			return apperrors.NewBatchNotFoundError(batch.ID)
		}
		b.Quantity = batch.Quantity
		b.ReservedQuantity = batch.ReservedQuantity
		if !b.Consistent() {
			return fmt.Errorf("check constraint violated for batch %d", b.ID)
		}
		s.batches[b.ID] = b
		return nil
	})
}

func (r *MemoryBatches) SetActive(_ context.Context, _ *sqlx.Tx, id uint, active bool) error {
	return r.m.with("batches.SetActive", func(s *memoryState) error {
		b, ok := s.batches[id]
		if !ok {
			return apperrors.NewBatchNotFoundError(id)
		}
		b.IsActive = active
		s.batches[id] = b
		return nil
	})
}

func (r *MemoryBatches) FindLowStock(_ context.Context) ([]domain.Batch, error) {
	var out []domain.Batch
	err := r.m.with("batches.FindLowStock", func(s *memoryState) error {
		for _, b := range s.batches {
			if b.IsActive && b.IsLow() {
				out = append(out, b)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].ProductID != out[j].ProductID {
				return out[i].ProductID < out[j].ProductID
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	return out, err
}

func (r *MemoryBatches) FindExpiringBefore(_ context.Context, until time.Time) ([]domain.Batch, error) {
	var out []domain.Batch
	err := r.m.with("batches.FindExpiringBefore", func(s *memoryState) error {
		for _, b := range s.batches {
			if b.IsActive && b.Quantity > 0 && b.ExpiryDate != nil && !b.ExpiryDate.After(until) {
				out = append(out, b)
			}
		}
		sort.Slice(out, func(i, j int) bool { return domain.ExpiresBefore(out[i], out[j]) })
		return nil
	})
	return out, err
}

type MemoryTransactions struct{ m *MemoryStore }

func (r *MemoryTransactions) Insert(_ context.Context, _ *sqlx.Tx, t domain.InventoryTransaction) (uint, error) {
	var id uint
	err := r.m.with("transactions.Insert", func(s *memoryState) error {
		t.ID = s.next("transactions")
		s.txns = append(s.txns, t)
		id = t.ID
		return nil
	})
	return id, err
}

func (r *MemoryTransactions) ListByProduct(_ context.Context, productID uint, limit int) ([]domain.InventoryTransaction, error) {
	var out []domain.InventoryTransaction
	err := r.m.with("transactions.ListByProduct", func(s *memoryState) error {
		for i := len(s.txns) - 1; i >= 0 && len(out) < limit; i-- {
			if s.txns[i].ProductID == productID {
				out = append(out, s.txns[i])
			}
		}
		return nil
	})
	return out, err
}

func (r *MemoryTransactions) ListByOrder(_ context.Context, orderID uint) ([]domain.InventoryTransaction, error) {
	var out []domain.InventoryTransaction
	err := r.m.with("transactions.ListByOrder", func(s *memoryState) error {
		for _, t := range s.txns {
			if t.OrderID != nil && *t.OrderID == orderID {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

type MemoryDamagedGoods struct{ m *MemoryStore }

func (r *MemoryDamagedGoods) Insert(_ context.Context, _ *sqlx.Tx, dg domain.DamagedGoods) (uint, error) {
	var id uint
	err := r.m.with("damaged.Insert", func(s *memoryState) error {
		dg.ID = s.next("damaged")
		s.damaged[dg.ID] = dg
		id = dg.ID
		return nil
	})
	return id, err
}

func (r *MemoryDamagedGoods) FindByIDForUpdate(_ context.Context, _ *sqlx.Tx, id uint) (*domain.DamagedGoods, error) {
	var out *domain.DamagedGoods
	err := r.m.with("damaged.FindByIDForUpdate", func(s *memoryState) error {
		dg, ok := s.damaged[id]
		if !ok {
			return apperrors.NewEntityNotFoundError("damaged goods", id)
		}
		out = &dg
		return nil
	})
	return out, err
}

func (r *MemoryDamagedGoods) Delete(_ context.Context, _ *sqlx.Tx, id uint) error {
	return r.m.with("damaged.Delete", func(s *memoryState) error {
		if _, ok := s.damaged[id]; !ok {
			return apperrors.NewEntityNotFoundError("damaged goods", id)
		}
		delete(s.damaged, id)
		return nil
	})
}

func (r *MemoryDamagedGoods) ListByProduct(_ context.Context, productID uint) ([]domain.DamagedGoods, error) {
	var out []domain.DamagedGoods
	err := r.m.with("damaged.ListByProduct", func(s *memoryState) error {
		for _, dg := range sortedValues(s.damaged, func(d domain.DamagedGoods) uint { return d.ID }) {
			if dg.ProductID == productID {
				out = append(out, dg)
			}
		}
		return nil
	})
	return out, err
}

type MemoryAdjustments struct{ m *MemoryStore }

func (r *MemoryAdjustments) Insert(_ context.Context, _ *sqlx.Tx, a domain.Adjustment) (uint, error) {
	var id uint
	err := r.m.with("adjustments.Insert", func(s *memoryState) error {
		a.ID = s.next("adjustments")
		s.adjustments[a.ID] = a
		id = a.ID
		return nil
	})
	return id, err
}

func (r *MemoryAdjustments) FindByIDForUpdate(_ context.Context, _ *sqlx.Tx, id uint) (*domain.Adjustment, error) {
	var out *domain.Adjustment
	err := r.m.with("adjustments.FindByIDForUpdate", func(s *memoryState) error {
		a, ok := s.adjustments[id]
		if !ok {
			return apperrors.NewEntityNotFoundError("adjustment", id)
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *MemoryAdjustments) FindByDamagedGoods(_ context.Context, _ *sqlx.Tx, damagedGoodsID uint) ([]domain.Adjustment, error) {
	var out []domain.Adjustment
	err := r.m.with("adjustments.FindByDamagedGoods", func(s *memoryState) error {
		for _, a := range sortedValues(s.adjustments, func(a domain.Adjustment) uint { return a.ID }) {
			if id, ok := a.Source.DamagedGoodsID(); ok && id == damagedGoodsID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

func (r *MemoryAdjustments) Update(_ context.Context, _ *sqlx.Tx, a domain.Adjustment) error {
	return r.m.with("adjustments.Update", func(s *memoryState) error {
		current, ok := s.adjustments[a.ID]
		if !ok {
			return apperrors.NewEntityNotFoundError("adjustment", a.ID)
		}
		a.Source = current.Source
		s.adjustments[a.ID] = a
		return nil
	})
}

func (r *MemoryAdjustments) Delete(_ context.Context, _ *sqlx.Tx, id uint) error {
	return r.m.with("adjustments.Delete", func(s *memoryState) error {
		if _, ok := s.adjustments[id]; !ok {
			return apperrors.NewEntityNotFoundError("adjustment", id)
		}
		delete(s.adjustments, id)
		return nil
	})
}

func (r *MemoryAdjustments) List(_ context.Context, filter domain.AdjustmentFilter) ([]domain.Adjustment, error) {
	var out []domain.Adjustment
	err := r.m.with("adjustments.List", func(s *memoryState) error {
		for _, a := range sortedValues(s.adjustments, func(a domain.Adjustment) uint { return a.ID }) {
			if filter.Kind != nil && a.Kind != *filter.Kind {
				continue
			}
			if filter.From != nil && a.Date.Before(*filter.From) {
				continue
			}
			if filter.To != nil && a.Date.After(*filter.To) {
				continue
			}
			out = append(out, a)
		}
		return nil
	})
	return out, err
}

type MemoryClients struct{ m *MemoryStore }

func (r *MemoryClients) FindByID(_ context.Context, id uint) (*domain.Client, error) {
	var out *domain.Client
	err := r.m.with("clients.FindByID", func(s *memoryState) error {
		c, ok := s.clients[id]
		if !ok {
			return apperrors.NewEntityNotFoundError("client", id)
		}
		out = &c
		return nil
	})
	return out, err
}

type MemoryDeliveries struct{ m *MemoryStore }

func (r *MemoryDeliveries) FindByIDForUpdate(_ context.Context, _ *sqlx.Tx, id uint) (*domain.Delivery, error) {
	var out *domain.Delivery
	err := r.m.with("deliveries.FindByIDForUpdate", func(s *memoryState) error {
		d, ok := s.deliveries[id]
		if !ok {
			return apperrors.NewEntityNotFoundError("delivery", id)
		}
		out = &d
		return nil
	})
	return out, err
}

func (r *MemoryDeliveries) UpdateStatus(_ context.Context, _ *sqlx.Tx, id uint, status domain.DeliveryStatus) error {
	return r.m.with("deliveries.UpdateStatus", func(s *memoryState) error {
		d, ok := s.deliveries[id]
		if !ok {
			return apperrors.NewEntityNotFoundError("delivery", id)
		}
		d.Status = status
		s.deliveries[id] = d
		return nil
	})
}

type MemoryOrders struct{ m *MemoryStore }

func (r *MemoryOrders) Insert(_ context.Context, _ *sqlx.Tx, o domain.Order) (uint, error) {
	var id uint
	err := r.m.with("orders.Insert", func(s *memoryState) error {
		if o.IdempotencyKey != nil {
			for _, existing := range s.orders {
				if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *o.IdempotencyKey {
					return apperrors.NewConflictError("an order with this idempotency key already exists")
				}
			}
		}
		o.ID = s.next("orders")
		o.Items = nil
		s.orders[o.ID] = o
		id = o.ID
		return nil
	})
	return id, err
}

func (r *MemoryOrders) FindByID(_ context.Context, id uint) (*domain.Order, error) {
	var out *domain.Order
	err := r.m.with("orders.FindByID", func(s *memoryState) error {
		o, ok := s.orders[id]
		if !ok {
			return apperrors.NewEntityNotFoundError("order", id)
		}
		out = &o
		return nil
	})
	return out, err
}

func (r *MemoryOrders) FindByIDForUpdate(ctx context.Context, _ *sqlx.Tx, id uint) (*domain.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *MemoryOrders) FindByIdempotencyKey(_ context.Context, key string) (*domain.Order, error) {
	var out *domain.Order
	err := r.m.with("orders.FindByIdempotencyKey", func(s *memoryState) error {
		for _, o := range s.orders {
			if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
				found := o
				out = &found
				return nil
			}
		}
		return apperrors.NewNotFoundError(fmt.Sprintf("order with idempotency key %q not found", key))
	})
	return out, err
}

func (r *MemoryOrders) UpdateStatus(_ context.Context, _ *sqlx.Tx, id uint, status domain.OrderStatus) error {
	return r.m.with("orders.UpdateStatus", func(s *memoryState) error {
		o, ok := s.orders[id]
		if !ok {
			return apperrors.NewEntityNotFoundError("order", id)
		}
		o.Status = status
		s.orders[id] = o
		return nil
	})
}

func (r *MemoryOrders) UpdateDelivery(_ context.Context, _ *sqlx.Tx, id uint, deliveryID *uint) error {
	return r.m.with("orders.UpdateDelivery", func(s *memoryState) error {
		o, ok := s.orders[id]
		if !ok {
			return apperrors.NewEntityNotFoundError("order", id)
		}
		o.DeliveryID = deliveryID
		s.orders[id] = o
		return nil
	})
}

type MemoryOrderItems struct{ m *MemoryStore }

func (r *MemoryOrderItems) Insert(_ context.Context, _ *sqlx.Tx, item domain.OrderItem) (uint, error) {
	var id uint
	err := r.m.with("items.Insert", func(s *memoryState) error {
		item.ID = s.next("items")
		s.items[item.ID] = item
		id = item.ID
		return nil
	})
	return id, err
}

func (s *memoryState) itemsOf(orderID uint) []domain.OrderItem {
	var out []domain.OrderItem
	for _, item := range sortedValues(s.items, func(i domain.OrderItem) uint { return i.ID }) {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	return out
}

func (r *MemoryOrderItems) FindByOrder(_ context.Context, orderID uint) ([]domain.OrderItem, error) {
	var out []domain.OrderItem
	err := r.m.with("items.FindByOrder", func(s *memoryState) error {
		out = s.itemsOf(orderID)
		return nil
	})
	return out, err
}

func (r *MemoryOrderItems) FindByOrderForUpdate(ctx context.Context, _ *sqlx.Tx, orderID uint) ([]domain.OrderItem, error) {
	return r.FindByOrder(ctx, orderID)
}

func (r *MemoryOrderItems) UpdateReturned(_ context.Context, _ *sqlx.Tx, item domain.OrderItem) error {
	return r.m.with("items.UpdateReturned", func(s *memoryState) error {
		current, ok := s.items[item.ID]
		if !ok {
			return apperrors.NewEntityNotFoundError("order item", item.ID)
		}
		current.ReturnedQuantity = item.ReturnedQuantity
		current.Status = item.Status
		s.items[item.ID] = current
		return nil
	})
}

type MemoryAllocations struct{ m *MemoryStore }

func (r *MemoryAllocations) Insert(_ context.Context, _ *sqlx.Tx, a domain.Allocation) (uint, error) {
	var id uint
	err := r.m.with("allocations.Insert", func(s *memoryState) error {
		a.ID = s.next("allocations")
		s.allocations[a.ID] = a
		id = a.ID
		return nil
	})
	return id, err
}

func (r *MemoryAllocations) FindByOrderForUpdate(_ context.Context, _ *sqlx.Tx, orderID uint) ([]domain.Allocation, error) {
	var out []domain.Allocation
	err := r.m.with("allocations.FindByOrderForUpdate", func(s *memoryState) error {
		for _, a := range sortedValues(s.allocations, func(a domain.Allocation) uint { return a.ID }) {
			if item, ok := s.items[a.OrderItemID]; ok && item.OrderID == orderID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

func (r *MemoryAllocations) MarkFulfilled(_ context.Context, _ *sqlx.Tx, ids []uint) error {
	return r.m.with("allocations.MarkFulfilled", func(s *memoryState) error {
		for _, id := range ids {
			a := s.allocations[id]
			a.Fulfilled = true
			s.allocations[id] = a
		}
		return nil
	})
}

func (r *MemoryAllocations) UpdateReturned(_ context.Context, _ *sqlx.Tx, id uint, returnedQuantity int) error {
	return r.m.with("allocations.UpdateReturned", func(s *memoryState) error {
		a, ok := s.allocations[id]
		if !ok {
			return apperrors.NewEntityNotFoundError("allocation", id)
		}
		a.ReturnedQuantity = returnedQuantity
		s.allocations[id] = a
		return nil
	})
}

type MemoryReturnItems struct{ m *MemoryStore }

func (r *MemoryReturnItems) Insert(_ context.Context, _ *sqlx.Tx, item domain.ReturnItem) (uint, error) {
	var id uint
	err := r.m.with("returns.Insert", func(s *memoryState) error {
		item.ID = s.next("returns")
		s.returns[item.ID] = item
		id = item.ID
		return nil
	})
	return id, err
}

func (r *MemoryReturnItems) FindByOrderItem(_ context.Context, orderItemID uint) ([]domain.ReturnItem, error) {
	var out []domain.ReturnItem
	err := r.m.with("returns.FindByOrderItem", func(s *memoryState) error {
		for _, item := range sortedValues(s.returns, func(r domain.ReturnItem) uint { return r.ID }) {
			if item.OrderItemID == orderItemID {
				out = append(out, item)
			}
		}
		return nil
	})
	return out, err
}

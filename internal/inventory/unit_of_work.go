package inventory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"larder/internal/domain"
	apperrors "larder/internal/errors"
)

// maxBatchQuantity matches the signed INT quantity column.
const maxBatchQuantity = math.MaxInt32

type BatchStore interface {
	FindByProductForUpdate(ctx context.Context, tx *sqlx.Tx, productID uint) ([]domain.Batch, error)
	FindByIDsForUpdate(ctx context.Context, tx *sqlx.Tx, ids []uint) ([]domain.Batch, error)
	UpdateQuantities(ctx context.Context, tx *sqlx.Tx, batch domain.Batch) error
}

type TransactionStore interface {
	Insert(ctx context.Context, tx *sqlx.Tx, t domain.InventoryTransaction) (uint, error)
}

// UnitOfWork stages batch mutations for one database transaction. Batches are
// locked when loaded; every operation validates against the staged state and
// either applies completely or leaves it untouched. Nothing reaches the
// database until Flush.
type UnitOfWork struct {
	tx      *sqlx.Tx
	batches BatchStore
	txns    TransactionStore
	now     time.Time

	loaded    map[uint]*domain.Batch
	byProduct map[uint][]uint
	dirty     map[uint]struct{}
	pending   []domain.InventoryTransaction
}

func NewUnitOfWork(tx *sqlx.Tx, batches BatchStore, txns TransactionStore, now time.Time) *UnitOfWork {
	return &UnitOfWork{
		tx:        tx,
		batches:   batches,
		txns:      txns,
		now:       now,
		loaded:    make(map[uint]*domain.Batch),
		byProduct: make(map[uint][]uint),
		dirty:     make(map[uint]struct{}),
	}
}

// LoadProducts locks every batch of the given products. Products are locked in
// ascending ID order so concurrent orders acquire row locks consistently.
func (u *UnitOfWork) LoadProducts(ctx context.Context, productIDs ...uint) error {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	for _, productID := range ids {
		if _, ok := u.byProduct[productID]; ok {
			continue
		}
		batches, err := u.batches.FindByProductForUpdate(ctx, u.tx, productID)
		if err != nil {
			return fmt.Errorf("locking batches for product %d: %w", productID, err)
		}
		batchIDs := make([]uint, 0, len(batches))
		for _, b := range batches {
			u.track(b)
			batchIDs = append(batchIDs, b.ID)
		}
		u.byProduct[productID] = batchIDs
	}
	return nil
}

// LoadBatches locks specific batches, e.g. the ones recorded on an order's
// allocations. Missing IDs fail with BatchNotFound.
func (u *UnitOfWork) LoadBatches(ctx context.Context, batchIDs ...uint) error {
	var missing []uint
	for _, id := range batchIDs {
		if _, ok := u.loaded[id]; !ok && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)

	batches, err := u.batches.FindByIDsForUpdate(ctx, u.tx, missing)
	if err != nil {
		return fmt.Errorf("locking batches: %w", err)
	}
	for _, b := range batches {
		u.track(b)
	}
	for _, id := range missing {
		if _, ok := u.loaded[id]; !ok {
			return apperrors.NewBatchNotFoundError(id)
		}
	}
	return nil
}

func (u *UnitOfWork) track(b domain.Batch) {
	if _, ok := u.loaded[b.ID]; ok {
		return
	}
	batch := b
	u.loaded[b.ID] = &batch
}

func (u *UnitOfWork) Batch(id uint) (domain.Batch, error) {
	b, ok := u.loaded[id]
	if !ok {
		return domain.Batch{}, apperrors.NewBatchNotFoundError(id)
	}
	return *b, nil
}

func (u *UnitOfWork) productBatches(productID uint) []domain.Batch {
	ids := u.byProduct[productID]
	out := make([]domain.Batch, 0, len(ids))
	for _, id := range ids {
		out = append(out, *u.loaded[id])
	}
	return out
}

func (u *UnitOfWork) Levels(productID uint) domain.StockLevels {
	return domain.SumStock(u.productBatches(productID))
}

// Sellable is the stock a reservation could draw on right now.
func (u *UnitOfWork) Sellable(productID uint) int {
	total := 0
	for _, b := range EligibleBatches(u.productBatches(productID), u.now) {
		total += b.Available()
	}
	return total
}

// Reserve holds quantity of productID across its batches, soonest expiry
// first, emitting one reservation transaction per batch touched.
func (u *UnitOfWork) Reserve(productID uint, quantity int, reason string) (*Reservation, error) {
	if _, ok := u.byProduct[productID]; !ok {
		return nil, fmt.Errorf("batches for product %d not loaded", productID)
	}

	res, err := PlanReservation(productID, u.productBatches(productID), quantity, u.now)
	if err != nil {
		return nil, err
	}

	for _, pick := range res.Picks {
		b := u.loaded[pick.BatchID]
		b.ReservedQuantity += pick.Quantity
		u.record(*b, domain.TransactionReservation, 0, pick.Quantity, reason)
	}
	return res, nil
}

// ReleaseReservation undoes exactly the picks of res.
func (u *UnitOfWork) ReleaseReservation(res *Reservation, reason string) error {
	allocations := make([]domain.Allocation, 0, len(res.Picks))
	for _, p := range res.Picks {
		allocations = append(allocations, domain.Allocation{
			BatchID:   p.BatchID,
			ProductID: res.ProductID,
			Quantity:  p.Quantity,
			UnitCost:  p.UnitCost,
		})
	}
	return u.Release(allocations, reason)
}

// Release returns reserved stock to the batches recorded on allocations.
func (u *UnitOfWork) Release(allocations []domain.Allocation, reason string) error {
	return u.applyAllocations(allocations, func(b *domain.Batch, qty int) (int, int, error) {
		if b.ReservedQuantity < qty {
			return 0, 0, fmt.Errorf("batch %d holds %d reserved, cannot release %d", b.ID, b.ReservedQuantity, qty)
		}
		return 0, -qty, nil
	}, domain.TransactionRelease, reason)
}

// Fulfill consumes reservations: the units leave the batch physically.
func (u *UnitOfWork) Fulfill(allocations []domain.Allocation, reason string) error {
	return u.applyAllocations(allocations, func(b *domain.Batch, qty int) (int, int, error) {
		if b.ReservedQuantity < qty || b.Quantity < qty {
			return 0, 0, fmt.Errorf("batch %d cannot fulfill %d (quantity %d, reserved %d)", b.ID, qty, b.Quantity, b.ReservedQuantity)
		}
		return -qty, -qty, nil
	}, domain.TransactionFulfillment, reason)
}

type allocationStep func(b *domain.Batch, qty int) (quantityChange, reservedChange int, err error)

// applyAllocations validates every step against a scratch copy first so a
// failure on the last allocation leaves all batches as they were.
func (u *UnitOfWork) applyAllocations(allocations []domain.Allocation, step allocationStep, typ domain.TransactionType, reason string) error {
	scratch := make(map[uint]domain.Batch)
	type change struct {
		batchID            uint
		quantity, reserved int
	}
	changes := make([]change, 0, len(allocations))

	for _, a := range allocations {
		if a.Quantity <= 0 {
			continue
		}
		b, ok := scratch[a.BatchID]
		if !ok {
			loaded, exists := u.loaded[a.BatchID]
			if !exists {
				return apperrors.NewBatchNotFoundError(a.BatchID)
			}
			b = *loaded
		}
		dq, dr, err := step(&b, a.Quantity)
		if err != nil {
			return err
		}
		b.Quantity += dq
		b.ReservedQuantity += dr
		if !b.Consistent() {
			return fmt.Errorf("batch %d would become inconsistent", b.ID)
		}
		scratch[a.BatchID] = b
		changes = append(changes, change{batchID: a.BatchID, quantity: dq, reserved: dr})
	}

	for _, c := range changes {
		b := u.loaded[c.batchID]
		b.Quantity += c.quantity
		b.ReservedQuantity += c.reserved
		u.record(*b, typ, c.quantity, c.reserved, reason)
	}
	return nil
}

// ReleaseProduct frees quantity reserved on productID without allocation
// records, walking batches in reverse expiry order.
func (u *UnitOfWork) ReleaseProduct(productID uint, quantity int, reason string) error {
	batches := u.productBatches(productID)
	sort.SliceStable(batches, func(i, j int) bool { return domain.ExpiresBefore(batches[j], batches[i]) })

	var allocations []domain.Allocation
	remaining := quantity
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		take := min(remaining, b.ReservedQuantity)
		if take == 0 {
			continue
		}
		allocations = append(allocations, domain.Allocation{BatchID: b.ID, ProductID: productID, Quantity: take})
		remaining -= take
	}
	if remaining > 0 {
		return fmt.Errorf("product %d holds only %d reserved, cannot release %d", productID, quantity-remaining, quantity)
	}
	return u.Release(allocations, reason)
}

// Increase adds units to a batch (restock, positive count adjustment).
func (u *UnitOfWork) Increase(batchID uint, quantity int, typ domain.TransactionType, reason string) error {
	if quantity <= 0 {
		return apperrors.NewValidationError("quantity must be positive")
	}
	b, ok := u.loaded[batchID]
	if !ok {
		return apperrors.NewBatchNotFoundError(batchID)
	}
	if quantity > maxBatchQuantity-b.Quantity {
		return apperrors.NewValidationError("quantity too large",
			apperrors.ValidationDetail{
				Field:   "quantity",
				Message: fmt.Sprintf("batch %d cannot hold more than %d units", batchID, maxBatchQuantity),
			})
	}
	b.Quantity += quantity
	u.record(*b, typ, quantity, 0, reason)
	return nil
}

// Decrease removes units from a batch's available stock. Reserved units are
// never touched, so the batch cannot drop below what orders still hold.
func (u *UnitOfWork) Decrease(batchID uint, quantity int, typ domain.TransactionType, reason string) error {
	if quantity <= 0 {
		return apperrors.NewValidationError("quantity must be positive")
	}
	b, ok := u.loaded[batchID]
	if !ok {
		return apperrors.NewBatchNotFoundError(batchID)
	}
	if b.Available() < quantity {
		return apperrors.NewInsufficientStockError(b.ProductID, quantity, b.Available())
	}
	b.Quantity -= quantity
	u.record(*b, typ, -quantity, 0, reason)
	return nil
}

// Consume removes quantity of productID from its sellable batches in FIFO
// order and returns the picks taken.
func (u *UnitOfWork) Consume(productID uint, quantity int, typ domain.TransactionType, reason string) ([]Pick, error) {
	if _, ok := u.byProduct[productID]; !ok {
		return nil, fmt.Errorf("batches for product %d not loaded", productID)
	}
	plan, err := PlanReservation(productID, u.productBatches(productID), quantity, u.now)
	if err != nil {
		return nil, err
	}
	for _, pick := range plan.Picks {
		b := u.loaded[pick.BatchID]
		b.Quantity -= pick.Quantity
		u.record(*b, typ, -pick.Quantity, 0, reason)
	}
	return plan.Picks, nil
}

func (u *UnitOfWork) record(b domain.Batch, typ domain.TransactionType, quantityChange, reservedChange int, reason string) {
	u.dirty[b.ID] = struct{}{}
	u.pending = append(u.pending, domain.NewTransaction(b, typ, quantityChange, reservedChange, reason, u.now))
}

// AttachOrder tags staged transactions with the order that caused them.
func (u *UnitOfWork) AttachOrder(orderID uint) {
	for i := range u.pending {
		if u.pending[i].OrderID == nil {
			id := orderID
			u.pending[i].OrderID = &id
		}
	}
}

// Pending returns the staged transactions in the order they were recorded.
func (u *UnitOfWork) Pending() []domain.InventoryTransaction {
	return slices.Clone(u.pending)
}

// Flush writes every touched batch and the staged transactions.
func (u *UnitOfWork) Flush(ctx context.Context) error {
	ids := make([]uint, 0, len(u.dirty))
	for id := range u.dirty {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		b := u.loaded[id]
		if !b.Consistent() {
			return fmt.Errorf("batch %d inconsistent: quantity %d reserved %d", b.ID, b.Quantity, b.ReservedQuantity)
		}
		if err := u.batches.UpdateQuantities(ctx, u.tx, *b); err != nil {
			return err
		}
	}

	for _, t := range u.pending {
		if _, err := u.txns.Insert(ctx, u.tx, t); err != nil {
			return err
		}
	}

	u.dirty = make(map[uint]struct{})
	u.pending = nil
	return nil
}

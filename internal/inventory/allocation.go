package inventory

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"larder/internal/domain"
	apperrors "larder/internal/errors"
)

// Pick is the amount taken from one batch by a reservation.
type Pick struct {
	BatchID  uint
	Quantity int
	UnitCost decimal.Decimal
}

func (p Pick) Cost() decimal.Decimal {
	return p.UnitCost.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

type Reservation struct {
	ProductID uint
	Quantity  int
	Picks     []Pick
	Cost      decimal.Decimal
}

// EligibleBatches returns the batches a reservation may draw from, soonest
// expiry first: active, with available stock, not past their expiry day.
func EligibleBatches(batches []domain.Batch, now time.Time) []domain.Batch {
	eligible := make([]domain.Batch, 0, len(batches))
	for _, b := range batches {
		if b.Sellable(now) {
			eligible = append(eligible, b)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return domain.ExpiresBefore(eligible[i], eligible[j])
	})
	return eligible
}

// PlanReservation walks the eligible batches FIFO-by-expiry and decides how
// much to take from each. It never mutates its input; when the batches cannot
// cover quantity it returns an InsufficientStockError and no plan.
func PlanReservation(productID uint, batches []domain.Batch, quantity int, now time.Time) (*Reservation, error) {
	if quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity must be positive", apperrors.ValidationDetail{
			Field:   "quantity",
			Message: "quantity must be greater than zero",
		})
	}

	eligible := EligibleBatches(batches, now)

	res := &Reservation{
		ProductID: productID,
		Quantity:  quantity,
		Cost:      decimal.Zero,
	}

	remaining := quantity
	for _, b := range eligible {
		if remaining == 0 {
			break
		}
		take := min(remaining, b.Available())
		pick := Pick{BatchID: b.ID, Quantity: take, UnitCost: b.UnitCost}
		res.Picks = append(res.Picks, pick)
		res.Cost = res.Cost.Add(pick.Cost())
		remaining -= take
	}

	if remaining > 0 {
		return nil, apperrors.NewInsufficientStockError(productID, quantity, quantity-remaining)
	}

	return res, nil
}

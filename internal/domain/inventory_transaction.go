package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionReservation TransactionType = "reservation"
	TransactionRelease     TransactionType = "release"
	TransactionFulfillment TransactionType = "fulfillment"
	TransactionDamage      TransactionType = "damage"
	TransactionRestock     TransactionType = "restock"
	TransactionAdjustment  TransactionType = "adjustment"
)

// InventoryTransaction is one append-only audit row. The expiry and batch
// number snapshots keep history stable when the batch is edited later.
type InventoryTransaction struct {
	ID                  uint            `db:"id"`
	BatchID             uint            `db:"batch_id"`
	ProductID           uint            `db:"product_id"`
	OrderID             *uint           `db:"order_id"`
	QuantityChange      int             `db:"quantity_change"`
	ReservedChange      int             `db:"reserved_change"`
	CostPrice           decimal.Decimal `db:"cost_price"`
	TransactionType     TransactionType `db:"transaction_type"`
	Reason              string          `db:"reason"`
	ExpiryDateSnapshot  *time.Time      `db:"expiry_date_snapshot"`
	BatchNumberSnapshot *string         `db:"batch_number_snapshot"`
	CreatedAt           time.Time       `db:"created_at"`
}

// NewTransaction records a change against batch. CostPrice values the units
// moved at the batch's unit cost.
func NewTransaction(batch Batch, typ TransactionType, quantityChange, reservedChange int, reason string, at time.Time) InventoryTransaction {
	units := quantityChange
	if units == 0 {
		units = reservedChange
	}
	if units < 0 {
		units = -units
	}

	return InventoryTransaction{
		BatchID:             batch.ID,
		ProductID:           batch.ProductID,
		QuantityChange:      quantityChange,
		ReservedChange:      reservedChange,
		CostPrice:           batch.UnitCost.Mul(decimal.NewFromInt(int64(units))),
		TransactionType:     typ,
		Reason:              reason,
		ExpiryDateSnapshot:  batch.ExpiryDate,
		BatchNumberSnapshot: batch.BatchNumber,
		CreatedAt:           at,
	}
}

package domain

import "github.com/shopspring/decimal"

type OrderItemStatus string

const (
	OrderItemStatusNormal   OrderItemStatus = "normal"
	OrderItemStatusReturned OrderItemStatus = "returned"
)

type OrderItem struct {
	ID               uint            `db:"id"`
	OrderID          uint            `db:"order_id"`
	ProductID        uint            `db:"product_id"`
	Quantity         int             `db:"quantity"`
	UnitPrice        decimal.Decimal `db:"unit_price"`
	ReturnedQuantity int             `db:"returned_quantity"`
	Status           OrderItemStatus `db:"status"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i OrderItem) Returnable() int {
	return i.Quantity - i.ReturnedQuantity
}

// Allocation is the slice of one order item reserved against one batch.
// Cancel, fulfillment and returns all act on these rows so stock always goes
// back to, or leaves from, the batch that was originally reserved.
type Allocation struct {
	ID               uint            `db:"id"`
	OrderItemID      uint            `db:"order_item_id"`
	BatchID          uint            `db:"batch_id"`
	ProductID        uint            `db:"product_id"`
	Quantity         int             `db:"quantity"`
	UnitCost         decimal.Decimal `db:"unit_cost"`
	Fulfilled        bool            `db:"fulfilled"`
	ReturnedQuantity int             `db:"returned_quantity"`
}

func (a Allocation) Cost() decimal.Decimal {
	return a.UnitCost.Mul(decimal.NewFromInt(int64(a.Quantity)))
}

func (a Allocation) Returnable() int {
	return a.Quantity - a.ReturnedQuantity
}

package domain

import "time"

type ReturnItem struct {
	ID          uint      `db:"id"`
	OrderItemID uint      `db:"order_item_id"`
	Quantity    int       `db:"quantity"`
	Reason      string    `db:"reason"`
	Restock     bool      `db:"restock"`
	CreatedAt   time.Time `db:"created_at"`
}

type DamageSource string

const (
	DamageSourceInventory DamageSource = "inventory"
	DamageSourceInvoice   DamageSource = "invoice"
	DamageSourceExternal  DamageSource = "external"
	DamageSourceReturned  DamageSource = "returned"
)

func (s DamageSource) IsValid() bool {
	switch s {
	case DamageSourceInventory, DamageSourceInvoice, DamageSourceExternal, DamageSourceReturned:
		return true
	}
	return false
}

// RemovesStock reports whether the damaged quantity was still on a batch.
// Returned goods already left the warehouse at fulfillment.
func (s DamageSource) RemovesStock() bool {
	return s != DamageSourceReturned
}

type DamagedGoods struct {
	ID               uint         `db:"id"`
	ProductID        uint         `db:"product_id"`
	InventoryBatchID *uint        `db:"inventory_batch_id"`
	ReturnItemID     *uint        `db:"return_item_id"`
	Quantity         int          `db:"quantity"`
	Reason           string       `db:"reason"`
	Source           DamageSource `db:"source"`
	CreatedAt        time.Time    `db:"created_at"`
}

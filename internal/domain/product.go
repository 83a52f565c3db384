package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID               uint            `db:"id"`
	NameEn           string          `db:"name_en"`
	NameAr           string          `db:"name_ar"`
	Price            decimal.Decimal `db:"price"`
	MaxOrderQuantity int             `db:"max_order_quantity"`
	IsActive         bool            `db:"is_active"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// ExceedsMaxOrder reports whether quantity is above the per-order cap.
// A zero cap means the product has no limit.
func (p Product) ExceedsMaxOrder(quantity int) bool {
	return p.MaxOrderQuantity > 0 && quantity > p.MaxOrderQuantity
}

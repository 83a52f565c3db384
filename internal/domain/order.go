package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSource string

const (
	OrderSourceInsideCity  OrderSource = "inside_city"
	OrderSourceOutsideCity OrderSource = "outside_city"
)

type DeliveryMethod string

const (
	DeliveryMethodDelivery DeliveryMethod = "delivery"
	DeliveryMethodPickup   DeliveryMethod = "pickup"
)

type Order struct {
	ID             uint            `db:"id"`
	ClientID       *uint           `db:"client_id"`
	ClientName     *string         `db:"client_name"`
	Status         OrderStatus     `db:"status"`
	OrderSource    OrderSource     `db:"order_source"`
	DeliveryMethod DeliveryMethod  `db:"delivery_method"`
	AddressDetails string          `db:"address_details"`
	Latitude       *float64        `db:"latitude"`
	Longitude      *float64        `db:"longitude"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	CostPrice      decimal.Decimal `db:"cost_price"`
	DeliveryID     *uint           `db:"delivery_id"`
	IdempotencyKey *string         `db:"idempotency_key"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`

	Items []OrderItem `db:"-"`
}

// IsManual reports orders taken for a walk-in customer with no client record.
func (o Order) IsManual() bool {
	return o.ClientID == nil
}

// Profit is the margin between what the order charges and what its stock cost.
func (o Order) Profit() decimal.Decimal {
	return o.TotalAmount.Sub(o.CostPrice)
}

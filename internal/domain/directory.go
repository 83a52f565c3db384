package domain

type Client struct {
	ID        uint   `db:"id"`
	Name      string `db:"name"`
	Suspended bool   `db:"suspended"`
}

type DeliveryStatus string

const (
	DeliveryAvailable DeliveryStatus = "available"
	DeliveryBusy      DeliveryStatus = "busy"
)

type Delivery struct {
	ID     uint           `db:"id"`
	Name   string         `db:"name"`
	Status DeliveryStatus `db:"status"`
}

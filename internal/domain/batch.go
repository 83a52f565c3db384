package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Batch struct {
	ID                   uint            `db:"id"`
	ProductID            uint            `db:"product_id"`
	Quantity             int             `db:"quantity"`
	ReservedQuantity     int             `db:"reserved_quantity"`
	UnitCost             decimal.Decimal `db:"unit_cost"`
	ExpiryDate           *time.Time      `db:"expiry_date"`
	BatchNumber          *string         `db:"batch_number"`
	MinimumAlertQuantity int             `db:"minimum_alert_quantity"`
	IsActive             bool            `db:"is_active"`
	CreatedAt            time.Time       `db:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at"`
}

func (b Batch) Available() int {
	available := b.Quantity - b.ReservedQuantity
	if available < 0 {
		return 0
	}
	return available
}

// IsExpired compares by calendar day: a batch expiring today is still sellable.
func (b Batch) IsExpired(now time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return dayOf(*b.ExpiryDate).Before(dayOf(now))
}

func (b Batch) Sellable(now time.Time) bool {
	return b.IsActive && b.Available() > 0 && !b.IsExpired(now)
}

func (b Batch) IsLow() bool {
	return b.Available() <= b.MinimumAlertQuantity
}

// Consistent checks 0 <= reserved <= quantity.
func (b Batch) Consistent() bool {
	return b.ReservedQuantity >= 0 && b.ReservedQuantity <= b.Quantity
}

// ExpiresBefore orders batches soonest expiry first. Batches without an expiry
// date sort after every dated batch; ties fall back to the batch ID so the
// order never depends on storage.
func ExpiresBefore(a, b Batch) bool {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate == nil:
		return a.ID < b.ID
	case a.ExpiryDate == nil:
		return false
	case b.ExpiryDate == nil:
		return true
	}

	da, db := dayOf(*a.ExpiryDate), dayOf(*b.ExpiryDate)
	if !da.Equal(db) {
		return da.Before(db)
	}
	return a.ID < b.ID
}

type StockLevels struct {
	Total     int `json:"total"`
	Reserved  int `json:"reserved"`
	Available int `json:"available"`
}

// SumStock aggregates the active batches of a single product.
func SumStock(batches []Batch) StockLevels {
	var levels StockLevels
	for _, b := range batches {
		if !b.IsActive {
			continue
		}
		levels.Total += b.Quantity
		levels.Reserved += b.ReservedQuantity
		levels.Available += b.Available()
	}
	return levels
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

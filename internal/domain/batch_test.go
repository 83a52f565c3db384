package domain

import (
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func datePtr(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func TestBatch_Available(t *testing.T) {
	assert.Equal(t, 7, Batch{Quantity: 10, ReservedQuantity: 3}.Available())
	assert.Equal(t, 0, Batch{Quantity: 10, ReservedQuantity: 10}.Available())
	assert.Equal(t, 0, Batch{Quantity: 2, ReservedQuantity: 5}.Available())
}

func TestBatch_Consistent(t *testing.T) {
	assert.True(t, Batch{Quantity: 10, ReservedQuantity: 10}.Consistent())
	assert.True(t, Batch{Quantity: 0, ReservedQuantity: 0}.Consistent())
	assert.False(t, Batch{Quantity: 4, ReservedQuantity: 5}.Consistent())
	assert.False(t, Batch{Quantity: 4, ReservedQuantity: -1}.Consistent())
}

func TestBatch_IsExpired(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

	assert.False(t, Batch{}.IsExpired(now), "no expiry never expires")
	assert.False(t, Batch{ExpiryDate: datePtr("2025-03-10")}.IsExpired(now), "expiring today is sellable")
	assert.True(t, Batch{ExpiryDate: datePtr("2025-03-09")}.IsExpired(now))
	assert.False(t, Batch{ExpiryDate: datePtr("2025-04-01")}.IsExpired(now))
}

func TestBatch_Sellable(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	assert.True(t, Batch{IsActive: true, Quantity: 1}.Sellable(now))
	assert.False(t, Batch{IsActive: false, Quantity: 1}.Sellable(now))
	assert.False(t, Batch{IsActive: true, Quantity: 1, ReservedQuantity: 1}.Sellable(now))
	assert.False(t, Batch{IsActive: true, Quantity: 1, ExpiryDate: datePtr("2025-01-01")}.Sellable(now))
}

func TestExpiresBefore_NilExpiryLast(t *testing.T) {
	batches := []Batch{
		{ID: 1},
		{ID: 2, ExpiryDate: datePtr("2025-06-01")},
		{ID: 3, ExpiryDate: datePtr("2025-01-01")},
		{ID: 4, ExpiryDate: datePtr("2025-01-01")},
		{ID: 0},
	}

	sort.SliceStable(batches, func(i, j int) bool { return ExpiresBefore(batches[i], batches[j]) })

	ids := make([]uint, len(batches))
	for i, b := range batches {
		ids[i] = b.ID
	}
	assert.Equal(t, []uint{3, 4, 2, 0, 1}, ids)
}

func TestExpiresBefore_IgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)

	a := Batch{ID: 9, ExpiryDate: &evening}
	b := Batch{ID: 2, ExpiryDate: &morning}

	assert.False(t, ExpiresBefore(a, b))
	assert.True(t, ExpiresBefore(b, a))
}

func TestSumStock(t *testing.T) {
	batches := []Batch{
		{IsActive: true, Quantity: 10, ReservedQuantity: 4, UnitCost: decimal.NewFromInt(1)},
		{IsActive: true, Quantity: 5, ReservedQuantity: 0},
		{IsActive: false, Quantity: 100, ReservedQuantity: 0},
	}

	levels := SumStock(batches)

	assert.Equal(t, 15, levels.Total)
	assert.Equal(t, 4, levels.Reserved)
	assert.Equal(t, 11, levels.Available)
	assert.Equal(t, levels.Total-levels.Reserved, levels.Available)
}

func TestBatch_IsLow(t *testing.T) {
	assert.True(t, Batch{Quantity: 5, ReservedQuantity: 2, MinimumAlertQuantity: 3}.IsLow())
	assert.False(t, Batch{Quantity: 10, MinimumAlertQuantity: 3}.IsLow())
}

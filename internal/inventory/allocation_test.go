package inventory

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"larder/internal/domain"
	apperrors "larder/internal/errors"
)

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

var planNow = time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)

func scenarioBatches() []domain.Batch {
	return []domain.Batch{
		{ID: 2, ProductID: 1, Quantity: 10, UnitCost: decimal.RequireFromString("2.50"), ExpiryDate: day("2025-06-01"), IsActive: true},
		{ID: 1, ProductID: 1, Quantity: 10, UnitCost: decimal.RequireFromString("2.00"), ExpiryDate: day("2025-01-01"), IsActive: true},
	}
}

func TestPlanReservation_SpillsOverInExpiryOrder(t *testing.T) {
	res, err := PlanReservation(1, scenarioBatches(), 15, planNow)
	require.NoError(t, err)

	require.Len(t, res.Picks, 2)
	assert.Equal(t, Pick{BatchID: 1, Quantity: 10, UnitCost: decimal.RequireFromString("2.00")}, res.Picks[0])
	assert.Equal(t, uint(2), res.Picks[1].BatchID)
	assert.Equal(t, 5, res.Picks[1].Quantity)
	assert.True(t, res.Cost.Equal(decimal.RequireFromString("32.50")), "10×2.00 + 5×2.50, got %s", res.Cost)
}

func TestPlanReservation_SingleBatchWhenEnough(t *testing.T) {
	res, err := PlanReservation(1, scenarioBatches(), 4, planNow)
	require.NoError(t, err)

	require.Len(t, res.Picks, 1)
	assert.Equal(t, uint(1), res.Picks[0].BatchID)
	assert.Equal(t, 4, res.Picks[0].Quantity)
}

func TestPlanReservation_Insufficient(t *testing.T) {
	res, err := PlanReservation(1, scenarioBatches(), 25, planNow)

	assert.Nil(t, res)
	ise, ok := apperrors.IsInsufficientStockError(err)
	require.True(t, ok)
	assert.Equal(t, uint(1), ise.ProductID)
	assert.Equal(t, 25, ise.Requested)
	assert.Equal(t, 20, ise.Available)
}

func TestPlanReservation_DoesNotMutateInput(t *testing.T) {
	batches := scenarioBatches()

	_, err := PlanReservation(1, batches, 15, planNow)
	require.NoError(t, err)

	assert.Equal(t, scenarioBatches(), batches)
}

func TestPlanReservation_RejectsNonPositiveQuantity(t *testing.T) {
	for _, qty := range []int{0, -3} {
		_, err := PlanReservation(1, scenarioBatches(), qty, planNow)
		_, ok := apperrors.IsValidationError(err)
		assert.True(t, ok, "quantity %d", qty)
	}
}

func TestEligibleBatches(t *testing.T) {
	// 2 inactive, 3 expired yesterday, 5 fully reserved; 4 expires today.
	batches := []domain.Batch{
		{ID: 1, Quantity: 5, IsActive: true},
		{ID: 2, Quantity: 5, IsActive: false, ExpiryDate: day("2025-01-01")},
		{ID: 3, Quantity: 5, IsActive: true, ExpiryDate: day("2024-11-30")},
		{ID: 4, Quantity: 5, IsActive: true, ExpiryDate: day("2024-12-01")},
		{ID: 5, Quantity: 5, ReservedQuantity: 5, IsActive: true},
		{ID: 6, Quantity: 5, IsActive: true, ExpiryDate: day("2025-03-01")},
	}

	eligible := EligibleBatches(batches, planNow)

	ids := make([]uint, 0, len(eligible))
	for _, b := range eligible {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []uint{4, 6, 1}, ids)
}

func TestPlanReservation_ExpiredStockNotCounted(t *testing.T) {
	batches := []domain.Batch{
		{ID: 1, ProductID: 7, Quantity: 10, IsActive: true, ExpiryDate: day("2024-01-01")},
		{ID: 2, ProductID: 7, Quantity: 3, IsActive: true},
	}

	_, err := PlanReservation(7, batches, 5, planNow)

	ise, ok := apperrors.IsInsufficientStockError(err)
	require.True(t, ok)
	assert.Equal(t, 3, ise.Available)
}
